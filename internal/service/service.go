package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"logdesk/internal/access"
	"logdesk/internal/interfaces"
	"logdesk/internal/metrics"
	"logdesk/internal/query"
	"logdesk/internal/session"
	"logdesk/internal/storage"
	"logdesk/internal/types"
)

const (
	// MaxSubscribers is the maximum number of concurrent subscribers
	MaxSubscribers = 100
	// subscriberBuffer is the per-subscriber channel capacity
	subscriberBuffer = 64
)

var (
	// ErrPermissionDenied is matched by every *PermissionError
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned for unknown log ids
	ErrNotFound = errors.New("log not found")
)

var _ interfaces.DeskService = (*DeskService)(nil)

// PermissionError reports the capability the current role lacks
type PermissionError struct {
	Role       access.Role
	Capability access.Capability
}

func (e *PermissionError) Error() string {
	role := string(e.Role)
	if role == "" {
		role = "no role"
	}
	return fmt.Sprintf("permission denied: %s cannot %s", role, e.Capability)
}

// Is makes errors.Is(err, ErrPermissionDenied) hold
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// DeskService serialises every core operation behind one mutex so the
// single-actor core can be driven from concurrent HTTP handlers. It is the
// caller side of the access trust boundary: each operation checks the
// capability it needs before touching the session or the engine.
type DeskService struct {
	mu      sync.Mutex
	store   *storage.Store
	engine  *query.Engine
	session *session.Session
	metrics *metrics.DeskMetrics

	// Status change subscriptions
	subscribers    map[chan interfaces.StatusChange]bool
	subscribersMux sync.RWMutex

	// Statistics
	stats      interfaces.ServiceStats
	statsMutex sync.RWMutex

	now func() time.Time
}

// NewDeskService creates a desk over store; dates are compared in loc
func NewDeskService(store *storage.Store, loc *time.Location) *DeskService {
	m := metrics.GetDeskMetrics()
	m.CollectionSize.Set(float64(store.Len()))

	return &DeskService{
		store:       store,
		engine:      query.NewEngine(store, loc),
		session:     session.New(store),
		metrics:     m,
		subscribers: make(map[chan interfaces.StatusChange]bool),
		stats: interfaces.ServiceStats{
			CollectionSize: store.Len(),
		},
		now: time.Now,
	}
}

// SelectRole sets the operator role
func (s *DeskService) SelectRole(role access.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.SelectRole(role); err != nil {
		return err
	}
	s.metrics.RoleSelections.WithLabelValues(string(role)).Inc()
	log.Info().Str("role", string(role)).Msg("role selected")
	return nil
}

// Logout clears the role and selection and resets the query state, as a
// fresh visit to the table would
func (s *DeskService) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.session.Role()
	s.session.Logout()
	s.engine.SetFilterText("")
	s.engine.ClearDateFilter()

	s.metrics.LogoutsTotal.Inc()
	log.Info().Str("role", string(previous)).Msg("logged out")
}

// Session describes the current role, selection and capabilities
func (s *DeskService) Session() interfaces.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := s.session.Role()
	info := interfaces.SessionInfo{
		Role:         role,
		RoleLabel:    role.Label(),
		Capabilities: access.Permissions(role),
	}
	if selected, ok := s.session.Selected(); ok {
		info.SelectedID = selected.ID
	}
	return info
}

// Query applies req to the query state and returns the visible window.
// Changing the text or date requires use_filters; reading requires view_table.
func (s *DeskService) Query(req interfaces.QueryRequest) (interfaces.TableView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(access.ViewTable); err != nil {
		return interfaces.TableView{}, err
	}

	start := s.now()

	textChanged := req.Text != nil && *req.Text != s.engine.FilterText()
	current, hasDate := s.engine.DateFilter()
	dateChanged := (req.Date != nil && (!hasDate || *req.Date != current)) || (req.ClearDate && hasDate)

	if textChanged || dateChanged {
		if err := s.require(access.UseFilters); err != nil {
			return interfaces.TableView{}, err
		}
	}

	if textChanged {
		s.engine.SetFilterText(*req.Text)
		s.metrics.FilterChanges.WithLabelValues("text").Inc()
	}
	if dateChanged {
		if req.Date != nil {
			s.engine.SetDateFilter(*req.Date)
		} else {
			s.engine.ClearDateFilter()
		}
		s.metrics.FilterChanges.WithLabelValues("date").Inc()
	}
	if req.Page != nil {
		s.engine.SetPage(*req.Page)
		if s.engine.CurrentPage() != *req.Page {
			s.metrics.PageClampsTotal.Inc()
			log.Debug().Int("requested", *req.Page).Int("page", s.engine.CurrentPage()).Msg("page clamped")
		}
	}

	role := s.session.Role()
	view := interfaces.TableView{
		Page:        s.engine.Page(),
		Role:        role,
		FilterText:  s.engine.FilterText(),
		CanFilter:   access.IsPermitted(role, access.UseFilters),
		ShowActions: access.IsPermitted(role, access.ViewDetail),
	}
	if date, ok := s.engine.DateFilter(); ok {
		view.DateFilter = date.String()
	}

	s.metrics.QueriesTotal.Inc()
	s.metrics.QueryDuration.Observe(s.now().Sub(start).Seconds())
	s.metrics.QueryMatches.Observe(float64(view.TotalMatches))
	s.updateStats(func(stats *interfaces.ServiceStats) {
		stats.Queries++
	})

	return view, nil
}

// Detail selects the record for the detail view. An unknown id leaves the
// selection unchanged and returns ErrNotFound.
func (s *DeskService) Detail(id string) (types.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(access.ViewDetail); err != nil {
		return types.LogRecord{}, err
	}
	return s.selectLocked(id)
}

// UpdateStatus selects the record with id (when id is non-empty) and sets its
// resolution status. Requires update_status. Writing the value a record
// already holds returns the record without counting or notifying.
func (s *DeskService) UpdateStatus(id string, resolved bool) (types.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(access.UpdateStatus); err != nil {
		return types.LogRecord{}, err
	}

	if id != "" {
		if _, err := s.selectLocked(id); err != nil {
			return types.LogRecord{}, err
		}
	}

	record, changed, err := s.session.SetSelectedResolved(resolved)
	if err != nil {
		return types.LogRecord{}, err
	}
	if !changed {
		log.Debug().Str("id", record.ID).Bool("resolved", resolved).Msg("status already set")
		return record, nil
	}

	s.metrics.StatusUpdatesTotal.WithLabelValues(statusLabel(resolved)).Inc()
	s.updateStats(func(stats *interfaces.ServiceStats) {
		stats.StatusUpdates++
	})
	log.Info().Str("id", record.ID).Bool("resolved", resolved).Msg("status updated")

	s.notifySubscribers(interfaces.StatusChange{
		ID:       record.ID,
		Resolved: record.Resolved,
		Role:     s.session.Role(),
		At:       s.now(),
	})
	return record, nil
}

// Subscribe creates a subscription for status changes
func (s *DeskService) Subscribe() <-chan interfaces.StatusChange {
	s.subscribersMux.Lock()
	defer s.subscribersMux.Unlock()

	if len(s.subscribers) >= MaxSubscribers {
		// Return a closed channel to indicate failure
		ch := make(chan interfaces.StatusChange)
		close(ch)
		return ch
	}

	ch := make(chan interfaces.StatusChange, subscriberBuffer)
	s.subscribers[ch] = true
	s.subscriberCountChanged()
	return ch
}

// Unsubscribe removes a subscription
func (s *DeskService) Unsubscribe(subscription <-chan interfaces.StatusChange) {
	s.subscribersMux.Lock()
	defer s.subscribersMux.Unlock()

	for ch := range s.subscribers {
		if ch == subscription {
			delete(s.subscribers, ch)
			close(ch)
			s.subscriberCountChanged()
			break
		}
	}
}

// Close ends every subscription
func (s *DeskService) Close() {
	s.subscribersMux.Lock()
	defer s.subscribersMux.Unlock()

	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subscriberCountChanged()
}

// GetStats returns service statistics
func (s *DeskService) GetStats() interfaces.ServiceStats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	return s.stats
}

// require checks capability against the current role. Caller holds mu.
func (s *DeskService) require(capability access.Capability) error {
	role := s.session.Role()
	if access.IsPermitted(role, capability) {
		s.metrics.PermissionChecks.WithLabelValues(string(capability), "allowed").Inc()
		return nil
	}

	s.metrics.PermissionChecks.WithLabelValues(string(capability), "denied").Inc()
	s.updateStats(func(stats *interfaces.ServiceStats) {
		stats.PermissionDenials++
	})
	log.Warn().Str("role", string(role)).Str("capability", string(capability)).Msg("permission denied")
	return &PermissionError{Role: role, Capability: capability}
}

// selectLocked selects id for the detail view. Caller holds mu.
func (s *DeskService) selectLocked(id string) (types.LogRecord, error) {
	if !s.session.SelectLogForDetail(id) {
		s.metrics.SelectionMisses.Inc()
		return types.LogRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	record, _ := s.session.Selected()
	return record, nil
}

// notifySubscribers sends change to every subscriber without blocking
func (s *DeskService) notifySubscribers(change interfaces.StatusChange) {
	s.subscribersMux.RLock()
	defer s.subscribersMux.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- change:
		default:
			log.Warn().Str("id", change.ID).Msg("subscriber channel is full, skipping notification")
		}
	}
}

// subscriberCountChanged refreshes subscriber stats. Caller holds subscribersMux.
func (s *DeskService) subscriberCountChanged() {
	count := len(s.subscribers)
	s.metrics.ActiveSubscribers.Set(float64(count))
	s.updateStats(func(stats *interfaces.ServiceStats) {
		stats.ActiveSubscribers = count
	})
}

// updateStats safely updates the service statistics
func (s *DeskService) updateStats(updateFunc func(*interfaces.ServiceStats)) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	updateFunc(&s.stats)
}

func statusLabel(resolved bool) string {
	if resolved {
		return "resolved"
	}
	return "unresolved"
}
