// Package session tracks the operator's role and the record selected for
// the detail view.
package session

import (
	"errors"

	"logdesk/internal/access"
	"logdesk/internal/storage"
	"logdesk/internal/types"
)

// ErrNoSelection is returned by status updates when no record is selected
var ErrNoSelection = errors.New("no log selected")

const noSelection = -1

// Session holds the current role and selection over a shared store.
// Not safe for concurrent use.
type Session struct {
	store    *storage.Store
	role     access.Role
	selected int
}

// New creates a session with no role and no selection
func New(store *storage.Store) *Session {
	return &Session{
		store:    store,
		role:     access.RoleUnset,
		selected: noSelection,
	}
}

// SelectRole sets the role, overwriting any previous one
func (s *Session) SelectRole(role access.Role) error {
	if !role.Valid() {
		return access.ErrUnknownRole
	}
	s.role = role
	return nil
}

// Logout resets the role to unset and clears the selection
func (s *Session) Logout() {
	s.role = access.RoleUnset
	s.selected = noSelection
}

// Role returns the current role
func (s *Session) Role() access.Role {
	return s.role
}

// Permits reports whether the current role holds capability
func (s *Session) Permits(capability access.Capability) bool {
	return access.IsPermitted(s.role, capability)
}

// SelectLogForDetail selects the record with the given id. An unknown id
// leaves the selection unchanged; the return value reports whether the id
// was found.
func (s *Session) SelectLogForDetail(id string) bool {
	idx, ok := s.store.Lookup(id)
	if !ok {
		return false
	}
	s.selected = idx
	return true
}

// Selected returns the currently selected record as it is now in the store
func (s *Session) Selected() (types.LogRecord, bool) {
	if s.selected == noSelection {
		return types.LogRecord{}, false
	}
	return s.store.At(s.selected), true
}

// SetSelectedResolved writes the resolution status of the selected record
// in place and reports whether the stored value changed. It does not check
// update_status: callers gate on Permits first.
func (s *Session) SetSelectedResolved(resolved bool) (types.LogRecord, bool, error) {
	if s.selected == noSelection {
		return types.LogRecord{}, false, ErrNoSelection
	}
	changed := s.store.SetResolved(s.selected, resolved)
	return s.store.At(s.selected), changed, nil
}
