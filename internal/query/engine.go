// Package query filters, date-restricts and paginates the log collection.
package query

import (
	"time"

	"logdesk/internal/storage"
	"logdesk/internal/types"
)

// PageSize is the fixed number of records per page
const PageSize = 10

// Page is a snapshot of the visible window and its totals
type Page struct {
	Number         int               `json:"page"`
	TotalPages     int               `json:"total_pages"`
	TotalMatches   int               `json:"total_matches"`
	CollectionSize int               `json:"collection_size"`
	From           int               `json:"from"`
	To             int               `json:"to"`
	Records        []types.LogRecord `json:"records"`
}

// Engine owns the query state over a shared record store. The filtered
// index list is memoised and rebuilt whenever the query state changes or the
// store reports a mutation.
//
// Engine is not safe for concurrent use.
type Engine struct {
	store *storage.Store
	loc   *time.Location

	text    string
	date    types.Date
	hasDate bool
	page    int

	generation   uint64
	cached       []int
	cachedGen    uint64
	cachedVer    uint64
	cachePresent bool
}

// NewEngine creates an engine over store. Dates are compared in loc
// (time.Local when nil).
func NewEngine(store *storage.Store, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store: store,
		loc:   loc,
		page:  1,
	}
}

// SetFilterText replaces the free-text filter and resets to page 1
func (e *Engine) SetFilterText(text string) {
	e.text = text
	e.page = 1
	e.generation++
}

// SetDateFilter restricts results to a calendar date and resets to page 1
func (e *Engine) SetDateFilter(date types.Date) {
	e.date = date
	e.hasDate = true
	e.page = 1
	e.generation++
}

// ClearDateFilter removes the date restriction and resets to page 1
func (e *Engine) ClearDateFilter() {
	e.date = types.Date{}
	e.hasDate = false
	e.page = 1
	e.generation++
}

// SetPage moves to page n, clamped into [1, TotalPages()]
func (e *Engine) SetPage(n int) {
	e.page = e.clamp(n)
}

// FilterText returns the current free-text filter
func (e *Engine) FilterText() string {
	return e.text
}

// DateFilter returns the current date filter, if any
func (e *Engine) DateFilter() (types.Date, bool) {
	return e.date, e.hasDate
}

// CurrentPage returns the page number in effect. A stored page that fell
// out of range after a status change is clamped on read.
func (e *Engine) CurrentPage() int {
	return e.clamp(e.page)
}

// CollectionSize returns the size of the unfiltered collection
func (e *Engine) CollectionSize() int {
	return e.store.Len()
}

// TotalMatchCount returns the number of records passing the filters
func (e *Engine) TotalMatchCount() int {
	return len(e.matches())
}

// TotalPages returns ceil(matches / PageSize); zero matches give zero pages
func (e *Engine) TotalPages() int {
	return pagesFor(e.TotalMatchCount())
}

// VisibleRecords returns the current page of filtered records in collection order
func (e *Engine) VisibleRecords() []types.LogRecord {
	from, to := e.window()
	matches := e.matches()

	records := make([]types.LogRecord, 0, to-from)
	for _, idx := range matches[from:to] {
		records = append(records, e.store.At(idx))
	}
	return records
}

// Page returns a snapshot of the visible window
func (e *Engine) Page() Page {
	from, to := e.window()
	p := Page{
		Number:         e.CurrentPage(),
		TotalPages:     e.TotalPages(),
		TotalMatches:   e.TotalMatchCount(),
		CollectionSize: e.CollectionSize(),
		Records:        e.VisibleRecords(),
		To:             to,
	}
	if to > from {
		p.From = from + 1
	}
	return p
}

// window returns the half-open index range of the current page within the matches
func (e *Engine) window() (int, int) {
	total := e.TotalMatchCount()
	from := (e.CurrentPage() - 1) * PageSize
	if from > total {
		from = total
	}
	to := from + PageSize
	if to > total {
		to = total
	}
	return from, to
}

func (e *Engine) clamp(n int) int {
	if total := e.TotalPages(); n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}
	return n
}

// matches returns the store indices passing both predicates
func (e *Engine) matches() []int {
	version := e.store.Version()
	if e.cachePresent && e.cachedGen == e.generation && e.cachedVer == version {
		return e.cached
	}

	matcher := newTextMatcher(e.text)
	indices := make([]int, 0, e.store.Len())
	for i := 0; i < e.store.Len(); i++ {
		r := e.store.At(i)
		if !matcher.match(r) {
			continue
		}
		if e.hasDate && !MatchesDate(r, e.date, e.loc) {
			continue
		}
		indices = append(indices, i)
	}

	e.cached = indices
	e.cachedGen = e.generation
	e.cachedVer = version
	e.cachePresent = true
	return indices
}

func pagesFor(matches int) int {
	return (matches + PageSize - 1) / PageSize
}
