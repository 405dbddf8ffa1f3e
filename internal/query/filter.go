package query

import (
	"strings"
	"time"

	"logdesk/internal/types"
)

// Status keywords matched against the resolved flag instead of a field
const (
	KeywordResolved   = "RESOLVED"
	KeywordUnresolved = "UNRESOLVED"
)

// textMatcher holds a prepared filter text
type textMatcher struct {
	lower   string
	keyword string
}

func newTextMatcher(text string) textMatcher {
	return textMatcher{
		lower:   strings.ToLower(text),
		keyword: strings.ToUpper(text),
	}
}

// match reports whether the record passes the text predicate. Field
// substrings and the status keywords are alternatives: "resolved" matches
// every resolved record and also any record mentioning "resolved".
func (m textMatcher) match(r types.LogRecord) bool {
	if m.lower == "" {
		return true
	}

	fields := [...]string{
		r.ID, r.Source, r.Message, r.Severity, r.Type, r.HostName,
		r.IPAddress, r.Environment, r.User, r.Module, r.EventCode,
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), m.lower) {
			return true
		}
	}

	switch m.keyword {
	case KeywordResolved:
		return r.Resolved
	case KeywordUnresolved:
		return !r.Resolved
	}
	return false
}

// MatchesText reports whether r passes the text predicate for text
func MatchesText(r types.LogRecord, text string) bool {
	return newTextMatcher(text).match(r)
}

// MatchesDate reports whether r's timestamp falls on date in loc
func MatchesDate(r types.LogRecord, date types.Date, loc *time.Location) bool {
	return types.DateOf(r.Timestamp, loc) == date
}
