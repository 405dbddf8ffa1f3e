package types

import (
	"fmt"
	"time"
)

// Well-known severities. Datasets may carry other free-text values.
const (
	SeverityError = "ERROR"
	SeverityWarn  = "WARN"
	SeverityInfo  = "INFO"
	SeverityDebug = "DEBUG"
)

// LogRecord represents a single IT system log record in the dataset
type LogRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    string    `json:"severity"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Message     string    `json:"message"`
	HostName    string    `json:"hostName"`
	IPAddress   string    `json:"ipAddress"`
	Environment string    `json:"environment"`
	User        string    `json:"user,omitempty"`
	Module      string    `json:"module"`
	EventCode   string    `json:"eventCode"`
	DurationMs  int64     `json:"durationMs"`
	Resolved    bool      `json:"resolved"`
}

// StatusLabel returns the human readable resolution status
func (r LogRecord) StatusLabel() string {
	if r.Resolved {
		return "Resolved"
	}
	return "Unresolved"
}

// Date is a calendar date without a time component
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateLayout is the wire format for dates (matches an HTML date input)
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return DateOf(t, time.UTC), nil
}

// DateOf truncates an instant to its calendar date in loc
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
