// Package testdata builds deterministic log datasets for tests.
package testdata

import (
	"fmt"
	"time"

	"logdesk/internal/types"
)

// Base is the timestamp of the first generated record
var Base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

var severities = []string{types.SeverityError, types.SeverityWarn, types.SeverityInfo, types.SeverityDebug}

var environments = []string{"production", "staging"}

// Records generates n records with ids L1..Ln. Every record is one hour
// after the previous, severities cycle ERROR, WARN, INFO, DEBUG, records with
// an even index are resolved and every third record has no user.
func Records(n int) []types.LogRecord {
	records := make([]types.LogRecord, n)
	for i := 0; i < n; i++ {
		user := fmt.Sprintf("user%d", i%5)
		if i%3 == 2 {
			user = ""
		}
		records[i] = types.LogRecord{
			ID:          fmt.Sprintf("L%d", i+1),
			Timestamp:   Base.Add(time.Duration(i) * time.Hour),
			Severity:    severities[i%len(severities)],
			Type:        "system",
			Source:      fmt.Sprintf("svc-%d", i%3),
			Message:     fmt.Sprintf("event number %d", i+1),
			HostName:    fmt.Sprintf("host-%02d", i%4),
			IPAddress:   fmt.Sprintf("10.0.0.%d", i%250),
			Environment: environments[i%len(environments)],
			User:        user,
			Module:      "core",
			EventCode:   fmt.Sprintf("EV%03d", i),
			DurationMs:  int64(i * 10),
			Resolved:    i%2 == 0,
		}
	}
	return records
}

// Record returns a single minimal record for targeted tests
func Record(id, severity, message string, resolved bool) types.LogRecord {
	return types.LogRecord{
		ID:          id,
		Timestamp:   Base,
		Severity:    severity,
		Type:        "application",
		Source:      "api",
		Message:     message,
		HostName:    "web-01",
		IPAddress:   "192.168.1.10",
		Environment: "production",
		Module:      "auth",
		EventCode:   "AUTH-1",
		Resolved:    resolved,
	}
}
