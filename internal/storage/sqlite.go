package storage

import (
	"database/sql"
	"fmt"
	"time"

	"logdesk/internal/types"

	_ "modernc.org/sqlite"
)

// SQLiteSource loads the dataset from a SQLite database. Row order is the
// insertion position column, which preserves the order of the imported file.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens (creating if needed) a SQLite dataset
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	source := &SQLiteSource{db: db}
	if err := source.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := source.initializeDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return source, nil
}

// configure applies connection pragmas
func (s *SQLiteSource) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// initializeDatabase creates the logs table and indexes when missing
func (s *SQLiteSource) initializeDatabase() error {
	createLogsTable := `
	CREATE TABLE IF NOT EXISTS logs (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		host_name TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		environment TEXT NOT NULL DEFAULT '',
		user TEXT,
		module TEXT NOT NULL DEFAULT '',
		event_code TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0 CHECK (duration_ms >= 0),
		resolved INTEGER NOT NULL DEFAULT 0
	);`

	if _, err := s.db.Exec(createLogsTable); err != nil {
		return fmt.Errorf("failed to create logs table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Import replaces the table contents with records, keeping their order
func (s *SQLiteSource) Import(records []types.LogRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM logs"); err != nil {
		return fmt.Errorf("failed to clear logs table: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO logs (position, id, timestamp, severity, type, source, message, host_name,
		ip_address, environment, user, module, event_code, duration_ms, resolved)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		var user interface{}
		if r.User != "" {
			user = r.User
		}
		_, err := stmt.Exec(i, r.ID, r.Timestamp.Format(time.RFC3339Nano), r.Severity, r.Type,
			r.Source, r.Message, r.HostName, r.IPAddress, r.Environment, user, r.Module,
			r.EventCode, r.DurationMs, r.Resolved)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Load reads every record ordered by position
func (s *SQLiteSource) Load() ([]types.LogRecord, error) {
	rows, err := s.db.Query(`
	SELECT id, timestamp, severity, type, source, message, host_name, ip_address,
		environment, user, module, event_code, duration_ms, resolved
	FROM logs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var records []types.LogRecord
	for rows.Next() {
		var (
			r         types.LogRecord
			timestamp string
			user      sql.NullString
		)
		err := rows.Scan(&r.ID, &timestamp, &r.Severity, &r.Type, &r.Source, &r.Message,
			&r.HostName, &r.IPAddress, &r.Environment, &user, &r.Module, &r.EventCode,
			&r.DurationMs, &r.Resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}

		r.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp for %s: %w", r.ID, err)
		}
		r.User = user.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
