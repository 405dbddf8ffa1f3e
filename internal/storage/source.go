package storage

import (
	"path/filepath"
	"strings"

	"logdesk/internal/types"
)

// Source defines the interface for loading the log dataset
type Source interface {
	// Load returns every record in dataset order
	Load() ([]types.LogRecord, error)

	// Close releases any resources held by the source
	Close() error
}

// OpenSource picks a dataset source from the file extension: .db, .sqlite
// and .sqlite3 are SQLite databases, anything else is (optionally
// zstd-compressed) JSON.
func OpenSource(path string) (Source, error) {
	if IsSQLitePath(path) {
		source, err := NewSQLiteSource(path)
		if err != nil {
			return nil, err
		}
		return source, nil
	}
	return NewJSONSource(path), nil
}

// IsSQLitePath reports whether path names a SQLite dataset
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// LoadStore loads a dataset from path into a new Store
func LoadStore(path string) (*Store, error) {
	source, err := OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	records, err := source.Load()
	if err != nil {
		return nil, err
	}
	return NewStore(records)
}
