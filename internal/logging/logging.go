// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger setup
type Options struct {
	Level string
	// File, when set, receives JSON records in addition to Out
	File string
	// Out defaults to stderr
	Out io.Writer
	// Console renders human readable lines on Out instead of JSON
	Console bool
}

// Init replaces the global logger and returns a function closing any opened file
func Init(opts Options) (func() error, error) {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level, zerolog.InfoLevel))
	zerolog.TimeFieldFormat = time.RFC3339

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	closer := func() error { return nil }
	writer := out
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			return closer, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = zerolog.MultiLevelWriter(out, file)
		closer = file.Close
	}

	log.Logger = zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
	zerolog.DefaultContextLogger = &log.Logger

	return closer, nil
}

// ParseLevel maps a level name to a zerolog level
func ParseLevel(level string, fallback zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return fallback
	}
}
