package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"logdesk/internal/types"
)

// JSONSource loads a dataset from a JSON array file. Files ending in .zst are
// zstd-compressed.
type JSONSource struct {
	path string
}

// NewJSONSource creates a JSON dataset source
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

// Load reads and decodes the whole dataset
func (s *JSONSource) Load() ([]types.LogRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	if isCompressed(s.path) {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress dataset %s: %w", s.path, err)
		}
	}

	records, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", s.path, err)
	}
	return records, nil
}

// Close is a no-op for file sources
func (s *JSONSource) Close() error {
	return nil
}

// DecodeRecords parses a JSON array of log records. An object with a "logs"
// array is accepted as well.
func DecodeRecords(data []byte) ([]types.LogRecord, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if v.Type() == fastjson.TypeObject {
		if logs := v.Get("logs"); logs != nil {
			v = logs
		}
	}

	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("expected a JSON array of records: %w", err)
	}

	records := make([]types.LogRecord, 0, len(items))
	for i, item := range items {
		record, err := decodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(v *fastjson.Value) (types.LogRecord, error) {
	if v.Type() != fastjson.TypeObject {
		return types.LogRecord{}, fmt.Errorf("expected object, got %s", v.Type())
	}

	record := types.LogRecord{
		ID:          string(v.GetStringBytes("id")),
		Severity:    string(v.GetStringBytes("severity")),
		Type:        string(v.GetStringBytes("type")),
		Source:      string(v.GetStringBytes("source")),
		Message:     string(v.GetStringBytes("message")),
		HostName:    string(v.GetStringBytes("hostName")),
		IPAddress:   string(v.GetStringBytes("ipAddress")),
		Environment: string(v.GetStringBytes("environment")),
		User:        string(v.GetStringBytes("user")),
		Module:      string(v.GetStringBytes("module")),
		EventCode:   string(v.GetStringBytes("eventCode")),
		DurationMs:  v.GetInt64("durationMs"),
		Resolved:    v.GetBool("resolved"),
	}

	if record.ID == "" {
		return record, fmt.Errorf("missing id")
	}
	if record.DurationMs < 0 {
		return record, fmt.Errorf("negative durationMs %d for %s", record.DurationMs, record.ID)
	}

	ts, err := decodeTimestamp(v.Get("timestamp"))
	if err != nil {
		return record, fmt.Errorf("%s: %w", record.ID, err)
	}
	record.Timestamp = ts

	return record, nil
}

// decodeTimestamp accepts RFC3339 strings or unix milliseconds
func decodeTimestamp(v *fastjson.Value) (time.Time, error) {
	if v == nil {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	switch v.Type() {
	case fastjson.TypeString:
		raw := string(v.GetStringBytes())
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		return ts, nil
	case fastjson.TypeNumber:
		return time.UnixMilli(v.GetInt64()), nil
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp type %s", v.Type())
	}
}

// WriteJSON writes records as a JSON array, zstd-compressed when path ends in .zst
func WriteJSON(path string, records []types.LogRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	data := buf.Bytes()
	if isCompressed(path) {
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		data = encoder.EncodeAll(data, nil)
		encoder.Close()
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
