package types

import (
	"testing"
	"time"
)

func TestConfig_Location(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
	}{
		{"empty falls back to local", "", time.Local.String()},
		{"explicit local", "Local", time.Local.String()},
		{"utc", "UTC", "UTC"},
		{"unknown falls back to local", "Not/AZone", time.Local.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Timezone: tt.timezone}
			if got := cfg.Location().String(); got != tt.want {
				t.Errorf("Expected location %s, got %s", tt.want, got)
			}
		})
	}
}
