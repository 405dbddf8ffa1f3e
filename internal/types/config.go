package types

import "time"

// Run modes
const (
	ModeServer = "server"
	ModeTUI    = "tui"
)

// Config holds all configuration options for the application
type Config struct {
	HTTPPort        int           `json:"http_port" yaml:"http_port"`
	DatasetPath     string        `json:"dataset_path" yaml:"dataset_path"`
	Timezone        string        `json:"timezone" yaml:"timezone"`
	LogLevel        string        `json:"log_level" yaml:"log_level"`
	LogFile         string        `json:"log_file" yaml:"log_file"`
	MetricsEnabled  bool          `json:"metrics_enabled" yaml:"metrics_enabled"`
	Mode            string        `json:"mode" yaml:"mode"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	StaticDir       string        `json:"static_dir" yaml:"static_dir"`
}

// Location resolves the configured time zone, falling back to time.Local
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
