package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"logdesk/internal/types"
)

// Defaults applies when neither file, flag nor environment sets a value
func Defaults() *types.Config {
	return &types.Config{
		HTTPPort:        8080,
		DatasetPath:     "data/logs.json",
		Timezone:        "Local",
		LogLevel:        "info",
		LogFile:         "",
		MetricsEnabled:  true,
		Mode:            types.ModeServer,
		ShutdownTimeout: 30 * time.Second,
	}
}

// LoadConfig loads configuration from the process command line and environment
func LoadConfig() (*types.Config, error) {
	fs := pflag.NewFlagSet("logdesk", pflag.ContinueOnError)
	return LoadConfigWithFlagSet(fs, os.Args[1:])
}

// LoadConfigWithFlagSet loads configuration using a specific flag set and
// arguments. Precedence, lowest first: defaults, YAML file (--config), flags
// explicitly set on the command line, LOGDESK_* environment variables.
func LoadConfigWithFlagSet(fs *pflag.FlagSet, args []string) (*types.Config, error) {
	defaults := Defaults()

	configPath := fs.String("config", "", "Path to a YAML configuration file")
	httpPort := fs.Int("http-port", defaults.HTTPPort, "HTTP port for the API and web interface")
	datasetPath := fs.String("dataset-path", defaults.DatasetPath, "Path to the log dataset (.json, .json.zst, .db)")
	timezone := fs.String("timezone", defaults.Timezone, "Time zone used for date filtering")
	logLevel := fs.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	logFile := fs.String("log-file", defaults.LogFile, "Also write JSON logs to this file")
	metricsEnabled := fs.Bool("metrics-enabled", defaults.MetricsEnabled, "Expose Prometheus metrics on /metrics")
	mode := fs.String("mode", defaults.Mode, "Run mode: server or tui")
	shutdownTimeout := fs.Duration("shutdown-timeout", defaults.ShutdownTimeout, "Graceful shutdown timeout")
	staticDir := fs.String("static-dir", defaults.StaticDir, "Serve the web page from this directory instead of the embedded copy")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config := defaults
	if *configPath != "" {
		if err := loadFile(*configPath, config); err != nil {
			return nil, err
		}
	}

	// Flags only override the file when given explicitly
	if fs.Changed("http-port") {
		config.HTTPPort = *httpPort
	}
	if fs.Changed("dataset-path") {
		config.DatasetPath = *datasetPath
	}
	if fs.Changed("timezone") {
		config.Timezone = *timezone
	}
	if fs.Changed("log-level") {
		config.LogLevel = *logLevel
	}
	if fs.Changed("log-file") {
		config.LogFile = *logFile
	}
	if fs.Changed("metrics-enabled") {
		config.MetricsEnabled = *metricsEnabled
	}
	if fs.Changed("mode") {
		config.Mode = *mode
	}
	if fs.Changed("shutdown-timeout") {
		config.ShutdownTimeout = *shutdownTimeout
	}
	if fs.Changed("static-dir") {
		config.StaticDir = *staticDir
	}

	// Load from environment variables (override flags)
	config.HTTPPort = getIntFromEnv("LOGDESK_HTTP_PORT", config.HTTPPort)
	config.DatasetPath = getStringFromEnv("LOGDESK_DATASET_PATH", config.DatasetPath)
	config.Timezone = getStringFromEnv("LOGDESK_TIMEZONE", config.Timezone)
	config.LogLevel = getStringFromEnv("LOGDESK_LOG_LEVEL", config.LogLevel)
	config.LogFile = getStringFromEnv("LOGDESK_LOG_FILE", config.LogFile)
	config.MetricsEnabled = getBoolFromEnv("LOGDESK_METRICS_ENABLED", config.MetricsEnabled)
	config.Mode = getStringFromEnv("LOGDESK_MODE", config.Mode)
	config.ShutdownTimeout = getDurationFromEnv("LOGDESK_SHUTDOWN_TIMEOUT", config.ShutdownTimeout)
	config.StaticDir = getStringFromEnv("LOGDESK_STATIC_DIR", config.StaticDir)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile overlays a YAML file onto config
func loadFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// validateConfig validates the configuration and applies business rules
func validateConfig(config *types.Config) error {
	return validation.ValidateStruct(config,
		validation.Field(&config.HTTPPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&config.DatasetPath, validation.By(notBlank)),
		validation.Field(&config.Timezone, validation.By(validTimezone)),
		validation.Field(&config.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&config.Mode, validation.Required, validation.In(types.ModeServer, types.ModeTUI)),
		validation.Field(&config.ShutdownTimeout, validation.Min(time.Second)),
		validation.Field(&config.StaticDir, validation.By(existingDir)),
	)
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cannot be blank")
	}
	return nil
}

func existingDir(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	return nil
}

func validTimezone(value interface{}) error {
	s, _ := value.(string)
	if s == "" || s == "Local" {
		return nil
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown time zone %q", s)
	}
	return nil
}

// Helper functions for environment variable parsing

func getStringFromEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntFromEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolFromEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
