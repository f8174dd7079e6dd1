// Package config loads the posture daemon's configuration from a YAML
// file, environment overrides, or built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/posturekit/go-posture/pkg/posture"
)

// Config is the complete daemon configuration.
type Config struct {
	// ListenAddr is the address the HTTP and WebSocket server binds.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Engine   EngineConfig   `yaml:"engine"`
	History  HistoryConfig  `yaml:"history"`
	Adaptive AdaptiveConfig `yaml:"adaptive"`
}

// EngineConfig holds the classification engine settings. Durations are
// plain milliseconds so the file stays unit-free.
type EngineConfig struct {
	SampleIntervalMS     int     `yaml:"sample_interval_ms"`
	WarningMS            int     `yaml:"warning_ms"`
	SlouchMS             int     `yaml:"slouch_ms"`
	CalibrationTimeoutMS int     `yaml:"calibration_timeout_ms"`
	MinConfidence        float64 `yaml:"min_confidence"`

	HeadForwardThresholdDeg      float64 `yaml:"head_forward_threshold_deg"`
	ShoulderTiltThresholdDeg     float64 `yaml:"shoulder_tilt_threshold_deg"`
	ShoulderSymmetryThresholdDeg float64 `yaml:"shoulder_symmetry_threshold_deg"`
	BackRoundingThresholdDeg     float64 `yaml:"back_rounding_threshold_deg"`
}

// HistoryConfig holds the sample store settings.
type HistoryConfig struct {
	// Path is the SQLite database file. A leading ~/ expands to the
	// user's home directory. Empty disables persistence.
	Path string `yaml:"path"`

	// RetentionDays is how long samples and events are kept.
	RetentionDays int `yaml:"retention_days"`
}

// AdaptiveConfig holds the threshold estimator settings.
type AdaptiveConfig struct {
	// Enabled turns periodic threshold recomputation on.
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr: ":8093",
		LogLevel:   "info",
		Engine: EngineConfig{
			SampleIntervalMS:             1500,
			WarningMS:                    5000,
			SlouchMS:                     15000,
			CalibrationTimeoutMS:         5000,
			MinConfidence:                0.5,
			HeadForwardThresholdDeg:      12,
			ShoulderTiltThresholdDeg:     8,
			ShoulderSymmetryThresholdDeg: 6,
			BackRoundingThresholdDeg:     15,
		},
		History: HistoryConfig{
			Path:          "~/.posture/history.db",
			RetentionDays: 7,
		},
		Adaptive: AdaptiveConfig{
			Enabled: true,
		},
	}
}

// Load reads and parses a YAML configuration file. Keys absent from the
// file keep their defaults, so partial configs are fine.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv returns the default configuration with environment overrides
// applied, for running without a config file.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv layers POSTURED_* environment variables over the config.
func (c *Config) applyEnv() {
	if addr := os.Getenv("POSTURED_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if path := os.Getenv("POSTURED_DB"); path != "" {
		c.History.Path = path
	}
	if level := os.Getenv("POSTURED_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// Validate checks the configuration, delegating engine checks to the
// engine config itself.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error")
	}
	return c.Engine.Posture().Validate()
}

// Posture converts the engine section into the engine's own config type.
func (e EngineConfig) Posture() posture.Config {
	return posture.Config{
		SampleInterval:               time.Duration(e.SampleIntervalMS) * time.Millisecond,
		WarningAfter:                 time.Duration(e.WarningMS) * time.Millisecond,
		SlouchAfter:                  time.Duration(e.SlouchMS) * time.Millisecond,
		CalibrationTimeout:           time.Duration(e.CalibrationTimeoutMS) * time.Millisecond,
		MinConfidence:                e.MinConfidence,
		HeadForwardThresholdDeg:      e.HeadForwardThresholdDeg,
		ShoulderTiltThresholdDeg:     e.ShoulderTiltThresholdDeg,
		ShoulderSymmetryThresholdDeg: e.ShoulderSymmetryThresholdDeg,
		BackRoundingThresholdDeg:     e.BackRoundingThresholdDeg,
	}
}

// Retention returns the history retention window as a duration.
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// DBPath returns the history path with ~/ expanded. Empty stays empty.
func (h HistoryConfig) DBPath() (string, error) {
	path := h.Path
	if path == "" || !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, path[2:]), nil
}
