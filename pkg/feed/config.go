// Package feed provides an outbound WebSocket client that streams landmark
// frames to the daemon's ingest endpoint, plus a synthetic landmark source
// for development without a real detector in front of the camera.
package feed

import (
	"fmt"
	"time"
)

// Config holds feeder client configuration.
type Config struct {
	// URL is the daemon's landmark ingest endpoint.
	// Example: "ws://localhost:8093/ws/landmarks/sim"
	URL string `yaml:"url" json:"url"`

	// Source is the detector identifier stamped on every frame.
	Source string `yaml:"source" json:"source"`

	// Interval is the delay between published frames.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// ReconnectInterval is how often to attempt reconnection on failure.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`

	// MaxReconnectAttempts is the maximum number of consecutive failed
	// connection attempts before giving up. 0 means unlimited.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8093/ws/landmarks/sim",
		Source:               "sim",
		Interval:             250 * time.Millisecond,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 0, // Unlimited
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive, got %v", c.ReconnectInterval)
	}
	return nil
}
