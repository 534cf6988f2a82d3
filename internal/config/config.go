// Package config defines session configuration structures and loading hooks.
//
// Conventions:
//   - Provide New() to build a Config with defaults.
//   - Nested sections map to nested YAML keys and to double-underscore env
//     names, e.g. STAGEDROPS_REPORT__ENABLED.
//   - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"time"
)

// ReportConfig configures submission to the drop statistics service.
type ReportConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Server    string `koanf:"server"`
	PenguinID string `koanf:"penguin_id"`
	URL       string `koanf:"url"`
	Retries   int    `koanf:"retries"`
	Source    string `koanf:"source"`
	TimeoutMS int    `koanf:"timeout_ms"`
}

// AnalyzerConfig points at the drop analysis service.
type AnalyzerConfig struct {
	URL       string `koanf:"url"`
	TimeoutMS int    `koanf:"timeout_ms"`
	Width     int    `koanf:"width"`
	Height    int    `koanf:"height"`
}

// CaptureConfig points at the frame capture endpoint used when no host
// provides frames directly.
type CaptureConfig struct {
	URL       string `koanf:"url"`
	TimeoutMS int    `koanf:"timeout_ms"`
}

// CatalogConfig locates the item and stage tables.
type CatalogConfig struct {
	ItemsPath  string `koanf:"items_path"`
	StagesPath string `koanf:"stages_path"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile tees logs to a file when set.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory round event queue.
	EventQueueSize int `koanf:"queue_size"`

	// HistorySize bounds the notification history.
	HistorySize int `koanf:"history_size"`

	// StopTargets maps item ids to the quantity that ends the session.
	StopTargets map[string]int `koanf:"stop_targets"`

	// PreDelays and PostDelays are the host task timings in milliseconds.
	PreDelays  map[string]int `koanf:"pre_delays"`
	PostDelays map[string]int `koanf:"post_delays"`

	Report   ReportConfig   `koanf:"report"`
	Analyzer AnalyzerConfig `koanf:"analyzer"`
	Capture  CaptureConfig  `koanf:"capture"`
	Catalog  CatalogConfig  `koanf:"catalog"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":9080",
		EventQueueSize: 64,
		HistorySize:    256,
		StopTargets:    map[string]int{},
		PreDelays:      map[string]int{"EndOfAction": 500},
		PostDelays:     map[string]int{"PRTS": 300},
		Report: ReportConfig{
			Server:    "CN",
			Retries:   5,
			Source:    "stagedrops",
			TimeoutMS: 10_000,
		},
		Analyzer: AnalyzerConfig{
			TimeoutMS: 5_000,
			Width:     1280,
			Height:    720,
		},
		Capture: CaptureConfig{
			TimeoutMS: 3_000,
		},
	}
}

// Validate checks the values a session cannot run without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.EventQueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.Report.Retries < 0 {
		return fmt.Errorf("%w: report.retries must not be negative", ErrInvalidConfig)
	}
	if c.Report.Enabled && c.Report.Server == "" {
		return fmt.Errorf("%w: report.server is required when reporting", ErrInvalidConfig)
	}
	for item, target := range c.StopTargets {
		if target < 1 {
			return fmt.Errorf("%w: stop target for %q must be positive", ErrInvalidConfig, item)
		}
	}
	for name, d := range c.PreDelays {
		if d < 0 {
			return fmt.Errorf("%w: pre delay of %q must not be negative", ErrInvalidConfig, name)
		}
	}
	for name, d := range c.PostDelays {
		if d < 0 {
			return fmt.Errorf("%w: post delay of %q must not be negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
