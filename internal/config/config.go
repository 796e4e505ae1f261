// Package config loads the bridge configuration from a JSON file. Fields
// omitted from the file keep their defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/busdash/komsi-bridge/internal/units"
)

// Config holds the resolved bridge configuration.
type Config struct {
	// SerialPort is the device path of the dashboard link.
	SerialPort string
	// BaudRate is the dashboard serial speed.
	BaudRate int
	// FeedListen is the UDP address the simulator feed arrives on.
	FeedListen string
	// HTTPListen is the status API address.
	HTTPListen string
	// JournalPath is the SQLite journal file.
	JournalPath string
	// SpeedUnit is the unit the simulator reports speeds in.
	SpeedUnit string
	// ResyncInterval is how often a full state dump is forced even
	// without a detected desync.
	ResyncInterval time.Duration
	// LogLevel is the zerolog level name.
	LogLevel string
}

// Default returns the configuration the bridge runs with when no file is
// supplied.
func Default() Config {
	return Config{
		SerialPort:     "/dev/ttyUSB0",
		BaudRate:       115200,
		FeedListen:     "127.0.0.1:4123",
		HTTPListen:     "127.0.0.1:8090",
		JournalPath:    "komsi_journal.db",
		SpeedUnit:      units.KPH,
		ResyncInterval: 30 * time.Second,
		LogLevel:       "info",
	}
}

// fileConfig mirrors Config with pointer fields so absent JSON keys can be
// told apart from zero values.
type fileConfig struct {
	SerialPort     *string `json:"serial_port,omitempty"`
	BaudRate       *int    `json:"baud_rate,omitempty"`
	FeedListen     *string `json:"feed_listen,omitempty"`
	HTTPListen     *string `json:"http_listen,omitempty"`
	JournalPath    *string `json:"journal_path,omitempty"`
	SpeedUnit      *string `json:"speed_unit,omitempty"`
	ResyncInterval *string `json:"resync_interval,omitempty"` // duration string like "30s"
	LogLevel       *string `json:"log_level,omitempty"`
}

// Load reads a JSON config file and overlays it onto the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.SerialPort != nil {
		cfg.SerialPort = *fc.SerialPort
	}
	if fc.BaudRate != nil {
		cfg.BaudRate = *fc.BaudRate
	}
	if fc.FeedListen != nil {
		cfg.FeedListen = *fc.FeedListen
	}
	if fc.HTTPListen != nil {
		cfg.HTTPListen = *fc.HTTPListen
	}
	if fc.JournalPath != nil {
		cfg.JournalPath = *fc.JournalPath
	}
	if fc.SpeedUnit != nil {
		cfg.SpeedUnit = *fc.SpeedUnit
	}
	if fc.ResyncInterval != nil {
		d, err := time.ParseDuration(*fc.ResyncInterval)
		if err != nil {
			return cfg, fmt.Errorf("invalid resync_interval %q: %w", *fc.ResyncInterval, err)
		}
		cfg.ResyncInterval = d
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the bridge cannot run with.
func (c Config) Validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("serial_port must not be empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if !units.IsValid(c.SpeedUnit) {
		return fmt.Errorf("speed_unit %q is not one of %s", c.SpeedUnit, units.GetValidUnitsString())
	}
	if c.ResyncInterval <= 0 {
		return fmt.Errorf("resync_interval must be positive, got %v", c.ResyncInterval)
	}
	return nil
}
