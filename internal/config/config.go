// Package config loads settings for the parley command-line tool.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/parley"
	"github.com/rs/zerolog"
)

// Config holds the resolved settings for a parley program.
type Config struct {
	Listen          string        // listen address; "" means all interfaces, any port
	Wire            parley.Wire   // payload encoding
	GracePeriod     time.Duration // delay after a close notice
	DialTimeout     time.Duration // bound on outbound dials, 0 for none
	MaxMessageBytes int           // bound on frame payloads
	LogLevel        string
}

// Default returns the default settings.
func Default() Config {
	return Config{
		Wire:            parley.WireTagged,
		GracePeriod:     parley.DefaultGracePeriod,
		DialTimeout:     10 * time.Second,
		MaxMessageBytes: parley.DefaultMaxMessageLen,
		LogLevel:        "info",
	}
}

type fileConfig struct {
	Listen          string `toml:"listen"`
	Wire            string `toml:"wire"`
	GracePeriod     string `toml:"grace_period"`
	DialTimeout     string `toml:"dial_timeout"`
	MaxMessageBytes int    `toml:"max_message_bytes"`
	LogLevel        string `toml:"log_level"`
}

// Load reads a TOML config file from path and applies the settings it
// defines over the defaults. Keys the file does not mention keep their
// default values.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if un := meta.Undecoded(); len(un) != 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", un[0].String())
	}
	return apply(Default(), meta, raw)
}

// Parse is as Load, but reads the TOML text from s.
func Parse(s string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(s, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if un := meta.Undecoded(); len(un) != 0 {
		return Config{}, fmt.Errorf("parse config: unknown key %q", un[0].String())
	}
	return apply(Default(), meta, raw)
}

func apply(cfg Config, meta toml.MetaData, raw fileConfig) (Config, error) {
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("wire") {
		w, err := parley.ParseWire(strings.TrimSpace(raw.Wire))
		if err != nil {
			return Config{}, fmt.Errorf("parse wire: %w", err)
		}
		cfg.Wire = w
	}
	if meta.IsDefined("grace_period") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.GracePeriod))
		if err != nil {
			return Config{}, fmt.Errorf("parse grace_period: %w", err)
		}
		cfg.GracePeriod = d
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("max_message_bytes") {
		if raw.MaxMessageBytes <= 0 {
			return Config{}, fmt.Errorf("max_message_bytes must be positive, got %d", raw.MaxMessageBytes)
		}
		cfg.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return cfg, nil
}

// Options returns session options for cfg, logging to log if it is non-nil.
func (c Config) Options(log *zerolog.Logger) *parley.Options {
	grace := c.GracePeriod
	if grace == 0 {
		grace = -1 // close immediately after the notice
	}
	return &parley.Options{
		Wire:          c.Wire,
		GracePeriod:   grace,
		MaxMessageLen: c.MaxMessageBytes,
		DialTimeout:   c.DialTimeout,
		Logger:        log,
	}
}
