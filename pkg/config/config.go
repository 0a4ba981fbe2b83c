// Package config loads the plugin process configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config carries the tunables of one plugin process. Values absent from the
// file keep their defaults.
type Config struct {
	// LogLevel is a zerolog level name.
	LogLevel string
	// CallTimeout bounds each outbound call.
	CallTimeout time.Duration
	// HandlerTimeout bounds each inbound request handler.
	HandlerTimeout time.Duration
	// TickInterval drives the integration's periodic callback.
	TickInterval time.Duration
	// ShutdownGrace bounds the drain of in-flight handlers on shutdown.
	ShutdownGrace time.Duration
	// NotifyPerSecond limits import-result notification emission.
	NotifyPerSecond float64
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:        "info",
		CallTimeout:     30 * time.Second,
		HandlerTimeout:  60 * time.Second,
		TickInterval:    time.Second,
		ShutdownGrace:   5 * time.Second,
		NotifyPerSecond: 200,
	}
}

type fileConfig struct {
	LogLevel        string  `toml:"log_level"`
	CallTimeout     string  `toml:"call_timeout"`
	HandlerTimeout  string  `toml:"handler_timeout"`
	TickInterval    string  `toml:"tick_interval"`
	ShutdownGrace   string  `toml:"shutdown_grace"`
	NotifyPerSecond float64 `toml:"notify_per_second"`
}

// Load reads a TOML file and overrides defaults with the keys it defines.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load plugin config: %w", err)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("call_timeout") {
		if cfg.CallTimeout, err = parseDuration("call_timeout", raw.CallTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("handler_timeout") {
		if cfg.HandlerTimeout, err = parseDuration("handler_timeout", raw.HandlerTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("tick_interval") {
		if cfg.TickInterval, err = parseDuration("tick_interval", raw.TickInterval); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("shutdown_grace") {
		if cfg.ShutdownGrace, err = parseDuration("shutdown_grace", raw.ShutdownGrace); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("notify_per_second") {
		if raw.NotifyPerSecond <= 0 {
			return Config{}, fmt.Errorf("notify_per_second must be positive, got %v", raw.NotifyPerSecond)
		}
		cfg.NotifyPerSecond = raw.NotifyPerSecond
	}

	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
