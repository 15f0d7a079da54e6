// Package config loads activity-detector settings from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/activity-detector/pkg/idle"
	"github.com/Veraticus/activity-detector/pkg/logging"
	"github.com/Veraticus/activity-detector/pkg/source"
)

// Environment variables read by Load.
const (
	EnvConfig       = "ACTIVITY_DETECTOR_CONFIG"
	EnvTimeToIdle   = "ACTIVITY_DETECTOR_TIME_TO_IDLE"
	EnvInitialState = "ACTIVITY_DETECTOR_INITIAL_STATE"
	EnvListen       = "ACTIVITY_DETECTOR_LISTEN"
	EnvLogLevel     = "ACTIVITY_DETECTOR_LOG_LEVEL"
	EnvQuiet        = "ACTIVITY_DETECTOR_QUIET"
	EnvNtfyTopic    = "ACTIVITY_DETECTOR_NTFY_TOPIC"
	EnvNtfyServer   = "ACTIVITY_DETECTOR_NTFY_SERVER"
)

// Config holds all configuration for activity-detector
type Config struct {
	TimeToIdle   time.Duration `yaml:"time_to_idle" toml:"time_to_idle"`
	InitialState string        `yaml:"initial_state" toml:"initial_state"`

	// Signal lists; nil means the built-in defaults.
	ActivityEvents   []string `yaml:"activity_events" toml:"activity_events"`
	InactivityEvents []string `yaml:"inactivity_events" toml:"inactivity_events"`

	// Quiet disables notifications.
	Quiet bool `yaml:"quiet" toml:"quiet"`
	// Status shows the state indicator on the terminal.
	Status bool `yaml:"status" toml:"status"`

	Notify NotifyConfig `yaml:"notify" toml:"notify"`
	Bridge BridgeConfig `yaml:"bridge" toml:"bridge"`
	Watch  WatchConfig  `yaml:"watch" toml:"watch"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// NotifyConfig holds ntfy settings.
type NotifyConfig struct {
	Topic     string          `yaml:"topic" toml:"topic"`
	Server    string          `yaml:"server" toml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window" toml:"window"`
	MaxMessages int           `yaml:"max_messages" toml:"max_messages"`
}

// BridgeConfig holds websocket bridge settings.
type BridgeConfig struct {
	// Listen is the bridge address; empty disables the bridge.
	Listen string `yaml:"listen" toml:"listen"`
}

// WatchConfig selects the activity sources.
type WatchConfig struct {
	Paths    []string `yaml:"paths" toml:"paths"`
	Tmux     bool     `yaml:"tmux" toml:"tmux"`
	Platform bool     `yaml:"platform" toml:"platform"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	// File is the log destination; empty means stderr.
	File string `yaml:"file" toml:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TimeToIdle:   idle.DefaultTimeToIdle,
		InitialState: idle.StateActive.String(),
		Status:       true,
		Notify: NotifyConfig{
			Server: "https://ntfy.sh",
			RateLimit: RateLimitConfig{
				Window:      time.Minute,
				MaxMessages: 5,
			},
		},
		Watch: WatchConfig{
			Tmux:     true,
			Platform: true,
		},
		Log: LogConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatText,
		},
	}
}

// Load builds the configuration from defaults, then the config file, then
// the environment. An explicit path must exist; a discovered one may not.
func Load(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	configPath, explicit := getConfigPath(explicitPath)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path and whether it was given
// explicitly.
func getConfigPath(explicitPath string) (string, bool) {
	if explicitPath != "" {
		return explicitPath, true
	}

	if path := os.Getenv(EnvConfig); path != "" {
		return path, true
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "activity-detector", "config.yaml"), false
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "activity-detector", "config.yaml"), false
	}

	return "", false
}

// loadFromFile loads configuration from a YAML or TOML file, chosen by
// extension.
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from the user
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if timeout := os.Getenv(EnvTimeToIdle); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeToIdle, err)
		}
		cfg.TimeToIdle = d
	}

	if state := os.Getenv(EnvInitialState); state != "" {
		cfg.InitialState = state
	}

	if listen := os.Getenv(EnvListen); listen != "" {
		cfg.Bridge.Listen = listen
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}

	if topic := os.Getenv(EnvNtfyTopic); topic != "" {
		cfg.Notify.Topic = topic
	}

	if server := os.Getenv(EnvNtfyServer); server != "" {
		cfg.Notify.Server = server
	}

	if quiet := os.Getenv(EnvQuiet); quiet != "" {
		v, err := parseBool(quiet)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", EnvQuiet, err)
		}
		cfg.Quiet = v
	}

	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%q (use true/false)", s)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TimeToIdle <= 0 {
		return fmt.Errorf("time_to_idle must be positive")
	}

	if _, err := idle.ParseState(c.InitialState); err != nil {
		return fmt.Errorf("initial_state: %w", err)
	}

	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatJSON, logging.FormatText:
	default:
		return fmt.Errorf("log.format %q is not one of json, text", c.Log.Format)
	}

	if c.Notify.RateLimit.MaxMessages < 0 {
		return fmt.Errorf("notify.rate_limit.max_messages must be non-negative")
	}

	if c.Notify.RateLimit.Window < 0 {
		return fmt.Errorf("notify.rate_limit.window must be non-negative")
	}

	return nil
}

// DefaultActivityEvents returns the detector's default activity signals
// plus the signals produced by the activity sources.
func DefaultActivityEvents() []string {
	return append(idle.DefaultActivityEvents(),
		source.SignalFileChange,
		source.SignalTmuxActivity,
		source.SignalHIDActivity,
	)
}

// DetectorConfig returns the detector configuration described by c.
func (c *Config) DetectorConfig() (idle.Config, error) {
	state, err := idle.ParseState(c.InitialState)
	if err != nil {
		return idle.Config{}, fmt.Errorf("initial_state: %w", err)
	}

	activity := c.ActivityEvents
	if activity == nil {
		activity = DefaultActivityEvents()
	}

	return idle.Config{
		ActivityEvents:   append([]string(nil), activity...),
		InactivityEvents: c.InactivityEvents,
		TimeToIdle:       c.TimeToIdle,
		InitialState:     state,
		AutoInit:         false,
	}, nil
}
