package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/activity-detector/pkg/idle"
)

var envVars = []string{
	EnvConfig, EnvTimeToIdle, EnvInitialState, EnvListen,
	EnvLogLevel, EnvQuiet, EnvNtfyTopic, EnvNtfyServer,
}

// isolate clears every variable Load reads and points config discovery
// at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TimeToIdle != 30*time.Second {
		t.Errorf("expected TimeToIdle to be 30s but got %v", cfg.TimeToIdle)
	}
	if cfg.InitialState != "active" {
		t.Errorf("expected InitialState to be active but got %s", cfg.InitialState)
	}
	if cfg.Notify.Server != "https://ntfy.sh" {
		t.Errorf("expected Notify.Server to be https://ntfy.sh but got %s", cfg.Notify.Server)
	}
	if !cfg.Watch.Tmux || !cfg.Watch.Platform {
		t.Error("expected tmux and platform sources to be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		checkFunc func(*testing.T, *Config)
		wantErr   bool
	}{
		{
			name: "valid environment variables",
			envVars: map[string]string{
				EnvTimeToIdle:   "5m",
				EnvInitialState: "idle",
				EnvListen:       "127.0.0.1:7070",
				EnvLogLevel:     "debug",
				EnvQuiet:        "true",
				EnvNtfyTopic:    "test-topic",
				EnvNtfyServer:   "https://test.server",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.TimeToIdle != 5*time.Minute {
					t.Errorf("expected TimeToIdle to be 5m but got %v", cfg.TimeToIdle)
				}
				if cfg.InitialState != "idle" {
					t.Errorf("expected InitialState to be idle but got %s", cfg.InitialState)
				}
				if cfg.Bridge.Listen != "127.0.0.1:7070" {
					t.Errorf("expected Bridge.Listen to be 127.0.0.1:7070 but got %s", cfg.Bridge.Listen)
				}
				if cfg.Log.Level != "debug" {
					t.Errorf("expected Log.Level to be debug but got %s", cfg.Log.Level)
				}
				if !cfg.Quiet {
					t.Error("expected Quiet to be true")
				}
				if cfg.Notify.Topic != "test-topic" {
					t.Errorf("expected Notify.Topic to be test-topic but got %s", cfg.Notify.Topic)
				}
				if cfg.Notify.Server != "https://test.server" {
					t.Errorf("expected Notify.Server to be https://test.server but got %s", cfg.Notify.Server)
				}
			},
		},
		{
			name:    "invalid timeout",
			envVars: map[string]string{EnvTimeToIdle: "invalid"},
			wantErr: true,
		},
		{
			name:    "zero timeout",
			envVars: map[string]string{EnvTimeToIdle: "0s"},
			wantErr: true,
		},
		{
			name:    "invalid quiet value",
			envVars: map[string]string{EnvQuiet: "maybe"},
			wantErr: true,
		},
		{
			name:    "invalid initial state",
			envVars: map[string]string{EnvInitialState: "asleep"},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			envVars: map[string]string{EnvLogLevel: "chatty"},
			wantErr: true,
		},
		{
			name:    "boolean variations",
			envVars: map[string]string{EnvQuiet: "yes"},
			checkFunc: func(t *testing.T, cfg *Config) {
				if !cfg.Quiet {
					t.Error("expected Quiet to be true for 'yes'")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load("")

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		checkFunc func(*testing.T, *Config)
		wantErr   bool
	}{
		{
			name: "yaml config file",
			file: "config.yaml",
			content: `
time_to_idle: 90s
initial_state: idle
activity_events: [keydown, filechange]
quiet: true
notify:
  topic: file-topic
  rate_limit:
    window: 2m
    max_messages: 3
bridge:
  listen: ":8080"
watch:
  paths: [/src, /docs]
  tmux: false
log:
  level: warn
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.TimeToIdle != 90*time.Second {
					t.Errorf("expected TimeToIdle to be 90s but got %v", cfg.TimeToIdle)
				}
				if cfg.InitialState != "idle" {
					t.Errorf("expected InitialState to be idle but got %s", cfg.InitialState)
				}
				if !reflect.DeepEqual(cfg.ActivityEvents, []string{"keydown", "filechange"}) {
					t.Errorf("unexpected ActivityEvents %v", cfg.ActivityEvents)
				}
				if cfg.Notify.Topic != "file-topic" {
					t.Errorf("expected Notify.Topic to be file-topic but got %s", cfg.Notify.Topic)
				}
				if cfg.Notify.Server != "https://ntfy.sh" {
					t.Errorf("expected Notify.Server default to survive, got %s", cfg.Notify.Server)
				}
				if cfg.Notify.RateLimit.Window != 2*time.Minute || cfg.Notify.RateLimit.MaxMessages != 3 {
					t.Errorf("unexpected RateLimit %+v", cfg.Notify.RateLimit)
				}
				if cfg.Bridge.Listen != ":8080" {
					t.Errorf("expected Bridge.Listen to be :8080 but got %s", cfg.Bridge.Listen)
				}
				if !reflect.DeepEqual(cfg.Watch.Paths, []string{"/src", "/docs"}) {
					t.Errorf("unexpected Watch.Paths %v", cfg.Watch.Paths)
				}
				if cfg.Watch.Tmux {
					t.Error("expected Watch.Tmux to be false")
				}
				if !cfg.Watch.Platform {
					t.Error("expected Watch.Platform default to survive")
				}
				if cfg.Log.Level != "warn" || cfg.Log.Format != "json" {
					t.Errorf("unexpected Log %+v", cfg.Log)
				}
			},
		},
		{
			name: "toml config file",
			file: "config.toml",
			content: `
time_to_idle = "45s"
initial_state = "active"
inactivity_events = ["blur", "lock"]

[notify]
topic = "toml-topic"

[bridge]
listen = "localhost:9000"

[watch]
paths = ["/tmp/project"]
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.TimeToIdle != 45*time.Second {
					t.Errorf("expected TimeToIdle to be 45s but got %v", cfg.TimeToIdle)
				}
				if !reflect.DeepEqual(cfg.InactivityEvents, []string{"blur", "lock"}) {
					t.Errorf("unexpected InactivityEvents %v", cfg.InactivityEvents)
				}
				if cfg.Notify.Topic != "toml-topic" {
					t.Errorf("expected Notify.Topic to be toml-topic but got %s", cfg.Notify.Topic)
				}
				if cfg.Bridge.Listen != "localhost:9000" {
					t.Errorf("expected Bridge.Listen to be localhost:9000 but got %s", cfg.Bridge.Listen)
				}
				if !reflect.DeepEqual(cfg.Watch.Paths, []string{"/tmp/project"}) {
					t.Errorf("unexpected Watch.Paths %v", cfg.Watch.Paths)
				}
			},
		},
		{
			name:    "invalid yaml",
			file:    "config.yaml",
			content: "invalid: yaml: content:\n  bad indentation",
			wantErr: true,
		},
		{
			name:    "invalid toml",
			file:    "config.toml",
			content: "time_to_idle = ",
			wantErr: true,
		},
		{
			name:    "unsupported extension",
			file:    "config.json",
			content: "{}",
			wantErr: true,
		},
		{
			name:    "invalid value in file",
			file:    "config.yaml",
			content: "initial_state: dozing\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			configPath := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(configPath, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}

			cfg, err := Load(configPath)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("time_to_idle: 1m\nnotify:\n  topic: file\n"), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(EnvConfig, configPath)
	t.Setenv(EnvNtfyTopic, "env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeToIdle != time.Minute {
		t.Errorf("expected TimeToIdle from file, got %v", cfg.TimeToIdle)
	}
	if cfg.Notify.Topic != "env" {
		t.Errorf("expected Notify.Topic from env, got %s", cfg.Notify.Topic)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Run("explicit path must exist", func(t *testing.T) {
		isolate(t)
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil {
			t.Error("expected error for a missing explicit config")
		}
	})

	t.Run("discovered path may be missing", func(t *testing.T) {
		isolate(t)
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TimeToIdle != idle.DefaultTimeToIdle {
			t.Errorf("expected default TimeToIdle, got %v", cfg.TimeToIdle)
		}
	})

	t.Run("discovered xdg file is used", func(t *testing.T) {
		isolate(t)
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		dir := filepath.Join(xdg, "activity-detector")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("time_to_idle: 3s\n"), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TimeToIdle != 3*time.Second {
			t.Errorf("expected TimeToIdle from xdg config, got %v", cfg.TimeToIdle)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:     "negative time to idle",
			mutate:   func(c *Config) { c.TimeToIdle = -time.Second },
			errorMsg: "time_to_idle must be positive",
		},
		{
			name:     "unknown initial state",
			mutate:   func(c *Config) { c.InitialState = "gone" },
			errorMsg: "initial_state",
		},
		{
			name:     "bad log format",
			mutate:   func(c *Config) { c.Log.Format = "xml" },
			errorMsg: "log.format",
		},
		{
			name:     "negative max messages",
			mutate:   func(c *Config) { c.Notify.RateLimit.MaxMessages = -1 },
			errorMsg: "max_messages must be non-negative",
		},
		{
			name:     "negative window",
			mutate:   func(c *Config) { c.Notify.RateLimit.Window = -time.Second },
			errorMsg: "window must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestDetectorConfig(t *testing.T) {
	t.Run("defaults include source signals", func(t *testing.T) {
		cfg := DefaultConfig()
		dc, err := cfg.DetectorConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if dc.InitialState != idle.StateActive {
			t.Errorf("expected InitialState active, got %v", dc.InitialState)
		}
		if dc.TimeToIdle != idle.DefaultTimeToIdle {
			t.Errorf("expected TimeToIdle %v, got %v", idle.DefaultTimeToIdle, dc.TimeToIdle)
		}
		if dc.InactivityEvents != nil {
			t.Errorf("expected nil InactivityEvents for defaults, got %v", dc.InactivityEvents)
		}
		want := append(idle.DefaultActivityEvents(), "filechange", "tmuxactivity", "hidactivity")
		if !reflect.DeepEqual(dc.ActivityEvents, want) {
			t.Errorf("ActivityEvents = %v, want %v", dc.ActivityEvents, want)
		}
	})

	t.Run("explicit lists", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InitialState = "IDLE"
		cfg.ActivityEvents = []string{"keydown"}
		cfg.InactivityEvents = []string{}

		dc, err := cfg.DetectorConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dc.InitialState != idle.StateIdle {
			t.Errorf("expected InitialState idle, got %v", dc.InitialState)
		}
		if !reflect.DeepEqual(dc.ActivityEvents, []string{"keydown"}) {
			t.Errorf("unexpected ActivityEvents %v", dc.ActivityEvents)
		}
		if dc.InactivityEvents == nil || len(dc.InactivityEvents) != 0 {
			t.Errorf("expected empty InactivityEvents, got %v", dc.InactivityEvents)
		}
	})

	t.Run("invalid state", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InitialState = "nope"
		if _, err := cfg.DetectorConfig(); err == nil {
			t.Error("expected error for invalid state")
		}
	})
}
