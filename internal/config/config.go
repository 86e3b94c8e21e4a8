package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nixlim/buzz/internal/catalog"
)

type Config struct {
	Alerts        AlertsConfig
	Log           LogConfig
	Notifications NotificationConfig
	Agent         AgentConfig
	Permission    PermissionConfig
	Logging       LoggingConfig
}

type AlertsConfig struct {
	IntervalMS          int    `toml:"interval_ms"`
	StartDelayMS        int    `toml:"start_delay_ms"`
	VibrationEnabled    bool   `toml:"vibration_enabled"`
	PreferAgentDelivery bool   `toml:"prefer_agent_delivery"`
	Pattern             string `toml:"pattern"`
}

type LogConfig struct {
	Capacity int `toml:"capacity"`
}

type NotificationConfig struct {
	Backend            string `toml:"backend"`
	AppName            string `toml:"app_name"`
	Tag                string `toml:"tag"`
	Silent             bool   `toml:"silent"`
	RequireInteraction bool   `toml:"require_interaction"`
	Renotify           bool   `toml:"renotify"`
}

type AgentConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	Origin      string `toml:"origin"`
	Bind        string `toml:"bind"`
	GRPCPort    int    `toml:"grpc_port"`
	HTTPPort    int    `toml:"http_port"`
	OpenCommand string `toml:"open_command"`
}

type PermissionConfig struct {
	StatePath string `toml:"state_path"`
}

type LoggingConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// Notification backends accepted by notifications.backend.
const (
	BackendAuto       = "auto"
	BackendDBus       = "dbus"
	BackendNotifySend = "notify-send"
	BackendOSAScript  = "osascript"
	BackendNone       = "none"
)

// MaxLogCapacity bounds log.capacity; the on-screen log never holds more.
const MaxLogCapacity = 50

type LoadResult struct {
	Config   Config
	Warnings []string
}

func DefaultConfig() Config {
	return Config{
		Alerts: AlertsConfig{
			IntervalMS:          2000,
			StartDelayMS:        500,
			VibrationEnabled:    true,
			PreferAgentDelivery: true,
			Pattern:             catalog.DefaultPatternKey,
		},
		Log: LogConfig{
			Capacity: MaxLogCapacity,
		},
		Notifications: NotificationConfig{
			Backend:  BackendAuto,
			AppName:  "buzz",
			Tag:      "buzz-demo",
			Renotify: true,
		},
		Agent: AgentConfig{
			Enabled:  true,
			Origin:   "buzz://local",
			Bind:     "127.0.0.1",
			GRPCPort: 4327,
			HTTPPort: 4328,
		},
		Permission: PermissionConfig{
			StatePath: "~/.config/buzz/permission.toml",
		},
		Logging: LoggingConfig{
			Path:  "~/.config/buzz/buzz.log",
			Level: "info",
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "buzz", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	result, err := parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	if data == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}
	result, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return result, nil
}

var knownTopLevel = map[string]bool{
	"alerts":        true,
	"log":           true,
	"notifications": true,
	"agent":         true,
	"permission":    true,
	"logging":       true,
}

func parse(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, err
	}

	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, err
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

type tomlFile struct {
	Alerts        *AlertsConfig       `toml:"alerts"`
	Log           *LogConfig          `toml:"log"`
	Notifications *NotificationConfig `toml:"notifications"`
	Agent         *AgentConfig        `toml:"agent"`
	Permission    *PermissionConfig   `toml:"permission"`
	Logging       *LoggingConfig      `toml:"logging"`
}

// mergeFromRaw copies only the keys present in the file so that an omitted
// boolean does not silently reset a true default to false.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Alerts != nil {
		if section, ok := rawSection(raw, "alerts"); ok {
			if _, exists := section["interval_ms"]; exists {
				cfg.Alerts.IntervalMS = tf.Alerts.IntervalMS
			}
			if _, exists := section["start_delay_ms"]; exists {
				cfg.Alerts.StartDelayMS = tf.Alerts.StartDelayMS
			}
			if _, exists := section["vibration_enabled"]; exists {
				cfg.Alerts.VibrationEnabled = tf.Alerts.VibrationEnabled
			}
			if _, exists := section["prefer_agent_delivery"]; exists {
				cfg.Alerts.PreferAgentDelivery = tf.Alerts.PreferAgentDelivery
			}
			if _, exists := section["pattern"]; exists {
				cfg.Alerts.Pattern = tf.Alerts.Pattern
			}
		}
	}
	if tf.Log != nil {
		if section, ok := rawSection(raw, "log"); ok {
			if _, exists := section["capacity"]; exists {
				cfg.Log.Capacity = tf.Log.Capacity
			}
		}
	}
	if tf.Notifications != nil {
		if section, ok := rawSection(raw, "notifications"); ok {
			if _, exists := section["backend"]; exists {
				cfg.Notifications.Backend = tf.Notifications.Backend
			}
			if _, exists := section["app_name"]; exists {
				cfg.Notifications.AppName = tf.Notifications.AppName
			}
			if _, exists := section["tag"]; exists {
				cfg.Notifications.Tag = tf.Notifications.Tag
			}
			if _, exists := section["silent"]; exists {
				cfg.Notifications.Silent = tf.Notifications.Silent
			}
			if _, exists := section["require_interaction"]; exists {
				cfg.Notifications.RequireInteraction = tf.Notifications.RequireInteraction
			}
			if _, exists := section["renotify"]; exists {
				cfg.Notifications.Renotify = tf.Notifications.Renotify
			}
		}
	}
	if tf.Agent != nil {
		if section, ok := rawSection(raw, "agent"); ok {
			if _, exists := section["enabled"]; exists {
				cfg.Agent.Enabled = tf.Agent.Enabled
			}
			if _, exists := section["endpoint"]; exists {
				cfg.Agent.Endpoint = tf.Agent.Endpoint
			}
			if _, exists := section["origin"]; exists {
				cfg.Agent.Origin = tf.Agent.Origin
			}
			if _, exists := section["bind"]; exists {
				cfg.Agent.Bind = tf.Agent.Bind
			}
			if _, exists := section["grpc_port"]; exists {
				cfg.Agent.GRPCPort = tf.Agent.GRPCPort
			}
			if _, exists := section["http_port"]; exists {
				cfg.Agent.HTTPPort = tf.Agent.HTTPPort
			}
			if _, exists := section["open_command"]; exists {
				cfg.Agent.OpenCommand = tf.Agent.OpenCommand
			}
		}
	}
	if tf.Permission != nil {
		if section, ok := rawSection(raw, "permission"); ok {
			if _, exists := section["state_path"]; exists {
				cfg.Permission.StatePath = tf.Permission.StatePath
			}
		}
	}
	if tf.Logging != nil {
		if section, ok := rawSection(raw, "logging"); ok {
			if _, exists := section["path"]; exists {
				cfg.Logging.Path = tf.Logging.Path
			}
			if _, exists := section["level"]; exists {
				cfg.Logging.Level = tf.Logging.Level
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

var validBackends = map[string]bool{
	BackendAuto:       true,
	BackendDBus:       true,
	BackendNotifySend: true,
	BackendOSAScript:  true,
	BackendNone:       true,
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Alerts.IntervalMS < 1 {
		errs = append(errs, fmt.Sprintf("alerts interval_ms must be positive, got %d", cfg.Alerts.IntervalMS))
	}
	if cfg.Alerts.StartDelayMS < 0 {
		errs = append(errs, fmt.Sprintf("alerts start_delay_ms must not be negative, got %d", cfg.Alerts.StartDelayMS))
	}
	if _, ok := catalog.LookupPattern(cfg.Alerts.Pattern); !ok {
		errs = append(errs, fmt.Sprintf("alerts pattern %q is unknown (have %s)", cfg.Alerts.Pattern, strings.Join(catalog.PatternKeys(), ", ")))
	}

	if cfg.Log.Capacity < 1 || cfg.Log.Capacity > MaxLogCapacity {
		errs = append(errs, fmt.Sprintf("log capacity must be 1-%d, got %d", MaxLogCapacity, cfg.Log.Capacity))
	}

	if !validBackends[cfg.Notifications.Backend] {
		errs = append(errs, fmt.Sprintf("notifications backend %q is not one of auto, dbus, notify-send, osascript, none", cfg.Notifications.Backend))
	}
	if strings.TrimSpace(cfg.Notifications.AppName) == "" {
		errs = append(errs, "notifications app_name must not be empty")
	}

	if cfg.Agent.GRPCPort < 1 || cfg.Agent.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("agent grpc_port must be 1-65535, got %d", cfg.Agent.GRPCPort))
	}
	if cfg.Agent.HTTPPort < 1 || cfg.Agent.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("agent http_port must be 1-65535, got %d", cfg.Agent.HTTPPort))
	}
	if cfg.Agent.Enabled && strings.TrimSpace(cfg.Agent.Origin) == "" {
		errs = append(errs, "agent origin must not be empty when the agent is enabled")
	}

	if strings.TrimSpace(cfg.Permission.StatePath) == "" {
		errs = append(errs, "permission state_path must not be empty")
	}

	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ExpandPath resolves a leading "~/" against the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
