package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/clawinfra/reviewsync/internal/scheduler"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all reviewsync configuration
type Config struct {
	// Review endpoint
	API APIConfig `json:"api" toml:"api" yaml:"api"`

	// Where the offline queue is persisted
	Storage StorageConfig `json:"storage" toml:"storage" yaml:"storage"`

	// Login session file
	Session SessionConfig `json:"session" toml:"session" yaml:"session"`

	// Sync engine tuning
	Sync SyncConfig `json:"sync" toml:"sync" yaml:"sync"`

	// Reachability sources
	Connectivity ConnectivityConfig `json:"connectivity" toml:"connectivity" yaml:"connectivity"`

	LogLevel string `json:"logLevel" toml:"logLevel" yaml:"logLevel"`
}

type APIConfig struct {
	BaseURL        string `json:"baseUrl" toml:"baseUrl" yaml:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds" toml:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type StorageConfig struct {
	Backend    string `json:"backend" toml:"backend" yaml:"backend"` // "file", "sqlite", "memory"
	DataDir    string `json:"dataDir" toml:"dataDir" yaml:"dataDir"`
	SQLitePath string `json:"sqlitePath,omitempty" toml:"sqlitePath,omitempty" yaml:"sqlitePath,omitempty"`
}

type SessionConfig struct {
	Path                 string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`
	WatchIntervalSeconds int    `json:"watchIntervalSeconds" toml:"watchIntervalSeconds" yaml:"watchIntervalSeconds"`
}

type SyncConfig struct {
	MaxAttempts int    `json:"maxAttempts" toml:"maxAttempts" yaml:"maxAttempts"`
	Schedule    string `json:"schedule" toml:"schedule" yaml:"schedule"` // cron expression, "" disables
}

type ConnectivityConfig struct {
	// Initial state when no source has reported yet
	AssumeOnline bool            `json:"assumeOnline" toml:"assumeOnline" yaml:"assumeOnline"`
	MQTT         MQTTConfig      `json:"mqtt" toml:"mqtt" yaml:"mqtt"`
	WebSocket    WebSocketConfig `json:"websocket" toml:"websocket" yaml:"websocket"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Host     string `json:"host" toml:"host" yaml:"host"`
	Port     int    `json:"port" toml:"port" yaml:"port"`
	Username string `json:"username,omitempty" toml:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty" yaml:"password,omitempty"`

	// RetrySeconds is the delay before redialing after a failed connect.
	RetrySeconds int `json:"retrySeconds" toml:"retrySeconds" yaml:"retrySeconds"`
}

type WebSocketConfig struct {
	Enabled      bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	URL          string `json:"url,omitempty" toml:"url,omitempty" yaml:"url,omitempty"`
	RetrySeconds int    `json:"retrySeconds" toml:"retrySeconds" yaml:"retrySeconds"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api",
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			DataDir: "./data",
		},
		Session: SessionConfig{
			WatchIntervalSeconds: 2,
		},
		Sync: SyncConfig{
			MaxAttempts: 20,
			Schedule:    "@every 5m",
		},
		Connectivity: ConnectivityConfig{
			AssumeOnline: true,
			MQTT:         MQTTConfig{Port: 1883, RetrySeconds: 10},
			WebSocket:    WebSocketConfig{RetrySeconds: 5},
		},
		LogLevel: "info",
	}
}

// Load reads config from path. The format follows the extension: .toml,
// .yaml/.yml, anything else is JSON. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Backend != BackendMemory {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return cfg, nil
}

func decode(path string, data []byte) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes config to a JSON file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0640)
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.baseUrl is required")
	}
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("config: storage.dataDir is required for %s backend", c.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("config: sync.maxAttempts must not be negative")
	}
	if c.Sync.Schedule != "" {
		if err := scheduler.Validate(c.Sync.Schedule); err != nil {
			return fmt.Errorf("config: sync.schedule: %w", err)
		}
	}
	if c.Connectivity.MQTT.Enabled && c.Connectivity.MQTT.Host == "" {
		return fmt.Errorf("config: connectivity.mqtt.host is required when enabled")
	}
	if c.Connectivity.WebSocket.Enabled && c.Connectivity.WebSocket.URL == "" {
		return fmt.Errorf("config: connectivity.websocket.url is required when enabled")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Timeout is the HTTP timeout for review submissions.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// SessionPath is the session file location, defaulting to the data dir.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(c.Storage.DataDir, "session.json")
}

// SQLitePath is the database file for the sqlite backend.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.DataDir, "reviewsync.db")
}

// WatchInterval is how often the session file is polled.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Session.WatchIntervalSeconds) * time.Second
}

// ParseLevel maps a logLevel string to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}
