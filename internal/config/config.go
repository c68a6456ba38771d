// Package config loads studysync settings from a YAML file and the
// environment.
//
// Precedence is environment over file over built-in defaults. Environment
// variables use the STUDYSYNC_ prefix with underscores for nesting, e.g.
// STUDYSYNC_REMOTE_API_KEY overrides remote.api_key.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Remote store kinds.
const (
	RemoteHTTP  = "http"
	RemoteTurso = "turso"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Owner is the default owner identity for syncs.
	Owner string `mapstructure:"owner" yaml:"owner"`

	// DBPath is the local database file. Defaults under the user config
	// directory.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
	Sync   SyncConfig   `mapstructure:"sync" yaml:"sync"`
	Daemon DaemonConfig `mapstructure:"daemon" yaml:"daemon"`
}

// RemoteConfig selects and configures the cloud store.
type RemoteConfig struct {
	// Kind is "http" or "turso".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// BaseURL is the API origin for the http kind.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIKey authenticates http requests and the event stream.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// DatabaseURL is the libsql URL for the turso kind.
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	// AuthToken authenticates turso connections.
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// Interval between scheduled syncs while online.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// FetchLimit bounds remote fetches for the unbounded collections.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// ProbeInterval between connectivity checks.
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`

	// ProbeURL overrides the reachability target. Empty derives it from
	// the remote base URL.
	ProbeURL string `mapstructure:"probe_url" yaml:"probe_url"`
}

// DaemonConfig tunes the background daemon.
type DaemonConfig struct {
	// LogFile receives daemon logs with rotation. Empty logs to stderr.
	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	// DiagPort is the loopback diagnostics port. Zero disables the
	// diagnostics server.
	DiagPort int `mapstructure:"diag_port" yaml:"diag_port"`
}

// DefaultDir returns the studysync config directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, "studysync"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaults() Config {
	return Config{
		Remote: RemoteConfig{Kind: RemoteHTTP},
		Sync: SyncConfig{
			Interval:      60 * time.Second,
			FetchLimit:    500,
			ProbeInterval: 15 * time.Second,
		},
		Daemon: DaemonConfig{DiagPort: 7630},
	}
}

// Load reads configuration from path, falling back to the default location
// when path is empty. A missing file is not an error; defaults and the
// environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := defaults()
	v.SetDefault("owner", def.Owner)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("remote.kind", def.Remote.Kind)
	v.SetDefault("remote.base_url", def.Remote.BaseURL)
	v.SetDefault("remote.api_key", def.Remote.APIKey)
	v.SetDefault("remote.database_url", def.Remote.DatabaseURL)
	v.SetDefault("remote.auth_token", def.Remote.AuthToken)
	v.SetDefault("sync.interval", def.Sync.Interval)
	v.SetDefault("sync.fetch_limit", def.Sync.FetchLimit)
	v.SetDefault("sync.probe_interval", def.Sync.ProbeInterval)
	v.SetDefault("sync.probe_url", def.Sync.ProbeURL)
	v.SetDefault("daemon.log_file", def.Daemon.LogFile)
	v.SetDefault("daemon.diag_port", def.Daemon.DiagPort)

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STUDYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DBPath == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = filepath.Join(dir, "studysync.db")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Remote.Kind {
	case RemoteHTTP, RemoteTurso:
	default:
		return fmt.Errorf("unknown remote kind %q (want %q or %q)",
			c.Remote.Kind, RemoteHTTP, RemoteTurso)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync interval must not be negative")
	}
	if c.Sync.FetchLimit < 0 {
		return fmt.Errorf("sync fetch limit must not be negative")
	}
	return nil
}

// ProbeTarget returns the reachability URL for the connectivity monitor.
func (c *Config) ProbeTarget() string {
	if c.Sync.ProbeURL != "" {
		return c.Sync.ProbeURL
	}
	if c.Remote.Kind == RemoteHTTP && c.Remote.BaseURL != "" {
		return strings.TrimRight(c.Remote.BaseURL, "/") + "/api/v1/health"
	}
	return ""
}

type starterSync struct {
	Interval      string `yaml:"interval"`
	FetchLimit    int    `yaml:"fetch_limit"`
	ProbeInterval string `yaml:"probe_interval"`
	ProbeURL      string `yaml:"probe_url"`
}

type starterFile struct {
	Owner  string       `yaml:"owner"`
	DBPath string       `yaml:"db_path"`
	Remote RemoteConfig `yaml:"remote"`
	Sync   starterSync  `yaml:"sync"`
	Daemon DaemonConfig `yaml:"daemon"`
}

// WriteDefault writes a starter config file at path, creating parent
// directories. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	cfg := defaults()
	dir, err := DefaultDir()
	if err != nil {
		return err
	}
	cfg.DBPath = filepath.Join(dir, "studysync.db")

	// Durations are written as strings ("60s") so the file stays readable.
	starter := starterFile{
		Owner:  cfg.Owner,
		DBPath: cfg.DBPath,
		Remote: cfg.Remote,
		Sync: starterSync{
			Interval:      cfg.Sync.Interval.String(),
			FetchLimit:    cfg.Sync.FetchLimit,
			ProbeInterval: cfg.Sync.ProbeInterval.String(),
			ProbeURL:      cfg.Sync.ProbeURL,
		},
		Daemon: cfg.Daemon,
	}
	data, err := yaml.Marshal(&starter)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	header := []byte("# studysync configuration\n# Environment variables with the STUDYSYNC_ prefix override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
