package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models collabhub.yml.
type Config struct {
	Server struct {
		Addr                   string `yaml:"addr"`
		BasePath               string `yaml:"base_path"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"server"`
	Database struct {
		// Path overrides <workspace>/.collabhub/collabhub.db.
		Path        string        `yaml:"path"`
		BusyTimeout time.Duration `yaml:"busy_timeout"`
	} `yaml:"database"`
	Auth struct {
		DevLogin bool          `yaml:"dev_login"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Client   ClientConfig   `yaml:"client"`
}

type RealtimeConfig struct {
	Driver        string        `yaml:"driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	RelayInterval time.Duration `yaml:"relay_interval"`
	RelayEvents   []string      `yaml:"relay_events,omitempty"`
}

// ClientConfig carries the state store options. Nil toggles keep the store defaults.
type ClientConfig struct {
	BaseURL             string        `yaml:"base_url"`
	ActorID             string        `yaml:"actor_id"`
	EnableRealTime      *bool         `yaml:"enable_real_time"`
	EnableCaching       *bool         `yaml:"enable_caching"`
	CacheTimeout        time.Duration `yaml:"cache_timeout"`
	EnableMetrics       *bool         `yaml:"enable_metrics"`
	EnableNotifications *bool         `yaml:"enable_notifications"`
	AutoRefresh         *bool         `yaml:"auto_refresh"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	MaxRetries          *int          `yaml:"max_retries"`
	ErrorRetryDelay     time.Duration `yaml:"error_retry_delay"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with collab config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("config.database.busy_timeout must not be negative")
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("config.auth.token_ttl must not be negative")
	}
	switch c.Realtime.Driver {
	case "", "memory":
	case "redis":
		if c.Realtime.RedisAddr == "" {
			return fmt.Errorf("config.realtime.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config.realtime.driver must be 'memory' or 'redis'")
	}
	if c.Realtime.RelayInterval < 0 {
		return fmt.Errorf("config.realtime.relay_interval must not be negative")
	}
	if c.Client.CacheTimeout < 0 || c.Client.RefreshInterval < 0 || c.Client.ErrorRetryDelay < 0 {
		return fmt.Errorf("config.client durations must not be negative")
	}
	if c.Client.MaxRetries != nil && *c.Client.MaxRetries < 0 {
		return fmt.Errorf("config.client.max_retries must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "collabhub.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1
  allow_legacy_actor_header: false

database:
  busy_timeout: 5s

auth:
  dev_login: false
  token_ttl: 24h

realtime:
  driver: memory
  channel_prefix: collabhub
  relay_interval: 1s

client:
  base_url: http://127.0.0.1:8080
  actor_id: local-user
  enable_real_time: true
  enable_caching: true
  cache_timeout: 5m
  enable_metrics: true
  enable_notifications: true
  auto_refresh: true
  refresh_interval: 30s
  max_retries: 3
  error_retry_delay: 1s
`
