// Package config loads todo client settings from defaults, an optional YAML
// file and TODO_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/todo-client/pkg/cache"
	"github.com/Sternrassler/todo-client/pkg/client"
	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/pagination"
)

// Environment variables.
const (
	EnvBaseURL   = "TODO_BASE_URL"
	EnvPageSize  = "TODO_PAGE_SIZE"
	EnvLogLevel  = "TODO_LOG_LEVEL"
	EnvLogPretty = "TODO_LOG_PRETTY"
	EnvRedisURL  = "TODO_REDIS_URL"
	EnvCacheTTL  = "TODO_CACHE_TTL"
	EnvTimeout   = "TODO_TIMEOUT"
	EnvUserAgent = "TODO_USER_AGENT"
)

// Config holds the settings shared by the CLI and the terminal view.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	PageSize  int           `yaml:"page_size"`
	LogLevel  string        `yaml:"log_level"`
	LogPretty bool          `yaml:"log_pretty"`
	RedisURL  string        `yaml:"redis_url"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// Default returns the built-in configuration.
func Default() Config {
	cc := client.DefaultConfig(client.DefaultBaseURL)
	return Config{
		BaseURL:   cc.BaseURL,
		PageSize:  pagination.DefaultLimit,
		LogLevel:  string(logging.LevelWarn),
		CacheTTL:  cache.DefaultTTL,
		Timeout:   cc.Timeout,
		UserAgent: cc.UserAgent,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "todo", "config.yaml")
}

// Load builds the configuration from defaults, the file at path and the
// environment. A missing file is only an error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		err := cfg.LoadFile(path)
		if err != nil && (required || !errors.Is(err, fs.ErrNotExist)) {
			return cfg, err
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TODO_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPageSize, err)
		}
		c.PageSize = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogPretty); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogPretty, err)
		}
		c.LogPretty = b
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := getenv(EnvCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheTTL, err)
		}
		c.CacheTTL = d
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := getenv(EnvUserAgent); v != "" {
		c.UserAgent = v
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an http(s) url with a host (got %q)", c.BaseURL)
	}
	if c.PageSize < pagination.MinLimit {
		return fmt.Errorf("page size must be > 0 (got %d)", c.PageSize)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0 (got %s)", c.CacheTTL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (got %s)", c.Timeout)
	}
	if _, err := c.RedisOptions(); err != nil {
		return err
	}
	return nil
}

// RedisOptions parses RedisURL. It accepts redis:// URLs and bare host:port
// addresses; nil means no shared cache.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if !strings.Contains(c.RedisURL, "://") {
		return &redis.Options{Addr: c.RedisURL}, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// LoggingConfig returns the logger settings.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = c.LogPretty || logging.IsTerminal(cfg.Output)
	return cfg
}

// ClientConfig returns the client settings. redisClient may be nil.
func (c Config) ClientConfig(redisClient *redis.Client, logger *zerolog.Logger) client.Config {
	cc := client.DefaultConfig(c.BaseURL)
	cc.UserAgent = c.UserAgent
	cc.Timeout = c.Timeout
	cc.CacheTTL = c.CacheTTL
	cc.Redis = redisClient
	cc.Logger = logger
	return cc
}
