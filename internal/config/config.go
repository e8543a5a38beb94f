// Package config loads server configuration from defaults, an optional YAML
// file, and environment variables, in that order of precedence (environment
// wins). Secrets are expected from the environment; the file covers the
// rest.
package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Store  Store  `yaml:"store"`
	OpenAI OpenAI `yaml:"openai"`
	Tavily Tavily `yaml:"tavily"`

	// LockTTL bounds how long a crashed process can hold a thread lock.
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type Store struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"` // file backend
	TTL     time.Duration `yaml:"ttl"`  // redis backend, 0 = keep forever
	Redis   Redis         `yaml:"redis"`

	// EncryptionKey enables snapshot encryption at rest. Base64-encoded
	// 32-byte key; set it from the environment, not the file.
	EncryptionKey string `yaml:"encryption_key"`

	// PIIPatterns are regexes masked out of conversation text before a
	// snapshot is persisted.
	PIIPatterns []string `yaml:"pii_patterns"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OpenAI struct {
	APIKey     string            `yaml:"api_key"`
	BaseURL    string            `yaml:"base_url"`
	TaskModels map[string]string `yaml:"task_models"`
}

type Tavily struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		Store: Store{
			Backend: StoreMemory,
			Path:    ".palgraph/threads",
			Redis:   Redis{Address: "localhost:6379"},
		},
		LockTTL: 2 * time.Minute,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Listen, "PALGRAPH_LISTEN")
	setString(&c.LogLevel, "PALGRAPH_LOG_LEVEL")
	if v, ok := os.LookupEnv("PALGRAPH_LOG_JSON"); ok {
		c.LogJSON, _ = strconv.ParseBool(v)
	}
	setString(&c.Store.Backend, "PALGRAPH_STORE")
	setString(&c.Store.Path, "PALGRAPH_STORE_PATH")
	setDuration(&c.Store.TTL, "PALGRAPH_STORE_TTL")
	setString(&c.Store.Redis.Address, "PALGRAPH_REDIS_ADDR")
	setString(&c.Store.Redis.Password, "PALGRAPH_REDIS_PASSWORD")
	setString(&c.Store.EncryptionKey, "PALGRAPH_STORE_ENCRYPTION_KEY")
	if v, ok := os.LookupEnv("PALGRAPH_REDIS_DB"); ok {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Tavily.APIKey, "TAVILY_API_KEY")
	setString(&c.Tavily.BaseURL, "TAVILY_BASE_URL")
	setDuration(&c.LockTTL, "PALGRAPH_LOCK_TTL")
}

// Validate rejects values that would only fail later at wiring time.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, err := c.Store.EncryptionKeyBytes(); err != nil {
		return err
	}
	for _, p := range c.Store.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
	}
	return nil
}

// EncryptionKeyBytes decodes the configured key. An empty key disables
// snapshot encryption.
func (s Store) EncryptionKeyBytes() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogLevel maps the configured level name to a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
