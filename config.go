package main

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/tokens"
)

const (
	defaultPort                 = 8080
	defaultLogLevel             = "info"
	defaultFacilitatorProvider  = "http"
	defaultFacilitatorTimeout   = 20 * time.Second
	defaultSessionTTL           = 1800 * time.Second
	defaultRequirementsTimeout  = 300
	defaultKVBackend            = "memory"
	defaultLogBackend           = "sqlite"
	defaultLogDSN               = "payments.db"
	defaultContentDir           = "content"
	defaultPaymentsListingLimit = 100
)

type Config struct {
	// API settings
	Port     int    `yaml:"port" envconfig:"PORT"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	BaseURL  string `yaml:"base_url" envconfig:"BASE_URL"`
	AdminKey string `yaml:"admin_key" envconfig:"ADMIN_KEY"`

	// Facilitator settings. Provider is "http" or "mock".
	FacilitatorProvider string        `yaml:"facilitator_provider" envconfig:"FACILITATOR_PROVIDER"`
	FacilitatorURL      string        `yaml:"facilitator_url" envconfig:"FACILITATOR_URL"`
	FacilitatorAPIKey   string        `yaml:"facilitator_apikey" envconfig:"FACILITATOR_APIKEY"`
	FacilitatorTimeout  time.Duration `yaml:"facilitator_timeout" envconfig:"FACILITATOR_TIMEOUT"`
	RequirementsTimeout int           `yaml:"requirements_timeout_seconds" envconfig:"REQUIREMENTS_TIMEOUT_SECONDS"`

	// Session settings
	SessionSecret string        `yaml:"session_secret" envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	CookieSecure  bool          `yaml:"cookie_secure" envconfig:"COOKIE_SECURE"`

	// KV store for sessions and notices. Backend is "memory" or "redis".
	KVBackend     string `yaml:"kv_backend" envconfig:"KV_BACKEND"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`

	// Payment log. Backend is "sqlite" or "postgres".
	LogBackend string `yaml:"log_backend" envconfig:"LOG_BACKEND"`
	LogDSN     string `yaml:"log_dsn" envconfig:"LOG_DSN"`

	// Content storage
	ContentDir string `yaml:"content_dir" envconfig:"CONTENT_DIR"`
	S3Region   string `yaml:"s3_region" envconfig:"S3_REGION"`

	Resources   []resource.Resource `yaml:"resources"`
	ExtraTokens []tokens.Token      `yaml:"extra_tokens"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

// Load Config from the environment. Resources can only be configured from a
// file.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.FacilitatorProvider == "" {
		c.FacilitatorProvider = defaultFacilitatorProvider
	}
	if c.FacilitatorTimeout == 0 {
		c.FacilitatorTimeout = defaultFacilitatorTimeout
	}
	if c.RequirementsTimeout == 0 {
		c.RequirementsTimeout = defaultRequirementsTimeout
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.KVBackend == "" {
		c.KVBackend = defaultKVBackend
	}
	if c.LogBackend == "" {
		c.LogBackend = defaultLogBackend
	}
	if c.LogDSN == "" && c.LogBackend == defaultLogBackend {
		c.LogDSN = defaultLogDSN
	}
	if c.ContentDir == "" {
		c.ContentDir = defaultContentDir
	}
}
