package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the petmatch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Features  FeaturesConfig  `yaml:"features"`
	Matching  MatchingConfig  `yaml:"matching"`
	AutoMatch AutoMatchConfig `yaml:"automatch"`
	Notify    NotifyConfig    `yaml:"notify"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys"`
	AdminAPIKeys []string `yaml:"admin_api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Driver           string `yaml:"driver"` // postgres, memory (default: postgres)
	DSN              string `yaml:"dsn"`
	MaxConns         int32  `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	AutoMigrate      bool   `yaml:"auto_migrate"`
}

// CacheConfig holds Valkey/Redis settings for the feature cache and sweep lease.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, none (default: none)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	FeatureTTLSec    int      `yaml:"feature_ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache server is configured.
func (c CacheConfig) Enabled() bool { return c.Driver != "none" }

// FeaturesConfig holds the feature provider settings. An empty model disables
// extraction: pets without a stored feature record are then not scoreable.
type FeaturesConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	BreedModel string `yaml:"breed_model"`
	Dimensions int    `yaml:"dimensions"`
	User       string `yaml:"user"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Enabled reports whether a provider is configured.
func (c FeaturesConfig) Enabled() bool { return c.Model != "" }

// MatchingConfig holds matching engine settings.
type MatchingConfig struct {
	MinSimilarity     float64 `yaml:"min_similarity"`
	DefaultPageSize   int     `yaml:"default_page_size"`
	CandidatePageSize int     `yaml:"candidate_page_size"`
}

// AutoMatchConfig holds the periodic sweep settings.
type AutoMatchConfig struct {
	Enabled                bool `yaml:"enabled"`
	IntervalSec            int  `yaml:"interval_sec"`
	MaxDays                int  `yaml:"max_days"`
	MaxPets                int  `yaml:"max_pets"`
	RunTimeoutSec          int  `yaml:"run_timeout_sec"`
	MaxConsecutiveFailures int  `yaml:"max_consecutive_failures"`
	LeaseTTLSec            int  `yaml:"lease_ttl_sec"`
}

// NotifyConfig holds match notification settings.
type NotifyConfig struct {
	Driver       string `yaml:"driver"` // log, webhook (default: log)
	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`
	Workers      int    `yaml:"workers"`
	QueueSize    int    `yaml:"queue_size"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Seconds converts a *_sec setting to a time.Duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "none"
	}
	if c.Cache.FeatureTTLSec <= 0 {
		c.Cache.FeatureTTLSec = 7 * 24 * 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Features.Provider == "" {
		c.Features.Provider = "openai"
	}
	if c.Features.TimeoutSec <= 0 {
		c.Features.TimeoutSec = 10
	}
	if c.Matching.MinSimilarity == 0 {
		c.Matching.MinSimilarity = 0.6
	}
	if c.Matching.DefaultPageSize <= 0 {
		c.Matching.DefaultPageSize = 10
	}
	if c.Matching.CandidatePageSize <= 0 {
		c.Matching.CandidatePageSize = 500
	}
	if c.AutoMatch.IntervalSec <= 0 {
		c.AutoMatch.IntervalSec = 3600
	}
	if c.AutoMatch.MaxDays <= 0 {
		c.AutoMatch.MaxDays = 7
	}
	if c.AutoMatch.MaxPets <= 0 {
		c.AutoMatch.MaxPets = 500
	}
	if c.AutoMatch.RunTimeoutSec <= 0 {
		c.AutoMatch.RunTimeoutSec = 300
	}
	if c.AutoMatch.MaxConsecutiveFailures <= 0 {
		c.AutoMatch.MaxConsecutiveFailures = 5
	}
	if c.AutoMatch.LeaseTTLSec <= 0 {
		c.AutoMatch.LeaseTTLSec = c.AutoMatch.RunTimeoutSec + 60
	}
	if c.Notify.Driver == "" {
		c.Notify.Driver = "log"
	}
	if c.Notify.Workers <= 0 {
		c.Notify.Workers = 4
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 256
	}
	if c.Notify.TimeoutSec <= 0 {
		c.Notify.TimeoutSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"postgres\" or \"memory\", got %q", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case "valkey", "redis":
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the %s driver", c.Cache.Driver)
		}
	case "none":
	default:
		return fmt.Errorf("cache.driver must be \"valkey\", \"redis\" or \"none\", got %q", c.Cache.Driver)
	}

	if c.Features.Enabled() && c.Features.BaseURL == "" {
		return fmt.Errorf("features.base_url is required when features.model is set")
	}
	if c.Features.Dimensions < 0 {
		return fmt.Errorf("features.dimensions must not be negative")
	}

	if c.Matching.MinSimilarity < 0 || c.Matching.MinSimilarity > 1 {
		return fmt.Errorf("matching.min_similarity must be in [0,1], got %v", c.Matching.MinSimilarity)
	}
	if c.Matching.DefaultPageSize > 100 {
		return fmt.Errorf("matching.default_page_size must be at most 100, got %d", c.Matching.DefaultPageSize)
	}

	if c.AutoMatch.RunTimeoutSec > c.AutoMatch.IntervalSec {
		return fmt.Errorf("automatch.run_timeout_sec (%d) must not exceed automatch.interval_sec (%d)",
			c.AutoMatch.RunTimeoutSec, c.AutoMatch.IntervalSec)
	}

	switch c.Notify.Driver {
	case "webhook":
		if c.Notify.WebhookURL == "" {
			return fmt.Errorf("notify.webhook_url is required for the webhook driver")
		}
	case "log":
	default:
		return fmt.Errorf("notify.driver must be \"log\" or \"webhook\", got %q", c.Notify.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
