package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

/* Config is read from the environment and an optional .env file (TOML)
 * Every key has a default so the gateway starts with no configuration at all
 */

type Config struct {
	Port                   string `mapstructure:"PORT"`
	PolicyFile             string `mapstructure:"POLICY_FILE"`
	SourcesFile            string `mapstructure:"SOURCES_FILE"`
	QueueCapacity          int    `mapstructure:"QUEUE_CAPACITY"`
	DispatchWorkers        int    `mapstructure:"DISPATCH_WORKERS"`
	MaxAttempts            int    `mapstructure:"MAX_ATTEMPTS"`
	BaseBackoffMs          int    `mapstructure:"BASE_BACKOFF_MS"`
	MaxBackoffMs           int    `mapstructure:"MAX_BACKOFF_MS"`
	ConsumerTimeoutMs      int    `mapstructure:"CONSUMER_TIMEOUT_MS"`
	MaxBodyBytes           int64  `mapstructure:"MAX_BODY_BYTES"`
	RedisAddr              string `mapstructure:"REDIS_ADDR"`
	RedisPassword          string `mapstructure:"REDIS_PASSWORD"`
	RedisDB                int    `mapstructure:"REDIS_DB"`
	LogLevel               string `mapstructure:"LOG_LEVEL"`
	ShutdownTimeoutSeconds int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"POLICY_FILE":              "",
	"SOURCES_FILE":             "sources.yaml",
	"QUEUE_CAPACITY":           1000,
	"DISPATCH_WORKERS":         4,
	"MAX_ATTEMPTS":             3,
	"BASE_BACKOFF_MS":          1000,
	"MAX_BACKOFF_MS":           60000,
	"CONSUMER_TIMEOUT_MS":      10000,
	"MAX_BODY_BYTES":           1 << 20,
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"LOG_LEVEL":                "info",
	"SHUTDOWN_TIMEOUT_SECONDS": 30,
}

// GetConfig reads .env from the working directory, if present, then the environment
func GetConfig() (*Config, error) {
	return Load(".")
}

// Load reads the configuration, looking for .env in dir
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &config, nil
}

// Validate checks ranges and cross-field rules
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("QUEUE_CAPACITY must be at least 1 (got %d)", c.QueueCapacity))
	}
	if c.DispatchWorkers < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_WORKERS must be at least 1 (got %d)", c.DispatchWorkers))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_ATTEMPTS must be at least 1 (got %d)", c.MaxAttempts))
	}
	if c.BaseBackoffMs < 0 {
		errs = append(errs, fmt.Errorf("BASE_BACKOFF_MS cannot be negative (got %d)", c.BaseBackoffMs))
	}
	if c.MaxBackoffMs < c.BaseBackoffMs {
		errs = append(errs, fmt.Errorf("MAX_BACKOFF_MS (%d) must be >= BASE_BACKOFF_MS (%d)", c.MaxBackoffMs, c.BaseBackoffMs))
	}
	if c.ConsumerTimeoutMs < 1 {
		errs = append(errs, fmt.Errorf("CONSUMER_TIMEOUT_MS must be at least 1 (got %d)", c.ConsumerTimeoutMs))
	}
	if c.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be at least 1 (got %d)", c.MaxBodyBytes))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB cannot be negative (got %d)", c.RedisDB))
	}
	if c.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be at least 1 (got %d)", c.ShutdownTimeoutSeconds))
	}
	return errors.Join(errs...)
}

// BaseBackoff returns BASE_BACKOFF_MS as a duration
func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffMs) * time.Millisecond
}

// MaxBackoff returns MAX_BACKOFF_MS as a duration
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// ConsumerTimeout returns CONSUMER_TIMEOUT_MS as a duration
func (c *Config) ConsumerTimeout() time.Duration {
	return time.Duration(c.ConsumerTimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns SHUTDOWN_TIMEOUT_SECONDS as a duration
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// UseRedis reports whether durable stores are configured
func (c *Config) UseRedis() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}
