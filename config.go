package leanmq

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the Backend Gateway's connection and retry knobs.
type Config struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	Prefix            string        `mapstructure:"prefix"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`

	// ReclaimIdle is how long a pending entry may sit unacknowledged before
	// another consumer may claim it.
	ReclaimIdle time.Duration `mapstructure:"reclaim_idle"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		Port:              6379,
		DB:                0,
		Prefix:            "leanmq:",
		ConnectionTimeout: 5 * time.Second,
		MaxRetries:        3,
		RetryInterval:     1 * time.Second,
		ReclaimIdle:       30 * time.Second,
	}
}

// ServiceConfig holds the Router/Dispatcher/Service Supervisor knobs.
type ServiceConfig struct {
	BatchSize           int64         `mapstructure:"batch_size"`
	BlockFor            time.Duration `mapstructure:"block_seconds"`
	ProcessInterval     time.Duration `mapstructure:"process_interval"`
	WorkerThreadTimeout time.Duration `mapstructure:"worker_thread_timeout"`
	InstallSignals      bool          `mapstructure:"install_signals"`

	// AutoStart starts the supervised dispatcher loop as soon as the
	// Webhook is constructed instead of waiting for RunService.
	AutoStart bool `mapstructure:"auto_start"`
}

// DefaultServiceConfig returns sensible Dispatcher/Service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BatchSize:           10,
		BlockFor:            5 * time.Second,
		ProcessInterval:     1 * time.Second,
		WorkerThreadTimeout: 5 * time.Second,
		InstallSignals:      true,
		AutoStart:           false,
	}
}

// LoadConfig reads leanmq.yaml from configPath (if present), falling back to
// defaults, then applies LEANMQ_-prefixed environment overrides. A missing
// config file is not an error: leanmq is a library and most embedders
// configure it purely through code or environment variables.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("leanmq")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("db", cfg.DB)
	v.SetDefault("password", cfg.Password)
	v.SetDefault("prefix", cfg.Prefix)
	v.SetDefault("connection_timeout", cfg.ConnectionTimeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_interval", cfg.RetryInterval)
	v.SetDefault("reclaim_idle", cfg.ReclaimIdle)

	v.SetEnvPrefix("LEANMQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("leanmq: read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("leanmq: unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadServiceConfig layers defaults, an optional leanmq.yaml `service:`
// section, and LEANMQ_SERVICE_-prefixed environment overrides into a
// ServiceConfig, the same way LoadConfig does for the Gateway knobs.
func LoadServiceConfig(configPath string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	v := viper.New()
	v.SetConfigName("leanmq")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	v.SetDefault("service.batch_size", cfg.BatchSize)
	v.SetDefault("service.block_seconds", cfg.BlockFor)
	v.SetDefault("service.process_interval", cfg.ProcessInterval)
	v.SetDefault("service.worker_thread_timeout", cfg.WorkerThreadTimeout)
	v.SetDefault("service.install_signals", cfg.InstallSignals)
	v.SetDefault("service.auto_start", cfg.AutoStart)

	v.SetEnvPrefix("LEANMQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return ServiceConfig{}, fmt.Errorf("leanmq: read config file: %w", err)
		}
	}

	// Unmarshal (unlike UnmarshalKey) resolves each "service.*" key through
	// Get, so the LEANMQ_SERVICE_* environment overrides are applied.
	wrapped := struct {
		Service ServiceConfig `mapstructure:"service"`
	}{Service: cfg}
	if err := v.Unmarshal(&wrapped); err != nil {
		return ServiceConfig{}, fmt.Errorf("leanmq: unmarshal service config: %w", err)
	}
	return wrapped.Service, nil
}
