// Package config provides configuration loading using koanf.
// Follows an env → AWS SDK → defaults precedence.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Verify holds the phone verification service's own listener and
	// lifecycle settings.
	Verify VerifyConfig `koanf:"verify"`

	// Infrastructure configurations
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Redis    RedisConfig    `koanf:"redis"`
	NATS     NATSConfig     `koanf:"nats"`
	AWS      AWSConfig      `koanf:"aws"`
	Twilio   TwilioConfig   `koanf:"twilio"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// VerifyConfig holds the verification service's listener ports and
// orchestrator defaults.
type VerifyConfig struct {
	HTTPPort       int           `koanf:"http_port"`
	GRPCPort       int           `koanf:"grpc_port"`
	DefaultTTL     time.Duration `koanf:"default_ttl"`
	SenderPoolSize int           `koanf:"sender_pool_size"`
}

// DynamoDBConfig holds DynamoDB configuration.
type DynamoDBConfig struct {
	Endpoint string        `koanf:"endpoint"` // Empty for production (uses default AWS endpoint)
	Table    string        `koanf:"table"`
	Timeout  time.Duration `koanf:"timeout"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"` // Required
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// NATSConfig holds the completion-record publisher's connection settings.
// Empty URL disables the completion publisher entirely.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// TwilioConfig holds the delegated Twilio Verify adapter's credentials.
// Required in production when the twilio-verify adapter is wired.
type TwilioConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	ServiceSID string `koanf:"service_sid"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		Verify: VerifyConfig{
			HTTPPort:       8080,
			GRPCPort:       9090,
			DefaultTTL:     domain.DefaultSessionTTL,
			SenderPoolSize: domain.SenderWorkerPoolSize,
		},

		DynamoDB: DynamoDBConfig{
			Table:   "verification-sessions",
			Timeout: domain.DynamoDBTimeout,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. AWS SDK (Secrets Manager / SSM) - not implemented
// 3. Compiled defaults (lowest)
//
// Required keys missing in the prod environment fail startup; optional
// keys missing fall back to defaults.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	// Start with compiled defaults
	cfg := defaults()

	// Load environment variables
	// Prefix: none (we use full names like VERIFY_HTTP_PORT)
	// Delimiter: the _ after a section name maps to . for nested config;
	// later underscores stay part of the field name (http_port).
	sections := []string{"verify", "dynamodb", "redis", "nats", "aws", "twilio", "otel"}
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		for _, section := range sections {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Validate required fields
	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired checks that required configuration is present.
func validateRequired(cfg *Config) error {
	// In local environment, most fields have sensible defaults
	if cfg.Environment == "local" {
		return nil
	}

	// In production, certain fields are required
	if cfg.Environment == "prod" {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
		}
		if cfg.Twilio.ServiceSID == "" {
			return fmt.Errorf("%w: twilio.service_sid", domain.ErrConfigRequired)
		}
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
