// Package config builds the runtime configuration from environment variables
// so main stays lean. Validate enforces the deployment profile rules; the
// accept-all webhook mode in particular is allowed only outside production.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	pkgstrings "veribridge/pkg/platform/strings"
)

const (
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// Store backend selectors.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// RedisConfig tunes the optional Redis session store connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config is the full runtime configuration.
type Config struct {
	Addr    string
	Profile string

	// ExternalBaseURL is this service's public base URL; the decision
	// webhook path is appended when registering the provider callback.
	ExternalBaseURL string
	// ReturnURL receives the user's browser after the hosted verification
	// flow finishes.
	ReturnURL string

	// WebhookSecret authenticates inbound decision callbacks. Empty means
	// accept-all, refused in production.
	WebhookSecret string

	ProviderBaseURL string
	ProviderAPIKey  string

	MessagingBaseURL string
	MessagingAPIKey  string
	MessagingSender  string
	// FlowTriggerURL is optional; empty disables the flow channel.
	FlowTriggerURL string

	StoreBackend string
	Redis        RedisConfig
	PostgresDSN  string

	// KafkaBrokers is optional; empty disables the Kafka audit sink.
	KafkaBrokers []string
	AuditTopic   string

	AdminJWTKey string

	RenotifyRepeatDecision bool
}

// FromEnv reads the configuration. Defaults favor local development.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("VERIBRIDGE_ADDR", ":8080"),
		Profile:          envOr("VERIBRIDGE_PROFILE", ProfileDevelopment),
		ExternalBaseURL:  os.Getenv("VERIBRIDGE_EXTERNAL_BASE_URL"),
		ReturnURL:        envOr("VERIBRIDGE_RETURN_URL", "https://wa.me/"),
		WebhookSecret:    os.Getenv("VERIBRIDGE_WEBHOOK_SECRET"),
		ProviderBaseURL:  envOr("VERIBRIDGE_PROVIDER_BASE_URL", "https://stationapi.veriff.com"),
		ProviderAPIKey:   os.Getenv("VERIBRIDGE_PROVIDER_API_KEY"),
		MessagingBaseURL: os.Getenv("VERIBRIDGE_MESSAGING_BASE_URL"),
		MessagingAPIKey:  os.Getenv("VERIBRIDGE_MESSAGING_API_KEY"),
		MessagingSender:  os.Getenv("VERIBRIDGE_MESSAGING_SENDER"),
		FlowTriggerURL:   os.Getenv("VERIBRIDGE_FLOW_TRIGGER_URL"),
		StoreBackend:     envOr("VERIBRIDGE_STORE", StoreMemory),
		PostgresDSN:      os.Getenv("VERIBRIDGE_POSTGRES_DSN"),
		AuditTopic:       envOr("VERIBRIDGE_AUDIT_TOPIC", "veribridge.audit"),
		AdminJWTKey:      envOr("VERIBRIDGE_ADMIN_JWT_KEY", "dev-secret-key-change-in-production"),

		RenotifyRepeatDecision: os.Getenv("VERIBRIDGE_RENOTIFY_REPEAT") == "true",
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("VERIBRIDGE_REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	if brokers := os.Getenv("VERIBRIDGE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pkgstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	return cfg
}

// CallbackURL is the decision webhook the provider calls back.
func (c Config) CallbackURL() string {
	return strings.TrimSuffix(c.ExternalBaseURL, "/") + "/webhooks/decision"
}

// Validate rejects configurations that cannot run safely.
func (c Config) Validate() error {
	var errs []error

	if c.Profile != ProfileDevelopment && c.Profile != ProfileProduction {
		errs = append(errs, fmt.Errorf("unknown profile %q", c.Profile))
	}
	if c.ExternalBaseURL == "" {
		errs = append(errs, errors.New("external base URL is required"))
	}
	if c.ProviderAPIKey == "" {
		errs = append(errs, errors.New("provider API key is required"))
	}
	if c.MessagingBaseURL == "" || c.MessagingAPIKey == "" || c.MessagingSender == "" {
		errs = append(errs, errors.New("messaging base URL, API key, and sender are required"))
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis store selected but no redis URL configured"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres store selected but no DSN configured"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}

	if c.Profile == ProfileProduction {
		if c.WebhookSecret == "" {
			errs = append(errs, errors.New("production profile refuses to run without a webhook secret"))
		}
		if c.AdminJWTKey == "dev-secret-key-change-in-production" {
			errs = append(errs, errors.New("production profile refuses the default admin JWT key"))
		}
	}

	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
