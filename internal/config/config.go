package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/elfernagomez/doya-management/pkg/config"
)

// Config holds all configuration for the draft service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"DRAFT_HTTP_PORT" envDefault:"8006"`

	// Redis (draft store and product cache)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Draft TTL in hours (default: 24 hours of inactivity)
	DraftTTL int `env:"DRAFT_TTL_HOURS" envDefault:"24"`

	// Product cache TTL in minutes
	ProductCacheTTL int `env:"PRODUCT_CACHE_TTL_MINUTES" envDefault:"15"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Platform service URLs
	OrderServiceURL   string `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:8003"`
	ProductServiceURL string `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8001"`

	// Circuit breaker settings for platform calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Per-call platform timeouts (seconds)
	FetchTimeout   int `env:"PLATFORM_FETCH_TIMEOUT" envDefault:"5"`
	PersistTimeout int `env:"PLATFORM_PERSIST_TIMEOUT" envDefault:"10"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load draft config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.DraftTTL < 1 {
		return fmt.Errorf("DRAFT_TTL_HOURS must be positive, got %d", c.DraftTTL)
	}
	if c.ProductCacheTTL < 1 {
		return fmt.Errorf("PRODUCT_CACHE_TTL_MINUTES must be positive, got %d", c.ProductCacheTTL)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.FetchTimeout < 1 {
		return fmt.Errorf("PLATFORM_FETCH_TIMEOUT must be positive, got %d", c.FetchTimeout)
	}
	if c.PersistTimeout < c.FetchTimeout {
		return fmt.Errorf("PLATFORM_PERSIST_TIMEOUT must be at least PLATFORM_FETCH_TIMEOUT, got %d < %d", c.PersistTimeout, c.FetchTimeout)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for name, rawURL := range map[string]string{
		"ORDER_SERVICE_URL":   c.OrderServiceURL,
		"PRODUCT_SERVICE_URL": c.ProductServiceURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}
