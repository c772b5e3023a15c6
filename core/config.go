package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

type WebhookConfig struct {
	Secret          string `koanf:"secret" mapstructure:"secret"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
}

type ForwardConfig struct {
	URL     string        `koanf:"url" mapstructure:"url"`
	Secret  string        `koanf:"secret" mapstructure:"secret"`
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type CacheConfig struct {
	TTLHours int `koanf:"ttl_hours" mapstructure:"ttl_hours"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Environment string        `koanf:"environment" mapstructure:"environment"`
	Listen      string        `koanf:"listen" mapstructure:"listen"`
	Webhook     WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
	Forward     ForwardConfig `koanf:"forward" mapstructure:"forward"`
	Cache       CacheConfig   `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "sb-api-services",
		Environment: EnvironmentDevelopment,
		Listen:      ":8080",
		Webhook: WebhookConfig{
			SignatureHeader: "X-Nylas-Signature",
		},
		Forward: ForwardConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTLHours: 24,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Webhook.SignatureHeader) == "" {
		return fmt.Errorf("core: webhook.signature_header is required")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("core: cache.ttl_hours must not be negative")
	}
	return nil
}

// IsProduction reports whether the config names the production environment.
// The test webhook endpoint is disabled when it does.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

// CacheTTL returns the configured cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	if c.Cache.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Cache.TTLHours) * time.Hour
}
