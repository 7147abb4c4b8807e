package config

import (
	"fmt"
	"net/netip"
	"time"
)

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Addr                string `json:"addr"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
	// RateLimitPerMinute is the number of requests a client may send per
	// minute. Zero applies the default; a negative value disables limiting.
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	RateBurst          int      `json:"rate_burst"`
	CORSOrigins        []string `json:"cors_origins"`
	// TrustedProxies lists the reverse proxies, as CIDR prefixes or IPs,
	// whose X-Forwarded-For header identifies the client.
	TrustedProxies []string `json:"trusted_proxies"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds <= 0 {
		c.ReadTimeoutSeconds = 15
	}
	if c.WriteTimeoutSeconds <= 0 {
		c.WriteTimeoutSeconds = 90
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server: addr is required")
	}
	for _, p := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("server: invalid trusted proxy %q", p)
		}
	}
	return nil
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}
