// Package config provides configuration loading and validation.
package config

import (
	"strings"
	"time"
)

// Config holds the console configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ListenAddr is the address the console UI listens on.
	// Example: "127.0.0.1:8088"
	ListenAddr string `toml:"listen_addr"`

	// ExternalBasePath is the optional path prefix for all console routes.
	// Example: "/console" or empty string
	ExternalBasePath string `toml:"external_base_path"`

	Logging    LoggingConfig    `toml:"logging"`
	Backend    BackendConfig    `toml:"backend"`
	Realtime   RealtimeConfig   `toml:"realtime"`
	TokenStore TokenStoreConfig `toml:"token_store"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `toml:"level"`
}

// BackendConfig describes the hospitality REST backend.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. "http://localhost:8080".
	BaseURL string `toml:"base_url"`

	// AnnouncementsPath is the announcements collection path.
	AnnouncementsPath string `toml:"announcements_path"`

	// TimeoutMS is the overall request timeout in milliseconds.
	TimeoutMS int `toml:"timeout_ms"`

	// InsecureSkipVerify disables TLS verification (dev-only).
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// RealtimeConfig describes the push channel.
type RealtimeConfig struct {
	// Endpoint is the WebSocket handshake URL, e.g. "ws://localhost:8080/ws".
	Endpoint string `toml:"endpoint"`

	// Topic is the single STOMP destination the console subscribes to.
	Topic string `toml:"topic"`

	// ReconnectDelayMS is the fixed delay between a drop and the next attempt.
	ReconnectDelayMS int `toml:"reconnect_delay_ms"`

	// HandshakeTimeoutMS bounds dial + CONNECT/CONNECTED.
	HandshakeTimeoutMS int `toml:"handshake_timeout_ms"`

	// HeartbeatMS is the STOMP heart-beat offered in both directions.
	HeartbeatMS int `toml:"heartbeat_ms"`
}

// TokenStoreConfig selects and configures the token store driver.
type TokenStoreConfig struct {
	// Driver is one of: memory, json, sqlite, redis.
	Driver string `toml:"driver"`

	// Drivers holds per-driver raw config under [token_store.drivers.<name>].
	Drivers map[string]map[string]any `toml:"drivers"`
}

// BackendTimeout returns the backend request timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMS) * time.Millisecond
}

// ReconnectDelay returns the fixed realtime reconnect delay.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectDelayMS) * time.Millisecond
}

// HandshakeTimeout returns the realtime handshake timeout.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Realtime.HandshakeTimeoutMS) * time.Millisecond
}

// Heartbeat returns the STOMP heart-beat interval.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Realtime.HeartbeatMS) * time.Millisecond
}

// DriverConfig returns the raw config map for the selected token store driver.
func (c *Config) DriverConfig() map[string]any {
	if c.TokenStore.Drivers == nil {
		return nil
	}
	return c.TokenStore.Drivers[c.TokenStore.Driver]
}

// Redacted returns a copy safe to log: driver secrets are masked.
func (c *Config) Redacted() Config {
	out := *c
	if c.TokenStore.Drivers != nil {
		out.TokenStore.Drivers = make(map[string]map[string]any, len(c.TokenStore.Drivers))
		for name, raw := range c.TokenStore.Drivers {
			m := make(map[string]any, len(raw))
			for k, v := range raw {
				if isSecretKey(k) {
					v = "[REDACTED]"
				}
				m[k] = v
			}
			out.TokenStore.Drivers[name] = m
		}
	}
	return out
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || k == "url"
}
