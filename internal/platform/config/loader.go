package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the console operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr       *string
	ExternalBasePath *string
	BackendURL       *string
	RealtimeEndpoint *string
	TokenStoreDriver *string
	LoggingLevel     *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode             string            `toml:"mode"`
	ListenAddr       string            `toml:"listen_addr"`
	ExternalBasePath string            `toml:"external_base_path"`
	Logging          *LoggingConfig    `toml:"logging"`
	Backend          *backendConfig    `toml:"backend"`
	Realtime         *RealtimeConfig   `toml:"realtime"`
	TokenStore       *TokenStoreConfig `toml:"token_store"`
}

type backendConfig struct {
	BaseURL            string `toml:"base_url"`
	AnnouncementsPath  string `toml:"announcements_path"`
	TimeoutMS          int    `toml:"timeout_ms"`
	InsecureSkipVerify *bool  `toml:"insecure_skip_verify"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate
//
// Unknown TOML keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				// driver sub-tables are free-form and decoded later by each driver
				if strings.HasPrefix(k.String(), "token_store.drivers.") {
					continue
				}
				keys = append(keys, k.String())
			}
			if len(keys) > 0 {
				logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
			}
		}
	}

	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns the default configuration.
func StrictConfig() *Config {
	return &Config{
		Mode:             string(ModeStrict),
		ListenAddr:       "127.0.0.1:8088",
		ExternalBasePath: "",
		Logging: LoggingConfig{
			Level: "info",
		},
		Backend: BackendConfig{
			BaseURL:           "http://localhost:8080",
			AnnouncementsPath: "/api/announcements",
			TimeoutMS:         10000,
		},
		Realtime: RealtimeConfig{
			Endpoint:           "ws://localhost:8080/ws",
			Topic:              "/topic/announcements",
			ReconnectDelayMS:   5000,
			HandshakeTimeoutMS: 10000,
			HeartbeatMS:        10000,
		},
		TokenStore: TokenStoreConfig{
			Driver: "json",
			Drivers: map[string]map[string]any{
				"json":   {"data_dir": ".frontdesk"},
				"sqlite": {"data_dir": ".frontdesk"},
			},
		},
	}
}

// DevConfig returns development defaults: verbose logging and relaxed TLS.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Logging.Level = "debug"
	cfg.Backend.InsecureSkipVerify = true
	return cfg
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}

	if b := fc.Backend; b != nil {
		if b.BaseURL != "" {
			cfg.Backend.BaseURL = b.BaseURL
		}
		if b.AnnouncementsPath != "" {
			cfg.Backend.AnnouncementsPath = b.AnnouncementsPath
		}
		if b.TimeoutMS > 0 {
			cfg.Backend.TimeoutMS = b.TimeoutMS
		}
		if b.InsecureSkipVerify != nil {
			cfg.Backend.InsecureSkipVerify = *b.InsecureSkipVerify
		}
	}

	if r := fc.Realtime; r != nil {
		if r.Endpoint != "" {
			cfg.Realtime.Endpoint = r.Endpoint
		}
		if r.Topic != "" {
			cfg.Realtime.Topic = r.Topic
		}
		if r.ReconnectDelayMS != 0 {
			cfg.Realtime.ReconnectDelayMS = r.ReconnectDelayMS
		}
		if r.HandshakeTimeoutMS != 0 {
			cfg.Realtime.HandshakeTimeoutMS = r.HandshakeTimeoutMS
		}
		if r.HeartbeatMS != 0 {
			cfg.Realtime.HeartbeatMS = r.HeartbeatMS
		}
	}

	if ts := fc.TokenStore; ts != nil {
		if ts.Driver != "" {
			cfg.TokenStore.Driver = ts.Driver
		}
		for name, raw := range ts.Drivers {
			if cfg.TokenStore.Drivers == nil {
				cfg.TokenStore.Drivers = make(map[string]map[string]any)
			}
			cfg.TokenStore.Drivers[name] = raw
		}
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.ExternalBasePath != nil && *f.ExternalBasePath != "" {
		cfg.ExternalBasePath = *f.ExternalBasePath
	}
	if f.BackendURL != nil && *f.BackendURL != "" {
		cfg.Backend.BaseURL = *f.BackendURL
	}
	if f.RealtimeEndpoint != nil && *f.RealtimeEndpoint != "" {
		cfg.Realtime.Endpoint = *f.RealtimeEndpoint
	}
	if f.TokenStoreDriver != nil && *f.TokenStoreDriver != "" {
		cfg.TokenStore.Driver = *f.TokenStoreDriver
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
}

func validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	switch cfg.TokenStore.Driver {
	case "memory", "json", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid token_store.driver %q: must be one of memory, json, sqlite, redis", cfg.TokenStore.Driver)
	}

	if err := validateURL("backend.base_url", cfg.Backend.BaseURL, "http", "https"); err != nil {
		return err
	}
	if !strings.HasPrefix(cfg.Backend.AnnouncementsPath, "/") {
		return fmt.Errorf("invalid backend.announcements_path %q: must start with /", cfg.Backend.AnnouncementsPath)
	}
	if cfg.Backend.TimeoutMS <= 0 {
		return fmt.Errorf("invalid backend.timeout_ms %d: must be positive", cfg.Backend.TimeoutMS)
	}

	if err := validateURL("realtime.endpoint", cfg.Realtime.Endpoint, "ws", "wss", "http", "https"); err != nil {
		return err
	}
	if !strings.HasPrefix(cfg.Realtime.Topic, "/") {
		return fmt.Errorf("invalid realtime.topic %q: must start with /", cfg.Realtime.Topic)
	}
	if cfg.Realtime.ReconnectDelayMS <= 0 {
		return fmt.Errorf("invalid realtime.reconnect_delay_ms %d: must be positive", cfg.Realtime.ReconnectDelayMS)
	}
	if cfg.Realtime.HandshakeTimeoutMS <= 0 {
		return fmt.Errorf("invalid realtime.handshake_timeout_ms %d: must be positive", cfg.Realtime.HandshakeTimeoutMS)
	}
	if cfg.Realtime.HeartbeatMS < 0 {
		return fmt.Errorf("invalid realtime.heartbeat_ms %d: must not be negative", cfg.Realtime.HeartbeatMS)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: host is required", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: scheme must be one of %s", field, raw, strings.Join(schemes, ", "))
}
