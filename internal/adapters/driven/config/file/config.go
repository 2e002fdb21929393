package file

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a TOML-friendly time.Duration ("30s", "5m").
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration back to its string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the embedding application's configuration surface. Every value
// the core consumes is overridable here; nothing is hardcoded.
type Config struct {
	Verbose   bool            `toml:"verbose"`
	Transport TransportConfig `toml:"transport"`
	Cache     CacheConfig     `toml:"cache"`
	Sync      SyncConfig      `toml:"sync"`
	Databases DatabasesConfig `toml:"databases"`
}

// TransportConfig tunes the transport client.
type TransportConfig struct {
	// Mode selects routing: "direct" (development proxy) or "envelope"
	// (production serverless proxy).
	Mode              string   `toml:"mode"`
	BaseURL           string   `toml:"base_url"`
	Retries           int      `toml:"retries"`
	RetryDelay        Duration `toml:"retry_delay"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// CacheConfig tunes the record cache.
type CacheConfig struct {
	TTL Duration `toml:"ttl"`
}

// SyncConfig holds the feature flags and status timing.
type SyncConfig struct {
	OfflineQueue           bool     `toml:"offline_queue"`
	StatusSignal           bool     `toml:"status_signal"`
	RevertDelay            Duration `toml:"revert_delay"`
	ValidateCategoryCycles bool     `toml:"validate_category_cycles"`
}

// DatabasesConfig holds the remote database ids, one per collection.
type DatabasesConfig struct {
	Nodes      string `toml:"nodes"`
	Paths      string `toml:"paths"`
	NodePaths  string `toml:"node_paths"`
	Categories string `toml:"categories"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Transport: TransportConfig{
			Mode:              "direct",
			Retries:           3,
			RetryDelay:        Duration(time.Second),
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 3,
		},
		Cache: CacheConfig{TTL: Duration(5 * time.Minute)},
		Sync: SyncConfig{
			OfflineQueue: true,
			StatusSignal: true,
			RevertDelay:  Duration(2 * time.Second),
		},
	}
}

// Load reads a TOML config file over the defaults, applies environment
// overrides, and validates the result. A missing file is fine: defaults and
// environment alone can fully configure the core.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env and defaults
	default:
		return Config{}, err
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv layers process environment values over the file. The proxy URL
// routinely differs between environments, so it gets first-class variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ARBORSYNC_BASE_URL"); v != "" {
		cfg.Transport.BaseURL = v
	}
	if v := os.Getenv("ARBORSYNC_MODE"); v != "" {
		cfg.Transport.Mode = v
	}
	if v := os.Getenv("ARBORSYNC_DB_NODES"); v != "" {
		cfg.Databases.Nodes = v
	}
	if v := os.Getenv("ARBORSYNC_DB_PATHS"); v != "" {
		cfg.Databases.Paths = v
	}
	if v := os.Getenv("ARBORSYNC_DB_NODE_PATHS"); v != "" {
		cfg.Databases.NodePaths = v
	}
	if v := os.Getenv("ARBORSYNC_DB_CATEGORIES"); v != "" {
		cfg.Databases.Categories = v
	}
}

// Validate checks the config surface.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.Transport,
		validation.Field(&c.Transport.Mode, validation.Required, validation.In("direct", "envelope")),
		validation.Field(&c.Transport.BaseURL, validation.Required, is.RequestURL),
		validation.Field(&c.Transport.Retries, validation.Min(0), validation.Max(10)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Databases,
		validation.Field(&c.Databases.Nodes, validation.Required),
		validation.Field(&c.Databases.Paths, validation.Required),
		validation.Field(&c.Databases.NodePaths, validation.Required),
		validation.Field(&c.Databases.Categories, validation.Required),
	)
}
