package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.inboxsync/config.toml.
type Config struct {
	DefaultSession string         `toml:"default_session"`
	API            APIConfig      `toml:"api"`
	Cache          CacheConfig    `toml:"cache"`
	Query          QueryConfig    `toml:"query"`
	Identity       IdentityConfig `toml:"identity"`
	Log            LogConfig      `toml:"log"`
}

// APIConfig describes the remote source of truth.
type APIConfig struct {
	BaseURL           string   `toml:"base_url"`
	RealtimeURL       string   `toml:"realtime_url"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

type CacheConfig struct {
	TTL Duration `toml:"ttl"`
}

type QueryConfig struct {
	SearchDebounce  Duration `toml:"search_debounce"`
	PageLimit       int      `toml:"page_limit"`
	RefetchInterval Duration `toml:"refetch_interval"`
}

type IdentityConfig struct {
	// URLPattern extracts a profile identifier from a participant URL.
	// The first capture group is used.
	URLPattern string `toml:"url_pattern"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a Go duration string ("300ms", "5m").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Timeout:           Duration{15 * time.Second},
			RequestsPerSecond: 10,
		},
		Cache: CacheConfig{TTL: Duration{5 * time.Minute}},
		Query: QueryConfig{
			SearchDebounce: Duration{300 * time.Millisecond},
			PageLimit:      20,
		},
		Identity: IdentityConfig{
			URLPattern: `/(?:in|company|profile|u)/([^/?#]+)`,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Token returns the bearer token from the environment, if any.
func Token() string {
	return os.Getenv("INBOXSYNC_TOKEN")
}
