package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Search  SearchConfig  `toml:"search"`
	ADSB    ADSBConfig    `toml:"adsb"`
	Station StationConfig `toml:"station"`
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	CORSAllowedOrigins  []string `toml:"cors_allowed_origins"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// SearchConfig controls the closest-aircraft search
type SearchConfig struct {
	SettleSeconds       float64 `toml:"settle_seconds"`
	RadiusKm            float64 `toml:"radius_km"`
	FetchTimeoutSeconds int     `toml:"fetch_timeout_seconds"`
	HistoryLimit        int     `toml:"history_limit"`
}

// SettleInterval returns the settle window as a duration
func (s SearchConfig) SettleInterval() time.Duration {
	return time.Duration(s.SettleSeconds * float64(time.Second))
}

// FetchTimeout returns the hard deadline imposed on a single feed call
func (s SearchConfig) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSeconds) * time.Second
}

// ADSBConfig represents the aircraft feed configuration
type ADSBConfig struct {
	SourceType        string  `toml:"source_type"` // "local" or "external"
	LocalSourceURL    string  `toml:"local_source_url"`
	ExternalSourceURL string  `toml:"external_source_url"`
	APIHost           string  `toml:"api_host"`
	APIKey            string  `toml:"api_key"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxRadiusNM       float64 `toml:"max_radius_nm"`
}

// Timeout returns the HTTP client timeout
func (a ADSBConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// StationConfig describes a fixed position source, e.g. the receiver site
type StationConfig struct {
	Enabled         bool    `toml:"enabled"`
	Name            string  `toml:"name"`
	Latitude        float64 `toml:"latitude"`
	Longitude       float64 `toml:"longitude"`
	AccuracyM       float64 `toml:"accuracy_m"`
	IntervalSeconds float64 `toml:"interval_seconds"`
}

// Interval returns the station fix interval as a duration
func (s StationConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds * float64(time.Second))
}

// StorageConfig represents the sqlite storage configuration
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// APIKeyEnv overrides adsb.api_key when set
const APIKeyEnv = "SUPERPLANE_ADSB_API_KEY"

// Default returns the configuration used for any key the file leaves out
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  32,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Search: SearchConfig{
			SettleSeconds:       2,
			RadiusKm:            5,
			FetchTimeoutSeconds: 15,
			HistoryLimit:        50,
		},
		ADSB: ADSBConfig{
			SourceType:        "external",
			LocalSourceURL:    "http://localhost:8080/data/aircraft.json",
			ExternalSourceURL: "https://public-api.adsbexchange.com/VirtualRadar/AircraftList.json",
			TimeoutSeconds:    10,
			RequestsPerSecond: 1,
			MaxRadiusNM:       250,
		},
		Station: StationConfig{
			Name:            "station",
			AccuracyM:       50,
			IntervalSeconds: 1,
		},
		Storage: StorageConfig{
			SQLitePath: "superplane.db",
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config key: %s", undecoded[0].String())
		}
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.ADSB.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the services cannot work with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Search.SettleSeconds < 0 {
		errs = append(errs, fmt.Errorf("search.settle_seconds must not be negative"))
	}
	if c.Search.RadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("search.radius_km must be positive"))
	}
	switch c.ADSB.SourceType {
	case "local":
		if c.ADSB.LocalSourceURL == "" {
			errs = append(errs, fmt.Errorf("adsb.local_source_url is required for local source"))
		}
	case "external":
		if c.ADSB.ExternalSourceURL == "" {
			errs = append(errs, fmt.Errorf("adsb.external_source_url is required for external source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown adsb.source_type: %q", c.ADSB.SourceType))
	}
	if c.Station.Enabled {
		if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
			errs = append(errs, fmt.Errorf("station.latitude out of range: %v", c.Station.Latitude))
		}
		if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
			errs = append(errs, fmt.Errorf("station.longitude out of range: %v", c.Station.Longitude))
		}
		if c.Station.AccuracyM < 0 {
			errs = append(errs, fmt.Errorf("station.accuracy_m must not be negative"))
		}
	}

	return errors.Join(errs...)
}
