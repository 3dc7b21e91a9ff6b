package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanshika/tunetraits/internal/store"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Retry   RetryConfig   `yaml:"retry"`
	Session SessionConfig `yaml:"session"`
	Spotify SpotifyConfig `yaml:"spotify"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOriginsCSV string        `yaml:"allowed_origins"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend                string        `yaml:"backend"` // memory|mongo|neo4j|badger
	URI                    string        `yaml:"uri"`
	Database               string        `yaml:"database"`
	Collection             string        `yaml:"collection"`
	Username               string        `yaml:"username"`
	Password               string        `yaml:"password"`
	MaxConnections         int           `yaml:"max_connections"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout"`
	DataDir                string        `yaml:"data_dir"`
	InMemory               bool          `yaml:"in_memory"`
}

// RetryConfig is the fixed-delay retry applied to every store call.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// SessionConfig controls how long idle sessions live and whether an unknown
// identity may resume writing to its record.
type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	Resumable bool          `yaml:"resumable"`
}

// SpotifyConfig tunes snapshot collection.
type SpotifyConfig struct {
	FetchLimit       int    `yaml:"fetch_limit"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
	LocalTimeZone    string `yaml:"local_time_zone"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

const (
	defaultHost                   = "0.0.0.0"
	defaultPort                   = 8080
	defaultReadTimeout            = 10 * time.Second
	defaultWriteTimeout           = 15 * time.Second
	defaultIdleTimeout            = 60 * time.Second
	defaultShutdownTimeout        = 10 * time.Second
	defaultLoggingLevel           = "info"
	defaultLoggingFormat          = "text"
	defaultStoreBackend           = store.BackendMemory
	defaultStoreDatabase          = "PersonalityAndMusic"
	defaultStoreCollection        = "users"
	defaultStoreMaxConnections    = 10
	defaultServerSelectionTimeout = 5 * time.Second
	defaultRetryAttempts          = 3
	defaultRetryDelay             = 2 * time.Second
	defaultSessionTTL             = 2 * time.Hour
	defaultFetchLimit             = 50
	defaultFetchConcurrency       = 3
	defaultLocalTimeZone          = "Europe/Rome"
)

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            defaultHost,
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Store: StoreConfig{
			Backend:                defaultStoreBackend,
			Database:               defaultStoreDatabase,
			Collection:             defaultStoreCollection,
			MaxConnections:         defaultStoreMaxConnections,
			ServerSelectionTimeout: defaultServerSelectionTimeout,
		},
		Retry: RetryConfig{
			Attempts: defaultRetryAttempts,
			Delay:    defaultRetryDelay,
		},
		Session: SessionConfig{
			TTL: defaultSessionTTL,
		},
		Spotify: SpotifyConfig{
			FetchLimit:       defaultFetchLimit,
			FetchConcurrency: defaultFetchConcurrency,
			LocalTimeZone:    defaultLocalTimeZone,
		},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTP.Host = valueOrDefault("SERVER_HOST", cfg.HTTP.Host)
	cfg.HTTP.AllowedOriginsCSV = valueOrDefault("SERVER_ALLOWED_ORIGINS", cfg.HTTP.AllowedOriginsCSV)

	port, err := parsePort("SERVER_PORT", cfg.HTTP.Port)
	if err != nil {
		return err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"STORE_SERVER_SELECTION_TIMEOUT", &cfg.Store.ServerSelectionTimeout},
		{"RETRY_DELAY", &cfg.Retry.Delay},
		{"SESSION_TTL", &cfg.Session.TTL},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.dst); err != nil {
			return err
		}
	}

	cfg.Store.Backend = valueOrDefault("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.URI = valueOrDefault("STORE_URI", cfg.Store.URI)
	cfg.Store.Database = valueOrDefault("STORE_DATABASE", cfg.Store.Database)
	cfg.Store.Collection = valueOrDefault("STORE_COLLECTION", cfg.Store.Collection)
	cfg.Store.Username = valueOrDefault("STORE_USERNAME", cfg.Store.Username)
	cfg.Store.Password = valueOrDefault("STORE_PASSWORD", cfg.Store.Password)
	cfg.Store.MaxConnections = parseIntWithDefault("STORE_MAX_CONNECTIONS", cfg.Store.MaxConnections)
	cfg.Store.DataDir = valueOrDefault("STORE_DATA_DIR", cfg.Store.DataDir)
	cfg.Store.InMemory = parseBoolWithDefault("STORE_IN_MEMORY", cfg.Store.InMemory)

	cfg.Retry.Attempts = parseIntWithDefault("RETRY_ATTEMPTS", cfg.Retry.Attempts)
	cfg.Session.Resumable = parseBoolWithDefault("SESSION_RESUMABLE", cfg.Session.Resumable)

	cfg.Spotify.FetchLimit = parseIntWithDefault("SPOTIFY_FETCH_LIMIT", cfg.Spotify.FetchLimit)
	cfg.Spotify.FetchConcurrency = parseIntWithDefault("SPOTIFY_FETCH_CONCURRENCY", cfg.Spotify.FetchConcurrency)
	cfg.Spotify.LocalTimeZone = valueOrDefault("SPOTIFY_LOCAL_TIMEZONE", cfg.Spotify.LocalTimeZone)

	cfg.Logging.Level = valueOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = valueOrDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.IncludeCaller = parseBoolWithDefault("LOG_INCLUDE_CALLER", cfg.Logging.IncludeCaller)
	return nil
}

// Validate rejects combinations no backend can start with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendMemory:
	case store.BackendMongo, store.BackendNeo4j:
		if c.Store.URI == "" {
			return fmt.Errorf("store backend %s: %w", c.Store.Backend, store.ErrMissingURI)
		}
	case store.BackendBadger:
		if c.Store.DataDir == "" && !c.Store.InMemory {
			return errors.New("store backend badger requires STORE_DATA_DIR or STORE_IN_MEMORY")
		}
	default:
		return fmt.Errorf("%w: %q", store.ErrUnknownBackend, c.Store.Backend)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Spotify.FetchLimit < 1 || c.Spotify.FetchLimit > 50 {
		return fmt.Errorf("spotify fetch limit must be within 1..50, got %d", c.Spotify.FetchLimit)
	}
	return nil
}

// Options converts the store section into backend options.
func (c StoreConfig) Options() store.Options {
	return store.Options{
		Backend:                c.Backend,
		URI:                    c.URI,
		Database:               c.Database,
		Collection:             c.Collection,
		Username:               c.Username,
		Password:               c.Password,
		MaxConnections:         c.MaxConnections,
		ServerSelectionTimeout: c.ServerSelectionTimeout,
		DataDir:                c.DataDir,
		InMemory:               c.InMemory,
	}
}

// Policy converts the retry section into a store retry policy.
func (c RetryConfig) Policy() store.RetryPolicy {
	return store.RetryPolicy{Attempts: c.Attempts, Delay: c.Delay}
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
