package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Upstream UpstreamConfig
	Search   SearchConfig
	Seats    SeatsConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port int
	// APIToken, when set, is required as a bearer token on the seat routes.
	APIToken    string
	CORSOrigins []string
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	Driver  string // sqlite or postgres
	DataDir string
	DSN     string
}

type CacheConfig struct {
	Backend         string // sql or redis
	FreshnessWindow time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisRetention  time.Duration

	// PurgeAfter is the age at which SQL cache entries are deleted; zero disables purging.
	PurgeAfter    time.Duration
	PurgeInterval time.Duration
}

type UpstreamConfig struct {
	BaseURL   string
	AccessKey string
	Timeout   time.Duration
	PageLimit int
	MaxPages  int
}

type SearchConfig struct {
	PreferredCarriers []string
}

type SeatsConfig struct {
	SeedPlaceholders bool
	StaleAfter       time.Duration
}

type EventsConfig struct {
	AMQPURL string
	Queue   string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			Backend:         "sql",
			FreshnessWindow: 24 * time.Hour,
			RedisRetention:  48 * time.Hour,
			PurgeAfter:      7 * 24 * time.Hour,
			PurgeInterval:   time.Hour,
		},
		Upstream: UpstreamConfig{
			BaseURL:   "http://api.aviationstack.com/v1",
			Timeout:   10 * time.Second,
			PageLimit: 100,
			MaxPages:  5,
		},
		Seats: SeatsConfig{
			SeedPlaceholders: true,
			StaleAfter:       24 * time.Hour,
		},
		Events: EventsConfig{
			Queue: "flight.seats.updated",
		},
	}
}

// Load reads configuration in increasing precedence: built-in defaults, the
// JSON file at $XDG_CONFIG_HOME/nonrev/config.json, then NONREV_* environment
// variables. A .env file in the working directory is loaded into the
// environment first without overriding variables that are already set.
// Secrets that are still empty are read from the secrets file.
//
// Load does not require the upstream key; commands that call the provider
// check it with Validate.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(newFileBackend(ConfigFilePath()), secretsFile{path: SecretsFilePath()})
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	return cfg, nil
}

// Validate checks the settings needed to serve or search. Error messages
// name the offending key and never include secret values.
func (c Config) Validate() error {
	var errs []error
	if c.Upstream.AccessKey == "" {
		errs = append(errs, errors.New("missing required config: aviationstack access key. "+
			"Set NONREV_AVIATIONSTACK_KEY or run `nonrev config set upstream.access_key <key>`"))
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir must not be empty"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required when storage.driver is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver))
	}
	switch c.Cache.Backend {
	case "sql":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required when cache.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be sql or redis, got %q", c.Cache.Backend))
	}
	if c.Cache.FreshnessWindow <= 0 {
		errs = append(errs, fmt.Errorf("cache.freshness_window must be positive, got %s", c.Cache.FreshnessWindow))
	}
	if c.Cache.PurgeAfter > 0 && c.Cache.PurgeAfter < c.Cache.FreshnessWindow {
		errs = append(errs, fmt.Errorf("cache.purge_after (%s) must not be shorter than cache.freshness_window (%s)",
			c.Cache.PurgeAfter, c.Cache.FreshnessWindow))
	}
	if c.Cache.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("cache.redis_db must not be negative, got %d", c.Cache.RedisDB))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout))
	}
	if c.Upstream.PageLimit < 1 || c.Upstream.PageLimit > 100 {
		errs = append(errs, fmt.Errorf("upstream.page_limit must be between 1 and 100, got %d", c.Upstream.PageLimit))
	}
	if c.Upstream.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("upstream.max_pages must be at least 1, got %d", c.Upstream.MaxPages))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
