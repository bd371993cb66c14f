package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
	kList
)

func (t keyType) String() string {
	switch t {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kDuration:
		return "duration"
	case kList:
		return "comma-separated list"
	}
	return "string"
}

type keySpec struct {
	key string
	typ keyType
	env string
	// legacyEnv is consulted when env is unset.
	legacyEnv string
	secret    bool
	apply     func(cfg *Config, v any)
	extract   func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NONREV_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "NONREV_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "server.cors_origins", typ: kList, env: "NONREV_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Server.CORSOrigins, ",") },
	},
	{
		key: "log.level", typ: kString, env: "NONREV_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.driver", typ: kString, env: "NONREV_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NONREV_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.dsn", typ: kString, env: "NONREV_STORAGE_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DSN },
	},
	{
		key: "cache.backend", typ: kString, env: "NONREV_CACHE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Cache.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Backend },
	},
	{
		key: "cache.freshness_window", typ: kDuration, env: "NONREV_CACHE_FRESHNESS_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Cache.FreshnessWindow = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.FreshnessWindow },
	},
	{
		key: "cache.redis_addr", typ: kString, env: "NONREV_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisAddr },
	},
	{
		key: "cache.redis_password", typ: kString, env: "NONREV_REDIS_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisPassword = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisPassword },
	},
	{
		key: "cache.redis_db", typ: kInt, env: "NONREV_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisDB = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.RedisDB },
	},
	{
		key: "cache.redis_retention", typ: kDuration, env: "NONREV_REDIS_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisRetention = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.RedisRetention },
	},
	{
		key: "cache.purge_after", typ: kDuration, env: "NONREV_CACHE_PURGE_AFTER",
		apply:   func(cfg *Config, v any) { cfg.Cache.PurgeAfter = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.PurgeAfter },
	},
	{
		key: "cache.purge_interval", typ: kDuration, env: "NONREV_CACHE_PURGE_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Cache.PurgeInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.PurgeInterval },
	},
	{
		key: "upstream.base_url", typ: kString, env: "NONREV_UPSTREAM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Upstream.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.BaseURL },
	},
	{
		key: "upstream.access_key", typ: kString, env: "NONREV_AVIATIONSTACK_KEY", legacyEnv: "AVIATIONSTACK_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Upstream.AccessKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.AccessKey },
	},
	{
		key: "upstream.timeout", typ: kDuration, env: "NONREV_UPSTREAM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Upstream.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Upstream.Timeout },
	},
	{
		key: "upstream.page_limit", typ: kInt, env: "NONREV_UPSTREAM_PAGE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Upstream.PageLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Upstream.PageLimit },
	},
	{
		key: "upstream.max_pages", typ: kInt, env: "NONREV_UPSTREAM_MAX_PAGES",
		apply:   func(cfg *Config, v any) { cfg.Upstream.MaxPages = v.(int) },
		extract: func(cfg Config) any { return cfg.Upstream.MaxPages },
	},
	{
		key: "search.preferred_carriers", typ: kList, env: "NONREV_PREFERRED_CARRIERS",
		apply:   func(cfg *Config, v any) { cfg.Search.PreferredCarriers = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Search.PreferredCarriers, ",") },
	},
	{
		key: "seats.seed_placeholders", typ: kBool, env: "NONREV_SEATS_SEED_PLACEHOLDERS",
		apply:   func(cfg *Config, v any) { cfg.Seats.SeedPlaceholders = v.(bool) },
		extract: func(cfg Config) any { return cfg.Seats.SeedPlaceholders },
	},
	{
		key: "seats.stale_after", typ: kDuration, env: "NONREV_SEATS_STALE_AFTER",
		apply:   func(cfg *Config, v any) { cfg.Seats.StaleAfter = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Seats.StaleAfter },
	},
	{
		key: "events.amqp_url", typ: kString, env: "NONREV_AMQP_URL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Events.AMQPURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.AMQPURL },
	},
	{
		key: "events.queue", typ: kString, env: "NONREV_EVENTS_QUEUE",
		apply:   func(cfg *Config, v any) { cfg.Events.Queue = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.Queue },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts raw text into the Go value apply expects for this key.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative duration %s", d)
		}
		return d, nil
	case kList:
		return splitList(raw), nil
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", s.typ, s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name := s.env
		raw := os.Getenv(name)
		if raw == "" && s.legacyEnv != "" {
			name = s.legacyEnv
			raw = os.Getenv(name)
		}
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typ, name, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
