package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ADOPTIQ_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "ADOPTIQ_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.token", typ: kString, env: "ADOPTIQ_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "server.rate_limit_rps", typ: kFloat, env: "ADOPTIQ_SERVER_RATE_LIMIT_RPS",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimitRPS = v.(float64) },
		extract: func(cfg Config) any { return cfg.Server.RateLimitRPS },
	},
	{
		key: "server.rate_limit_burst", typ: kInt, env: "ADOPTIQ_SERVER_RATE_LIMIT_BURST",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimitBurst = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimitBurst },
	},
	{
		key: "llm.provider", typ: kString, env: "ADOPTIQ_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.api_key", typ: kString, env: "ADOPTIQ_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "ADOPTIQ_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.base_url", typ: kString, env: "ADOPTIQ_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "engine.max_rows", typ: kInt, env: "ADOPTIQ_ENGINE_MAX_ROWS",
		apply:   func(cfg *Config, v any) { cfg.Engine.MaxRows = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.MaxRows },
	},
	{
		key: "engine.query_timeout", typ: kString, env: "ADOPTIQ_ENGINE_QUERY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Engine.QueryTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.QueryTimeout },
	},
	{
		key: "engine.cache_ttl", typ: kString, env: "ADOPTIQ_ENGINE_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Engine.CacheTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.CacheTTL },
	},
	{
		key: "engine.cache_max_entries", typ: kInt, env: "ADOPTIQ_ENGINE_CACHE_MAX_ENTRIES",
		apply:   func(cfg *Config, v any) { cfg.Engine.CacheMaxEntries = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.CacheMaxEntries },
	},
	{
		key: "engine.cache_errors", typ: kBool, env: "ADOPTIQ_ENGINE_CACHE_ERRORS",
		apply:   func(cfg *Config, v any) { cfg.Engine.CacheErrors = v.(bool) },
		extract: func(cfg Config) any { return cfg.Engine.CacheErrors },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ADOPTIQ_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.seed", typ: kBool, env: "ADOPTIQ_STORAGE_SEED",
		apply:   func(cfg *Config, v any) { cfg.Storage.Seed = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.Seed },
	},
	{
		key: "docs.dir", typ: kString, env: "ADOPTIQ_DOCS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Docs.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Docs.Dir },
	},
	{
		key: "log.level", typ: kString, env: "ADOPTIQ_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// KV is one setting for display.
type KV struct {
	Key   string
	Value string
}

// ShowAll returns every setting with its display value, secrets
// masked, in declaration order.
func ShowAll(cfg Config) []KV {
	out := make([]KV, 0, len(specs))
	for _, s := range specs {
		v, _ := Get(cfg, s.key)
		out = append(out, KV{Key: s.key, Value: v})
	}
	return out
}

// SetKey writes one setting to the on-disk config file.
func SetKey(key, value string) error {
	return Set(newFileBackend(configFilePath()), key, value)
}

// Get returns the current value of a setting as a display string.
// Secrets are masked.
func Get(cfg Config, key string) (string, bool) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			if s.extract(cfg) == "" {
				return "", true
			}
			return "********", true
		}
		return fmt.Sprintf("%v", s.extract(cfg)), true
	}
	return "", false
}

// Set writes one setting to the backend by its dotted name.
func Set(b Backend, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		switch s.typ {
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s expects an integer: %w", key, err)
			}
			return b.SetInt(key, i)
		case kBool:
			if _, err := strconv.ParseBool(value); err != nil {
				return fmt.Errorf("%s expects a boolean: %w", key, err)
			}
			return b.SetString(key, value)
		case kFloat:
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return fmt.Errorf("%s expects a number: %w", key, err)
			}
			return b.SetString(key, value)
		default:
			return b.SetString(key, value)
		}
	}
	return fmt.Errorf("unknown config key %q", key)
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
