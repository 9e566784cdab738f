// Package config loads settings from a JSON config file with
// environment variable overrides.
package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Engine  EngineConfig
	Storage StorageConfig
	Docs    DocsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port           int
	MCPPort        int
	Token          string
	RateLimitRPS   float64
	RateLimitBurst int
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type EngineConfig struct {
	MaxRows         int
	QueryTimeout    string
	CacheTTL        string
	CacheMaxEntries int
	CacheErrors     bool
}

type StorageConfig struct {
	DataDir string
	Seed    bool
}

type DocsConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			MCPPort:        8081,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Engine: EngineConfig{
			MaxRows:         100,
			QueryTimeout:    "5s",
			CacheTTL:        "5m",
			CacheMaxEntries: 1000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Seed:    true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the config file at
// $XDG_CONFIG_HOME/adoptiq/config.json (or ~/.config/adoptiq) and
// applies ADOPTIQ_* environment overrides on top. A missing LLM API
// key is not an error; the engine falls back to template-only mode.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// QueryTimeout parses the configured query timeout, falling back to
// 5 seconds on a malformed value.
func (c Config) QueryTimeout() time.Duration {
	return parseDuration(c.Engine.QueryTimeout, 5*time.Second)
}

// CacheTTL parses the configured cache TTL, falling back to 5 minutes.
func (c Config) CacheTTL() time.Duration {
	return parseDuration(c.Engine.CacheTTL, 5*time.Minute)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
