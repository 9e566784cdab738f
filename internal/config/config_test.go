package config

import (
	"strconv"
	"testing"
	"time"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	data map[string]any
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string]any)}
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return "", true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case string:
		i, err := strconv.Atoi(val)
		return i, true, err
	}
	return 0, true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return nil
}
func (b *mapBackend) Delete(key string) error { delete(b.data, key); return nil }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.MaxRows != 100 {
		t.Errorf("Engine.MaxRows = %d, want 100", cfg.Engine.MaxRows)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %q, want openai", cfg.LLM.Provider)
	}
	if !cfg.Storage.Seed {
		t.Error("Storage.Seed should default to true")
	}
}

func TestBackendValues(t *testing.T) {
	b := newMapBackend()
	b.data["server.port"] = 9090
	b.data["llm.model"] = "gpt-4o"
	b.data["engine.cache_errors"] = "true"
	b.data["server.rate_limit_rps"] = "2.5"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model = %q, want gpt-4o", cfg.LLM.Model)
	}
	if !cfg.Engine.CacheErrors {
		t.Error("Engine.CacheErrors should be true")
	}
	if cfg.Server.RateLimitRPS != 2.5 {
		t.Errorf("Server.RateLimitRPS = %v, want 2.5", cfg.Server.RateLimitRPS)
	}
}

func TestEnvOverrides(t *testing.T) {
	b := newMapBackend()
	b.data["server.port"] = 9090

	t.Setenv("ADOPTIQ_SERVER_PORT", "7070")
	t.Setenv("ADOPTIQ_LLM_API_KEY", "sk-test")
	t.Setenv("ADOPTIQ_ENGINE_QUERY_TIMEOUT", "10s")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, env override should win over file", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("LLM.APIKey = %q, want sk-test", cfg.LLM.APIKey)
	}
	if cfg.QueryTimeout() != 10*time.Second {
		t.Errorf("QueryTimeout = %v, want 10s", cfg.QueryTimeout())
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := defaults()
	cfg.Engine.QueryTimeout = "not-a-duration"
	cfg.Engine.CacheTTL = ""

	if cfg.QueryTimeout() != 5*time.Second {
		t.Errorf("QueryTimeout = %v, want fallback 5s", cfg.QueryTimeout())
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want fallback 5m", cfg.CacheTTL())
	}
}

func TestGetMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "sk-secret"

	v, ok := Get(cfg, "llm.api_key")
	if !ok {
		t.Fatal("llm.api_key should be a known key")
	}
	if v != "********" {
		t.Errorf("secret value = %q, want masked", v)
	}

	v, ok = Get(cfg, "server.port")
	if !ok || v != "8080" {
		t.Errorf("server.port = %q, %v", v, ok)
	}

	if _, ok := Get(cfg, "nope.nope"); ok {
		t.Error("unknown key should not resolve")
	}
}

func TestSetValidatesType(t *testing.T) {
	b := newMapBackend()
	if err := Set(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := Set(b, "server.port", "9999"); err != nil {
		t.Errorf("setting valid port: %v", err)
	}
	if err := Set(b, "unknown.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}
