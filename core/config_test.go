package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvConfigLoader_MapsNestedKeysWithTypes(t *testing.T) {
	t.Setenv("COMMUNITY_SERVICE_NAME", "guild")
	t.Setenv("COMMUNITY_HTTP__ADDR", ":9999")
	t.Setenv("COMMUNITY_HTTP__CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("COMMUNITY_HTTP__RATE_LIMIT_RPS", "2.5")
	t.Setenv("COMMUNITY_WEBHOOKS__MAX_ATTEMPTS", "5")
	t.Setenv("COMMUNITY_DATABASE__AUTO_MIGRATE", "true")
	t.Setenv("COMMUNITY_UNKNOWN__KEY", "ignored")
	t.Setenv("OTHER_HTTP__ADDR", ":1")

	loader := NewEnvConfigLoader()
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	cfg, err := NewCfgxConfigProvider(mapRawLoader{values: raw}).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	if cfg.ServiceName != "guild" || cfg.HTTP.Addr != ":9999" {
		t.Fatalf("unexpected scalar values: %+v", cfg)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins: %#v", cfg.HTTP.CORSOrigins)
	}
	if cfg.HTTP.RateLimitRPS != 2.5 || cfg.Webhooks.MaxAttempts != 5 || !cfg.Database.AutoMigrate {
		t.Fatalf("expected typed values, got %+v", cfg)
	}
	if _, ok := raw["unknown"]; ok {
		t.Fatalf("expected unknown keys to be skipped")
	}
}

func TestEnvConfigLoader_RejectsBadNumbers(t *testing.T) {
	t.Setenv("COMMUNITY_WEBHOOKS__MAX_ATTEMPTS", "many")
	loader := EnvConfigLoader{Prefix: "community_"}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected coercion error")
	}
}

func TestChainConfigLoader_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "community.yaml")
	content := "service_name: from-file\nwebhooks:\n  max_attempts: 3\n  initial_backoff: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COMMUNITY_WEBHOOKS__MAX_ATTEMPTS", "6")
	chain := ChainConfigLoader{
		FileConfigLoader{Path: path},
		NewEnvConfigLoader(),
	}
	cfg, err := NewCfgxConfigProvider(chain).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "from-file" {
		t.Fatalf("expected file value, got %q", cfg.ServiceName)
	}
	if cfg.Webhooks.MaxAttempts != 6 {
		t.Fatalf("expected env override, got %d", cfg.Webhooks.MaxAttempts)
	}
	if cfg.Webhooks.InitialBackoffDuration() != 2*time.Second {
		t.Fatalf("expected file backoff, got %s", cfg.Webhooks.InitialBackoffDuration())
	}
}

func TestFileConfigLoader_ReadsJSONDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "community.json")
	if err := os.WriteFile(path, []byte(`{"logs":{"retention_days":14},"http":{"addr":":7001"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := NewCfgxConfigProvider(FileConfigLoader{Path: path}).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logs.RetentionDays != 14 || cfg.HTTP.Addr != ":7001" {
		t.Fatalf("unexpected json values: %+v / %+v", cfg.Logs, cfg.HTTP)
	}
	if _, err := (FileConfigLoader{Path: filepath.Join(t.TempDir(), "absent.yaml")}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected required missing file to fail")
	}
}

func TestFileConfigLoader_OptionalMissingFile(t *testing.T) {
	loader := FileConfigLoader{Path: filepath.Join(t.TempDir(), "missing.yaml"), Optional: true}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty layer, got %#v / %v", raw, err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.SigningKey = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected short signing key to fail")
	}
	cfg = DefaultConfig()
	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
	if DefaultConfig().Validate() != nil {
		t.Fatalf("expected defaults to validate")
	}
	if got := (DatabaseConfig{Driver: "pg"}).DatabaseDialect(); got != "postgres" {
		t.Fatalf("expected postgres dialect, got %q", got)
	}
}
