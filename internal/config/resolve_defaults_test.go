package config

import (
	"os"
	"testing"
)

func unsetBuildEnv() {
	_ = os.Unsetenv("SALON_ASSISTANT_BUILD_TARGET")
	_ = os.Unsetenv("SALON_ASSISTANT_DB_DRIVER")
	_ = os.Unsetenv("SALON_ASSISTANT_VECTOR_STORE")
}

func TestResolveDefaultsCloud(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("SALON_ASSISTANT_BUILD_TARGET", "cloud")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.VectorStore != "pgvector" {
		t.Fatalf("unexpected mapping: %s %s", cfg.DBDriver, cfg.VectorStore)
	}
}

func TestResolveDefaultsLocal(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("SALON_ASSISTANT_BUILD_TARGET", "local")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.VectorStore != "chromem" {
		t.Fatalf("unexpected mapping for local: %s %s", cfg.DBDriver, cfg.VectorStore)
	}
}

func TestResolveDefaultsOverride(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("SALON_ASSISTANT_BUILD_TARGET", "local")
	_ = os.Setenv("SALON_ASSISTANT_DB_DRIVER", "postgres")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.VectorStore != "chromem" {
		t.Fatalf("override failed, got %s %s", cfg.DBDriver, cfg.VectorStore)
	}
}

func TestResolveDefaultsRejectsPgvectorOnSQLite(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("SALON_ASSISTANT_BUILD_TARGET", "local")
	_ = os.Setenv("SALON_ASSISTANT_VECTOR_STORE", "pgvector")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatalf("expected error for pgvector with sqlite")
	}
}

func TestResolveDefaultsUnknownTarget(t *testing.T) {
	cfg := &Config{BuildTarget: "mars", RateLimit: 1, RateWindowSeconds: 1, MaxMessageLength: 1}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error for unknown build target")
	}
}
