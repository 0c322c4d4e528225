package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLoad_DefaultsAndDurations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: abc
outbox:
  interval: 5s
recommendation:
  cache_ttl: 2m
  weights:
    skill_match: 40
`)

	cfg, err := Load("local", dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Outbox.Interval != 5*time.Second {
		t.Errorf("expected 5s interval, got %v", cfg.Outbox.Interval)
	}
	if cfg.Outbox.BatchSize != 100 {
		t.Errorf("expected default batch size, got %d", cfg.Outbox.BatchSize)
	}
	if cfg.Recommendation.CacheTTL != 2*time.Minute {
		t.Errorf("expected 2m cache ttl, got %v", cfg.Recommendation.CacheTTL)
	}
	if cfg.Recommendation.Weights.SkillMatch != 40 || cfg.Recommendation.Weights.HoursFar != 5 {
		t.Errorf("unexpected weights %+v", cfg.Recommendation.Weights)
	}
	if cfg.Recommendation.PageSize != 20 {
		t.Errorf("expected default page size 20, got %d", cfg.Recommendation.PageSize)
	}
	if cfg.TokenTTL() != 24*time.Hour {
		t.Errorf("expected 24h token ttl, got %v", cfg.TokenTTL())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", ":9090")

	cfg, err := Load("local", dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.JWT.Secret != "from-env" || cfg.Server.Port != ":9090" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.JWT, cfg.Server)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \":8080\"\n")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load("local", dir); err == nil {
		t.Error("expected error without jwt.secret")
	}
}

func TestLoad_UnresolvedPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: \"${JWT_SECRET}\"\n")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load("local", dir); err == nil {
		t.Error("expected error for unresolved secret placeholder")
	}
}
