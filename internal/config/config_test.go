package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PARKREP_CONFIG",
	"PARKREP_REPLAY_DIR",
	"PARKREP_DESYNC_DIR",
	"PARKREP_CHECKSUM_INTERVAL",
	"PARKREP_SILENT_CHECKSUM_INTERVAL",
	"PARKREP_COMPRESSION_LEVEL",
	"PARKREP_ASYNC_WRITES",
	"PARKREP_NETWORK_ENABLED",
	"PARKREP_TICK_RATE",
	"PARKREP_RETENTION_MAX_AGE",
	"PARKREP_ALLOWED_ORIGINS",
	"PARKREP_GRPC_SERVER_CERT",
	"PARKREP_GRPC_SERVER_KEY",
	"PARKREP_GRPC_CLIENT_CA",
	"PARKREP_WS_AUTH_SECRET",
	"PARKREP_ADMIN_TOKEN",
	"PARKREP_ADMIN_RATE_LIMIT",
	"HOME",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	//1.- Point HOME at an empty directory so a developer's config never leaks in.
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ReplayDir != DefaultReplayDir || cfg.DesyncDir != DefaultDesyncDir {
		t.Fatalf("unexpected directories: %q %q", cfg.ReplayDir, cfg.DesyncDir)
	}
	if cfg.ChecksumInterval != 1 || cfg.SilentChecksumInterval != 40 {
		t.Fatalf("unexpected checksum intervals %d/%d", cfg.ChecksumInterval, cfg.SilentChecksumInterval)
	}
	if !cfg.NetworkEnabled {
		t.Fatalf("network should be enabled by default")
	}
	if cfg.Retention.MaxReplays != DefaultRetentionMaxReplays {
		t.Fatalf("expected default retention %d, got %d", DefaultRetentionMaxReplays, cfg.Retention.MaxReplays)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARKREP_REPLAY_DIR", "/tmp/replays")
	t.Setenv("PARKREP_CHECKSUM_INTERVAL", "5")
	t.Setenv("PARKREP_ASYNC_WRITES", "true")
	t.Setenv("PARKREP_NETWORK_ENABLED", "false")
	t.Setenv("PARKREP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PARKREP_ADMIN_TOKEN", "letmein")
	t.Setenv("PARKREP_ADMIN_RATE_LIMIT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ReplayDir != "/tmp/replays" || cfg.ChecksumInterval != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.AsyncWrites || cfg.NetworkEnabled {
		t.Fatalf("boolean overrides not applied: async=%v network=%v", cfg.AsyncWrites, cfg.NetworkEnabled)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %#v", cfg.AllowedOrigins)
	}
	if cfg.AdminToken != "letmein" || cfg.AdminRateLimit != 2 {
		t.Fatalf("admin overrides not applied: %q %d", cfg.AdminToken, cfg.AdminRateLimit)
	}
}

func TestLoadYAMLThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "parkrep.yaml")
	doc := "replay_dir: /srv/replays\nsilent_checksum_interval: 80\nretention:\n  max_age: 48h\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PARKREP_CONFIG", path)
	t.Setenv("PARKREP_REPLAY_DIR", "/override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ReplayDir != "/override" {
		t.Fatalf("environment should win over the file, got %q", cfg.ReplayDir)
	}
	if cfg.SilentChecksumInterval != 80 || cfg.Retention.MaxAge != 48*time.Hour || cfg.Logging.Level != "debug" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("unset file keys should keep defaults, got %d", cfg.Logging.MaxSizeMB)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARKREP_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARKREP_CHECKSUM_INTERVAL", "0")
	t.Setenv("PARKREP_COMPRESSION_LEVEL", "99")
	t.Setenv("PARKREP_TICK_RATE", "fast")
	t.Setenv("PARKREP_ADMIN_RATE_LIMIT", "-1")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, key := range []string{"PARKREP_CHECKSUM_INTERVAL", "PARKREP_COMPRESSION_LEVEL", "PARKREP_TICK_RATE", "PARKREP_ADMIN_RATE_LIMIT"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to mention %s, got %v", key, err)
		}
	}
}

func TestLoadRejectsPartialMTLS(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARKREP_GRPC_SERVER_CERT", "server.pem")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "mTLS") {
		t.Fatalf("expected partial mTLS settings to fail, got %v", err)
	}

	t.Setenv("PARKREP_GRPC_SERVER_KEY", "server.key")
	t.Setenv("PARKREP_GRPC_CLIENT_CA", "ca.pem")
	t.Setenv("PARKREP_WS_AUTH_SECRET", "hub-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.GRPCClientCAPath != "ca.pem" || cfg.WebSocketAuthSecret != "hub-secret" {
		t.Fatalf("unexpected security settings: %+v", cfg)
	}
}
