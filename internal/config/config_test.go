package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Endpoints() != ledger.DefaultEndpoints() {
		t.Fatalf("default endpoints mismatch")
	}
	if !cfg.UsesCompressed() {
		t.Fatalf("compressed path is the default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file is not an error: %v", err)
	}
	if cfg.MaxActions != 6 {
		t.Fatalf("defaults must survive a missing file")
	}
}

func TestLoadMergesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := []byte(`
rollupRpc: https://devnet-eu.magicblock.app
maxActions: 4
gameSessionTtl: 10m
preferCompressed: false
`)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RollupRPC != "https://devnet-eu.magicblock.app" {
		t.Fatalf("file value must win over default: %q", cfg.RollupRPC)
	}
	if cfg.BaseRPC != ledger.BaseRPC {
		t.Fatalf("unset file field must keep the default")
	}
	if cfg.MaxActions != 4 || cfg.GameSessionTTL != 10*time.Minute {
		t.Fatalf("merged values mismatch: %+v", cfg)
	}
	if cfg.UsesCompressed() {
		t.Fatalf("explicit preferCompressed false must stick")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("maxActions: 4\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROULETTE_MAX_ACTIONS", "2")
	t.Setenv("ROULETTE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxActions != 2 {
		t.Fatalf("env must win over file: %d", cfg.MaxActions)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("env override missing: %q", cfg.LogLevel)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed config must be rejected")
	}
}

func TestValidateRejectsBadValidator(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Validator = "not-a-key"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("bad validator key must be rejected")
	}
}
