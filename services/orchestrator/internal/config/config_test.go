package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tdrlane/pkg/domain"
)

func TestLoadFromPathMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	body := []byte("port: 9100\nstoreMode: postgres\ndbUrl: postgres://localhost/tdr\ncomputeTimeout: 5s\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadFromPath(path)
	if cfg.Port != 9100 || cfg.StoreMode != "postgres" || cfg.DBURL != "postgres://localhost/tdr" {
		t.Fatalf("merge failed: %+v", cfg)
	}
	if cfg.ComputeTimeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.ComputeTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.RateRPS != Default().RateRPS {
		t.Fatalf("default rateRps lost: %+v", cfg)
	}
}

func TestLoadFromPathMissingFileFallsBack(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	if err := os.WriteFile(path, []byte("port: 9100\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TDR_PORT", "9200")
	t.Setenv("TDR_COMPUTE_TIMEOUT", "2s")

	cfg := LoadFromPath(path)
	if cfg.Port != 9200 {
		t.Fatalf("env override lost: %+v", cfg)
	}
	if cfg.ComputeTimeout != 2*time.Second {
		t.Fatalf("env timeout lost: %+v", cfg)
	}
}

func TestLoadCatalogMergesWorkflowFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflows.yaml")
	body := []byte(`workflows:
  CLEARLAND:
    hasRounds: true
    hasAsk: true
    roleBasedAccess: true
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	caps, ok := catalog.Lookup(domain.WorkflowClearland)
	if !ok {
		t.Fatal("clearland missing")
	}
	if caps.HasValuer || caps.HasQuote {
		t.Fatalf("file entry must replace the built-in clearland row: %+v", caps)
	}
	if !caps.HasAsk || !caps.HasRounds {
		t.Fatalf("parsed caps wrong: %+v", caps)
	}
	// Workflows absent from the file keep their built-in capabilities.
	if caps, _ := catalog.Lookup(domain.WorkflowSaleable); !caps.HasSettlement {
		t.Fatal("saleable defaults lost")
	}
}

func TestLoadCatalogMissingFileUsesBuiltins(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := catalog.Lookup(domain.WorkflowSlum); !ok {
		t.Fatal("builtin catalog missing slum")
	}
}
