package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("TANGLE_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("TANGLE_DATA_DIR", "")
	t.Setenv("TANGLE_GRAPH_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.GraphBackend != BackendSQLite {
		t.Errorf("want default backend sqlite, got %s", cfg.GraphBackend)
	}
	if cfg.Port != "8080" {
		t.Errorf("want default port 8080, got %s", cfg.Port)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv("TANGLE_CONFIG", path)
	t.Setenv("TANGLE_GRAPH_BACKEND", "")

	cfg := Default()
	cfg.DataDir = "/tmp/tangle-test"
	cfg.GraphBackend = BackendMemory
	if err := Save(cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("reloading config: %v", err)
	}
	if loaded.DataDir != "/tmp/tangle-test" || loaded.GraphBackend != BackendMemory {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TANGLE_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("TANGLE_GRAPH_BACKEND", BackendNeo4j)
	t.Setenv("NEO4J_URI", "bolt://graph.internal:7687")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.GraphBackend != BackendNeo4j {
		t.Errorf("env backend override ignored: %s", cfg.GraphBackend)
	}
	if cfg.Neo4jURI != "bolt://graph.internal:7687" {
		t.Errorf("env uri override ignored: %s", cfg.Neo4jURI)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("TANGLE_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("TANGLE_GRAPH_BACKEND", "etcd")

	if _, err := Load(); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data/tangle"}
	if cfg.NotesPath() != filepath.Join("/data/tangle", "notes.db") {
		t.Errorf("wrong notes path: %s", cfg.NotesPath())
	}
	if cfg.GraphPath() != filepath.Join("/data/tangle", "graph.db") {
		t.Errorf("wrong graph path: %s", cfg.GraphPath())
	}
}
