// Package config manages the tangle configuration file and its environment
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Graph backend names accepted in configuration.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendNeo4j  = "neo4j"
)

// Config holds the full tangle configuration.
type Config struct {
	DataDir      string `json:"data_dir"`
	GraphBackend string `json:"graph_backend"`
	Port         string `json:"port"`

	Neo4jURI      string `json:"neo4j_uri,omitempty"`
	Neo4jUser     string `json:"neo4j_user,omitempty"`
	Neo4jPassword string `json:"neo4j_password,omitempty"`
	Neo4jDatabase string `json:"neo4j_database,omitempty"`
}

// NotesPath returns the note database path under the data directory.
func (c *Config) NotesPath() string {
	return filepath.Join(c.DataDir, "notes.db")
}

// GraphPath returns the graph database path under the data directory.
func (c *Config) GraphPath() string {
	return filepath.Join(c.DataDir, "graph.db")
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case BackendSQLite, BackendMemory, BackendNeo4j:
		return nil
	default:
		return fmt.Errorf("unknown graph backend %q", c.GraphBackend)
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:       filepath.Join(home, ".local", "share", "tangle"),
		GraphBackend:  BackendSQLite,
		Port:          "8080",
		Neo4jURI:      "bolt://localhost:7687",
		Neo4jUser:     "neo4j",
		Neo4jDatabase: "neo4j",
	}
}

// Path returns the config file location, honoring TANGLE_CONFIG.
func Path() string {
	if p := os.Getenv("TANGLE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting home directory: %v\n", err)
		os.Exit(1)
	}
	return filepath.Join(home, ".config", "tangle", "config.json")
}

// Load reads the config file, falling back to defaults when it does not
// exist, then applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path())
	switch {
	case os.IsNotExist(err):
		// No file is fine; defaults plus environment apply.
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for _, override := range []struct {
		env string
		dst *string
	}{
		{"TANGLE_DATA_DIR", &cfg.DataDir},
		{"TANGLE_GRAPH_BACKEND", &cfg.GraphBackend},
		{"TANGLE_PORT", &cfg.Port},
		{"NEO4J_URI", &cfg.Neo4jURI},
		{"NEO4J_USER", &cfg.Neo4jUser},
		{"NEO4J_PASSWORD", &cfg.Neo4jPassword},
		{"NEO4J_DATABASE", &cfg.Neo4jDatabase},
	} {
		if v := os.Getenv(override.env); v != "" {
			*override.dst = v
		}
	}
}

// Save writes the configuration to the config file, creating parent
// directories as needed.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
