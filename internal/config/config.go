// Package config loads Hibikidō's YAML configuration tree: the mongodb
// (document store), embedding, osc (transport), search and orchestrator
// sections described in spec.md §6.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete Hibikidō configuration.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	MongoDB      MongoDBConfig      `yaml:"mongodb"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	OSC          OSCConfig          `yaml:"osc"`
	Search       SearchConfig       `yaml:"search"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// MongoDBConfig names the document store connection. See DESIGN.md's
// "Open Questions resolved" entry: URI is a local sqlite DSN/path, not an
// actual MongoDB connection string — no Mongo driver exists in the
// retrieved pack to ground a real client on.
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// EmbeddingConfig selects the embedding provider and its persisted index.
type EmbeddingConfig struct {
	ModelName string `yaml:"model_name"`
	IndexFile string `yaml:"index_file"`
}

// OSCConfig configures the address/argument control transport.
type OSCConfig struct {
	ListenIP   string `yaml:"listen_ip"`
	ListenPort int    `yaml:"listen_port"`
	SendIP     string `yaml:"send_ip"`
	SendPort   int    `yaml:"send_port"`
}

// SearchConfig configures retrieval defaults.
type SearchConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// OrchestratorConfig configures the Chōwasha admission policy.
type OrchestratorConfig struct {
	OverlapThreshold  float64 `yaml:"overlap_threshold"`
	TickIntervalSecs  float64 `yaml:"time_precision"`
	MaxAdmitsPerTick  int     `yaml:"max_admits_per_tick"`
	DefaultDurationS  float64 `yaml:"default_duration_seconds"`
	DefaultFreqLowHz  float64 `yaml:"default_freq_low"`
	DefaultFreqHighHz float64 `yaml:"default_freq_high"`
}

// Default returns the configuration with every §4.6/§6 default applied.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		MongoDB: MongoDBConfig{
			URI:      "./data/hibikido.db",
			Database: "hibikido",
		},
		Embedding: EmbeddingConfig{
			ModelName: "static-384",
			IndexFile: "./data/hibikido.index",
		},
		OSC: OSCConfig{
			ListenIP:   "127.0.0.1",
			ListenPort: 9000,
			SendIP:     "127.0.0.1",
			SendPort:   9001,
		},
		Search: SearchConfig{
			TopK:     10,
			MinScore: 0.0,
		},
		Orchestrator: OrchestratorConfig{
			OverlapThreshold:  0.2,
			TickIntervalSecs:  0.1,
			MaxAdmitsPerTick:  5,
			DefaultDurationS:  1.0,
			DefaultFreqLowHz:  200,
			DefaultFreqHighHz: 2000,
		},
	}
}

// Load reads and merges a YAML config file over the defaults. path == ""
// returns the defaults unchanged, matching the CLI's optional --config flag.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configuration values that would make the system
// misbehave silently rather than failing at startup.
func (c *Config) Validate() error {
	if c.Orchestrator.OverlapThreshold <= 0 || c.Orchestrator.OverlapThreshold > 1 {
		return fmt.Errorf("orchestrator.overlap_threshold must be in (0, 1], got %v", c.Orchestrator.OverlapThreshold)
	}
	if c.Orchestrator.TickIntervalSecs <= 0 {
		return fmt.Errorf("orchestrator.time_precision must be > 0, got %v", c.Orchestrator.TickIntervalSecs)
	}
	if c.Orchestrator.MaxAdmitsPerTick <= 0 {
		return fmt.Errorf("orchestrator.max_admits_per_tick must be > 0, got %v", c.Orchestrator.MaxAdmitsPerTick)
	}
	if c.OSC.ListenPort <= 0 || c.OSC.SendPort <= 0 {
		return fmt.Errorf("osc listen_port and send_port must be positive")
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must be >= 0, got %v", c.Search.TopK)
	}
	return nil
}
