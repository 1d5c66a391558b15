// Package config loads the engine configuration from a YAML file, applying
// defaults for anything the file omits.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ChunkOptions configures chunk sizing for one content category. Sizes are
// measured in characters.
type ChunkOptions struct {
	TargetSize int `yaml:"target_size"`
	Overlap    int `yaml:"overlap"`
	Tolerance  int `yaml:"tolerance"`
}

// ChunkingConfig holds per-category chunking rules. Code and documentation
// carry separate targets rather than sharing one hard-coded value.
type ChunkingConfig struct {
	Code          ChunkOptions `yaml:"code"`
	Documentation ChunkOptions `yaml:"documentation"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider          string  `yaml:"provider"` // openai, jina, local
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	CacheSize         int     `yaml:"cache_size"`
}

// WalkerConfig configures file discovery.
type WalkerConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions,omitempty"`
	ExcludedDirs      []string `yaml:"excluded_dirs,omitempty"`
	IncludeHidden     bool     `yaml:"include_hidden"`
}

// Config is the root configuration.
type Config struct {
	DBPath   string         `yaml:"db_path"`
	Workers  int            `yaml:"workers"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Walker   WalkerConfig   `yaml:"walker"`
}

// Load reads a config from the given path. The file is overlaid on the
// defaults, so omitted fields keep their default values while explicit
// values, including zero overlap, are honored. A missing file yields
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

// LoadDefault tries ./semdex.yaml first, then ~/.config/semdex/config.yaml.
// If neither exists it returns defaults.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("semdex.yaml"); err == nil {
		return Load("semdex.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), nil
	}
	userPath := filepath.Join(home, ".config", "semdex", "config.yaml")
	if _, err := os.Stat(userPath); err == nil {
		return Load(userPath)
	}
	return Default(), nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Workers: runtime.NumCPU(),
		Chunking: ChunkingConfig{
			Code:          ChunkOptions{TargetSize: 1200, Overlap: 120, Tolerance: 300},
			Documentation: ChunkOptions{TargetSize: 1000, Overlap: 100, Tolerance: 250},
		},
		Embedder: EmbedderConfig{
			Provider:          "local",
			BatchSize:         50,
			RequestsPerSecond: 5.0,
			Burst:             10,
			TimeoutSecs:       30,
			CacheSize:         10000,
		},
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.DBPath = filepath.Join(home, ".semdex", "indices")
	} else {
		cfg.DBPath = ".semdex"
	}
	return cfg
}

// normalize repairs values that cannot work: non-positive sizes and counts
// fall back to their defaults, negative overlaps and tolerances clamp to
// zero. Explicit zero overlap and tolerance are valid and kept.
func normalize(cfg *Config) {
	def := Default()
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	normalizeOptions(&cfg.Chunking.Code, def.Chunking.Code)
	normalizeOptions(&cfg.Chunking.Documentation, def.Chunking.Documentation)
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = def.Embedder.Provider
	}
	if cfg.Embedder.BatchSize <= 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.Embedder.RequestsPerSecond <= 0 {
		cfg.Embedder.RequestsPerSecond = def.Embedder.RequestsPerSecond
	}
	if cfg.Embedder.Burst <= 0 {
		cfg.Embedder.Burst = def.Embedder.Burst
	}
	if cfg.Embedder.TimeoutSecs <= 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
	if cfg.Embedder.CacheSize <= 0 {
		cfg.Embedder.CacheSize = def.Embedder.CacheSize
	}
}

func normalizeOptions(opts *ChunkOptions, def ChunkOptions) {
	if opts.TargetSize <= 0 {
		opts.TargetSize = def.TargetSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
}
