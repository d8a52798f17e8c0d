package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syloe1/lightDb/pkg/compression"
	"github.com/syloe1/lightDb/pkg/index"
	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/storage"
)

// Config is the process configuration
type Config struct {
	Log        LogConfig        `yaml:"log"`
	BufferPool BufferPoolConfig `yaml:"buffer_pool"`
	Index      IndexConfig      `yaml:"index"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
}

// LogConfig configures the process-wide logger
type LogConfig struct {
	Level string `yaml:"level"`
}

// BufferPoolConfig configures every buffer pool the catalog creates
type BufferPoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// IndexConfig configures newly created B+tree indexes
type IndexConfig struct {
	Order int `yaml:"order"`
}

// SnapshotConfig configures table snapshot export
type SnapshotConfig struct {
	Codec string `yaml:"codec"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log:        LogConfig{Level: "info"},
		BufferPool: BufferPoolConfig{Capacity: storage.DefaultPoolCapacity},
		Index:      IndexConfig{Order: index.DefaultOrder},
		Snapshot:   SnapshotConfig{Codec: "zstd"},
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.BufferPool.Capacity <= 0 {
		return fmt.Errorf("buffer_pool.capacity must be positive, got %d", c.BufferPool.Capacity)
	}
	if c.Index.Order < 4 {
		return fmt.Errorf("index.order must be at least 4, got %d", c.Index.Order)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := compression.ParseAlgorithm(c.Snapshot.Codec); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}

// SnapshotAlgorithm returns the parsed snapshot codec
func (c *Config) SnapshotAlgorithm() compression.Algorithm {
	algorithm, _ := compression.ParseAlgorithm(c.Snapshot.Codec)
	return algorithm
}
