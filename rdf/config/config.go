// Package config loads store and optimizer settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-rdf/rdf/planner"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

// Config is the root of an rdfstore configuration file
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	IDs       IDConfig        `yaml:"ids"`
	Cache     CacheConfig     `yaml:"cache"`
	Commit    CommitConfig    `yaml:"commit"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Output    OutputConfig    `yaml:"output"`
}

// StorageConfig maps onto storage.StoreOptions. Zero sizes keep the
// badger defaults.
type StorageConfig struct {
	Path           string `yaml:"path"`
	InMemory       bool   `yaml:"in_memory"`
	SyncWrites     bool   `yaml:"sync_writes"`
	MemTableSize   int64  `yaml:"mem_table_size"`
	BlockCacheSize int64  `yaml:"block_cache_size"`
	IndexCacheSize int64  `yaml:"index_cache_size"`
	NumCompactors  int    `yaml:"num_compactors"`
	ValueThreshold int64  `yaml:"value_threshold"`
}

// IDConfig controls ID leasing
type IDConfig struct {
	BatchSize uint64 `yaml:"batch_size"`
}

// CacheConfig sizes the in-memory caches
type CacheConfig struct {
	NodeCacheSize int64         `yaml:"node_cache_size"`
	PlanCacheSize int           `yaml:"plan_cache_size"` // 0 disables the plan cache
	PlanCacheTTL  time.Duration `yaml:"plan_cache_ttl"`
}

// CommitConfig controls commit parallelism
type CommitConfig struct {
	RegistrationWorkers int `yaml:"registration_workers"` // 0 = runtime.NumCPU()
}

// OptimizerConfig maps onto planner.Options
type OptimizerConfig struct {
	GlobalPreconditions bool `yaml:"global_preconditions"`
	MaxRounds           int  `yaml:"max_rounds"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool   `yaml:"verbose"`
	Color   string `yaml:"color"` // auto, always or never
}

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// DefaultPath is the database directory used when none is configured
const DefaultPath = "rdfstore.db"

// Default returns the configuration used when no file is given
func Default() Config {
	store := storage.DefaultStoreOptions(DefaultPath)
	return Config{
		Storage: StorageConfig{
			Path:           store.Path,
			MemTableSize:   store.MemTableSize,
			BlockCacheSize: store.BlockCacheSize,
			IndexCacheSize: store.IndexCacheSize,
			NumCompactors:  store.NumCompactors,
			ValueThreshold: store.ValueThreshold,
		},
		IDs: IDConfig{
			BatchSize: storage.DefaultIDBatchSize,
		},
		Cache: CacheConfig{
			NodeCacheSize: storage.DefaultNodeCacheSize,
			PlanCacheSize: 1000,
			PlanCacheTTL:  5 * time.Minute,
		},
		Optimizer: OptimizerConfig{
			MaxRounds: planner.DefaultMaxRounds,
		},
		Output: OutputConfig{
			Color: ColorAuto,
		},
	}
}

// Load reads and validates a configuration file. Settings missing from
// the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Storage.InMemory || c.Storage.Path != "", "storage.path is required unless storage.in_memory is set")
	check(c.Storage.MemTableSize >= 0, "storage.mem_table_size must not be negative")
	check(c.Storage.BlockCacheSize >= 0, "storage.block_cache_size must not be negative")
	check(c.Storage.IndexCacheSize >= 0, "storage.index_cache_size must not be negative")
	check(c.Storage.NumCompactors >= 0, "storage.num_compactors must not be negative")
	check(c.Storage.ValueThreshold >= 0, "storage.value_threshold must not be negative")
	check(c.IDs.BatchSize > 0, "ids.batch_size must be positive")
	check(c.Cache.NodeCacheSize > 0, "cache.node_cache_size must be positive")
	check(c.Cache.PlanCacheSize >= 0, "cache.plan_cache_size must not be negative")
	check(c.Cache.PlanCacheTTL >= 0, "cache.plan_cache_ttl must not be negative")
	check(c.Commit.RegistrationWorkers >= 0, "commit.registration_workers must not be negative")
	check(c.Optimizer.MaxRounds > 0, "optimizer.max_rounds must be positive")
	switch c.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("output.color must be %s, %s or %s, got %q",
			ColorAuto, ColorAlways, ColorNever, c.Output.Color))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// StorageOptions builds database options. Metrics and event handlers
// are left for the caller to attach.
func (c Config) StorageOptions() storage.Options {
	opts := storage.DefaultOptions(c.Storage.Path)
	if c.Storage.InMemory {
		opts = storage.InMemoryOptions()
	}

	opts.Store.SyncWrites = c.Storage.SyncWrites
	opts.Store.MemTableSize = c.Storage.MemTableSize
	opts.Store.BlockCacheSize = c.Storage.BlockCacheSize
	opts.Store.IndexCacheSize = c.Storage.IndexCacheSize
	opts.Store.NumCompactors = c.Storage.NumCompactors
	opts.Store.ValueThreshold = c.Storage.ValueThreshold
	opts.IDBatchSize = c.IDs.BatchSize
	opts.NodeCacheSize = c.Cache.NodeCacheSize
	if c.Commit.RegistrationWorkers > 0 {
		opts.RegistrationWorkers = c.Commit.RegistrationWorkers
	}
	return opts
}

// OptimizerOptions builds planner options, with a fresh plan cache when
// one is configured
func (c Config) OptimizerOptions() planner.Options {
	opts := planner.DefaultOptions()
	opts.EnableGlobalPreconditions = c.Optimizer.GlobalPreconditions
	opts.MaxRounds = c.Optimizer.MaxRounds
	if c.Cache.PlanCacheSize > 0 {
		opts.Cache = planner.NewPlanCache(c.Cache.PlanCacheSize, c.Cache.PlanCacheTTL)
	}
	return opts
}
