package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-rdf/rdf/planner"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts := cfg.StorageOptions()
	assert.Equal(t, DefaultPath, opts.Store.Path)
	assert.False(t, opts.Store.InMemory)
	assert.Equal(t, uint64(storage.DefaultIDBatchSize), opts.IDBatchSize)
	assert.Equal(t, int64(storage.DefaultNodeCacheSize), opts.NodeCacheSize)
	assert.Positive(t, opts.RegistrationWorkers)

	popts := cfg.OptimizerOptions()
	assert.Equal(t, planner.DefaultMaxRounds, popts.MaxRounds)
	assert.False(t, popts.EnableGlobalPreconditions)
	assert.NotNil(t, popts.Cache)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
storage:
  in_memory: true
  sync_writes: true
ids:
  batch_size: 64
cache:
  node_cache_size: 500
  plan_cache_size: 0
commit:
  registration_workers: 2
optimizer:
  global_preconditions: true
  max_rounds: 3
output:
  verbose: true
  color: never
`))
	require.NoError(t, err)

	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, DefaultPath, cfg.Storage.Path, "unset keys keep defaults")
	assert.True(t, cfg.Output.Verbose)
	assert.Equal(t, ColorNever, cfg.Output.Color)

	opts := cfg.StorageOptions()
	assert.True(t, opts.Store.InMemory)
	assert.True(t, opts.Store.SyncWrites)
	assert.Equal(t, uint64(64), opts.IDBatchSize)
	assert.Equal(t, int64(500), opts.NodeCacheSize)
	assert.Equal(t, 2, opts.RegistrationWorkers)

	popts := cfg.OptimizerOptions()
	assert.True(t, popts.EnableGlobalPreconditions)
	assert.Equal(t, 3, popts.MaxRounds)
	assert.Nil(t, popts.Cache)
}

func TestParseDuration(t *testing.T) {
	cfg, err := Parse([]byte("cache:\n  plan_cache_ttl: 90s\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.PlanCacheTTL)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "storage:\n  flavour: vanilla\n",
		"not yaml":         "storage: [",
		"zero batch":       "ids:\n  batch_size: 0\n",
		"negative workers": "commit:\n  registration_workers: -1\n",
		"bad color":        "output:\n  color: sometimes\n",
		"zero rounds":      "optimizer:\n  max_rounds: 0\n",
		"no path":          "storage:\n  path: \"\"\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.IDs.BatchSize = 0
	cfg.Cache.NodeCacheSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ids.batch_size")
	assert.Contains(t, err.Error(), "cache.node_cache_size")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdfstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: /var/lib/rdf\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/rdf", cfg.StorageOptions().Store.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
