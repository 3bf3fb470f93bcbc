package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asaidimu/go-aggregate/core/aggregation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "go-aggregate", cfg.Name)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, LogConfig{Level: "info", Format: "console"}, cfg.Log)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "coll_", cfg.Store.SQLite.TablePrefix)
	assert.Equal(t, 10*time.Second, cfg.Store.Mongo.Timeout)
	assert.Equal(t, aggregation.TypeMismatchFail, cfg.Pipeline.Policy())
}

func TestLoadLayers(t *testing.T) {
	file := writeFile(t, "config.yml", `
environment: staging
log:
  level: debug
store:
  driver: sqlite
  sqlite:
    path: /tmp/students.db
pipeline:
  parallelism: 2
  type_mismatch: "null"
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(WithConfigFile(file))
		require.NoError(t, err)
		assert.Equal(t, "staging", cfg.Environment)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "sqlite", cfg.Store.Driver)
		assert.Equal(t, "/tmp/students.db", cfg.Store.SQLite.Path)
		assert.Equal(t, 2, cfg.Pipeline.Parallelism)
		assert.Equal(t, aggregation.TypeMismatchNull, cfg.Pipeline.Policy())
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		t.Setenv("AGGREGATE_STORE_SQLITE_PATH", ":memory:")
		t.Setenv("AGGREGATE_LOG_FORMAT", "json")
		cfg, err := Load(WithConfigFile(file))
		require.NoError(t, err)
		assert.Equal(t, ":memory:", cfg.Store.SQLite.Path)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("env file", func(t *testing.T) {
		envFile := writeFile(t, ".env", "AGGREGATE_PIPELINE_PARALLELISM=8\n")
		t.Cleanup(func() { os.Unsetenv("AGGREGATE_PIPELINE_PARALLELISM") })

		cfg, err := Load(WithConfigFile(file), WithEnvFile(envFile))
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Pipeline.Parallelism)
	})
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yml")))
		assert.Error(t, err)
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := Load(WithEnvFile(filepath.Join(t.TempDir(), ".env")))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("AGGREGATE_STORE_DRIVER", "postgres")
		_, err := Load()
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("negative parallelism", func(t *testing.T) {
		t.Setenv("AGGREGATE_PIPELINE_PARALLELISM", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("mongo needs a uri", func(t *testing.T) {
		t.Setenv("AGGREGATE_STORE_DRIVER", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "store.mongo.uri")
	})
}
