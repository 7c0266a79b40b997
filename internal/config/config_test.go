package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "PORT", "STORAGE", "TABLE_PREFIX", "DEBUG", "MONGO_DATABASE", "LOG_MAX_FILES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "dev_", cfg.TablePrefix)
	assert.Equal(t, "modelgate_dev", cfg.MongoDatabase)
	assert.Equal(t, 10, cfg.LogMaxFiles)
	assert.True(t, cfg.Debug)
}

func TestLoad_Environment(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantPrefix string
		wantDebug  bool
	}{
		{name: "prod", env: map[string]string{"ENVIRONMENT": "prod"}, wantPrefix: "prod_", wantDebug: false},
		{name: "test", env: map[string]string{"ENVIRONMENT": "test"}, wantPrefix: "test_", wantDebug: true},
		{name: "prefix override", env: map[string]string{"ENVIRONMENT": "prod", "TABLE_PREFIX": "x_", "DEBUG": "true"}, wantPrefix: "x_", wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"ENVIRONMENT", "TABLE_PREFIX", "DEBUG"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := Load()

			assert.Equal(t, tt.wantPrefix, cfg.TablePrefix)
			assert.Equal(t, tt.wantDebug, cfg.Debug)
		})
	}
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("LOG_MAX_FILES", "many")
	assert.Equal(t, 10, getEnvInt("LOG_MAX_FILES", 10))
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"modelgate-2024-01-01T00-00-00.log",
		"modelgate-2024-01-02T00-00-00.log",
		"modelgate-2024-01-03T00-00-00.log",
		"other.log",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}

	require.NoError(t, cleanupOldLogs(dir, 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"modelgate-2024-01-02T00-00-00.log",
		"modelgate-2024-01-03T00-00-00.log",
		"other.log",
	}, left)
}
