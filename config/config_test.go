package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Linker.PoolLimit)
	assert.Equal(t, 0.5, cfg.Linker.LinkThreshold)
	assert.Equal(t, 0.55, cfg.Search.HighConfidenceSim)
	assert.Equal(t, 100, cfg.Ingest.DedupeScanLimit)
	assert.Equal(t, 3, cfg.Ingest.DedupeThreshold)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/unimemory
search:
  default_limit: 25
linker:
  link_threshold: 0.65
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, 0.65, cfg.Linker.LinkThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.Linker.PoolLimit)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: sqlite\n"), 0o600))

	t.Setenv("UNIMEMORY_DATABASE_DRIVER", "postgres")
	t.Setenv("UNIMEMORY_SEARCH_DEFAULT_LIMIT", "7")
	t.Setenv("UNIMEMORY_EMBEDDING_OPENAI_API_KEY", "sk-test")
	t.Setenv("UNIMEMORY_EXTRACTOR_ENABLED", "true")
	t.Setenv("UNIMEMORY_EMBEDDING_OPENAI_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Search.DefaultLimit)
	assert.Equal(t, "sk-test", cfg.Embedding.OpenAI.APIKey)
	assert.True(t, cfg.Extractor.Enabled)
	assert.Equal(t, "45s", cfg.Embedding.OpenAI.Timeout.String())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database driver"},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "magic" }, "embedding provider"},
		{"bad threshold", func(c *Config) { c.Linker.LinkThreshold = 1.5 }, "link_threshold"},
		{"bad decay", func(c *Config) { c.Expander.DecayFactor = -0.1 }, "decay_factor"},
		{"bad hamming", func(c *Config) { c.Ingest.DedupeThreshold = 70 }, "dedupe_threshold"},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "nonsense"})
	assert.Error(t, err)
}
