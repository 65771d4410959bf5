package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryledger/internal/filestore"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filestore.DefaultConfig(), cfg.FileStore())
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.SeedDemo)
	assert.Empty(t, cfg.OTELEndpoint)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LIBRARY_DATA_DIR", "/var/lib/library")
	t.Setenv("LIBRARY_LOANS_FILE", "loans.txt")
	t.Setenv("LIBRARY_STORAGE", "Postgres")
	t.Setenv("LIBRARY_SEED_DEMO", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LIBRARY_WRITE_RATE_PER_MIN", "0")
	t.Setenv("OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/library", cfg.FileStore().Dir)
	assert.Equal(t, "loans.txt", cfg.FileStore().LoansFile)
	assert.Equal(t, "Adherents.txt", cfg.FileStore().MembersFile)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.False(t, cfg.SeedDemo)
	assert.Equal(t, 0, cfg.WriteRatePerMinute)
	assert.Equal(t, "http://collector:4318", cfg.OTELEndpoint)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad burst", "LIBRARY_WRITE_BURST", "lots", "parse env:"},
		{"bad storage", "LIBRARY_STORAGE", "s3", "unknown storage"},
		{"negative rate", "LIBRARY_WRITE_RATE_PER_MIN", "-5", "must not be negative"},
		{"bad level", "LOG_LEVEL", "loud", "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
