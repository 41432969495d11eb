package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Primary.Kind)
	assert.Equal(t, "sqlite", cfg.Secondary.Kind)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.False(t, cfg.TruncateBeforeLoad)
	assert.Len(t, cfg.Datasets, 9)
	assert.Equal(t, "aggregated_insurance", cfg.Datasets[0].Name)
	assert.Equal(t, "top_user_by_pincode", cfg.Datasets[8].Name)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsedash.yaml")
	body := `
primary:
  kind: postgres
  dsn: postgres://cloud/neondb
secondary:
  kind: sqlite
  dsn: file:local.db
data_root: /srv/pulse/data
batch_size: 500
truncate_before_load: true
datasets:
  - name: aggregated_transactions
    source: aggregated/transaction/country/india/state
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://cloud/neondb", cfg.Primary.DSN)
	assert.Equal(t, "file:local.db", cfg.Secondary.DSN)
	assert.Equal(t, "/srv/pulse/data", cfg.DataRoot)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.True(t, cfg.TruncateBeforeLoad)
	require.Len(t, cfg.Datasets, 1)
	assert.Equal(t, "aggregated_transactions", cfg.Datasets[0].Name)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PULSEDASH_PRIMARY_DSN", "postgres://env-dsn")
	t.Setenv("PULSEDASH_BATCH_SIZE", "250")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-dsn", cfg.Primary.DSN)
	assert.Equal(t, 250, cfg.BatchSize)
}

func TestLoad_RejectsBadRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	body := `
datasets:
  - name: dup
    source: a
  - name: dup
    source: b
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate dataset")
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
