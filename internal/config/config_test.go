package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithLocalStorage(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", t.TempDir())
	t.Setenv("DATABASE_TYPE", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "docflow", cfg.AppName)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.False(t, cfg.Vertex.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
}

func TestLoadRejectsUnknownStorageProvider(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "ftp")
	t.Setenv("STORAGE_BUCKET", "docs")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresBucketForCloudStorage(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("STORAGE_BUCKET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestExtractionConfigHolderDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewExtractionConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, []string{"vendor_name", "invoice_number"}, cfg.RequiredKeys)
	assert.Equal(t, 1000, cfg.PreviewLength)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestExtractionConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`extraction:
  requiredKeys: [" Vendor_Name ", "invoice_number", "total_amount", "vendor_name"]
  previewLength: 200
  timeout: 15s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extraction.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewExtractionConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, []string{"vendor_name", "invoice_number", "total_amount"}, cfg.RequiredKeys)
	assert.Equal(t, 200, cfg.PreviewLength)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, int32(2000), cfg.MaxOutputTokens)
}

func TestNilExtractionConfigHolderFallsBackToDefaults(t *testing.T) {
	var holder *ExtractionConfigHolder
	assert.Equal(t, DefaultExtractionConfig(), holder.Get())
}

func TestLoadIngestDefaultsAndOverrides(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", t.TempDir())
	t.Setenv("SNOWFLAKE_NODE_ID", "7")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("INGEST_RATE_PER_SECOND", "0.5")
	t.Setenv("INGEST_RATE_BURST", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.NodeID)
	assert.Equal(t, int64(2048), cfg.Ingest.MaxUploadBytes)
	assert.Equal(t, 0.5, cfg.Limits.IngestRate)
	assert.Equal(t, 3, cfg.Limits.IngestBurst)
	assert.True(t, cfg.Limits.Enabled())
}

func TestLoadRejectsOutOfRangeNodeID(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", t.TempDir())
	t.Setenv("SNOWFLAKE_NODE_ID", "4096")

	_, err := Load()
	assert.Error(t, err)
}

func TestRateLimitDisabledWithZeroBurst(t *testing.T) {
	assert.False(t, RateLimitConfig{IngestRate: 2}.Enabled())
}
