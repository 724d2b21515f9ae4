package paperfeed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.HasStore())
	assert.Equal(t, ":3001", cfg.Server.Addr)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paperfeed.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/paperfeed
cache:
  feed_ttl: 10m
ai:
  embedding_host: http://embed:8080
  embedding_model: nomic-embed-text
arxiv:
  categories: [cs.CL]
`), 0o600))

	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/paperfeed", cfg.DataDir)
	assert.True(t, cfg.HasStore())
	assert.Equal(t, 10*time.Minute, cfg.Cache.FeedTTL)
	assert.Equal(t, DefaultConfig().Cache.QueryTTL, cfg.Cache.QueryTTL)
	assert.Equal(t, "http://embed:8080/v1", cfg.AI.EmbeddingHost)
	assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
	assert.Equal(t, []string{"cs.CL"}, cfg.Arxiv.Categories)
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yml")

	cfg, err := LoadConfig(missing, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(missing, false)
	require.Error(t, err)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [unterminated"), 0o600))

	_, err := LoadConfig(path, false)
	require.Error(t, err)
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enrich.BatchSize = 0
	cfg.Server.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "server.addr")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAPERFEED_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("PAPERFEED_TEST_VALUE", "")
	os.Unsetenv("PAPERFEED_TEST_VALUE")

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("PAPERFEED_TEST_VALUE"))
}
