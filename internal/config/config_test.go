package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:8000/generate_meme", cfg.Generator.Endpoint())
	assert.Equal(t, 20, cfg.Catalog.Limit)
	assert.Equal(t, "generated-meme.jpg", cfg.Download.Filename)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
generator:
  base_url: "https://memes.example.com/"
  path: "generate_meme"
  timeout: 45s
catalog:
  limit: 5
storage:
  type: disk
  data_dir: /tmp/meme
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://memes.example.com/generate_meme", cfg.Generator.Endpoint())
	assert.Equal(t, 45*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, 5, cfg.Catalog.Limit)
	assert.Equal(t, "disk", cfg.Storage.Type)
	assert.Equal(t, "/tmp/meme", cfg.Storage.DataDir)
	// 未出现在文件中的键仍然有默认值
	assert.Equal(t, "https://api.imgflip.com/get_memes", cfg.Catalog.URL)
}

func TestLoadEnvOverridesGeneratorBaseURL(t *testing.T) {
	t.Setenv("MEME_GENERATOR_BASE_URL", "https://prod.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://prod.example.com/generate_meme", cfg.Generator.Endpoint())
}

// 只有设置过默认值的键才会被 AutomaticEnv 带入 Unmarshal
func TestLoadEnvOverridesKeysWithoutFileEntry(t *testing.T) {
	t.Setenv("MEME_STORAGE_REDIS_DB", "3")
	t.Setenv("MEME_CORS_ALLOW_CREDENTIALS", "true")
	t.Setenv("MEME_CORS_EXPOSED_HEADERS", "Content-Disposition")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Storage.RedisDB)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, []string{"Content-Disposition"}, cfg.CORS.ExposedHeaders)
}

func TestLoadLegacyEnvName(t *testing.T) {
	t.Setenv("GENERATOR_BASE_URL", "http://10.0.0.2:8000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8000", cfg.Generator.BaseURL)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
