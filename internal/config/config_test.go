package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/larkwiot/shelf/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaults(t *testing.T) {
	conf, err := config.Parse(`
[google]
enable = true
`)
	require.NoError(t, err)

	assert.True(t, conf.Google.Enable)
	assert.False(t, conf.OpenLibrary.Enable)
	assert.Equal(t, "https://www.googleapis.com/books/v1/volumes", conf.Google.Url)
	assert.Equal(t, 1500*time.Millisecond, conf.Google.Interval())
	assert.Equal(t, 10*time.Second, conf.HttpTimeout())
	assert.Equal(t, 5*time.Second, conf.CoverTimeout())
	assert.Equal(t, config.CacheBackendBolt, conf.Cache.Backend)
	assert.NotEmpty(t, conf.Cache.Path)
	assert.Equal(t, "info", conf.Log.Level)
	assert.Equal(t, uint(10000), conf.Advanced.MaxCharactersToSearchForIsbn)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	conf, err := config.Parse(`
[openlibrary]
enable = true
url = "http://localhost:9000"
milliseconds_per_request = 10

[cover]
probe = true
timeout_ms = 250

[cache]
backend = "redis"
redis_addr = "cache:6379"
redis_db = 2

[advanced]
parallel_sources = true
`)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", conf.OpenLibrary.Url)
	assert.Equal(t, 10*time.Millisecond, conf.OpenLibrary.Interval())
	assert.True(t, conf.Cover.Probe)
	assert.Equal(t, 250*time.Millisecond, conf.CoverTimeout())
	assert.Equal(t, "cache:6379", conf.Cache.RedisAddr)
	assert.Equal(t, 2, conf.Cache.RedisDB)
	assert.True(t, conf.Advanced.ParallelSources)
}

func TestValidateRequiresASource(t *testing.T) {
	_, err := config.Parse(`[cover]
probe = true`)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownCacheBackend(t *testing.T) {
	_, err := config.Parse(`
[amazon]
enable = true
[cache]
backend = "memcached"
`)
	assert.ErrorContains(t, err, "cache.backend")
}

func TestValidateRequiresTikaHost(t *testing.T) {
	_, err := config.Parse(`
[google]
enable = true
[tika]
enable = true
`)
	assert.ErrorContains(t, err, "tika.host")
}

func TestNewConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelf.toml")
	require.NoError(t, os.WriteFile(path, []byte("[amazon]\nenable = true\n[tika]\nenable = true\nhost = \"tika\"\n"), 0o644))

	conf, err := config.NewConfig(path)
	require.NoError(t, err)
	assert.True(t, conf.Amazon.Enable)
	assert.Equal(t, 9998, conf.Tika.Port)

	_, err = config.NewConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	conf := config.Default()
	assert.True(t, conf.OpenLibrary.Enable)
	assert.True(t, conf.Google.Enable)
	assert.True(t, conf.Amazon.Enable)
	assert.True(t, conf.Cover.Probe)
}
