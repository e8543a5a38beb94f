package config

import (
	"bytes"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 2*time.Minute, cfg.LockTTL)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log_level: debug
store:
  backend: redis
  ttl: 24h
  redis:
    address: redis:6379
    db: 3
openai:
  task_models:
    intent: gpt-4o-mini
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Address)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.TaskModels["intent"])

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o644))

	t.Setenv("PALGRAPH_LISTEN", ":7777")
	t.Setenv("PALGRAPH_STORE", "file")
	t.Setenv("PALGRAPH_STORE_PATH", "/var/lib/palgraph")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PALGRAPH_LOCK_TTL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Listen)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/palgraph", cfg.Store.Path)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, 45*time.Second, cfg.LockTTL)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("PALGRAPH_STORE", "postgres")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("PALGRAPH_LOG_LEVEL", "loud")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_EncryptionKey(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("k"), 32))
	t.Setenv("PALGRAPH_STORE_ENCRYPTION_KEY", key)

	cfg, err := Load("")
	require.NoError(t, err)

	decoded, err := cfg.Store.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
}

func TestLoad_RejectsShortEncryptionKey(t *testing.T) {
	t.Setenv("PALGRAPH_STORE_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestLoad_RejectsBadPIIPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  pii_patterns: [\"(unclosed\"]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pii pattern")
}
