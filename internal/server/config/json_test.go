package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http": "www.example:8080",
		"database_dsn":       "enquiries.db",
		"secret_key":         "my_secret_key",
		"attachment_backend": "memory",
		"s3_bucket":          "bucket",
		"redis_addr":         "redis:6379",
		"search_queue_size":  16,
		"max_upload_size":    1024,
		"max_photos":         3,
		"shutdown_timeout":   "3s",
		"role_permissions":   map[string][]string{"clerk": {"read"}},
	})

	t.Run("loads from json flag", func(t *testing.T) {
		t.Setenv("CONFIG", "")
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:8080", cfg.EndpointAddrHTTP)
		assert.Equal(t, "enquiries.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, AttachmentBackendMemory, cfg.AttachmentBackend)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 16, cfg.SearchQueueSize)
		assert.Equal(t, int64(1024), cfg.MaxUploadSize)
		assert.Equal(t, 3, cfg.MaxPhotos)
		assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, map[string][]string{"clerk": {"read"}}, cfg.RolePermissions)

		// untouched keys keep defaults
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.Equal(t, "enquiries:search", cfg.SearchStream)
	})

	t.Run("loads from CONFIG env", func(t *testing.T) {
		t.Setenv("CONFIG", pathFlag)
		os.Args = []string{"testbin"}

		cfg := &Config{}
		parseJson(cfg)
		assert.Equal(t, "enquiries.db", cfg.DatabaseDSN)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		t.Setenv("CONFIG", "")
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP: "defaults:1234",
			DatabaseDSN:      "enquiries.db",
			SecretKey:        "key",
			ShutdownTimeout:  2 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "enquiries.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.ShutdownTimeout)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		t.Setenv("CONFIG", "")
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		t.Setenv("CONFIG", "")
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
