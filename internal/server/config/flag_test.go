package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:8081", "-m", "127.0.0.1:9091", "-d", "db", "-s", "secret", "-x", "memory",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"-k", "redis:6379", "-q", "stream", "-z", "8", "-n", "4", "-w", "3", "-l", "debug",
			},
			expected: &Config{
				EndpointAddrHTTP:  "127.0.0.1:8081",
				EndpointAddrGRPC:  "127.0.0.1:9091",
				DatabaseDSN:       "db",
				SecretKey:         "secret",
				AttachmentBackend: "memory",
				S3RootUser:        "user",
				S3RootPassword:    "password",
				S3Bucket:          "bucket",
				S3Region:          "us-west-1",
				S3BaseEndpoint:    "http://endpoint",
				RedisAddr:         "redis:6379",
				SearchStream:      "stream",
				MaxUploadSize:     8 << 20,
				MaxPhotos:         4,
				ShutdownTimeout:   3 * time.Second,
				LogLevel:          "debug",
			},
		},
		{
			name:        "bad integer",
			args:        []string{"cmd", "-z", "lots"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_KeepsExistingValues(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd", "-d", "other-db"}

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, "other-db", c.DatabaseDSN)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, int64(32<<20), c.MaxUploadSize)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
}
