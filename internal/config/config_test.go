package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/turn-chat/internal/config"
	"github.com/omochice/turn-chat/internal/transport"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_OverridesBase(t *testing.T) {
	path := writeFile(t, `
port: 30020
handle: Hal
concurrent: 4
dial_timeout: 3s
log:
  level: debug
`)

	cfg, err := config.Load(path, config.DefaultServer())
	require.NoError(t, err)

	assert.Equal(t, 30020, cfg.Port)
	assert.Equal(t, "Hal", cfg.Handle)
	assert.Equal(t, 4, cfg.Concurrent)
	assert.Equal(t, 3*time.Second, cfg.DialTimeout.Duration)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, transport.TCP, cfg.Transport, "unset keys keep the base value")
	assert.True(t, cfg.WebSocket)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeFile(t, "dial_timeout: soon\n")

	_, err := config.Load(path, config.DefaultClient())
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), config.DefaultClient())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults", func(*config.Config) {}, false},
		{"ephemeral port", func(c *config.Config) { c.Port = 0 }, false},
		{"port too large", func(c *config.Config) { c.Port = 70000 }, true},
		{"negative port", func(c *config.Config) { c.Port = -1 }, true},
		{"websocket transport", func(c *config.Config) { c.Transport = transport.WebSocket }, false},
		{"unknown transport", func(c *config.Config) { c.Transport = "udp" }, true},
		{"handle too long", func(c *config.Config) { c.Handle = "averyverylonghandle" }, true},
		{"handle with separator", func(c *config.Config) { c.Handle = "a>b" }, true},
		{"negative concurrency", func(c *config.Config) { c.Concurrent = -2 }, true},
		{"zero message size", func(c *config.Config) { c.MaxMessageSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultServer()
			cfg.Port = 30020
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.Port = 30020
	assert.Equal(t, ":30020", cfg.Address())

	cfg.Host = "::1"
	assert.Equal(t, "[::1]:30020", cfg.Address())
}
