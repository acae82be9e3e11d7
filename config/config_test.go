package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/quorum-wallet/modules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, 2, cfg.Threshold)
	assert.Equal(t, 2*time.Minute, cfg.AttemptTimeout)
	assert.Equal(t, 300*time.Second, cfg.AutolockWindow())
	assert.Equal(t, 10, cfg.EventBuffer)
	assert.Len(t, cfg.Modules, 3)
	assert.Equal(t, []string{"file://" + filepath.Join(defaultDataDir, "store")}, cfg.StorageURIs())
	assert.Equal(t, modules.DefaultPINMinLength, cfg.Modules[1].MinLength)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "walletd.yaml", `
listen-addr: 0.0.0.0:9000
data-dir: /tmp/wallet
threshold: 3
attempt-timeout: 45s
autolock-seconds: 60
storage:
  - file:///tmp/wallet/store
  - s3://bucket/prefix?region=eu-west-1
modules:
  - id: pin
    type: pin
    max-length: 6
  - id: button
    type: button
    gpio-pin: 17
    press-window: 10s
    max-retry: 0
  - id: server
    type: server
    srv: _auth._tcp.example.com
  - id: totp
    type: totp
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.Threshold)
	assert.Equal(t, 45*time.Second, cfg.AttemptTimeout)
	assert.Equal(t, time.Minute, cfg.AutolockWindow())
	assert.Equal(t, []string{"file:///tmp/wallet/store", "s3://bucket/prefix?region=eu-west-1"}, cfg.StorageURIs())
	assert.Equal(t, "/tmp/wallet/state", cfg.StatePath())

	require.Len(t, cfg.Modules, 4)
	assert.Equal(t, 6, cfg.Modules[0].MaxLength)
	assert.Equal(t, 4, cfg.Modules[0].MinLength)
	assert.Equal(t, 17, cfg.Modules[1].GPIOPin)
	assert.Equal(t, 10*time.Second, cfg.Modules[1].PressWindow)
	require.NotNil(t, cfg.Modules[1].MaxRetry)
	assert.Equal(t, 0, *cfg.Modules[1].MaxRetry)
	assert.Equal(t, modules.DefaultSessionLength, cfg.Modules[2].SessionLength)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "walletd.yaml", "threshold: 2\n")
	t.Setenv("WALLET_THRESHOLD", "1")
	t.Setenv("WALLET_AUTOLOCK_SECONDS", "30")
	t.Setenv("WALLET_STORAGE", "file:///a,file:///b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Threshold)
	assert.Equal(t, 30, cfg.AutolockSeconds)
	assert.Equal(t, []string{"file:///a", "file:///b"}, cfg.Storage)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold above module count", "threshold: 4\n"},
		{"zero threshold", "threshold: 0\n"},
		{"negative autolock", "autolock-seconds: -1\n"},
		{"unknown module type", "modules:\n  - id: x\n    type: retina\n"},
		{"duplicate module", "threshold: 1\nmodules:\n  - id: a\n    type: pin\n  - id: a\n    type: totp\n"},
		{"server without address", "threshold: 1\nmodules:\n  - id: s\n    type: server\n"},
		{"short state key", "state-key: abcd\n"},
		{"state key not hex", "state-key: zz\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "walletd.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "WALLET_TEST_ENV_FILE=from-file\n")
	t.Setenv("WALLET_TEST_ENV_FILE", "")
	os.Unsetenv("WALLET_TEST_ENV_FILE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("WALLET_TEST_ENV_FILE"))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, LoadEnvFile(""))
}
