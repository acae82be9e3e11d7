// Package config loads the daemon configuration from file, environment and
// an optional .env file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/ruteri/quorum-wallet/modules"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "WALLET"

	defaultListenAddr      = "127.0.0.1:8080"
	defaultMetricsAddr     = "127.0.0.1:8090"
	defaultDataDir         = "/var/lib/quorum-wallet"
	defaultThreshold       = 2
	defaultAttemptTimeout  = 2 * time.Minute
	defaultAutolockSeconds = 300
	defaultEventBuffer     = 10
)

type Config struct {
	ListenAddr  string `mapstructure:"listen-addr"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	EnablePprof bool   `mapstructure:"pprof"`

	// DataDir holds the local state database and the default file store.
	DataDir string `mapstructure:"data-dir"`
	// StateKey optionally encrypts the local state database, hex encoded
	// 16, 24 or 32 bytes.
	StateKey string `mapstructure:"state-key"`
	// Storage lists manifest storage locations. The local file store under
	// DataDir is used when empty.
	Storage []string `mapstructure:"storage"`

	// Threshold is the default number of modules required by a restore.
	Threshold       int           `mapstructure:"threshold"`
	AttemptTimeout  time.Duration `mapstructure:"attempt-timeout"`
	AutolockSeconds int           `mapstructure:"autolock-seconds"`
	EventBuffer     int           `mapstructure:"event-buffer"`

	// NATSURL enables mirroring of events to NATS when set.
	NATSURL string `mapstructure:"nats-url"`

	Modules []modules.Config `mapstructure:"modules"`
}

// DefaultModules is the factor set used when the configuration names none.
func DefaultModules() []modules.Config {
	return []modules.Config{
		{ID: "button", Type: modules.TypeButton},
		{ID: "pin", Type: modules.TypePIN},
		{ID: "totp", Type: modules.TypeTOTP},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen-addr", defaultListenAddr)
	v.SetDefault("metrics-addr", defaultMetricsAddr)
	v.SetDefault("pprof", false)
	v.SetDefault("data-dir", defaultDataDir)
	v.SetDefault("state-key", "")
	v.SetDefault("storage", []string{})
	v.SetDefault("threshold", defaultThreshold)
	v.SetDefault("attempt-timeout", defaultAttemptTimeout)
	v.SetDefault("autolock-seconds", defaultAutolockSeconds)
	v.SetDefault("event-buffer", defaultEventBuffer)
	v.SetDefault("nats-url", "")
}

// Load reads the configuration. path may be empty, in which case walletd.*
// is looked up in the working directory and /etc/quorum-wallet; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("walletd")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quorum-wallet/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("viper read config: %w", err)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Modules) == 0 {
		cfg.Modules = DefaultModules()
	}
	for i := range cfg.Modules {
		cfg.Modules[i].ApplyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data-dir is required")
	}
	if c.Threshold < 1 || c.Threshold > len(c.Modules) {
		return fmt.Errorf("threshold %d must be between 1 and the number of modules (%d)", c.Threshold, len(c.Modules))
	}
	if _, err := c.StateEncryptionKey(); err != nil {
		return err
	}
	if c.AttemptTimeout <= 0 {
		return errors.New("attempt-timeout must be positive")
	}
	if c.AutolockSeconds <= 0 {
		return errors.New("autolock-seconds must be positive")
	}
	if c.EventBuffer <= 0 {
		return errors.New("event-buffer must be positive")
	}

	seen := make(map[string]struct{}, len(c.Modules))
	for _, m := range c.Modules {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("duplicate module id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// AutolockWindow returns the inactivity window.
func (c *Config) AutolockWindow() time.Duration {
	return time.Duration(c.AutolockSeconds) * time.Second
}

// StorageURIs returns the configured storage locations, defaulting to a
// file store under DataDir.
func (c *Config) StorageURIs() []string {
	if len(c.Storage) > 0 {
		return c.Storage
	}
	return []string{"file://" + filepath.Join(c.DataDir, "store")}
}

// StateEncryptionKey decodes StateKey. It returns nil when unset.
func (c *Config) StateEncryptionKey() ([]byte, error) {
	if c.StateKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(strings.TrimPrefix(c.StateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("state-key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("state-key must be 16, 24 or 32 bytes, got %d", len(key))
	}
}

// StatePath is the local state database directory.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// LoadEnvFile loads variables from a .env file without overriding those
// already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
