package modules

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// Factor types accepted in configuration.
const (
	TypePIN    = "pin"
	TypeButton = "button"
	TypeServer = "server"
	TypeTOTP   = "totp"
)

const (
	DefaultMaxRetry      = 3
	DefaultPINMinLength  = 4
	DefaultPINMaxLength  = 9
	DefaultGPIOPin       = 4
	DefaultGPIOChip      = "gpiochip0"
	DefaultPressWindow   = 60 * time.Second
	DefaultSessionLength = 1800
	DefaultServerTimeout = 30 * time.Second
	DefaultTOTPIssuer    = "quorum-wallet"
)

// Config describes one configured factor. Fields not relevant to Type are ignored.
type Config struct {
	ID       string `mapstructure:"id"`
	Type     string `mapstructure:"type"`
	Name     string `mapstructure:"name"`
	MaxRetry *int   `mapstructure:"max-retry"`

	// pin
	MinLength int `mapstructure:"min-length"`
	MaxLength int `mapstructure:"max-length"`

	// button
	GPIOChip    string        `mapstructure:"gpio-chip"`
	GPIOPin     int           `mapstructure:"gpio-pin"`
	ActiveLow   bool          `mapstructure:"active-low"`
	Debounce    time.Duration `mapstructure:"debounce"`
	PressWindow time.Duration `mapstructure:"press-window"`

	// server
	Address       string        `mapstructure:"address"`
	SRV           string        `mapstructure:"srv"`
	SessionLength int           `mapstructure:"session-length"`
	Timeout       time.Duration `mapstructure:"timeout"`

	// totp
	Issuer string `mapstructure:"issuer"`
}

// ApplyDefaults fills zero values for the configured type.
func (c *Config) ApplyDefaults() {
	if c.MaxRetry == nil {
		n := DefaultMaxRetry
		c.MaxRetry = &n
	}
	switch c.Type {
	case TypePIN:
		if c.MinLength == 0 {
			c.MinLength = DefaultPINMinLength
		}
		if c.MaxLength == 0 {
			c.MaxLength = DefaultPINMaxLength
		}
	case TypeButton:
		if c.GPIOPin == 0 {
			c.GPIOPin = DefaultGPIOPin
		}
		if c.GPIOChip == "" {
			c.GPIOChip = DefaultGPIOChip
		}
		if c.PressWindow == 0 {
			c.PressWindow = DefaultPressWindow
		}
	case TypeServer:
		if c.SessionLength == 0 {
			c.SessionLength = DefaultSessionLength
		}
		if c.Timeout == 0 {
			c.Timeout = DefaultServerTimeout
		}
	case TypeTOTP:
		if c.Issuer == "" {
			c.Issuer = DefaultTOTPIssuer
		}
	}
}

// Validate checks the configuration after defaults were applied.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.New("module id is required")
	}
	switch c.Type {
	case TypePIN:
		if c.MinLength < 1 || c.MaxLength < c.MinLength {
			return fmt.Errorf("module %s: invalid PIN length bounds %d..%d", c.ID, c.MinLength, c.MaxLength)
		}
	case TypeButton:
		if c.GPIOPin < 0 || c.Debounce < 0 {
			return fmt.Errorf("module %s: invalid gpio line %d or debounce %s", c.ID, c.GPIOPin, c.Debounce)
		}
	case TypeServer:
		if c.Address == "" && c.SRV == "" {
			return fmt.Errorf("module %s: server address or srv record is required", c.ID)
		}
	case TypeTOTP:
	default:
		return fmt.Errorf("module %s: unsupported type %q", c.ID, c.Type)
	}
	if c.MaxRetry != nil && *c.MaxRetry < 0 {
		return fmt.Errorf("module %s: max-retry must not be negative", c.ID)
	}
	return nil
}

func (c Config) retries() int {
	if c.MaxRetry == nil {
		return DefaultMaxRetry
	}
	return *c.MaxRetry
}

func (c Config) displayName(fallback string) string {
	if c.Name != "" {
		return c.Name
	}
	return fallback
}

// Options carries collaborators shared by all factors.
type Options struct {
	Log    *slog.Logger
	Scrypt cryptoutils.ScryptParams

	// PressSources overrides the GPIO press source per button module.
	PressSources map[interfaces.ModuleID]PressSource
	HTTPClient   *http.Client
	Resolver     Resolver
	Now          func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Scrypt.N == 0 {
		o.Scrypt = cryptoutils.DefaultScryptParams
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Resolver == nil {
		o.Resolver = DNSResolver{}
	}
}

// Build instantiates every configured factor.
func Build(cfgs []Config, device Device, opts Options) ([]interfaces.Module, error) {
	opts.applyDefaults()

	seen := make(map[string]struct{}, len(cfgs))
	built := make([]interfaces.Module, 0, len(cfgs))
	for _, cfg := range cfgs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate module id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}

		id := interfaces.ModuleID(cfg.ID)
		switch cfg.Type {
		case TypePIN:
			built = append(built, NewPINModule(id, cfg, device, opts))
		case TypeButton:
			source, found := opts.PressSources[id]
			if !found {
				source = NewGPIOPressSource(cfg.GPIOChip, cfg.GPIOPin, cfg.ActiveLow, cfg.Debounce)
			}
			built = append(built, NewButtonModule(id, cfg, device, source, opts))
		case TypeServer:
			built = append(built, NewServerModule(id, cfg, device, opts))
		case TypeTOTP:
			built = append(built, NewTOTPModule(id, cfg, device, opts))
		}
	}

	opts.Log.Info("Modules configured", "count", len(built))
	return built, nil
}
