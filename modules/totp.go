package modules

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// TOTPCodeInput is the input field carrying the one-time code.
const TOTPCodeInput = "code"

// TOTPSeedParam is the key part parameter holding the sealed seed.
const TOTPSeedParam = "seed"

const (
	totpPeriod = 30
	totpSkew   = 1
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPModule authorizes with a time based one-time code. A code is accepted
// at most once within its validity window.
type TOTPModule struct {
	*machine

	id     interfaces.ModuleID
	name   string
	issuer string
	device Device
	scrypt cryptoutils.ScryptParams
	now    func() time.Time
	log    *slog.Logger

	usedMu sync.Mutex
	used   map[string]time.Time
}

// NewTOTPModule creates a one-time code factor.
func NewTOTPModule(id interfaces.ModuleID, cfg Config, device Device, opts Options) *TOTPModule {
	return &TOTPModule{
		machine: newMachine(cfg.retries()),
		id:      id,
		name:    cfg.displayName("One-Time Code"),
		issuer:  cfg.Issuer,
		device:  device,
		scrypt:  opts.Scrypt,
		now:     opts.Now,
		log:     opts.Log.With("module", id),
		used:    make(map[string]time.Time),
	}
}

func (m *TOTPModule) ID() interfaces.ModuleID { return m.id }

func (m *TOTPModule) Describe() interfaces.Descriptor {
	return interfaces.Descriptor{
		ID:          m.id,
		Name:        m.name,
		Description: "Module that requires a code from an authenticator app.",
		UI:          `<input type="text" name="code" inputmode="numeric" autocomplete="one-time-code">`,
	}
}

func validCode(code string) bool {
	if len(code) != int(otp.DigitsSix) {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (m *TOTPModule) Advance(ctx context.Context, input map[string]string) interfaces.Response {
	code := input[TOTPCodeInput]
	if !validCode(code) {
		return failed("enter the 6 digit code")
	}

	gen, err := m.begin("verifying code")
	if err != nil {
		return m.refuse(err, "verifying code")
	}

	if err := m.verify(code); err != nil {
		m.log.Debug("Code rejected", "err", err)
		m.fail(gen, err.Error())
		return failed("enter the 6 digit code")
	}

	share, err := m.unseal()
	if err != nil {
		m.log.Error("Failed to open code key part", "err", err)
		m.fail(gen, "key part unreadable")
		return failed("key part unreadable")
	}

	m.authorize(gen, share)
	return ok("")
}

func (m *TOTPModule) verify(code string) error {
	part, found := m.keyPart()
	if !found {
		return errNotProvisioned
	}
	seed, err := m.openSeed(part)
	if err != nil {
		return err
	}

	now := m.now()
	valid, err := totp.ValidateCustom(code, seed, now, totpOpts)
	if err != nil || !valid {
		return errors.New("wrong code")
	}

	m.usedMu.Lock()
	defer m.usedMu.Unlock()
	for c, expiry := range m.used {
		if now.After(expiry) {
			delete(m.used, c)
		}
	}
	if _, replayed := m.used[code]; replayed {
		return errors.New("code already used")
	}
	m.used[code] = now.Add((2*totpSkew + 1) * totpPeriod * time.Second)
	return nil
}

func (m *TOTPModule) openSeed(part interfaces.KeyPart) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(part.Params[TOTPSeedParam])
	if err != nil || len(sealed) == 0 {
		return "", errors.New("key part carries no seed")
	}
	passphrase, err := cryptoutils.FactorKey(m.device.Key, "totp-seed", nil)
	if err != nil {
		return "", err
	}
	defer cryptoutils.Wipe(passphrase)

	seed, err := cryptoutils.Open(passphrase, sealed)
	if err != nil {
		return "", err
	}
	return string(seed), nil
}

func (m *TOTPModule) unseal() (interfaces.Share, error) {
	part, found := m.keyPart()
	if !found {
		return interfaces.Share{}, errNotProvisioned
	}
	passphrase, err := cryptoutils.FactorKey(m.device.Key, "totp", nil)
	if err != nil {
		return interfaces.Share{}, err
	}
	return openShare(passphrase, part.Payload)
}

// Enroll generates a new seed. The enrollment output carries the otpauth URL
// and the base32 secret for the authenticator app.
func (m *TOTPModule) Enroll(ctx context.Context, input map[string]string, share interfaces.Share) (*interfaces.Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: m.device.WalletUUID.String(),
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	seedKey, err := cryptoutils.FactorKey(m.device.Key, "totp-seed", nil)
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Wipe(seedKey)
	sealedSeed, err := cryptoutils.Seal(seedKey, []byte(key.Secret()), m.scrypt)
	if err != nil {
		return nil, err
	}

	passphrase, err := cryptoutils.FactorKey(m.device.Key, "totp", nil)
	if err != nil {
		return nil, err
	}
	payload, err := sealShare(passphrase, share, m.scrypt)
	if err != nil {
		return nil, err
	}

	return &interfaces.Enrollment{
		Part: interfaces.KeyPart{
			Module:  m.id,
			Index:   share.Index,
			Payload: payload,
			Params:  map[string]string{TOTPSeedParam: base64.StdEncoding.EncodeToString(sealedSeed)},
		},
		Output: map[string]string{
			"url":    key.URL(),
			"secret": key.Secret(),
		},
	}, nil
}
