package modules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// PINInput is the input field carrying the code.
const PINInput = "pin"

// PINModule unlocks its key part with a short numeric code.
type PINModule struct {
	*machine

	id        interfaces.ModuleID
	name      string
	minLength int
	maxLength int
	device    Device
	scrypt    cryptoutils.ScryptParams
	log       *slog.Logger
}

// NewPINModule creates a PIN factor.
func NewPINModule(id interfaces.ModuleID, cfg Config, device Device, opts Options) *PINModule {
	return &PINModule{
		machine:   newMachine(cfg.retries()),
		id:        id,
		name:      cfg.displayName("Enter PIN"),
		minLength: cfg.MinLength,
		maxLength: cfg.MaxLength,
		device:    device,
		scrypt:    opts.Scrypt,
		log:       opts.Log.With("module", id),
	}
}

func (p *PINModule) ID() interfaces.ModuleID { return p.id }

func (p *PINModule) Describe() interfaces.Descriptor {
	return interfaces.Descriptor{
		ID:          p.id,
		Name:        p.name,
		Description: "Module that requires entering a digit code to unlock.",
		UI:          `<input type="password" name="pin" inputmode="numeric">`,
	}
}

func (p *PINModule) validate(pin string) error {
	if len(pin) < p.minLength || len(pin) > p.maxLength {
		return fmt.Errorf("PIN must have %d to %d digits", p.minLength, p.maxLength)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return fmt.Errorf("PIN must contain digits 0-9 only")
		}
	}
	return nil
}

// Advance verifies the PIN by opening the sealed key part with it.
func (p *PINModule) Advance(ctx context.Context, input map[string]string) interfaces.Response {
	pin := input[PINInput]
	if err := p.validate(pin); err != nil {
		return failed(err.Error())
	}

	gen, err := p.begin("verifying PIN")
	if err != nil {
		return p.refuse(err, "verifying PIN")
	}

	share, err := p.unseal(pin)
	if err != nil {
		p.log.Debug("PIN verification failed", "err", err)
		p.fail(gen, "wrong PIN")
		return failed("enter PIN")
	}

	p.authorize(gen, share)
	return ok("")
}

func (p *PINModule) passphrase(pin string) ([]byte, error) {
	return cryptoutils.FactorKey(p.device.Key, "pin", []byte(pin))
}

func (p *PINModule) unseal(pin string) (interfaces.Share, error) {
	part, found := p.keyPart()
	if !found {
		return interfaces.Share{}, errNotProvisioned
	}
	passphrase, err := p.passphrase(pin)
	if err != nil {
		return interfaces.Share{}, err
	}
	return openShare(passphrase, part.Payload)
}

// Enroll seals share under the PIN given in input.
func (p *PINModule) Enroll(ctx context.Context, input map[string]string, share interfaces.Share) (*interfaces.Enrollment, error) {
	pin := input[PINInput]
	if err := p.validate(pin); err != nil {
		return nil, err
	}

	passphrase, err := p.passphrase(pin)
	if err != nil {
		return nil, err
	}
	payload, err := sealShare(passphrase, share, p.scrypt)
	if err != nil {
		return nil, err
	}

	return &interfaces.Enrollment{
		Part: interfaces.KeyPart{Module: p.id, Index: share.Index, Payload: payload},
	}, nil
}
