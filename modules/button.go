package modules

import (
	"context"
	"log/slog"
	"time"

	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// PressSource blocks until the physical button is pressed or ctx ends.
type PressSource interface {
	WaitForPress(ctx context.Context) error
}

// PressSourceFunc adapts a function to PressSource.
type PressSourceFunc func(ctx context.Context) error

func (f PressSourceFunc) WaitForPress(ctx context.Context) error { return f(ctx) }

// ButtonModule authorizes on a physical button press. Advance arms the
// watcher and returns immediately.
type ButtonModule struct {
	*machine

	id     interfaces.ModuleID
	name   string
	window time.Duration
	source PressSource
	device Device
	scrypt cryptoutils.ScryptParams
	log    *slog.Logger
}

// NewButtonModule creates a button factor reading presses from source.
func NewButtonModule(id interfaces.ModuleID, cfg Config, device Device, source PressSource, opts Options) *ButtonModule {
	return &ButtonModule{
		machine: newMachine(cfg.retries()),
		id:      id,
		name:    cfg.displayName("Press Button"),
		window:  cfg.PressWindow,
		source:  source,
		device:  device,
		scrypt:  opts.Scrypt,
		log:     opts.Log.With("module", id),
	}
}

func (b *ButtonModule) ID() interfaces.ModuleID { return b.id }

func (b *ButtonModule) Describe() interfaces.Descriptor {
	return interfaces.Descriptor{
		ID:          b.id,
		Name:        b.name,
		Description: "Module for pushing the physical button on the hardware wallet.",
	}
}

func (b *ButtonModule) Advance(ctx context.Context, input map[string]string) interfaces.Response {
	gen, err := b.begin("waiting for button press")
	if err != nil {
		return b.refuse(err, "press the button")
	}

	// The watcher outlives the request that armed it.
	watchCtx, cancel := context.WithTimeout(context.Background(), b.window)
	b.watch(gen, cancel)

	go func() {
		defer cancel()
		if err := b.source.WaitForPress(watchCtx); err != nil {
			b.log.Debug("Button not pressed", "err", err)
			b.fail(gen, "button not pressed in time")
			return
		}

		share, err := b.unseal()
		if err != nil {
			b.log.Error("Failed to open button key part", "err", err)
			b.fail(gen, "key part unreadable")
			return
		}
		if b.authorize(gen, share) {
			b.log.Info("Button press accepted")
		}
	}()

	return ok("press the button")
}

func (b *ButtonModule) unseal() (interfaces.Share, error) {
	part, found := b.keyPart()
	if !found {
		return interfaces.Share{}, errNotProvisioned
	}
	passphrase, err := cryptoutils.FactorKey(b.device.Key, "button", nil)
	if err != nil {
		return interfaces.Share{}, err
	}
	return openShare(passphrase, part.Payload)
}

func (b *ButtonModule) Enroll(ctx context.Context, input map[string]string, share interfaces.Share) (*interfaces.Enrollment, error) {
	passphrase, err := cryptoutils.FactorKey(b.device.Key, "button", nil)
	if err != nil {
		return nil, err
	}
	payload, err := sealShare(passphrase, share, b.scrypt)
	if err != nil {
		return nil, err
	}
	return &interfaces.Enrollment{
		Part: interfaces.KeyPart{Module: b.id, Index: share.Index, Payload: payload},
	}, nil
}
