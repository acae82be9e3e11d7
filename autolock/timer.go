// Package autolock locks the wallet after a period without activity.
package autolock

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/ruteri/quorum-wallet/wallet"
)

const (
	DefaultWindow       = 300 * time.Second
	DefaultTickInterval = time.Second
)

// Locker is the wallet side of the timer. Arm records the Session it counts
// down for, and expiry locks only that session.
type Locker interface {
	Session() uint64
	LockSession(session uint64, reason string) bool
}

type Config struct {
	// Window is the inactivity period after which the wallet is locked.
	Window       time.Duration
	TickInterval time.Duration
}

// Timer counts down while the wallet is decrypted. Tap restarts the
// countdown; reaching zero locks the wallet once and disarms the timer
// until the next Arm.
type Timer struct {
	mu        sync.Mutex
	armed     bool
	remaining time.Duration
	session   uint64

	cfg    Config
	locker Locker
	events interfaces.Publisher
	log    *slog.Logger
}

func New(locker Locker, events interfaces.Publisher, log *slog.Logger, cfg Config) *Timer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Timer{
		cfg:    cfg,
		locker: locker,
		events: events,
		log:    log,
	}
}

// Run drives the countdown until ctx is done.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.advance(t.cfg.TickInterval)
		}
	}
}

// Tap restarts the countdown. It has no effect while disarmed.
func (t *Timer) Tap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.remaining = t.cfg.Window
	}
}

// Arm starts a full countdown for the wallet's current session.
func (t *Timer) Arm() {
	session := t.locker.Session()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = true
	t.remaining = t.cfg.Window
	t.session = session
}

func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = false
}

// Remaining returns the time left and whether the timer is armed.
func (t *Timer) Remaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.armed
}

// OnStatusChange follows the wallet: armed while decrypted, idle otherwise.
func (t *Timer) OnStatusChange(status interfaces.WalletStatus, _ string) {
	if status == interfaces.WalletDecrypted {
		t.Arm()
	} else {
		t.Disarm()
	}
}

func (t *Timer) advance(elapsed time.Duration) {
	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return
	}
	t.remaining -= elapsed
	if t.remaining > 0 {
		seconds := int((t.remaining + time.Second - 1) / time.Second)
		t.mu.Unlock()
		t.events.Publish(interfaces.TopicAutolock, strconv.Itoa(seconds))
		return
	}
	t.remaining = 0
	t.armed = false
	session := t.session
	t.mu.Unlock()

	t.events.Publish(interfaces.TopicAutolock, "0")
	if t.locker.LockSession(session, wallet.LockInactivity) {
		t.log.Info("Wallet locked after inactivity", "window", t.cfg.Window)
	}
}
