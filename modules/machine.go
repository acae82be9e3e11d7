package modules

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/ruteri/quorum-wallet/interfaces"
)

var (
	errNotProvisioned    = errors.New("module has no key part")
	errAlreadyAuthorized = errors.New("module already authorized")
	errVerifying         = errors.New("verification in progress")
	errRetriesExhausted  = errors.New("retries exhausted")
)

// Device carries the per-device material every factor binds its key part to.
type Device struct {
	WalletUUID uuid.UUID
	Key        []byte
}

// machine is the verification state machine shared by all factors.
//
// READY -> WAITING -> AUTHORIZED, any failed verification -> FAILED,
// FAILED -> WAITING while retries remain. Every transition into WAITING
// bumps the generation so completions from abandoned background checks
// are discarded.
//
// The retry budget outlives Reset: a module that failed since its last
// authorization comes back FAILED with the retries it had left. Only an
// authorization or a new key part restores the budget.
type machine struct {
	mu          sync.Mutex
	status      interfaces.ModuleStatus
	message     string
	maxRetries  int
	retriesLeft int
	failed      bool
	gen         uint64
	cancel      context.CancelFunc
	share       *interfaces.Share
	part        *interfaces.KeyPart
}

func newMachine(maxRetries int) *machine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &machine{
		status:      interfaces.ModuleReady,
		maxRetries:  maxRetries,
		retriesLeft: maxRetries,
	}
}

func (m *machine) State() interfaces.ModuleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return interfaces.ModuleState{
		Status:      m.status,
		Message:     m.message,
		RetriesLeft: m.retriesLeft,
	}
}

func (m *machine) ShareIfAuthorized() (interfaces.Share, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != interfaces.ModuleAuthorized || m.share == nil {
		return interfaces.Share{}, false
	}
	return m.share.Clone(), true
}

func (m *machine) Load(part interfaces.KeyPart) error {
	if len(part.Payload) == 0 {
		return errors.New("empty key part")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := part
	m.part = &p
	m.resetLocked()
	m.restoreBudgetLocked()
	return nil
}

func (m *machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *machine) resetLocked() {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.share != nil {
		m.share.Wipe()
		m.share = nil
	}

	switch {
	case m.status == interfaces.ModuleAuthorized:
		m.restoreBudgetLocked()
	case m.failed:
		if m.status != interfaces.ModuleFailed {
			m.message = "verification abandoned"
		}
		m.status = interfaces.ModuleFailed
		return
	}
	m.status = interfaces.ModuleReady
	m.message = ""
}

func (m *machine) restoreBudgetLocked() {
	m.failed = false
	m.status = interfaces.ModuleReady
	m.message = ""
	m.retriesLeft = m.maxRetries
}

func (m *machine) keyPart() (interfaces.KeyPart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.part == nil {
		return interfaces.KeyPart{}, false
	}
	return *m.part, true
}

// begin moves the machine into WAITING and returns the generation that a
// later authorize or fail must present.
func (m *machine) begin(message string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.part == nil {
		return 0, errNotProvisioned
	}

	switch m.status {
	case interfaces.ModuleAuthorized:
		return 0, errAlreadyAuthorized
	case interfaces.ModuleWaiting:
		return 0, errVerifying
	case interfaces.ModuleFailed:
		if m.retriesLeft <= 0 {
			return 0, errRetriesExhausted
		}
		m.retriesLeft--
	}

	m.gen++
	m.status = interfaces.ModuleWaiting
	m.message = message
	return m.gen, nil
}

// watch registers the cancel func of a background verification.
func (m *machine) watch(gen uint64, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		cancel()
		return
	}
	m.cancel = cancel
}

func (m *machine) authorize(gen uint64, share interfaces.Share) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.status != interfaces.ModuleWaiting {
		share.Wipe()
		return false
	}
	m.status = interfaces.ModuleAuthorized
	m.message = "authorized"
	m.failed = false
	m.share = &share
	m.clearWatchLocked()
	return true
}

func (m *machine) fail(gen uint64, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.status != interfaces.ModuleWaiting {
		return false
	}
	m.status = interfaces.ModuleFailed
	m.message = message
	m.failed = true
	m.clearWatchLocked()
	return true
}

func (m *machine) clearWatchLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// refuse maps a begin error to the Advance response.
func (m *machine) refuse(err error, prompt string) interfaces.Response {
	switch {
	case errors.Is(err, errAlreadyAuthorized):
		return interfaces.Response{Status: interfaces.ResponseOK}
	case errors.Is(err, errVerifying):
		return interfaces.Response{Status: interfaces.ResponseOK, NextPrompt: prompt}
	default:
		return interfaces.Response{Status: interfaces.ResponseFailed, NextPrompt: err.Error()}
	}
}

func failed(prompt string) interfaces.Response {
	return interfaces.Response{Status: interfaces.ResponseFailed, NextPrompt: prompt}
}

func ok(prompt string) interfaces.Response {
	return interfaces.Response{Status: interfaces.ResponseOK, NextPrompt: prompt}
}
