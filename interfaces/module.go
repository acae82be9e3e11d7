package interfaces

import (
	"context"
)

// ModuleID is the stable identifier of a configured authentication factor.
type ModuleID string

// ModuleStatus is the position of a module in its verification state machine.
type ModuleStatus int

const (
	// ModuleReady is the initial state before any input was consumed.
	ModuleReady ModuleStatus = iota

	// ModuleWaiting indicates verification is in progress, possibly waiting
	// on an external event such as a button press or a server round-trip.
	ModuleWaiting

	// ModuleAuthorized indicates the factor verified successfully and its
	// share may be released. Terminal for the current attempt.
	ModuleAuthorized

	// ModuleFailed indicates the last verification step failed.
	ModuleFailed
)

// String returns the wire name of the status.
func (s ModuleStatus) String() string {
	switch s {
	case ModuleReady:
		return "READY"
	case ModuleWaiting:
		return "WAITING"
	case ModuleAuthorized:
		return "AUTHORIZED"
	case ModuleFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ModuleState is a snapshot of a module's state machine.
type ModuleState struct {
	Status ModuleStatus
	// Message is an optional human readable hint, e.g. "waiting for button press".
	Message string
	// RetriesLeft is the number of retries still permitted after a failure.
	RetriesLeft int
}

// PermanentlyFailed reports whether the module can no longer reach
// ModuleAuthorized within the current attempt.
func (s ModuleState) PermanentlyFailed() bool {
	return s.Status == ModuleFailed && s.RetriesLeft <= 0
}

// Descriptor is the static, side-effect free description of a module.
type Descriptor struct {
	ID          ModuleID `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	// UI optionally describes the inputs the module expects, e.g. form markup.
	UI string `json:"ui,omitempty"`
}

// ResponseStatus is the outcome of a single Advance call.
type ResponseStatus int

const (
	ResponseOK ResponseStatus = iota
	ResponseFailed
)

func (s ResponseStatus) String() string {
	if s == ResponseOK {
		return "OK"
	}
	return "FAILED"
}

// Response is returned by Module.Advance.
type Response struct {
	Status ResponseStatus
	// NextPrompt optionally describes what the module expects next.
	NextPrompt string
}

// KeyPart is the at-rest form of a share: the share bytes sealed under key
// material only the owning factor can reproduce.
type KeyPart struct {
	Module  ModuleID          `json:"module"`
	Index   int               `json:"index"`
	Payload []byte            `json:"payload"`
	Params  map[string]string `json:"params,omitempty"`
}

// Enrollment is the result of provisioning a module with a fresh share.
type Enrollment struct {
	Part KeyPart
	// Output carries values that must be shown to the user exactly once,
	// such as a TOTP provisioning URL. Never persisted.
	Output map[string]string
}

// Module is one pluggable authentication factor.
//
// Advance must not block on external events: modules that depend on a
// physical interrupt or a remote server return ModuleWaiting and complete
// in the background.
type Module interface {
	// ID returns the module's stable identifier.
	ID() ModuleID

	// Describe returns the module's name, description and UI descriptor.
	Describe() Descriptor

	// State returns the current state machine snapshot.
	State() ModuleState

	// Advance consumes one piece of input and performs one verification step.
	Advance(ctx context.Context, input map[string]string) Response

	// ShareIfAuthorized returns the unsealed share only in ModuleAuthorized.
	ShareIfAuthorized() (Share, bool)

	// Enroll seals a freshly split share for this factor.
	Enroll(ctx context.Context, input map[string]string, share Share) (*Enrollment, error)

	// Load installs a sealed key part read from the provisioning manifest
	// and restores the full retry budget.
	Load(part KeyPart) error

	// Reset wipes any unsealed share. A module that failed since its last
	// authorization stays ModuleFailed with the retries it had left; any
	// other module returns to ModuleReady.
	Reset()
}
