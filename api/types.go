package api

import "github.com/ruteri/quorum-wallet/interfaces"

// Outcome values of the status field.
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// ModuleStateResponse is returned by GET /api/moduleState/{id}.
type ModuleStateResponse struct {
	State       string `json:"state"`
	Message     string `json:"message,omitempty"`
	RetriesLeft int    `json:"retries_left"`
}

// NextStepResponse is returned by POST /api/nextStep/{id}.
type NextStepResponse struct {
	Status     string `json:"status"`
	NextPrompt string `json:"next_prompt,omitempty"`
}

// UnlockRequest is the body of POST /api/unlock.
type UnlockRequest struct {
	// Modules maps each targeted module to its input.
	Modules map[interfaces.ModuleID]map[string]string `json:"modules"`
	// Required optionally restates the threshold.
	Required int `json:"required,omitempty"`
}

// StatusResponse reports the outcome of an operation.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// RestoreRequest is the body of POST /api/restore.
type RestoreRequest struct {
	MnemonicWords []string                                  `json:"mnemonicWords"`
	Modules       map[interfaces.ModuleID]map[string]string `json:"modules"`
	Required      int                                       `json:"required"`
}

// RestoreResponse carries enrollment outputs, such as a TOTP provisioning
// URL, which are shown exactly once.
type RestoreResponse struct {
	Status     string                                    `json:"status"`
	Reason     string                                    `json:"reason,omitempty"`
	Enrollment map[interfaces.ModuleID]map[string]string `json:"enrollment,omitempty"`
	Address    string                                    `json:"address,omitempty"`
}

// WalletStatusResponse is returned by GET /api/walletStatus.
type WalletStatusResponse struct {
	Status  string                `json:"status"`
	Address string                `json:"address,omitempty"`
	Epoch   string                `json:"epoch,omitempty"`
	Modules []interfaces.ModuleID `json:"modules,omitempty"`
}

// LockResponse is returned by POST /api/lockWallet.
type LockResponse struct {
	Success bool `json:"success"`
}
