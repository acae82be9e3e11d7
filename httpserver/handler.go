package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/quorum-wallet/api"
	"github.com/ruteri/quorum-wallet/autolock"
	"github.com/ruteri/quorum-wallet/eventbus"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/ruteri/quorum-wallet/quorum"
	"github.com/ruteri/quorum-wallet/wallet"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) *RequestError {
	return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf(format, args...)}
}

// Handler serves the wallet API.
type Handler struct {
	wallet      *wallet.Lifecycle
	coordinator *quorum.Coordinator
	timer       *autolock.Timer
	bus         *eventbus.Bus
	log         *slog.Logger

	// DefaultThreshold applies to restore requests that omit one.
	DefaultThreshold int
	// AttemptTimeout bounds how long an unlock response may take to write.
	AttemptTimeout time.Duration
	// OriginPatterns are the extra origins accepted by the event stream.
	OriginPatterns []string
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
func NewHandler(lifecycle *wallet.Lifecycle, coordinator *quorum.Coordinator, timer *autolock.Timer, bus *eventbus.Bus, log *slog.Logger) *Handler {
	return &Handler{
		wallet:           lifecycle,
		coordinator:      coordinator,
		timer:            timer,
		bus:              bus,
		log:              log,
		DefaultThreshold: 2,
		AttemptTimeout:   quorum.DefaultTimeout,
	}
}

// statusCode maps domain errors to HTTP status codes.
func statusCode(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, interfaces.ErrAttemptInProgress), errors.Is(err, wallet.ErrLockedDuringUnlock):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrThresholdUnsatisfiable), errors.Is(err, interfaces.ErrInvalidMnemonic):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUnknownModule):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrWalletNotInitialized):
		return http.StatusPreconditionFailed
	case errors.Is(err, interfaces.ErrQuorumUnreachable):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrAttemptTimedOut),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// reason returns the client facing failure text. Internal failures are not
// detailed to the caller.
func reason(err error) string {
	if statusCode(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func moduleID(r *http.Request) interfaces.ModuleID {
	return interfaces.ModuleID(chi.URLParam(r, "id"))
}

// HandleModules lists the configured modules.
//
// URL format: GET /api/modules
func (h *Handler) HandleModules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.coordinator.Registry().Descriptors())
}

// HandleModuleState reports one module's state machine.
//
// URL format: GET /api/moduleState/{id}
func (h *Handler) HandleModuleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.coordinator.ModuleState(moduleID(r))
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}
	h.writeJSON(w, http.StatusOK, api.ModuleStateResponse{
		State:       state.Status.String(),
		Message:     state.Message,
		RetriesLeft: state.RetriesLeft,
	})
}

// HandleNextStep advances one module with the posted input.
//
// URL format: POST /api/nextStep/{id}
// Request body: JSON object of input fields, e.g. {"pin": "1234"}
func (h *Handler) HandleNextStep(w http.ResponseWriter, r *http.Request) {
	input := map[string]string{}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &input); err != nil {
			http.Error(w, err.Error(), statusCode(err))
			return
		}
	}

	resp, err := h.coordinator.Advance(r.Context(), moduleID(r), input)
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}
	h.timer.Tap()

	h.writeJSON(w, http.StatusOK, api.NextStepResponse{
		Status:     resp.Status.String(),
		NextPrompt: resp.NextPrompt,
	})
}

// HandleUnlock runs an unlock attempt.
//
// URL format: POST /api/unlock
// Request body: {"modules": {"pin": {"pin": "1234"}, "button": {}}, "required": 2}
func (h *Handler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	var req api.UnlockRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeJSON(w, statusCode(err), api.StatusResponse{Status: api.StatusFailed, Reason: err.Error()})
		return
	}
	if len(req.Modules) == 0 {
		err := badRequest("no modules given")
		h.writeJSON(w, statusCode(err), api.StatusResponse{Status: api.StatusFailed, Reason: err.Error()})
		return
	}

	// The attempt may outlast the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.AttemptTimeout + 5*time.Second))

	err := h.wallet.Unlock(r.Context(), wallet.UnlockRequest{Inputs: req.Modules, Required: req.Required})
	if err != nil {
		h.log.Warn("Unlock failed", "err", err)
		h.writeJSON(w, statusCode(err), api.StatusResponse{Status: api.StatusFailed, Reason: reason(err)})
		return
	}

	h.timer.Tap()
	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusOK})
}

// HandleRestore re-provisions the wallet from a mnemonic backup.
//
// URL format: POST /api/restore
// Request body: {"mnemonicWords": [...], "modules": {"pin": {"pin": "1234"}}, "required": 2}
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	var req api.RestoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeJSON(w, statusCode(err), api.RestoreResponse{Status: api.StatusFailed, Reason: err.Error()})
		return
	}
	threshold := req.Required
	if threshold == 0 {
		threshold = h.DefaultThreshold
	}

	result, err := h.wallet.RestoreFromBackup(r.Context(), req.MnemonicWords, req.Modules, threshold)
	if err != nil {
		h.writeJSON(w, statusCode(err), api.RestoreResponse{Status: api.StatusFailed, Reason: reason(err)})
		return
	}

	h.writeJSON(w, http.StatusOK, api.RestoreResponse{
		Status:     api.StatusOK,
		Enrollment: result.Enrollment,
		Address:    result.Address,
	})
}

// HandleWalletStatus reports the wallet status, and the address while unlocked.
//
// URL format: GET /api/walletStatus
func (h *Handler) HandleWalletStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.wallet.Snapshot()
	h.writeJSON(w, http.StatusOK, api.WalletStatusResponse{
		Status:  snapshot.Status.String(),
		Address: snapshot.Address,
		Epoch:   snapshot.Epoch,
		Modules: snapshot.Modules,
	})
}

// HandleLockWallet locks the wallet. Locking is idempotent.
//
// URL format: POST /api/lockWallet
func (h *Handler) HandleLockWallet(w http.ResponseWriter, r *http.Request) {
	h.wallet.Lock(wallet.LockExplicit)
	h.writeJSON(w, http.StatusOK, api.LockResponse{Success: true})
}

// HandleTap records user activity.
//
// URL format: POST /api/tap
func (h *Handler) HandleTap(w http.ResponseWriter, r *http.Request) {
	h.timer.Tap()
	w.WriteHeader(http.StatusNoContent)
}
