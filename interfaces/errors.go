package interfaces

import "errors"

var (
	// ErrModuleVerificationFailed is absorbed into a module's state and
	// recoverable via retry up to the configured policy.
	ErrModuleVerificationFailed = errors.New("module verification failed")

	// ErrUnknownModule is returned for lookups of unconfigured module ids.
	ErrUnknownModule = errors.New("unknown module")

	// ErrAttemptInProgress is returned when another unlock attempt is active.
	ErrAttemptInProgress = errors.New("attempt in progress")

	// ErrThresholdUnsatisfiable is a configuration error: the requested
	// threshold cannot be met by the targeted module set.
	ErrThresholdUnsatisfiable = errors.New("threshold unsatisfiable")

	// ErrQuorumUnreachable aborts an attempt once too many targeted modules
	// have failed permanently.
	ErrQuorumUnreachable = errors.New("quorum unreachable")

	// ErrAttemptTimedOut aborts an attempt that exceeded its window.
	ErrAttemptTimedOut = errors.New("attempt timed out")

	// ErrInsufficientShares is returned when fewer shares than the threshold
	// are supplied for reconstruction.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrReconstructionIntegrity is returned when shares come from different
	// provisioning epochs or are corrupt.
	ErrReconstructionIntegrity = errors.New("reconstruction integrity failure")

	// ErrWalletNotInitialized is returned before any provisioning exists.
	ErrWalletNotInitialized = errors.New("wallet not initialized")

	// ErrInvalidMnemonic is returned for backup phrases failing checksum validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)
