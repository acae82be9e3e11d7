package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/ruteri/quorum-wallet/kms"
	"github.com/ruteri/quorum-wallet/metrics"
	"github.com/ruteri/quorum-wallet/modules"
	"github.com/ruteri/quorum-wallet/quorum"
	"github.com/samber/lo"
)

// Lock reasons.
const (
	LockExplicit   = "explicit"
	LockInactivity = "inactivity"
)

// ErrLockedDuringUnlock is returned when the wallet was locked or
// re-provisioned while an unlock attempt was running.
var ErrLockedDuringUnlock = errors.New("wallet locked while unlock was in progress")

// UnlockRequest selects the modules taking part in an unlock and their inputs.
type UnlockRequest struct {
	// Inputs maps every targeted module to its input. Modules that need no
	// input, such as a button, are targeted with an empty map.
	Inputs map[interfaces.ModuleID]map[string]string
	// Required overrides the provisioned threshold when non-zero. It must
	// match the threshold the secret was split at.
	Required int
}

// RestoreResult carries the one-time outputs of the re-enrolled modules.
type RestoreResult struct {
	Enrollment map[interfaces.ModuleID]map[string]string
	Address    string
}

// Snapshot is the externally visible wallet state.
type Snapshot struct {
	Status  interfaces.WalletStatus
	Address string
	Epoch   string
	Modules []interfaces.ModuleID
}

// StatusListener is notified after every status transition, outside the
// lifecycle lock.
type StatusListener func(status interfaces.WalletStatus, reason string)

// Lifecycle is the wallet lock state machine and sole owner of the master secret.
type Lifecycle struct {
	mu         sync.Mutex
	status     interfaces.WalletStatus
	secret     []byte
	address    string
	manifest   *Manifest
	generation uint64

	listenersMu sync.Mutex
	listeners   []StatusListener

	coordinator *quorum.Coordinator
	combiner    *kms.ShareCombiner
	store       interfaces.StorageBackend
	state       *StateStore
	device      modules.Device
	events      interfaces.Publisher
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

// Deps are the collaborators of a Lifecycle.
type Deps struct {
	Coordinator *quorum.Coordinator
	Combiner    *kms.ShareCombiner
	Store       interfaces.StorageBackend
	State       *StateStore
	Device      modules.Device
	Events      interfaces.Publisher
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

// New creates a lifecycle in the UNSET state. Call Open to load an existing
// provisioning.
func New(deps Deps) *Lifecycle {
	return &Lifecycle{
		status:      interfaces.WalletUnset,
		coordinator: deps.Coordinator,
		combiner:    deps.Combiner,
		store:       deps.Store,
		state:       deps.State,
		device:      deps.Device,
		events:      deps.Events,
		metrics:     deps.Metrics,
		log:         deps.Log,
		now:         time.Now,
	}
}

// OnStatusChange registers a listener for status transitions.
func (l *Lifecycle) OnStatusChange(fn StatusListener) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *Lifecycle) notify(status interfaces.WalletStatus, reason string) {
	l.listenersMu.Lock()
	listeners := append([]StatusListener(nil), l.listeners...)
	l.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(status, reason)
	}
}

// Open loads the current manifest and installs its key parts into the
// modules. Without a manifest the wallet stays UNSET.
func (l *Lifecycle) Open(ctx context.Context) error {
	head, err := l.state.Head()
	if errors.Is(err, interfaces.ErrContentNotFound) {
		l.log.Info("No provisioning manifest, wallet is unset")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest head: %w", err)
	}

	manifest, err := fetchManifest(ctx, l.store, head)
	if err != nil {
		return err
	}
	if err := manifest.validate(l.device.WalletUUID); err != nil {
		return fmt.Errorf("invalid manifest %s: %w", head, err)
	}

	reg := l.coordinator.Registry()
	for _, ref := range manifest.Parts {
		m, err := reg.Get(ref.Module)
		if err != nil {
			return fmt.Errorf("manifest references %s: %w", ref.Module, err)
		}
		part, err := fetchPart(ctx, l.store, ref)
		if err != nil {
			return err
		}
		if err := m.Load(part); err != nil {
			return fmt.Errorf("failed to load key part into %s: %w", ref.Module, err)
		}
	}

	l.mu.Lock()
	l.manifest = manifest
	l.status = interfaces.WalletEncrypted
	l.generation++
	l.mu.Unlock()

	l.log.Info("Provisioning loaded",
		"manifest", head.String(),
		"epoch", manifest.Epoch,
		"threshold", manifest.Threshold,
		"modules", manifest.Modules())
	l.notify(interfaces.WalletEncrypted, "open")
	return nil
}

// Status returns the current wallet status.
func (l *Lifecycle) Status() interfaces.WalletStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Snapshot returns status, and address while decrypted.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Snapshot{Status: l.status}
	if l.status == interfaces.WalletDecrypted {
		s.Address = l.address
	}
	if l.manifest != nil {
		s.Epoch = l.manifest.Epoch.String()
		s.Modules = l.manifest.Modules()
	}
	return s
}

// Address returns the account address while DECRYPTED.
func (l *Lifecycle) Address() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != interfaces.WalletDecrypted {
		return "", false
	}
	return l.address, true
}

// WithSecret calls fn with the resident master secret. fn must not retain it.
func (l *Lifecycle) WithSecret(fn func(secret []byte) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != interfaces.WalletDecrypted {
		return fmt.Errorf("wallet is %s", l.status)
	}
	return fn(l.secret)
}

// Lock wipes the master secret and returns to ENCRYPTED. Module
// authorizations gathered so far are dropped, so the next unlock needs a
// fresh quorum. Locking an ENCRYPTED wallet only does that and invalidates
// in-flight unlocks. It reports whether a secret was resident.
func (l *Lifecycle) Lock(reason string) bool {
	return l.lock(reason, nil)
}

// Session identifies the current wallet state. It changes on every lock,
// unlock, restore and open.
func (l *Lifecycle) Session() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// LockSession locks the wallet only while it is still DECRYPTED in the given
// session. A lock decided against an earlier unlock never hits a later one.
func (l *Lifecycle) LockSession(session uint64, reason string) bool {
	return l.lock(reason, &session)
}

func (l *Lifecycle) lock(reason string, session *uint64) bool {
	l.mu.Lock()
	if session != nil && (*session != l.generation || l.status != interfaces.WalletDecrypted) {
		l.mu.Unlock()
		return false
	}
	l.generation++
	if l.status != interfaces.WalletDecrypted {
		l.mu.Unlock()
		l.coordinator.ResetModules()
		return false
	}
	l.wipeSecretLocked()
	l.status = interfaces.WalletEncrypted
	l.mu.Unlock()
	l.coordinator.ResetModules()

	l.metrics.RecordLock(reason)
	l.log.Info("Wallet locked", "reason", reason)
	l.events.Publish(interfaces.TopicInfo, "wallet locked ("+reason+")")
	l.notify(interfaces.WalletEncrypted, reason)
	return true
}

func (l *Lifecycle) wipeSecretLocked() {
	wipe(l.secret)
	l.secret = nil
	l.address = ""
}

// Unlock runs a quorum attempt and installs the reconstructed secret.
// Unlocking a DECRYPTED wallet succeeds without an attempt.
func (l *Lifecycle) Unlock(ctx context.Context, req UnlockRequest) error {
	l.mu.Lock()
	status, manifest, gen := l.status, l.manifest, l.generation
	l.mu.Unlock()

	switch status {
	case interfaces.WalletUnset:
		return interfaces.ErrWalletNotInitialized
	case interfaces.WalletDecrypted:
		return nil
	}

	threshold := manifest.Threshold
	if req.Required != 0 && req.Required != threshold {
		return fmt.Errorf("%w: wallet is provisioned at threshold %d, %d requested",
			interfaces.ErrThresholdUnsatisfiable, threshold, req.Required)
	}

	targets := lo.Keys(req.Inputs)
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	for _, id := range targets {
		if !manifest.Provisioned(id) {
			return fmt.Errorf("%w: module %s holds no key part of the current epoch",
				interfaces.ErrThresholdUnsatisfiable, id)
		}
	}

	inputs := make(map[interfaces.ModuleID]map[string]string, len(req.Inputs))
	for id, input := range req.Inputs {
		if input == nil {
			input = map[string]string{}
		}
		inputs[id] = input
	}

	result, err := l.coordinator.BeginAttempt(ctx, quorum.AttemptRequest{
		Targets:   targets,
		Threshold: threshold,
		Inputs:    inputs,
	})
	if err != nil {
		return err
	}
	defer wipe(result.Secret)

	if result.Epoch != manifest.Epoch {
		return fmt.Errorf("%w: reconstructed epoch %s, manifest epoch %s",
			interfaces.ErrReconstructionIntegrity, result.Epoch, manifest.Epoch)
	}

	address, err := DeriveAddress(result.Secret)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.generation != gen || l.status != interfaces.WalletEncrypted {
		l.mu.Unlock()
		l.log.Warn("Discarding reconstructed secret, wallet changed during unlock")
		return ErrLockedDuringUnlock
	}
	l.secret = append([]byte(nil), result.Secret...)
	l.address = address
	l.status = interfaces.WalletDecrypted
	l.generation++
	l.mu.Unlock()

	l.log.Info("Wallet unlocked", "modules", result.Modules, "duration", result.Duration)
	l.notify(interfaces.WalletDecrypted, "unlock")
	return nil
}

// RestoreFromBackup derives the secret from a BIP-39 mnemonic, splits it into
// a new epoch across the enrolled modules and installs it. Shares of every
// earlier epoch stop reconstructing.
func (l *Lifecycle) RestoreFromBackup(ctx context.Context, words []string, enrollment map[interfaces.ModuleID]map[string]string, threshold int) (*RestoreResult, error) {
	secret, err := DeriveSecret(words)
	if err != nil {
		l.metrics.RecordRestore(metrics.OutcomeRejected)
		return nil, err
	}
	defer wipe(secret)

	ids := lo.Keys(enrollment)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if threshold < 1 || threshold > len(ids) {
		l.metrics.RecordRestore(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: threshold %d with %d modules", interfaces.ErrThresholdUnsatisfiable, threshold, len(ids))
	}
	targets, err := l.coordinator.Registry().Resolve(ids)
	if err != nil {
		l.metrics.RecordRestore(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: %w", interfaces.ErrThresholdUnsatisfiable, err)
	}

	var result *RestoreResult
	err = l.coordinator.Exclusive(func() error {
		var err error
		result, err = l.reprovision(ctx, secret, targets, enrollment, threshold)
		return err
	})
	if err != nil {
		l.metrics.RecordRestore("failure")
		l.log.Error("Restore from backup failed", "err", err)
		l.events.Publish(interfaces.TopicError, "restore failed: "+err.Error())
		return nil, err
	}

	l.metrics.RecordRestore(metrics.OutcomeSuccess)
	l.events.Publish(interfaces.TopicSuccess, "wallet restored")
	l.notify(interfaces.WalletDecrypted, "restore")
	return result, nil
}

func (l *Lifecycle) reprovision(ctx context.Context, secret []byte, targets []interfaces.Module, enrollment map[interfaces.ModuleID]map[string]string, threshold int) (*RestoreResult, error) {
	l.log.Info("Restoring from backup", "modules", len(targets), "threshold", threshold)
	l.events.Publish(interfaces.TopicInfo, fmt.Sprintf("restoring wallet, %d of %d modules required", threshold, len(targets)))
	l.events.Progress(interfaces.TopicBackup, 0)

	shares, err := l.combiner.Split(secret, len(targets), threshold)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range shares {
			shares[i].Wipe()
		}
	}()

	parts := make([]interfaces.KeyPart, 0, len(targets))
	outputs := make(map[interfaces.ModuleID]map[string]string)
	for i, m := range targets {
		enrolled, err := m.Enroll(ctx, enrollment[m.ID()], shares[i])
		if err != nil {
			return nil, fmt.Errorf("failed to enroll %s: %w", m.ID(), err)
		}
		parts = append(parts, enrolled.Part)
		if len(enrolled.Output) > 0 {
			outputs[m.ID()] = enrolled.Output
		}
		l.events.Progress(interfaces.TopicBackup, (i+1)*80/len(targets))
	}

	refs, err := storeParts(ctx, l.store, parts)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{
		Version:    manifestVersion,
		WalletUUID: l.device.WalletUUID,
		Epoch:      shares[0].Epoch,
		Threshold:  threshold,
		Parts:      refs,
		Created:    l.now().UTC(),
	}
	head, err := storeManifest(ctx, l.store, manifest)
	if err != nil {
		return nil, err
	}
	if err := l.state.SetHead(head); err != nil {
		return nil, fmt.Errorf("failed to update manifest head: %w", err)
	}
	l.events.Progress(interfaces.TopicBackup, 90)

	for i, m := range targets {
		if err := m.Load(parts[i]); err != nil {
			return nil, fmt.Errorf("failed to load key part into %s: %w", m.ID(), err)
		}
	}

	address, err := DeriveAddress(secret)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.wipeSecretLocked()
	l.secret = append([]byte(nil), secret...)
	l.address = address
	l.manifest = manifest
	l.status = interfaces.WalletDecrypted
	l.generation++
	l.mu.Unlock()

	l.log.Info("Wallet restored", "manifest", head.String(), "epoch", manifest.Epoch, "address", address)
	l.events.Progress(interfaces.TopicBackup, 100)
	return &RestoreResult{Enrollment: outputs, Address: address}, nil
}
