package quorum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/ruteri/quorum-wallet/kms"
	"github.com/ruteri/quorum-wallet/metrics"
	"github.com/ruteri/quorum-wallet/registry"
	"github.com/samber/lo"
	"go.uber.org/atomic"
)

const (
	DefaultTimeout      = 2 * time.Minute
	DefaultPollInterval = 50 * time.Millisecond
)

// Config tunes the coordinator.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// PollInterval is how often module states are re-evaluated.
	PollInterval time.Duration
}

// AttemptRequest starts one unlock attempt.
type AttemptRequest struct {
	// Targets are the modules taking part in this attempt.
	Targets []interfaces.ModuleID
	// Threshold is the number of authorized modules required.
	Threshold int
	// Inputs are the per-module inputs; targets without input keep their
	// current state and may be advanced separately while the attempt runs.
	Inputs map[interfaces.ModuleID]map[string]string
}

// AttemptResult is the outcome of a successful attempt. The caller owns
// Secret and must wipe it.
type AttemptResult struct {
	Secret   []byte
	Epoch    uuid.UUID
	Modules  []interfaces.ModuleID
	Duration time.Duration
}

// Coordinator drives unlock attempts across the registered modules. At most
// one attempt runs at a time.
type Coordinator struct {
	registry *registry.Registry
	combiner *kms.ShareCombiner
	events   interfaces.Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      Config
	now      func() time.Time

	active       atomic.Bool
	resetPending atomic.Bool
}

// NewCoordinator creates a coordinator. m may be nil.
func NewCoordinator(reg *registry.Registry, combiner *kms.ShareCombiner, events interfaces.Publisher, m *metrics.Metrics, log *slog.Logger, cfg Config) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Coordinator{
		registry: reg,
		combiner: combiner,
		events:   events,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Active reports whether an attempt is running.
func (c *Coordinator) Active() bool {
	return c.active.Load()
}

// Registry returns the module registry the coordinator drives.
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// Exclusive runs fn while holding the attempt slot, so no unlock attempt can
// start until it returns. Used by re-provisioning.
func (c *Coordinator) Exclusive(fn func() error) error {
	if !c.active.CompareAndSwap(false, true) {
		return interfaces.ErrAttemptInProgress
	}
	defer c.release()
	defer c.resetAll()
	return fn()
}

// ResetModules drops every module's authorization and unsealed share. While
// an attempt or Exclusive holds the slot, the reset runs when it is released.
func (c *Coordinator) ResetModules() {
	c.resetPending.Store(true)
	c.drainReset()
}

func (c *Coordinator) drainReset() {
	for c.resetPending.Load() {
		if !c.active.CompareAndSwap(false, true) {
			return
		}
		if c.resetPending.Swap(false) {
			c.resetAll()
		}
		c.active.Store(false)
	}
}

func (c *Coordinator) release() {
	c.active.Store(false)
	c.drainReset()
}

func (c *Coordinator) resetAll() {
	for _, m := range c.registry.List() {
		m.Reset()
	}
}

// Advance performs a single verification step on one module, independently
// of any attempt.
func (c *Coordinator) Advance(ctx context.Context, id interfaces.ModuleID, input map[string]string) (interfaces.Response, error) {
	m, err := c.registry.Get(id)
	if err != nil {
		return interfaces.Response{}, err
	}
	resp := m.Advance(ctx, input)
	c.metrics.RecordModuleStep(string(id), resp.Status.String())
	return resp, nil
}

// ModuleState returns the current state of one module.
func (c *Coordinator) ModuleState(id interfaces.ModuleID) (interfaces.ModuleState, error) {
	m, err := c.registry.Get(id)
	if err != nil {
		return interfaces.ModuleState{}, err
	}
	return m.State(), nil
}

func (c *Coordinator) validate(req AttemptRequest) ([]interfaces.ModuleID, error) {
	targets := lo.Uniq(req.Targets)
	if len(targets) != len(req.Targets) {
		return nil, fmt.Errorf("%w: duplicate targets", interfaces.ErrThresholdUnsatisfiable)
	}
	if req.Threshold < 1 || req.Threshold > len(targets) {
		return nil, fmt.Errorf("%w: threshold %d with %d targets", interfaces.ErrThresholdUnsatisfiable, req.Threshold, len(targets))
	}
	if _, err := c.registry.Resolve(targets); err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrThresholdUnsatisfiable, err)
	}
	for id := range req.Inputs {
		if !lo.Contains(targets, id) {
			return nil, fmt.Errorf("%w: input for module %s which is not targeted", interfaces.ErrThresholdUnsatisfiable, id)
		}
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets, nil
}

// BeginAttempt runs one unlock attempt to completion. It advances every
// target that has input concurrently, then waits until threshold targets are
// authorized, the quorum becomes unreachable, the attempt times out, or ctx
// is cancelled. Every module is reset when the attempt ends.
func (c *Coordinator) BeginAttempt(ctx context.Context, req AttemptRequest) (*AttemptResult, error) {
	if !c.active.CompareAndSwap(false, true) {
		return nil, interfaces.ErrAttemptInProgress
	}
	defer c.release()

	start := c.now()
	targets, err := c.validate(req)
	if err != nil {
		c.metrics.RecordAttempt(metrics.OutcomeRejected, 0)
		return nil, err
	}

	modules, _ := c.registry.Resolve(targets)
	defer c.resetAll()

	log := c.log.With("targets", targets, "threshold", req.Threshold)
	log.Info("Unlock attempt started")
	c.events.Publish(interfaces.TopicInfo, fmt.Sprintf("unlock attempt started, %d of %d modules required", req.Threshold, len(targets)))
	c.events.Progress(interfaces.TopicReconstruction, 0)

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.advanceAll(attemptCtx, modules, req.Inputs)

	result, err := c.await(attemptCtx, ctx, modules, req.Threshold)
	duration := c.now().Sub(start)
	if err != nil {
		outcome := outcomeOf(err)
		c.metrics.RecordAttempt(outcome, duration)
		if outcome == metrics.OutcomeIntegrity {
			log.Error("Reconstruction failed integrity check", "err", err)
		} else {
			log.Warn("Unlock attempt failed", "err", err)
		}
		c.events.Publish(interfaces.TopicError, "unlock failed: "+err.Error())
		return nil, err
	}

	result.Duration = duration
	c.metrics.RecordAttempt(metrics.OutcomeSuccess, duration)
	log.Info("Quorum reached", "modules", result.Modules, "duration", duration)
	c.events.Progress(interfaces.TopicReconstruction, 100)
	c.events.Publish(interfaces.TopicSuccess, "quorum reached with "+joinIDs(result.Modules))
	return result, nil
}

func (c *Coordinator) advanceAll(ctx context.Context, modules []interfaces.Module, inputs map[interfaces.ModuleID]map[string]string) {
	var wg sync.WaitGroup
	for _, m := range modules {
		input, found := inputs[m.ID()]
		if !found {
			continue
		}
		wg.Add(1)
		go func(m interfaces.Module) {
			defer wg.Done()
			resp := m.Advance(ctx, input)
			c.metrics.RecordModuleStep(string(m.ID()), resp.Status.String())
		}(m)
	}
	wg.Wait()
}

// await polls module states until the attempt resolves. attemptCtx carries
// the attempt timeout; callerCtx distinguishes caller cancellation from it.
func (c *Coordinator) await(attemptCtx, callerCtx context.Context, modules []interfaces.Module, threshold int) (*AttemptResult, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	lastProgress := 0
	for {
		authorized, permanentlyFailed := tally(modules)

		if len(authorized) >= threshold {
			result, err := c.reconstruct(authorized[:threshold], threshold)
			if !errors.Is(err, errShareVanished) {
				return result, err
			}
		} else if len(modules)-permanentlyFailed < threshold {
			return nil, fmt.Errorf("%w: %d of %d modules failed permanently, %d required",
				interfaces.ErrQuorumUnreachable, permanentlyFailed, len(modules), threshold)
		}

		if progress := len(authorized) * 100 / threshold; progress != lastProgress && progress < 100 {
			lastProgress = progress
			c.events.Progress(interfaces.TopicReconstruction, progress)
		}

		select {
		case <-attemptCtx.Done():
			if err := callerCtx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w after %s", interfaces.ErrAttemptTimedOut, c.cfg.Timeout)
		case <-ticker.C:
		}
	}
}

// tally returns authorized modules sorted by id and the number of
// permanently failed ones.
func tally(modules []interfaces.Module) ([]interfaces.Module, int) {
	var authorized []interfaces.Module
	permanentlyFailed := 0
	for _, m := range modules {
		state := m.State()
		switch {
		case state.Status == interfaces.ModuleAuthorized:
			authorized = append(authorized, m)
		case state.PermanentlyFailed():
			permanentlyFailed++
		}
	}
	sort.Slice(authorized, func(i, j int) bool { return authorized[i].ID() < authorized[j].ID() })
	return authorized, permanentlyFailed
}

var errShareVanished = errors.New("authorized module no longer holds a share")

func (c *Coordinator) reconstruct(selected []interfaces.Module, threshold int) (*AttemptResult, error) {
	shares := make([]interfaces.Share, 0, len(selected))
	defer func() {
		for i := range shares {
			shares[i].Wipe()
		}
	}()

	for _, m := range selected {
		share, found := m.ShareIfAuthorized()
		if !found {
			return nil, errShareVanished
		}
		shares = append(shares, share)
	}

	secret, err := c.combiner.Reconstruct(shares, threshold)
	if err != nil {
		return nil, err
	}
	return &AttemptResult{
		Secret:  secret,
		Epoch:   shares[0].Epoch,
		Modules: lo.Map(selected, func(m interfaces.Module, _ int) interfaces.ModuleID { return m.ID() }),
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrQuorumUnreachable):
		return metrics.OutcomeUnreachable
	case errors.Is(err, interfaces.ErrAttemptTimedOut):
		return metrics.OutcomeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	case errors.Is(err, interfaces.ErrReconstructionIntegrity), errors.Is(err, interfaces.ErrInsufficientShares):
		return metrics.OutcomeIntegrity
	default:
		return metrics.OutcomeRejected
	}
}

func joinIDs(ids []interfaces.ModuleID) string {
	return strings.Join(lo.Map(ids, func(id interfaces.ModuleID, _ int) string { return string(id) }), ", ")
}
