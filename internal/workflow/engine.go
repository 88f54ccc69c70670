// Package workflow implements the countdown workflow: notify the owner, wait, release.
//
// Every instance advances one checkpointed step at a time. Each step is committed with a
// compare-and-swap on the instance version, so an owner Cancel that lands while a step is in
// flight always wins over the step's commit, and a Cancel that arrives after the release
// began has no effect. Nothing is held in memory between steps: an external orchestrator
// (the resume task) calls Advance for every instance whose ResumeAt has passed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/messages"
)

// MaxStepsPerAdvance bounds how many steps a single Advance call executes.
const MaxStepsPerAdvance = 8

const maxCancelAttempts = 8

type Options struct {
	// Wait is the waiting period, measured from the start of Sleeping.
	Wait time.Duration

	Notify  RetryPolicy
	Release RetryPolicy

	// LeaseTTL bounds how long a crashed runner can block an instance.
	LeaseTTL time.Duration

	// DedupeActive returns an existing active instance instead of starting a second one
	// for the same identity.
	DedupeActive bool

	// RunnerID identifies this process in leases. Defaults to a random id.
	RunnerID string
}

// StartRequest describes a verified trigger.
type StartRequest struct {
	Identity string
	Domain   string
	Origin   string

	// Policy defaults to core.StartCountdown.
	Policy core.StartPolicy
}

// PolicyForOrigin returns the start policy for a credential origin. A trigger token is
// issued by the owner and only verifies once its not-before window passed, so it releases
// without a second notification and wait. Invitations run the full countdown.
func PolicyForOrigin(origin string) core.StartPolicy {
	if origin == core.UsageTrigger {
		return core.StartRelease
	}
	return core.StartCountdown
}

// CancelResult is the outcome of a Cancel command.
// Changed is false when the instance was already terminal or releasing.
type CancelResult struct {
	Instance *core.Instance
	Changed  bool
}

type Engine struct {
	store      core.InstanceStore
	dispatcher core.Dispatcher
	content    core.ContentSource
	composer   *messages.Composer
	auditor    core.Auditor
	opts       Options

	now   func() time.Time
	newID func() string
	kick  func()

	// locks serializes steps of the same instance within this process;
	// leases do the same across processes.
	locks keyedMutex
}

func NewEngine(
	store core.InstanceStore,
	dispatcher core.Dispatcher,
	content core.ContentSource,
	composer *messages.Composer,
	auditor core.Auditor,
	opts Options,
) *Engine {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if opts.Wait <= 0 {
		opts.Wait = core.DaysToDuration(core.DefaultWaitDays)
	}
	opts.Notify = opts.Notify.normalized(ExhaustionFail)
	opts.Release = opts.Release.normalized(ExhaustionContinue)
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 2 * time.Minute
	}
	if opts.RunnerID == "" {
		opts.RunnerID = uuid.NewString()
	}
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		content:    content,
		composer:   composer,
		auditor:    auditor,
		opts:       opts,
		now:        time.Now,
		newID:      newInstanceID,
	}
}

func newInstanceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// WithClock replaces the time source. Intended for tests and tooling.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// OnStart registers fn to be called after a new instance was persisted,
// typically to wake up the resume task instead of waiting for its next tick.
func (e *Engine) OnStart(fn func()) {
	e.kick = fn
}

func (e *Engine) Options() Options {
	return e.opts
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// Start persists a new instance in state Created. Every verified trigger produces its own
// instance unless DedupeActive is set.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*core.Instance, bool, error) {
	identity := strings.ToLower(strings.TrimSpace(req.Identity))
	if identity == "" {
		return nil, false, fmt.Errorf("identity is required")
	}
	policy := req.Policy
	if policy == "" {
		policy = core.StartCountdown
	}
	if !policy.IsValid() {
		return nil, false, fmt.Errorf("unknown start policy '%s'", policy)
	}

	if e.opts.DedupeActive {
		existing, err := e.store.FindActive(ctx, identity)
		switch {
		case err == nil:
			log.Ctx(ctx).Info().
				Str("instance", existing.ID).
				Str("identity", identity).
				Msg("workflow.dedupe")
			return existing, false, nil
		case !errors.Is(err, core.ErrInstanceNotFound):
			return nil, false, fmt.Errorf("looking up active instance: %w", err)
		}
	}

	now := e.clock()
	inst := &core.Instance{
		ID:        e.newID(),
		Identity:  identity,
		Domain:    strings.ToLower(strings.TrimSpace(req.Domain)),
		Origin:    req.Origin,
		Policy:    policy,
		State:     core.StateCreated,
		ResumeAt:  now,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Create(ctx, inst); err != nil {
		return nil, false, fmt.Errorf("persisting instance: %w", err)
	}

	e.audit(inst, "workflow.start", nil)
	log.Ctx(ctx).Info().
		Str("instance", inst.ID).
		Str("identity", identity).
		Str("origin", inst.Origin).
		Str("policy", string(policy)).
		Msg("workflow.started")

	if e.kick != nil {
		e.kick()
	}
	return inst, true, nil
}

// Get returns the current record of an instance.
func (e *Engine) Get(ctx context.Context, id string) (*core.Instance, error) {
	return e.store.Get(ctx, id)
}

// List returns instances matching filter.
func (e *Engine) List(ctx context.Context, filter core.InstanceFilter) ([]*core.Instance, error) {
	return e.store.List(ctx, filter)
}

// Cancel moves an instance to Cancelled if it is still Created, Notifying or Sleeping.
// On a terminal or releasing instance it is a no-op and returns Changed=false.
func (e *Engine) Cancel(ctx context.Context, id string) (*CancelResult, error) {
	for i := 0; i < maxCancelAttempts; i++ {
		cur, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !cur.State.Cancellable() {
			log.Ctx(ctx).Info().
				Str("instance", id).
				Str("state", string(cur.State)).
				Msg("workflow.cancel.ignored")
			return &CancelResult{Instance: cur, Changed: false}, nil
		}

		next := cur.Clone()
		next.State = core.StateCancelled
		next.ResumeAt = time.Time{}
		next.LeaseOwner = ""
		next.LeaseUntil = time.Time{}
		next.UpdatedAt = e.clock()

		err = e.store.CompareAndSwap(ctx, next, cur.Version)
		if errors.Is(err, core.ErrConflict) {
			// a step committed in between; re-evaluate against the fresh state
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cancelling instance: %w", err)
		}

		e.audit(next, "workflow.cancel", nil)
		log.Ctx(ctx).Info().
			Str("instance", id).
			Str("from", string(cur.State)).
			Msg("workflow.cancelled")
		return &CancelResult{Instance: next, Changed: true}, nil
	}
	return nil, fmt.Errorf("cancelling instance '%s': %w", id, core.ErrConflict)
}

// Advance runs steps of one instance for as long as it stays due.
func (e *Engine) Advance(ctx context.Context, id string) (*core.Instance, error) {
	var inst *core.Instance
	for i := 0; i < MaxStepsPerAdvance; i++ {
		var err error
		inst, err = e.Step(ctx, id)
		if err != nil {
			return inst, err
		}
		if !inst.Due(e.clock()) {
			break
		}
	}
	return inst, nil
}

// Step executes at most one checkpointed step of an instance. It returns the instance as
// persisted afterwards. Instances that are terminal or not yet due are returned unchanged.
func (e *Engine) Step(ctx context.Context, id string) (*core.Instance, error) {
	unlock := e.lock(id)
	defer unlock()

	cur, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Due(e.clock()) {
		return cur, nil
	}

	claimed, err := e.claim(ctx, cur)
	if err != nil {
		return cur, err
	}

	logger := log.Ctx(ctx).With().
		Str("instance", claimed.ID).
		Str("state", string(claimed.State)).
		Int("attempt", claimed.Attempt).
		Logger()

	switch claimed.State {
	case core.StateCreated:
		next := claimed.Clone()
		next.State = core.StateNotifying
		if claimed.Policy == core.StartRelease {
			next.State = core.StateReleasing
		}
		next.Attempt = 0
		next.ResumeAt = e.clock()
		return e.commit(ctx, claimed, next)
	case core.StateNotifying:
		return e.runNotify(ctx, &logger, claimed)
	case core.StateSleeping:
		return e.runWake(ctx, claimed)
	case core.StateReleasing:
		return e.runRelease(ctx, &logger, claimed)
	default:
		return claimed, core.InvalidTransitionError{From: claimed.State}
	}
}

func (e *Engine) runNotify(ctx context.Context, logger *zerolog.Logger, cur *core.Instance) (*core.Instance, error) {
	now := e.clock()
	msg := e.composer.OwnerNotification(cur, now.Add(e.opts.Wait))
	sendErr := e.dispatcher.Send(ctx, msg)

	next := cur.Clone()
	if sendErr == nil {
		logger.Info().Msg("workflow.notified")
		e.enterSleep(next, now)
		return e.commit(ctx, cur, next)
	}

	next.Attempt++
	next.LastError = sendErr.Error()
	if !e.opts.Notify.Exhausted(next.Attempt) {
		delay := e.opts.Notify.Delay(next.Attempt)
		next.ResumeAt = now.Add(delay)
		logger.Warn().Err(sendErr).Dur("retry_in", delay).Msg("workflow.notify.retry")
		return e.commit(ctx, cur, next)
	}

	exhausted := core.StepExhaustedError{Step: core.StateNotifying, Attempts: next.Attempt, Last: sendErr}
	if e.opts.Notify.OnExhausted == ExhaustionContinue {
		logger.Error().Err(exhausted).Msg("workflow.notify.exhausted; continuing to sleep")
		e.enterSleep(next, now)
		next.LastError = exhausted.Error()
		return e.commit(ctx, cur, next)
	}

	logger.Error().Err(exhausted).Msg("workflow.notify.exhausted; failing instance")
	next.State = core.StateFailed
	next.ResumeAt = time.Time{}
	next.LastError = exhausted.Error()
	return e.commit(ctx, cur, next)
}

func (e *Engine) enterSleep(next *core.Instance, now time.Time) {
	notifiedAt := now
	next.State = core.StateSleeping
	next.Attempt = 0
	next.NotifiedAt = &notifiedAt
	next.SleepUntil = now.Add(e.opts.Wait)
	next.ResumeAt = next.SleepUntil
}

func (e *Engine) runWake(ctx context.Context, cur *core.Instance) (*core.Instance, error) {
	now := e.clock()
	next := cur.Clone()
	if now.Before(cur.SleepUntil) {
		// resumed early (e.g. ResumeAt was edited); keep sleeping
		next.ResumeAt = cur.SleepUntil
		return e.commit(ctx, cur, next)
	}
	next.State = core.StateReleasing
	next.Attempt = 0
	next.LastError = ""
	next.ResumeAt = now
	return e.commit(ctx, cur, next)
}

func (e *Engine) runRelease(ctx context.Context, logger *zerolog.Logger, cur *core.Instance) (*core.Instance, error) {
	now := e.clock()
	releaseErr := e.deliverRelease(ctx, cur)

	next := cur.Clone()
	if releaseErr == nil {
		releasedAt := now
		next.State = core.StateCompleted
		next.ReleasedAt = &releasedAt
		next.ResumeAt = time.Time{}
		next.LastError = ""
		logger.Info().Msg("workflow.released")
		return e.commit(ctx, cur, next)
	}

	next.Attempt++
	next.LastError = releaseErr.Error()
	if !e.opts.Release.Exhausted(next.Attempt) {
		delay := e.opts.Release.Delay(next.Attempt)
		next.ResumeAt = now.Add(delay)
		logger.Warn().Err(releaseErr).Dur("retry_in", delay).Msg("workflow.release.retry")
		return e.commit(ctx, cur, next)
	}

	exhausted := core.StepExhaustedError{Step: core.StateReleasing, Attempts: next.Attempt, Last: releaseErr}
	next.ResumeAt = time.Time{}
	next.LastError = exhausted.Error()
	if e.opts.Release.OnExhausted == ExhaustionFail {
		logger.Error().Err(exhausted).Msg("workflow.release.exhausted; failing instance")
		next.State = core.StateFailed
	} else {
		// the release is lost but the countdown is over
		logger.Error().Err(exhausted).Msg("workflow.release.exhausted; completing without delivery")
		next.State = core.StateCompleted
	}
	return e.commit(ctx, cur, next)
}

func (e *Engine) deliverRelease(ctx context.Context, inst *core.Instance) error {
	content, err := e.content.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading protected content: %w", err)
	}
	return e.dispatcher.Send(ctx, e.composer.Release(inst, content))
}

// claim takes the lease on cur. A lease held by another runner blocks until it expires.
func (e *Engine) claim(ctx context.Context, cur *core.Instance) (*core.Instance, error) {
	now := e.clock()
	if cur.LeaseOwner != "" && cur.LeaseOwner != e.opts.RunnerID && now.Before(cur.LeaseUntil) {
		return nil, core.ErrLeaseHeld
	}
	next := cur.Clone()
	next.LeaseOwner = e.opts.RunnerID
	next.LeaseUntil = now.Add(e.opts.LeaseTTL)
	next.UpdatedAt = now
	if err := e.store.CompareAndSwap(ctx, next, cur.Version); err != nil {
		return nil, fmt.Errorf("claiming instance: %w", err)
	}
	return next, nil
}

// commit persists next in place of cur and releases the lease. If cur was changed in the
// meantime (an owner Cancel), the stored instance wins and is returned without error.
func (e *Engine) commit(ctx context.Context, cur, next *core.Instance) (*core.Instance, error) {
	next.LeaseOwner = ""
	next.LeaseUntil = time.Time{}
	next.UpdatedAt = e.clock()

	err := e.store.CompareAndSwap(ctx, next, cur.Version)
	if errors.Is(err, core.ErrConflict) {
		stored, getErr := e.store.Get(ctx, cur.ID)
		if getErr != nil {
			return nil, getErr
		}
		if stored.State == core.StateCancelled {
			log.Ctx(ctx).Info().
				Str("instance", cur.ID).
				Str("discarded", string(next.State)).
				Msg("workflow.step.superseded_by_cancel")
			return stored, nil
		}
		return stored, err
	}
	if err != nil {
		return nil, fmt.Errorf("committing step: %w", err)
	}

	if next.State != cur.State {
		e.audit(next, "workflow.transition", map[string]any{
			"from": string(cur.State),
			"to":   string(next.State),
		})
	}
	return next, nil
}

func (e *Engine) audit(inst *core.Instance, action string, metadata map[string]any) {
	entry := core.AuditEntry{
		ID:       inst.ID,
		Time:     e.clock(),
		Action:   action,
		Identity: inst.Identity,
		Instance: inst.ID,
		State:    inst.State,
		Success:  inst.State != core.StateFailed,
		Error:    inst.LastError,
		Metadata: metadata,
	}
	if err := e.auditor.Log(entry); err != nil {
		log.Error().Err(err).Str("instance", inst.ID).Msg("failed to write audit log entry")
	}
}

func (e *Engine) lock(id string) func() {
	return e.locks.lock(id)
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
