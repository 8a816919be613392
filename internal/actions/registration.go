package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/fieldbook/internal/constants"
	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/utils"
)

var (
	ErrActionInvalid       = errors.New("action is not valid against the current structure")
	ErrAlreadyRegistered   = errors.New("daily action already registered today")
	ErrRegistrationPending = errors.New("another registration is already pending")
	ErrValueRequired       = errors.New("custom action requires a value")
	ErrNothingPending      = errors.New("no registration pending")
)

// RegistrationResult reports the outcome of a commit, whether it came from the
// countdown or an explicit confirm.
type RegistrationResult struct {
	ActionID string
	Err      error
}

// pendingRegistration captures everything a commit needs at trigger time, so a
// later change of the pending slot can never leak into an old countdown.
type pendingRegistration struct {
	ctx    context.Context
	action models.Action
	value  *float64
	timer  *time.Timer
}

// Registrar is the delayed-commit state machine layered on the registry:
// Idle -> Pending -> Committed or Canceled. Triggering starts a countdown;
// the countdown elapsing and an explicit confirm apply the same effect.
type Registrar struct {
	registry *Registry
	client   remote.Client
	delay    time.Duration

	// OnResult, when set, receives the outcome of every commit. Needed for
	// countdown commits, which happen off the caller's goroutine.
	OnResult func(RegistrationResult)

	pending *pendingRegistration
}

// NewRegistrar wires a registrar over the registry. A non-positive delay falls
// back to the default countdown.
func NewRegistrar(registry *Registry, client remote.Client, delay time.Duration) *Registrar {
	if delay <= 0 {
		delay = constants.RegistrationDelay
	}
	return &Registrar{registry: registry, client: client, delay: delay}
}

// Pending returns the action currently awaiting commit, if any.
func (r *Registrar) Pending() (models.Action, bool) {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()
	if r.pending == nil {
		return models.Action{}, false
	}
	return r.pending.action, true
}

// Trigger moves Idle -> Pending for a valid, not-yet-completed action and
// starts the countdown. Invalid actions, daily actions already registered
// today, and custom actions without a value are rejected with no transition.
func (r *Registrar) Trigger(ctx context.Context, id string, value *float64) error {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.pending != nil {
		return ErrRegistrationPending
	}

	var target *ValidatedAction
	for i := range r.registry.validated {
		if r.registry.validated[i].ID == id {
			target = &r.registry.validated[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}
	if !target.Validation.IsValid {
		return fmt.Errorf("%w: %s", ErrActionInvalid, target.Validation.Reason)
	}
	if target.CompletedOn(utils.Today()) {
		return ErrAlreadyRegistered
	}
	if target.Option.IsCustom && value == nil {
		// CHECK bindings toggle; the boundary ignores any value for them.
		fieldType := r.registry.index.FieldType(target.FieldID, target.Option.FieldTypeID)
		if fieldType == nil || fieldType.Kind != models.KindCheck {
			return ErrValueRequired
		}
	}

	// The countdown outlives the triggering call, so detach its context from
	// the caller's cancellation.
	pending := &pendingRegistration{
		ctx:    context.WithoutCancel(ctx),
		action: target.Action,
		value:  value,
	}
	pending.timer = time.AfterFunc(r.delay, func() {
		r.commit(pending)
	})
	r.pending = pending
	return nil
}

// Confirm commits the pending registration immediately instead of waiting out
// the countdown.
func (r *Registrar) Confirm() error {
	r.registry.mu.Lock()
	pending := r.pending
	if pending == nil {
		r.registry.mu.Unlock()
		return ErrNothingPending
	}
	pending.timer.Stop()
	r.registry.mu.Unlock()

	return r.commit(pending)
}

// Cancel discards the pending registration with no side effect.
func (r *Registrar) Cancel() error {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()
	if r.pending == nil {
		return ErrNothingPending
	}
	r.pending.timer.Stop()
	r.pending = nil
	return nil
}

// commit is the single Pending -> Committed edge. The identity check against
// the pending slot makes the countdown and an explicit confirm race-safe: only
// one of them wins, and a cancelled intent commits nothing.
func (r *Registrar) commit(pending *pendingRegistration) error {
	r.registry.mu.Lock()
	if r.pending != pending {
		r.registry.mu.Unlock()
		return nil
	}
	r.pending = nil
	r.registry.mu.Unlock()

	err := r.client.RegisterAction(pending.ctx, remote.RegisterActionRequest{
		ID:    pending.action.ID,
		Value: pending.value,
	})
	if err != nil {
		err = fmt.Errorf("failed to register action: %w", err)
	} else if pending.action.IsDailyAction {
		r.registry.markTriggered(pending.action.ID, utils.Today())
	}

	if r.OnResult != nil {
		r.OnResult(RegistrationResult{ActionID: pending.action.ID, Err: err})
	}
	return err
}
