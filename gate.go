package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GateResult is the outcome of RequireCompletion.
type GateResult uint8

const (
	// GateRan means the session was complete and the action executed
	// synchronously.
	GateRan GateResult = iota
	// GateCompletionRequired means the action was intercepted and stored;
	// the caller should present a completion prompt.
	GateCompletionRequired
)

// IsComplete reports whether the current session carries enough profile
// data to transact. Absent session reports false.
func (e *Engine) IsComplete(ctx context.Context) bool {
	s, ok := e.sessions.Get(ctx)
	return ok && s.Complete()
}

// RequireCompletion gates an irreversible action behind profile
// completeness. With no session it returns ErrUnauthenticated and stores
// nothing; the caller should redirect to the flow entry point. With an
// incomplete session the action is stored as the single pending action,
// replacing any prior one, and GateCompletionRequired is returned. With a
// complete session the action runs synchronously and its error is
// returned.
func (e *Engine) RequireCompletion(ctx context.Context, action func(context.Context) error) (GateResult, error) {
	if action == nil {
		return GateRan, errors.New("nil action")
	}

	s, ok := e.sessions.Get(ctx)
	if !ok {
		return GateRan, ErrUnauthenticated
	}

	if !s.Complete() {
		e.gateMu.Lock()
		e.pendingAction = action
		e.gateMu.Unlock()
		e.metricInc(MetricCompletionRequired)
		return GateCompletionRequired, nil
	}

	return GateRan, action(ctx)
}

// CompletionPending reports whether a gated action is waiting on profile
// completion.
func (e *Engine) CompletionPending() bool {
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	return e.pendingAction != nil
}

// SubmitCompletion sends the completion payload to the backend. On success
// the stored identity is updated in place and the pending action, if any,
// runs exactly once and is discarded. On failure the pending action stays
// intact so the user can retry without repeating the original booking
// gesture.
func (e *Engine) SubmitCompletion(ctx context.Context, name, email string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name required", ErrProfileInvalid)
	}
	if email != "" {
		normalized, err := validateEmail(email)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProfileInvalid, err)
		}
		email = normalized
	}

	s, ok := e.sessions.Get(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	identity, err := e.client.UpdateProfile(ctx, s.Token, name, email)
	if err != nil {
		e.metricInc(MetricCompletionFailure)
		e.emitAudit(ctx, auditEventCompletionSubmit, false, s.Identity.ID, "", err, nil)
		return err
	}

	if err := e.sessions.Update(ctx, identity); err != nil {
		e.metricInc(MetricCompletionFailure)
		e.emitAudit(ctx, auditEventCompletionSubmit, false, identity.ID, "", err, nil)
		return err
	}

	// Pop before invoking so the action can itself pass through the gate
	// without re-running.
	e.gateMu.Lock()
	action := e.pendingAction
	e.pendingAction = nil
	e.gateMu.Unlock()

	e.metricInc(MetricCompletionSuccess)
	e.emitAudit(ctx, auditEventCompletionSubmit, true, identity.ID, "", nil, nil)

	if action != nil {
		return action(ctx)
	}
	return nil
}

// CancelCompletion discards the pending action without invoking it. The
// original gated gesture is abandoned, not queued.
func (e *Engine) CancelCompletion(ctx context.Context) {
	e.gateMu.Lock()
	had := e.pendingAction != nil
	e.pendingAction = nil
	e.gateMu.Unlock()

	if had {
		e.metricInc(MetricCompletionCancelled)
		e.emitAudit(ctx, auditEventCompletionCancel, true, "", "", nil, nil)
	}
}
