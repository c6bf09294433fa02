package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookline/authflow/internal/sched"
	"github.com/google/uuid"
)

// VerifierState is the verifier's position in its send/verify lifecycle.
type VerifierState uint8

const (
	// VerifierIdle means no code has been requested.
	VerifierIdle VerifierState = iota
	// VerifierSending means a code request round-trip is outstanding.
	VerifierSending
	// VerifierSent means a code is out and may be submitted or resent.
	VerifierSent
	// VerifierVerifying means a submission round-trip is outstanding.
	VerifierVerifying
	// VerifierResending means a resend round-trip is outstanding.
	VerifierResending
	// VerifierVerified is the success terminal state.
	VerifierVerified
	// VerifierRejected is the terminal state after exhausting attempts.
	// Only a fresh code request leaves it.
	VerifierRejected
)

func (s VerifierState) String() string {
	switch s {
	case VerifierIdle:
		return "idle"
	case VerifierSending:
		return "sending"
	case VerifierSent:
		return "sent"
	case VerifierVerifying:
		return "verifying"
	case VerifierResending:
		return "resending"
	case VerifierVerified:
		return "verified"
	case VerifierRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PendingVerification is the single in-flight one-time-code challenge.
// At most one exists per verifier; requesting a new code invalidates the
// previous challenge.
type PendingVerification struct {
	ID                  string
	Channel             Channel
	Destination         string
	CodeLength          int
	AttemptsMade        int
	MaxAttempts         int
	DevelopmentEchoCode string
}

// Verifier drives send, verify, and resend for one pending credential.
// A Verifier belongs to a single flow instance; Cancel tears it down.
type Verifier struct {
	engine *Engine
	flowID string

	mu         sync.Mutex
	state      VerifierState
	pending    *PendingVerification
	entered    []byte
	generation uint64

	canResend     bool
	cooldownEnds  time.Time
	cooldownTimer sched.Timer
}

// NewVerifier creates a standalone verifier. Flows create their own; this
// constructor exists for embedding verification outside a full flow, such
// as verifying a newly added contact channel from settings.
func (e *Engine) NewVerifier() *Verifier {
	return &Verifier{engine: e}
}

func (e *Engine) newFlowVerifier(flowID string) *Verifier {
	return &Verifier{engine: e, flowID: flowID}
}

// State returns the current lifecycle state.
func (v *Verifier) State() VerifierState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Pending returns a copy of the in-flight challenge, if any.
func (v *Verifier) Pending() (PendingVerification, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return PendingVerification{}, false
	}
	return *v.pending, true
}

// EchoCode returns the backend's development-mode code for display and
// one-tap auto-fill. Outside the development environment it is always
// empty, regardless of what the backend echoed.
func (v *Verifier) EchoCode() string {
	if v.engine.config.Environment != EnvDevelopment {
		return ""
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return ""
	}
	return v.pending.DevelopmentEchoCode
}

// CanResend reports whether the resend cooldown has elapsed.
func (v *Verifier) CanResend() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending != nil && v.canResend
}

// ResendRemaining returns the time left on the resend cooldown.
func (v *Verifier) ResendRemaining() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil || v.canResend {
		return 0
	}
	remaining := v.cooldownEnds.Sub(v.engine.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EnteredDigits returns the digits typed so far.
func (v *Verifier) EnteredDigits() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return string(v.entered)
}

func (v *Verifier) validateDestination(dest Destination) (Destination, error) {
	switch dest.Channel {
	case ChannelPhone:
		normalized, err := normalizePhone(v.engine.config.Verification.CountryCode, dest.Value)
		if err != nil {
			return Destination{}, err
		}
		return Destination{Channel: ChannelPhone, Value: normalized}, nil
	case ChannelEmail:
		addr, err := validateEmail(dest.Value)
		if err != nil {
			return Destination{}, err
		}
		return Destination{Channel: ChannelEmail, Value: addr}, nil
	default:
		return Destination{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidDestination, dest.Channel)
	}
}

// RequestCode validates the destination locally, then asks the backend to
// dispatch a code. Success creates a fresh PendingVerification with zero
// attempts and arms the resend cooldown. Any previous challenge, including
// one in the terminal rejected state, is invalidated.
func (v *Verifier) RequestCode(ctx context.Context, dest Destination) error {
	normalized, err := v.validateDestination(dest)
	if err != nil {
		v.engine.metricInc(MetricCodeRequestFailure)
		v.engine.emitAudit(ctx, auditEventCodeRequest, false, "", v.flowID, err, func() map[string]string {
			return map[string]string{"channel": string(dest.Channel)}
		})
		return err
	}

	v.mu.Lock()
	if v.state == VerifierSending || v.state == VerifierVerifying || v.state == VerifierResending {
		v.mu.Unlock()
		return ErrVerificationInFlight
	}
	v.generation++
	gen := v.generation
	v.state = VerifierSending
	v.stopCooldownLocked()
	v.mu.Unlock()

	result, err := v.engine.client.SendCode(ctx, normalized)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		// Cancelled or superseded while the request was in flight.
		return ErrNoPendingVerification
	}

	if err != nil || !result.Accepted {
		if err == nil {
			err = fmt.Errorf("%w: code request not accepted", ErrChannelUnavailable)
		}
		v.state = VerifierIdle
		v.pending = nil
		v.entered = nil
		v.engine.metricInc(MetricCodeRequestFailure)
		v.engine.emitAudit(ctx, auditEventCodeRequest, false, "", v.flowID, err, nil)
		return err
	}

	v.pending = &PendingVerification{
		ID:                  uuid.NewString(),
		Channel:             normalized.Channel,
		Destination:         normalized.Value,
		CodeLength:          v.engine.config.Verification.CodeLength,
		AttemptsMade:        0,
		MaxAttempts:         v.engine.config.Verification.MaxAttempts,
		DevelopmentEchoCode: result.DevelopmentEchoCode,
	}
	v.entered = nil
	v.state = VerifierSent
	v.armCooldownLocked(gen)

	v.engine.metricInc(MetricCodeRequested)
	v.engine.emitAudit(ctx, auditEventCodeRequest, true, "", v.flowID, nil, func() map[string]string {
		return map[string]string{"channel": string(normalized.Channel)}
	})
	return nil
}

// EnterDigits appends typed digits and auto-submits once the entered code
// reaches exactly the configured length. Partial input never triggers a
// network call; keystrokes arriving while a submission is outstanding are
// dropped. Returns the auth result when the auto-submit succeeds.
func (v *Verifier) EnterDigits(ctx context.Context, digits string) (*AuthResult, error) {
	v.mu.Lock()
	if v.state != VerifierSent || v.pending == nil {
		v.mu.Unlock()
		return nil, nil
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			continue
		}
		if len(v.entered) < v.pending.CodeLength {
			v.entered = append(v.entered, byte(r))
		}
	}
	if len(v.entered) < v.pending.CodeLength {
		v.mu.Unlock()
		return nil, nil
	}
	code := string(v.entered)
	v.mu.Unlock()

	result, err := v.SubmitCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitCode verifies the entered code with the backend. The attempt is
// counted before the round-trip resolves, so an interrupted submission
// still consumes an attempt. Success destroys the challenge and returns
// the new identity and token; the caller persists them. A failure at the
// attempt cap lands in the terminal rejected state.
func (v *Verifier) SubmitCode(ctx context.Context, code string) (*AuthResult, error) {
	v.mu.Lock()
	if v.pending == nil {
		v.mu.Unlock()
		return nil, ErrNoPendingVerification
	}
	if v.state == VerifierVerifying || v.state == VerifierSending || v.state == VerifierResending {
		v.mu.Unlock()
		return nil, ErrVerificationInFlight
	}
	if v.state == VerifierRejected {
		v.mu.Unlock()
		return nil, ErrAttemptsExceeded
	}
	if len(code) != v.pending.CodeLength || !isDigits(code) {
		v.mu.Unlock()
		return nil, ErrIncompleteCode
	}

	v.pending.AttemptsMade++
	v.state = VerifierVerifying
	gen := v.generation
	dest := Destination{Channel: v.pending.Channel, Value: v.pending.Destination}
	v.mu.Unlock()

	result, err := v.engine.client.VerifyCode(ctx, dest, code)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		return nil, ErrNoPendingVerification
	}

	if err != nil {
		v.entered = nil
		if !errors.Is(err, ErrInvalidCode) && !errors.Is(err, ErrCodeExpired) {
			// Transport failure: the attempt stays counted, the challenge
			// stays live, and the user may retry the same action.
			v.state = VerifierSent
			v.engine.emitAudit(ctx, auditEventCodeSubmit, false, "", v.flowID, err, nil)
			return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
		}
		if v.pending.AttemptsMade >= v.pending.MaxAttempts {
			v.state = VerifierRejected
			v.engine.metricInc(MetricCodeAttemptsExceeded)
			v.engine.emitAudit(ctx, auditEventCodeSubmit, false, "", v.flowID, ErrAttemptsExceeded, func() map[string]string {
				return map[string]string{"attempts": fmt.Sprint(v.pending.AttemptsMade)}
			})
			return nil, ErrAttemptsExceeded
		}
		v.state = VerifierSent
		v.engine.metricInc(MetricCodeRejected)
		v.engine.emitAudit(ctx, auditEventCodeSubmit, false, "", v.flowID, err, func() map[string]string {
			return map[string]string{"attempts": fmt.Sprint(v.pending.AttemptsMade)}
		})
		return nil, err
	}

	v.pending = nil
	v.entered = nil
	v.state = VerifierVerified
	v.stopCooldownLocked()

	v.engine.metricInc(MetricCodeVerified)
	v.engine.emitAudit(ctx, auditEventCodeSubmit, true, result.Identity.ID, v.flowID, nil, nil)
	return &result, nil
}

// ResendCode requests a fresh code for the pending destination. Permitted
// only once the cooldown elapses; success resets the attempt counter and
// restarts the cooldown. The previous development echo code survives until
// the new response lands so the display never flashes empty.
func (v *Verifier) ResendCode(ctx context.Context) error {
	v.mu.Lock()
	if v.pending == nil {
		v.mu.Unlock()
		return ErrNoPendingVerification
	}
	if v.state == VerifierSending || v.state == VerifierVerifying || v.state == VerifierResending {
		v.mu.Unlock()
		return ErrVerificationInFlight
	}
	if !v.canResend {
		v.mu.Unlock()
		return ErrCooldownActive
	}

	v.state = VerifierResending
	gen := v.generation
	dest := Destination{Channel: v.pending.Channel, Value: v.pending.Destination}
	v.mu.Unlock()

	result, err := v.engine.client.SendCode(ctx, dest)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		return ErrNoPendingVerification
	}

	if err != nil || !result.Accepted {
		if err == nil {
			err = fmt.Errorf("%w: code request not accepted", ErrChannelUnavailable)
		}
		// The original challenge stays live; only the resend failed.
		v.state = VerifierSent
		v.engine.metricInc(MetricCodeRequestFailure)
		v.engine.emitAudit(ctx, auditEventCodeResend, false, "", v.flowID, err, nil)
		return err
	}

	v.pending.AttemptsMade = 0
	if result.DevelopmentEchoCode != "" {
		v.pending.DevelopmentEchoCode = result.DevelopmentEchoCode
	}
	v.entered = nil
	v.state = VerifierSent
	v.armCooldownLocked(gen)

	v.engine.metricInc(MetricCodeResent)
	v.engine.emitAudit(ctx, auditEventCodeResend, true, "", v.flowID, nil, nil)
	return nil
}

// Cancel destroys the pending challenge and its timers. An in-flight
// round-trip that resolves afterwards is discarded; a cancelled code can
// never complete into a later flow.
func (v *Verifier) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	v.pending = nil
	v.entered = nil
	v.state = VerifierIdle
	v.stopCooldownLocked()
}

func (v *Verifier) armCooldownLocked(gen uint64) {
	v.canResend = false
	cooldown := v.engine.config.Verification.ResendCooldown
	v.cooldownEnds = v.engine.clock.Now().Add(cooldown)
	v.cooldownTimer = v.engine.clock.AfterFunc(cooldown, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.generation != gen {
			return
		}
		v.canResend = true
	})
}

func (v *Verifier) stopCooldownLocked() {
	if v.cooldownTimer != nil {
		v.cooldownTimer.Stop()
		v.cooldownTimer = nil
	}
	v.canResend = false
}
