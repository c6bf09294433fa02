package authflow

import (
	"context"
	"errors"
	"sync"

	"github.com/bookline/authflow/internal/sched"
	"github.com/bookline/authflow/session"
	"github.com/google/uuid"
)

// FlowState is the orchestrator's single active state.
type FlowState uint8

const (
	// StateLoading is the fixed entry interval before the first
	// interactive state.
	StateLoading FlowState = iota
	// StatePhoneInput collects a customer phone number.
	StatePhoneInput
	// StateAdminLogin collects salon-owner credentials.
	StateAdminLogin
	// StateOTPVerification delegates to the verifier.
	StateOTPVerification
	// StateProfileSetup blocks a federated login on missing profile data
	// until completed or explicitly skipped.
	StateProfileSetup
	// StateWelcome runs the staged post-auth welcome sequence.
	StateWelcome
	// StateRedirect is terminal; the flow's responsibility ends here.
	StateRedirect
	// StateClosed marks a torn-down flow.
	StateClosed
)

func (s FlowState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePhoneInput:
		return "phone-input"
	case StateAdminLogin:
		return "admin-login"
	case StateOTPVerification:
		return "otp-verification"
	case StateProfileSetup:
		return "profile-setup"
	case StateWelcome:
		return "welcome"
	case StateRedirect:
		return "redirect"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FlowHint selects the first interactive state after loading.
type FlowHint uint8

const (
	// HintCustomer opens the phone one-time-code channel.
	HintCustomer FlowHint = iota
	// HintAdmin opens the salon-owner password channel.
	HintAdmin
)

// RedirectTarget is a terminal navigation destination. It is the flow's
// only exit value; the engine owns no process exit codes.
type RedirectTarget string

const (
	// RedirectHome is the default post-auth surface.
	RedirectHome RedirectTarget = "home"
	// RedirectOwnerDashboard is the salon management surface.
	RedirectOwnerDashboard RedirectTarget = "owner-dashboard"
)

func redirectForRole(role session.Role) RedirectTarget {
	if role == session.RoleSalonOwner {
		return RedirectOwnerDashboard
	}
	return RedirectHome
}

// adminRetry carries credentials across the unverified-account recovery
// detour. The login is auto-retried exactly once after verification.
type adminRetry struct {
	identifier string
	password   string
	attempted  bool
}

// Flow sequences one authentication attempt: loading, channel selection,
// verification, post-auth welcome, terminal redirect. A Flow owns its
// verifier and timers; Close tears both down. Methods are safe for
// concurrent use, though callers are expected to drive a flow from a
// single UI thread.
type Flow struct {
	engine     *Engine
	id         string
	hint       FlowHint
	verifier   *Verifier
	onRedirect func(RedirectTarget)

	mu           sync.Mutex
	state        FlowState
	redirect     RedirectTarget
	loadingTimer sched.Timer
	welcomeTimer sched.Timer
	welcomeStage int
	retry        *adminRetry
	closed       bool
}

// NewFlow starts an authentication flow. If a session already exists,
// fresh or rehydrated, the flow resolves to its terminal redirect
// immediately and no intermediate state is ever entered; the loading
// timer is not armed. onRedirect, if non-nil, fires once on the terminal
// transition.
func (e *Engine) NewFlow(ctx context.Context, hint FlowHint, onRedirect func(RedirectTarget)) *Flow {
	f := &Flow{
		engine:     e,
		id:         uuid.NewString(),
		hint:       hint,
		onRedirect: onRedirect,
	}
	f.verifier = e.newFlowVerifier(f.id)

	// Entry reconciliation runs before the loading timer is armed.
	if existing, ok := e.sessions.Get(ctx); ok {
		if e.sessions.Rehydrated(ctx) {
			e.metricInc(MetricSessionRestored)
			e.emitAudit(ctx, auditEventSessionRestore, true, existing.Identity.ID, f.id, nil, nil)
		}
		f.state = StateRedirect
		f.redirect = redirectForRole(existing.Identity.Role)
		e.metricInc(MetricRedirect)
		e.emitAudit(ctx, auditEventFlowTransition, true, existing.Identity.ID, f.id, nil, func() map[string]string {
			return map[string]string{"state": f.state.String(), "redirect": string(f.redirect)}
		})
		if onRedirect != nil {
			onRedirect(f.redirect)
		}
		return f
	}

	e.metricInc(MetricFlowStarted)
	f.state = StateLoading
	f.loadingTimer = e.clock.AfterFunc(e.config.Flow.LoadingDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed || f.state != StateLoading {
			return
		}
		if f.hint == HintAdmin {
			f.state = StateAdminLogin
		} else {
			f.state = StatePhoneInput
		}
	})
	return f
}

// ID identifies this flow instance in audit events.
func (f *Flow) ID() string { return f.id }

// State returns the single active state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Redirect returns the terminal destination once the flow has resolved.
func (f *Flow) Redirect() (RedirectTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateRedirect {
		return "", false
	}
	return f.redirect, true
}

// Verifier exposes the flow's one-time-code verifier for countdown and
// echo-code display.
func (f *Flow) Verifier() *Verifier {
	return f.verifier
}

// WelcomeStage returns the name of the active welcome stage, or "" outside
// the welcome state.
func (f *Flow) WelcomeStage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateWelcome {
		return ""
	}
	stages := f.engine.config.Welcome.Stages
	if f.welcomeStage >= len(stages) {
		return ""
	}
	return stages[f.welcomeStage].Name
}

// RetryCredentials returns the identifier pre-filled after a failed
// post-verification login retry.
func (f *Flow) RetryCredentials() (identifier string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retry == nil {
		return "", false
	}
	return f.retry.identifier, true
}

// SwitchToAdmin moves to the password channel. Always available from the
// interactive states; any pending verification is cancelled so a stale
// code can never complete into the owner flow.
func (f *Flow) SwitchToAdmin() error {
	return f.switchChannel(StateAdminLogin)
}

// SwitchToPhone moves to the phone channel, cancelling any pending
// verification.
func (f *Flow) SwitchToPhone() error {
	return f.switchChannel(StatePhoneInput)
}

func (f *Flow) switchChannel(target FlowState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	switch f.state {
	case StatePhoneInput, StateAdminLogin, StateOTPVerification:
	default:
		return ErrInvalidState
	}
	f.verifier.Cancel()
	f.retry = nil
	f.state = target
	return nil
}

// EditDestination abandons the pending verification and returns to the
// phone input so the user can correct the number.
func (f *Flow) EditDestination() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	if f.state != StateOTPVerification {
		return ErrInvalidState
	}
	f.verifier.Cancel()
	f.state = StatePhoneInput
	return nil
}

// SubmitPhone validates the customer's phone number and requests a code.
// On success the flow advances to code verification.
func (f *Flow) SubmitPhone(ctx context.Context, phone string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StatePhoneInput {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()

	if err := f.verifier.RequestCode(ctx, Destination{Channel: ChannelPhone, Value: phone}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	if f.state != StatePhoneInput {
		// The flow moved on while the request was in flight; the open
		// flow stays in whatever state it reached.
		return ErrInvalidState
	}
	f.state = StateOTPVerification
	return nil
}

// EnterCode feeds typed digits to the verifier. When the full code
// verifies, the session is persisted and the flow advances: the customer
// path runs the welcome sequence, the unverified-recovery path retries the
// original owner login exactly once.
func (f *Flow) EnterCode(ctx context.Context, digits string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StateOTPVerification {
		f.mu.Unlock()
		return ErrInvalidState
	}
	retry := f.retry
	f.mu.Unlock()

	result, err := f.verifier.EnterDigits(ctx, digits)
	if err != nil {
		return err
	}
	if result == nil {
		// Partial input, or keystrokes dropped mid-verification.
		return nil
	}

	if retry != nil && !retry.attempted {
		return f.finishUnverifiedRecovery(ctx, retry)
	}

	if err := f.engine.sessions.Set(ctx, result.Identity, result.Token); err != nil {
		return err
	}
	f.startWelcome(ctx, result.Identity.Role)
	return nil
}

// ResendCode re-requests the pending code once the cooldown elapses.
func (f *Flow) ResendCode(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StateOTPVerification {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()
	return f.verifier.ResendCode(ctx)
}

// finishUnverifiedRecovery retries the original password login once after
// the account verified. A failed retry drops back to the login form with
// the identifier retained; it is never auto-retried again.
func (f *Flow) finishUnverifiedRecovery(ctx context.Context, retry *adminRetry) error {
	retry.attempted = true

	result, err := f.engine.client.Login(ctx, retry.identifier, retry.password)
	if err != nil {
		f.engine.metricInc(MetricLoginFailure)
		f.engine.emitAudit(ctx, auditEventLogin, false, "", f.id, err, func() map[string]string {
			return map[string]string{"phase": "post_verification_retry"}
		})
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return ErrFlowClosed
		}
		f.state = StateAdminLogin
		return err
	}

	return f.completeAdminLogin(ctx, result)
}

// AdminLogin authenticates a salon owner with password credentials. A
// correct credential bound to a non-owner identity is rejected with
// ErrAccessDenied, not treated as authenticated. An unverified account
// detours into code verification using the destination already on file.
func (f *Flow) AdminLogin(ctx context.Context, identifier, password string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StateAdminLogin {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()

	result, err := f.engine.client.Login(ctx, identifier, password)
	if err != nil {
		var unverified *UnverifiedError
		if errors.As(err, &unverified) {
			return f.beginUnverifiedRecovery(ctx, identifier, password, unverified)
		}
		f.engine.metricInc(MetricLoginFailure)
		f.engine.emitAudit(ctx, auditEventLogin, false, "", f.id, err, nil)
		return err
	}

	return f.completeAdminLogin(ctx, result)
}

func (f *Flow) completeAdminLogin(ctx context.Context, result AuthResult) error {
	if result.Identity.Role != session.RoleSalonOwner {
		f.engine.metricInc(MetricAccessDenied)
		f.engine.emitAudit(ctx, auditEventLogin, false, result.Identity.ID, f.id, ErrAccessDenied, func() map[string]string {
			return map[string]string{"role": string(result.Identity.Role)}
		})
		f.mu.Lock()
		if !f.closed {
			f.state = StateAdminLogin
		}
		f.mu.Unlock()
		return ErrAccessDenied
	}

	if err := f.engine.sessions.Set(ctx, result.Identity, result.Token); err != nil {
		return err
	}

	f.engine.metricInc(MetricLoginSuccess)
	f.engine.emitAudit(ctx, auditEventLogin, true, result.Identity.ID, f.id, nil, nil)

	// Owners skip the welcome sequence and land on management directly.
	f.finishRedirect(ctx, result.Identity.Role, result.Identity.ID)
	return nil
}

func (f *Flow) beginUnverifiedRecovery(ctx context.Context, identifier, password string, unverified *UnverifiedError) error {
	if err := f.verifier.RequestCode(ctx, unverified.Destination); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	f.retry = &adminRetry{identifier: identifier, password: password}
	f.state = StateOTPVerification
	f.engine.emitAudit(ctx, auditEventLogin, false, unverified.IdentityID, f.id, unverified, func() map[string]string {
		return map[string]string{"recovery": "verification"}
	})
	return nil
}

// FederatedLogin forwards an external identity assertion to the backend.
// A complete profile resolves straight to the terminal redirect; an
// incomplete one blocks in the profile setup sub-state until completed or
// skipped. A role conflict surfaces both roles to the caller unchanged.
func (f *Flow) FederatedLogin(ctx context.Context, assertion string, requestedRole session.Role) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StatePhoneInput && f.state != StateAdminLogin {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()

	result, err := f.engine.client.FederatedLogin(ctx, assertion, requestedRole)
	if err != nil {
		var conflict *RoleConflictError
		if errors.As(err, &conflict) {
			f.engine.metricInc(MetricRoleConflict)
			f.engine.emitAudit(ctx, auditEventFederatedLogin, false, "", f.id, conflict, func() map[string]string {
				return map[string]string{
					"existing_role":  string(conflict.ExistingRole),
					"requested_role": string(conflict.RequestedRole),
				}
			})
			return conflict
		}
		f.engine.metricInc(MetricFederatedLoginFailure)
		f.engine.emitAudit(ctx, auditEventFederatedLogin, false, "", f.id, err, nil)
		return err
	}

	if err := f.engine.sessions.Set(ctx, result.Identity, result.Token); err != nil {
		return err
	}

	f.engine.metricInc(MetricFederatedLoginSuccess)
	f.engine.emitAudit(ctx, auditEventFederatedLogin, true, result.Identity.ID, f.id, nil, func() map[string]string {
		return map[string]string{"new_user": boolString(result.IsNewUser)}
	})

	if (session.Session{Identity: result.Identity, Token: result.Token}).Complete() {
		f.finishRedirect(ctx, result.Identity.Role, result.Identity.ID)
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	f.verifier.Cancel()
	f.state = StateProfileSetup
	return nil
}

// CompleteProfileSetup resolves the blocking federated-login completion
// with a name and optional email, then performs the terminal redirect.
func (f *Flow) CompleteProfileSetup(ctx context.Context, name, email string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StateProfileSetup {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()

	if err := f.engine.SubmitCompletion(ctx, name, email); err != nil {
		return err
	}

	s, ok := f.engine.sessions.Get(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	f.finishRedirect(ctx, s.Identity.Role, s.Identity.ID)
	return nil
}

// SkipProfileSetup explicitly dismisses the blocking completion and
// proceeds to the terminal redirect with the profile left incomplete.
func (f *Flow) SkipProfileSetup(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StateProfileSetup {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()

	s, ok := f.engine.sessions.Get(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	f.finishRedirect(ctx, s.Identity.Role, s.Identity.ID)
	return nil
}

// Register creates a first-time customer account from the phone flow and
// runs the welcome sequence.
func (f *Flow) Register(ctx context.Context, draft IdentityDraft) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StatePhoneInput && f.state != StateOTPVerification {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()

	if draft.Role == "" {
		draft.Role = session.RoleCustomer
	}

	result, err := f.engine.client.Register(ctx, draft)
	if err != nil {
		f.engine.metricInc(MetricRegistrationFailure)
		f.engine.emitAudit(ctx, auditEventRegister, false, "", f.id, err, nil)
		return err
	}

	if err := f.engine.sessions.Set(ctx, result.Identity, result.Token); err != nil {
		return err
	}

	f.engine.metricInc(MetricRegistrationSuccess)
	f.engine.emitAudit(ctx, auditEventRegister, true, result.Identity.ID, f.id, nil, nil)

	f.startWelcome(ctx, result.Identity.Role)
	return nil
}

// startWelcome runs the fixed staged sequence and redirects at the end.
// The stages have no side effects besides the final redirect and complete
// even when visually collapsed.
func (f *Flow) startWelcome(ctx context.Context, role session.Role) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.verifier.Cancel()
	f.state = StateWelcome
	f.welcomeStage = 0
	notify := f.armWelcomeStageLocked(ctx, role)
	f.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// armWelcomeStageLocked schedules the next stage, or resolves the redirect
// when the sequence is exhausted. The returned closure, if non-nil, must
// be invoked after releasing the flow lock.
func (f *Flow) armWelcomeStageLocked(ctx context.Context, role session.Role) func() {
	stages := f.engine.config.Welcome.Stages
	if f.welcomeStage >= len(stages) {
		return f.finishRedirectLocked(ctx, role, "")
	}
	stage := stages[f.welcomeStage]
	f.welcomeTimer = f.engine.clock.AfterFunc(stage.Duration, func() {
		f.mu.Lock()
		if f.closed || f.state != StateWelcome {
			f.mu.Unlock()
			return
		}
		f.welcomeStage++
		notify := f.armWelcomeStageLocked(ctx, role)
		f.mu.Unlock()
		if notify != nil {
			notify()
		}
	})
	return nil
}

func (f *Flow) finishRedirect(ctx context.Context, role session.Role, identityID string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	notify := f.finishRedirectLocked(ctx, role, identityID)
	f.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// finishRedirectLocked resolves the terminal state. The returned closure,
// if non-nil, delivers the redirect callback and must be invoked after
// releasing the flow lock.
func (f *Flow) finishRedirectLocked(ctx context.Context, role session.Role, identityID string) func() {
	f.stopTimersLocked()
	f.verifier.Cancel()
	f.state = StateRedirect
	f.redirect = redirectForRole(role)
	f.engine.metricInc(MetricRedirect)
	f.engine.emitAudit(ctx, auditEventFlowTransition, true, identityID, f.id, nil, func() map[string]string {
		return map[string]string{"state": "redirect", "redirect": string(f.redirect)}
	})
	if f.onRedirect == nil {
		return nil
	}
	cb := f.onRedirect
	target := f.redirect
	return func() { cb(target) }
}

// Close tears down the flow: timers are cancelled and the pending
// verification is destroyed. A cancelled timer never fires into a
// torn-down flow, and nothing leaks into the next flow instance.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.stopTimersLocked()
	f.verifier.Cancel()
	f.state = StateClosed
}

func (f *Flow) stopTimersLocked() {
	if f.loadingTimer != nil {
		f.loadingTimer.Stop()
		f.loadingTimer = nil
	}
	if f.welcomeTimer != nil {
		f.welcomeTimer.Stop()
		f.welcomeTimer = nil
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
