package authflow

import (
	"errors"
	"fmt"

	"github.com/bookline/authflow/session"
)

var (
	// ErrEngineNotReady is returned when an operation runs before Build wired
	// its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidDestination rejects a malformed phone number or email before
	// any network call is made.
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrIncompleteCode rejects a code submission shorter than the configured
	// code length. Submission is a no-op until the full code is entered.
	ErrIncompleteCode = errors.New("incomplete code")
	// ErrInvalidCode is the recoverable rejection of a wrong one-time code.
	ErrInvalidCode = errors.New("invalid code")
	// ErrCodeExpired is returned when the backend reports the code lapsed.
	ErrCodeExpired = errors.New("code expired")
	// ErrAttemptsExceeded is the terminal verifier outcome after the maximum
	// number of failed submissions. A fresh code request is required.
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrCooldownActive rejects a resend before the cooldown has elapsed.
	ErrCooldownActive = errors.New("resend cooldown active")
	// ErrNoPendingVerification is returned when a code is submitted or resent
	// with no verification in flight.
	ErrNoPendingVerification = errors.New("no pending verification")
	// ErrVerificationInFlight suppresses a duplicate request while a send or
	// verify round-trip is outstanding.
	ErrVerificationInFlight = errors.New("verification request in flight")
	// ErrInvalidCredential is the generic password login rejection.
	ErrInvalidCredential = errors.New("invalid credentials")
	// ErrAccessDenied rejects a correct credential bound to a
	// non-administrative identity on the owner login channel.
	ErrAccessDenied = errors.New("access denied")
	// ErrChannelUnavailable wraps network and transport failures. The same
	// action may be retried by the user.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrUnauthenticated signals the caller to redirect to the flow entry
	// point. It is never shown to the user as an error.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrProfileInvalid rejects a completion payload the backend or local
	// validation refused.
	ErrProfileInvalid = errors.New("invalid profile data")
	// ErrInvalidState rejects an operation not valid in the flow's current
	// state.
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrFlowClosed is returned by operations on a torn-down flow.
	ErrFlowClosed = errors.New("flow closed")
)

// UnverifiedError reports a password login that failed because the account
// has not completed verification. It carries the destination already on
// file so the flow can drop straight into code verification.
type UnverifiedError struct {
	IdentityID  string
	Destination Destination
}

func (e *UnverifiedError) Error() string {
	return fmt.Sprintf("account %s not yet verified", e.IdentityID)
}

// RoleConflictError reports a federated login whose asserted identity
// already exists under a different role. Both roles travel to the caller
// unchanged; mapping this to a generic failure loses the information the
// user needs to pick the other channel.
type RoleConflictError struct {
	ExistingRole  session.Role
	RequestedRole session.Role
}

func (e *RoleConflictError) Error() string {
	return fmt.Sprintf("identity already registered as %s, requested %s", e.ExistingRole, e.RequestedRole)
}
