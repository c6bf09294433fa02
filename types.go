package authflow

import (
	"context"
	"io"

	internalaudit "github.com/bookline/authflow/internal/audit"
	"github.com/bookline/authflow/session"
)

// Identity is the authenticated user model. See the session subpackage for
// field semantics.
type Identity = session.Identity

// Session pairs an identity with its opaque bearer token.
type Session = session.Session

// Role classifies an identity for redirect and access decisions.
type Role = session.Role

const (
	// RoleCustomer is the default role for phone-verified visitors.
	RoleCustomer = session.RoleCustomer
	// RoleSalonOwner is the administrative role.
	RoleSalonOwner = session.RoleSalonOwner
)

// Channel identifies where a one-time code is delivered.
type Channel string

const (
	// ChannelPhone delivers codes by SMS.
	ChannelPhone Channel = "phone"
	// ChannelEmail delivers codes by email.
	ChannelEmail Channel = "email"
)

// Destination is the phone number or email address a one-time code is
// sent to.
type Destination struct {
	Channel Channel
	Value   string
}

// SendCodeResult is the backend's answer to a code request. The echo code
// is a development-mode aid; it is retained verbatim and never synthesized
// client-side.
type SendCodeResult struct {
	Accepted            bool
	DevelopmentEchoCode string
}

// AuthResult is the identity and token returned by a successful
// verification, login, or registration.
type AuthResult struct {
	Identity session.Identity
	Token    string
}

// FederatedResult extends AuthResult with whether the assertion created a
// new account.
type FederatedResult struct {
	Identity  session.Identity
	Token     string
	IsNewUser bool
}

// IdentityDraft is the payload for first-time registration.
type IdentityDraft struct {
	Name  string
	Phone string
	Email string
	Role  session.Role
}

// Client is the remote API boundary the engine drives. Implementations own
// transport, serialization, and endpoint layout; the engine owns sequencing
// and state. Errors must be the package sentinels ([ErrInvalidCode],
// [ErrCodeExpired], [ErrInvalidCredential], [ErrChannelUnavailable]-wrapped
// transport failures) or the typed [UnverifiedError] / [RoleConflictError].
type Client interface {
	SendCode(ctx context.Context, destination Destination) (SendCodeResult, error)
	VerifyCode(ctx context.Context, destination Destination, code string) (AuthResult, error)
	Login(ctx context.Context, identifier, password string) (AuthResult, error)
	Register(ctx context.Context, draft IdentityDraft) (AuthResult, error)
	FederatedLogin(ctx context.Context, assertion string, requestedRole session.Role) (FederatedResult, error)
	UpdateProfile(ctx context.Context, token, name, email string) (session.Identity, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
