package authflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bookline/authflow/internal/sched"
	"github.com/bookline/authflow/session"
)

// fakeClient is a scriptable remote API boundary. Unset handlers fail
// with ErrChannelUnavailable so a test exercising one operation cannot
// silently depend on another.
type fakeClient struct {
	mu sync.Mutex

	sendCalls      int
	verifyCalls    int
	loginCalls     int
	registerCalls  int
	federatedCalls int
	updateCalls    int

	sendFn      func(dest Destination) (SendCodeResult, error)
	verifyFn    func(dest Destination, code string) (AuthResult, error)
	loginFn     func(identifier, password string) (AuthResult, error)
	registerFn  func(draft IdentityDraft) (AuthResult, error)
	federatedFn func(assertion string, role session.Role) (FederatedResult, error)
	updateFn    func(token, name, email string) (session.Identity, error)
}

func (c *fakeClient) SendCode(_ context.Context, dest Destination) (SendCodeResult, error) {
	c.mu.Lock()
	c.sendCalls++
	fn := c.sendFn
	c.mu.Unlock()
	if fn == nil {
		return SendCodeResult{}, ErrChannelUnavailable
	}
	return fn(dest)
}

func (c *fakeClient) VerifyCode(_ context.Context, dest Destination, code string) (AuthResult, error) {
	c.mu.Lock()
	c.verifyCalls++
	fn := c.verifyFn
	c.mu.Unlock()
	if fn == nil {
		return AuthResult{}, ErrChannelUnavailable
	}
	return fn(dest, code)
}

func (c *fakeClient) Login(_ context.Context, identifier, password string) (AuthResult, error) {
	c.mu.Lock()
	c.loginCalls++
	fn := c.loginFn
	c.mu.Unlock()
	if fn == nil {
		return AuthResult{}, ErrChannelUnavailable
	}
	return fn(identifier, password)
}

func (c *fakeClient) Register(_ context.Context, draft IdentityDraft) (AuthResult, error) {
	c.mu.Lock()
	c.registerCalls++
	fn := c.registerFn
	c.mu.Unlock()
	if fn == nil {
		return AuthResult{}, ErrChannelUnavailable
	}
	return fn(draft)
}

func (c *fakeClient) FederatedLogin(_ context.Context, assertion string, role session.Role) (FederatedResult, error) {
	c.mu.Lock()
	c.federatedCalls++
	fn := c.federatedFn
	c.mu.Unlock()
	if fn == nil {
		return FederatedResult{}, ErrChannelUnavailable
	}
	return fn(assertion, role)
}

func (c *fakeClient) UpdateProfile(_ context.Context, token, name, email string) (session.Identity, error) {
	c.mu.Lock()
	c.updateCalls++
	fn := c.updateFn
	c.mu.Unlock()
	if fn == nil {
		return session.Identity{}, ErrChannelUnavailable
	}
	return fn(token, name, email)
}

type callCounts struct {
	sendCalls      int
	verifyCalls    int
	loginCalls     int
	registerCalls  int
	federatedCalls int
	updateCalls    int
}

func (c *fakeClient) calls() callCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return callCounts{
		sendCalls:      c.sendCalls,
		verifyCalls:    c.verifyCalls,
		loginCalls:     c.loginCalls,
		registerCalls:  c.registerCalls,
		federatedCalls: c.federatedCalls,
		updateCalls:    c.updateCalls,
	}
}

const testPhone = "9876543210"
const testPhoneE164 = "+919876543210"

func customerIdentity() session.Identity {
	return session.Identity{
		ID:    "cust-1",
		Phone: testPhoneE164,
		Name:  "Asha",
		Role:  session.RoleCustomer,
	}
}

func ownerIdentity() session.Identity {
	return session.Identity{
		ID:    "owner-1",
		Email: "owner@salon.example",
		Name:  "Meera",
		Role:  session.RoleSalonOwner,
	}
}

func acceptSend(dest Destination) (SendCodeResult, error) {
	return SendCodeResult{Accepted: true}, nil
}

type testEngineOption func(*Builder)

func withEnvironment(env Environment) testEngineOption {
	return func(b *Builder) {
		cfg := b.config
		cfg.Environment = env
		b.config = cfg
	}
}

func newTestEngine(t *testing.T, client *fakeClient, opts ...testEngineOption) (*Engine, *sched.FakeClock) {
	t.Helper()

	clock := sched.NewFakeClock(time.Unix(1700000000, 0))

	builder := New().
		WithClient(client).
		WithClock(clock)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, clock
}

func mustRequestCode(t *testing.T, v *Verifier, phone string) {
	t.Helper()
	if err := v.RequestCode(context.Background(), Destination{Channel: ChannelPhone, Value: phone}); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
}
