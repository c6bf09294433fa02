package authflow

import (
	"context"
	"sync"
	"time"

	internalaudit "github.com/bookline/authflow/internal/audit"
	"github.com/bookline/authflow/internal/sched"
	"github.com/bookline/authflow/session"
)

const (
	auditEventCodeRequest      = "code_request"
	auditEventCodeSubmit       = "code_submit"
	auditEventCodeResend       = "code_resend"
	auditEventLogin            = "login"
	auditEventFederatedLogin   = "federated_login"
	auditEventRegister         = "register"
	auditEventCompletionSubmit = "completion_submit"
	auditEventCompletionCancel = "completion_cancel"
	auditEventFlowTransition   = "flow_transition"
	auditEventSignOut          = "sign_out"
	auditEventSessionRestore   = "session_restore"
)

// Engine owns the session store, the remote API boundary, and the shared
// audit/metrics plumbing. Flows and the completeness gate hang off it.
// Engine methods are safe for concurrent use after Build.
type Engine struct {
	config   Config
	client   Client
	sessions *session.Store
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	clock    sched.Clock

	gateMu        sync.Mutex
	pendingAction func(context.Context) error
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Session returns the current session, rehydrating from persistence on
// first access. A session restored from persistence is trusted
// optimistically; callers revalidate against the remote API if desired.
func (e *Engine) Session(ctx context.Context) (session.Session, bool) {
	return e.sessions.Get(ctx)
}

// SessionRestored reports whether the current session came from durable
// persistence rather than a login in this process.
func (e *Engine) SessionRestored(ctx context.Context) bool {
	return e.sessions.Rehydrated(ctx)
}

// SignOut clears the session from memory and persistence. Any pending
// completion action belongs to the departing identity and is discarded
// with it, so it can never run under a later session.
func (e *Engine) SignOut(ctx context.Context) error {
	s, ok := e.sessions.Get(ctx)
	if !ok {
		return nil
	}
	e.gateMu.Lock()
	e.pendingAction = nil
	e.gateMu.Unlock()
	if err := e.sessions.Clear(ctx); err != nil {
		e.emitAudit(ctx, auditEventSignOut, false, s.Identity.ID, "", err, nil)
		return err
	}
	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, true, s.Identity.ID, "", nil, nil)
	return nil
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID, flowID string,
	failure error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp:  time.Now(),
		EventType:  eventType,
		IdentityID: identityID,
		FlowID:     flowID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	if deviceID := deviceIDFromContext(ctx); deviceID != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["device_id"] = deviceID
	}

	e.audit.Emit(ctx, event)
}
