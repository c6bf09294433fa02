package authflow

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricCodeRequested counts accepted one-time-code requests.
	MetricCodeRequested MetricID = iota
	// MetricCodeRequestFailure counts rejected or failed code requests.
	MetricCodeRequestFailure
	// MetricCodeResent counts successful resends.
	MetricCodeResent
	// MetricCodeVerified counts successful code verifications.
	MetricCodeVerified
	// MetricCodeRejected counts wrong-code submissions below the attempt cap.
	MetricCodeRejected
	// MetricCodeAttemptsExceeded counts verifiers reaching the terminal
	// rejected state.
	MetricCodeAttemptsExceeded
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess
	// MetricLoginFailure counts failed password logins.
	MetricLoginFailure
	// MetricAccessDenied counts correct credentials rejected for role.
	MetricAccessDenied
	// MetricFederatedLoginSuccess counts successful federated logins.
	MetricFederatedLoginSuccess
	// MetricFederatedLoginFailure counts failed federated logins.
	MetricFederatedLoginFailure
	// MetricRoleConflict counts federated logins rejected for role conflict.
	MetricRoleConflict
	// MetricRegistrationSuccess counts successful registrations.
	MetricRegistrationSuccess
	// MetricRegistrationFailure counts failed registrations.
	MetricRegistrationFailure
	// MetricCompletionRequired counts gated actions intercepted for
	// profile completion.
	MetricCompletionRequired
	// MetricCompletionSuccess counts successful profile completions.
	MetricCompletionSuccess
	// MetricCompletionFailure counts failed profile completions.
	MetricCompletionFailure
	// MetricCompletionCancelled counts abandoned completions.
	MetricCompletionCancelled
	// MetricSessionRestored counts sessions rehydrated from persistence.
	MetricSessionRestored
	// MetricSignOut counts explicit sign-outs.
	MetricSignOut
	// MetricFlowStarted counts orchestrator flows entered.
	MetricFlowStarted
	// MetricRedirect counts terminal redirects.
	MetricRedirect
	// MetricAuditDropped counts audit events discarded under backpressure.
	MetricAuditDropped

	metricIDCount
)

// Metrics holds atomic counters. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a Metrics instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the given counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Count returns the current value of a counter.
func (m *Metrics) Count(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter into a fresh map.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
