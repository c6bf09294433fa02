package internaldefs

import (
	authflow "github.com/bookline/authflow"
)

// CounterDef binds a MetricID to its stable exported name and help text.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in exposition order. Exporters
// iterate this slice so Prometheus and OTel output never drift apart.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricCodeRequested, Name: "authflow_code_requested_total", Help: "Accepted one-time-code requests."},
	{ID: authflow.MetricCodeRequestFailure, Name: "authflow_code_request_failure_total", Help: "Rejected or failed one-time-code requests."},
	{ID: authflow.MetricCodeResent, Name: "authflow_code_resent_total", Help: "Successful code resends."},
	{ID: authflow.MetricCodeVerified, Name: "authflow_code_verified_total", Help: "Successful code verifications."},
	{ID: authflow.MetricCodeRejected, Name: "authflow_code_rejected_total", Help: "Wrong-code submissions below the attempt cap."},
	{ID: authflow.MetricCodeAttemptsExceeded, Name: "authflow_code_attempts_exceeded_total", Help: "Verifications terminated at the attempt cap."},
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Successful password logins."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Failed password logins."},
	{ID: authflow.MetricAccessDenied, Name: "authflow_access_denied_total", Help: "Correct credentials rejected for role."},
	{ID: authflow.MetricFederatedLoginSuccess, Name: "authflow_federated_login_success_total", Help: "Successful federated logins."},
	{ID: authflow.MetricFederatedLoginFailure, Name: "authflow_federated_login_failure_total", Help: "Failed federated logins."},
	{ID: authflow.MetricRoleConflict, Name: "authflow_role_conflict_total", Help: "Federated logins rejected for role conflict."},
	{ID: authflow.MetricRegistrationSuccess, Name: "authflow_registration_success_total", Help: "Successful registrations."},
	{ID: authflow.MetricRegistrationFailure, Name: "authflow_registration_failure_total", Help: "Failed registrations."},
	{ID: authflow.MetricCompletionRequired, Name: "authflow_completion_required_total", Help: "Gated actions intercepted for profile completion."},
	{ID: authflow.MetricCompletionSuccess, Name: "authflow_completion_success_total", Help: "Successful profile completions."},
	{ID: authflow.MetricCompletionFailure, Name: "authflow_completion_failure_total", Help: "Failed profile completions."},
	{ID: authflow.MetricCompletionCancelled, Name: "authflow_completion_cancelled_total", Help: "Abandoned profile completions."},
	{ID: authflow.MetricSessionRestored, Name: "authflow_session_restored_total", Help: "Sessions rehydrated from persistence."},
	{ID: authflow.MetricSignOut, Name: "authflow_sign_out_total", Help: "Explicit sign-outs."},
	{ID: authflow.MetricFlowStarted, Name: "authflow_flow_started_total", Help: "Authentication flows entered."},
	{ID: authflow.MetricRedirect, Name: "authflow_redirect_total", Help: "Terminal flow redirects."},
}

// AuditDroppedName is the counter exporters synthesize from
// Engine.AuditDropped, the dispatcher's authoritative drop count. The
// MetricAuditDropped snapshot counter mirrors it when engine metrics are
// enabled; it is deliberately absent from CounterDefs so the series is
// exported once.
const AuditDroppedName = "authflow_audit_dropped_total"

// AuditDroppedHelp documents the synthesized counter.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
