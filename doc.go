// Package authflow is the client-side identity and checkout-gating engine
// of a salon booking application. It authenticates a visitor through one of
// three channels — phone one-time code, federated assertion, or password
// login for salon owners — tracks whether the signed-in identity carries
// enough profile data to transact, and gates booking-initiating actions
// behind that completeness check.
//
// The package is the public surface. It exposes [Engine], [Builder],
// [Config], the [Flow] state machine, the [Verifier], and checkout pricing
// helpers. Timer scheduling and audit dispatch live under internal/ and are
// never exported; the session model and its persistence boundary live in
// the session subpackage, and optional metric exporter bindings live under
// metrics/export.
//
// # Architecture boundaries
//
// The remote API that issues and verifies one-time codes, performs logins,
// and updates profiles is consumed through the [Client] interface and never
// implemented here. Session tokens are opaque bearer strings: the engine
// stores and forwards them but never parses or verifies them.
//
// # What this package must NOT do
//
//   - Generate, guess, or re-derive a one-time code client-side.
//   - Store the completeness predicate; it is derived on every check.
//   - Retry a failed network call, except the single documented
//     verify-then-login-once sequence in the owner login flow.
package authflow
