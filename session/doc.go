// Package session holds the identity/session model, the in-process
// session store, and the durable persistence boundary it rehydrates from.
//
// The store is the only owner of the current session. Rehydration from
// persistence is optimistic: a restored session is trusted locally and
// callers revalidate it against the remote API when they care. Anything
// unparsable in persistence is treated as absent — the store never
// surfaces a half-populated session.
package session
