// Package idempotency provides the duplicate-event ledger for Atmos Core.
//
// The transport delivering inbound events is at-least-once: displays and
// the mobile client retry on reconnect, so the same event can arrive more
// than once. The Guard remembers event keys ({eventType}:{callerUuid})
// for a bounded TTL and lets the gateway absorb re-deliveries silently.
//
// If a caller omits its key, the gateway generates one server-side; true
// duplicates from such a caller cannot be detected. This is a documented
// limitation of the protocol, not something the guard can repair.
package idempotency
