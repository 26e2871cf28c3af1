// Package gateway is the event core of the experience. Every inbound
// client event flows through Dispatch, which deduplicates it against
// the idempotency ledger, applies it to the registry and the session
// timeline, and fans the resulting announcements out over channel
// broadcasts: per-display channels for the large screens, per-user
// channels for personal devices, and a control channel for operators.
//
// Transport is at-least-once end to end. The gateway assumes every
// event may arrive more than once and every broadcast may be consumed
// more than once; all handlers are idempotent per event key.
//
// Decisions are resolved here: active users' preferences are merged
// with the fair-average rules, routed to each configured target by
// mode, and handed to the lighting adapter asynchronously.
package gateway
