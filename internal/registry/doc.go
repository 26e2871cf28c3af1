// Package registry holds the in-memory state of a running experience:
// logical users with presence refcounts and their last-submitted
// preference, display controller health, and per-target applied
// snapshots.
//
// The registry is the single source of truth for "who is here right
// now" and "what is each display showing". It is deliberately
// process-lifetime only: there is no persistence, and a restart begins
// with an empty room.
//
// Presence is refcounted per logical user. One person may hold several
// live connections at once; joined/left announcements fire only when
// the count crosses the 0↔1 edge, never on intermediate connections.
//
// All methods are safe for concurrent use, and every record returned
// to a caller is a deep copy.
package registry
