// Package cache provides the in-memory result cache that guarantees a
// computation runs at most once per fingerprint.
//
// # Purpose
//
// Every pipeline step is keyed by the fingerprint of its operation and
// inputs. The cache maps fingerprints to entries that move from Pending to
// Done or Failed exactly once. Callers asking for a fingerprint that is
// already being computed block until it resolves and then all observe the
// same outcome.
//
// # Concurrency Model
//
// Entries live in a sync.Map keyed by fingerprint, each with its own
// completion channel:
//   - Independent keys: callers on different fingerprints never contend.
//   - LoadOrStore elects a single owner per fingerprint; everybody else waits
//     on the owner's channel.
//   - An entry's value and error are written once, before its channel is
//     closed, and never change afterwards.
//
// # Failure Semantics
//
// Failed entries are terminal and replayed to later callers, except failures
// caused by cancellation: those are dropped so that the next caller
// recomputes. Invalidating a pending entry detaches it: its waiters still
// receive the result, but the result is not stored.
package cache
