// Package scheduler accepts workflow jobs against a parent snapshot track
// and, on success, atomically extends the sandbox's snapshot tree with one
// derived snapshot.
//
// Jobs persist in SQLite so queued work survives restarts. A bounded worker
// pool claims queued jobs, runs each definition's providers into a staging
// directory, and only then performs the append under the tree's mutation
// lock (append-after-populate): readers never observe a partially written
// snapshot, and a parent removed while the job ran surfaces as a clean
// TrackNotFound failure instead of corrupting the tree.
//
// Cancellation is cooperative. Cancelling a queued job retires it in the
// store; cancelling a running job cancels its context and the provider is
// expected to return. A cancelled job never appends a snapshot. Heartbeats
// written during execution let a restarted daemon reclaim jobs whose worker
// died mid-run.
package scheduler
