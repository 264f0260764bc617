// Package daemon coordinates the long-running scriptorium process.
//
// It wires configuration, the job store, the snapshot manager, the scheduler,
// and the HTTP control surface into a single lifecycle with flock-based
// locking to prevent multiple instances. Error taxonomy to HTTP status
// mapping lives here and nowhere else.
package daemon
