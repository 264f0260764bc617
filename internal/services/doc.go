// Package services defines the error taxonomy and context annotations shared
// across the scriptorium subsystems.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     (stale track, lock conflict, unavailable project, missing file group,
//     malformed document) for the boundary layers.
//   - Context helpers that stamp job IDs, sandbox IDs, and correlation
//     identifiers for logging.
//
// The daemon is the only place these classifications are translated into
// external status codes; inner packages wrap and propagate.
package services
