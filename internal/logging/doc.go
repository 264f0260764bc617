// Package logging builds the slog loggers used across scriptorium.
//
// New constructs a logger from config: a human-oriented console handler
// (key=value, level-colored on a TTY) or a JSON handler, optionally mirrored
// to a log file under the configured log directory. NewNop returns a silent
// logger for tests. Attr helpers and the standardized field names keep
// structured keys consistent between the scheduler, the snapshot tree, and
// the daemon boundary.
package logging
