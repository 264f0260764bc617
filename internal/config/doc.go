// Package config loads, normalizes, and validates the TOML configuration for
// the scriptorium daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: workspace, staging, collection, and log directories plus the API
//     bind address and token
//   - Scheduler: worker pool size, poll and heartbeat intervals
//   - Mets: file-group template defaults and document file name
//   - Logging: log format, level, and retention
//
// All path fields are expanded (~ and relative forms) before validation so
// downstream packages only ever see absolute paths.
package config
