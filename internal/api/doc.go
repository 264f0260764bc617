// Package api defines transport-friendly views of internal models and
// one-shot operations shared by the CLI and the HTTP layer. DTOs use
// camelCase JSON tags; internal enums surface as lowercase strings and
// timestamps as RFC3339.
package api
