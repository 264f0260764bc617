// Package project models projects, their source folios, and the sandboxes
// that own snapshot trees.
//
// A project is a directory under the workspace root holding a project.toml
// descriptor, a folios/ directory of source page images, and one directory
// per sandbox. The package also owns the availability predicate consulted by
// the scheduler: whether a (project, sandbox, rights) triple may execute
// workflow jobs.
package project
