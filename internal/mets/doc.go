// Package mets bridges the snapshot tree's internal addressing to the
// METS-style structural document consumed by downstream tooling.
//
// The document carries two things the core cares about: file groups (one per
// snapshot, named by the sandbox's group template applied to the track) and
// the physical page map binding file ids to source folios. Parsing is
// strict about structure and lenient about content: an unreadable document
// is a MalformedDocument error, while a page that does not resolve to a
// known folio is skipped with a warning.
//
// The page-id-to-folio mapping is a pluggable PageResolver because naming
// conventions differ per group; the adapter only invokes it.
package mets
