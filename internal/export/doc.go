// Package export renders snapshot outputs as zip archives for download.
// Archive entries carry folio-derived display names with collision-safe
// dedup, and every archive bundles the name mapping as filenames.tsv.
package export
