// Package snapshot implements the per-sandbox snapshot tree: addressing via
// tracks, derivation, locking, and the on-disk layout every other subsystem
// reads from.
//
// A sandbox owns exactly one Tree. Nodes are kept in an arena keyed by the
// dotted track string rather than as a pointer graph, so parent lookup is
// "track minus last element" and subtree removal is a key sweep. All
// mutation and all reads of a Tree go through one RWMutex per sandbox; job
// providers do their long-running work outside that lock and only the final
// append is serialized.
//
// On disk a snapshot is a directory: snapshot.toml holds label, description,
// and the lock record; data/ holds the provider output; numeric child
// directories hold derived snapshots. Numeric names at the snapshot level
// are therefore reserved for children.
//
// Removal never renumbers siblings. Removing the highest child index lets
// the list shrink naturally (the index may be reassigned by a later append);
// removing any other child leaves a permanent hole so unrelated tracks stay
// stable.
package snapshot
