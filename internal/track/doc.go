// Package track implements the integer-index addressing scheme for snapshot
// trees.
//
// A Track is an ordered sequence of non-negative child indices walked from a
// sandbox's root snapshot: the empty track addresses the root, [0] the root's
// first derived snapshot, [0 2] that snapshot's child at index 2, and so on.
// Tracks are pure values: navigation helpers (Parent, Child, IsPrefixOf)
// return fresh copies and never share backing storage, so callers can hold a
// track across tree mutations without aliasing surprises.
package track
