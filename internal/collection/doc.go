// Package collection moves snapshot outputs into persistent, named
// collections outside the workspace. The bridge stages page files addressed
// by the sandbox METS document; the store owns the collection directory
// layout and its set metadata.
package collection
