package track

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Track addresses a snapshot in a sandbox tree by child index at each depth.
// The zero value (nil or empty) addresses the root snapshot.
type Track []int

// Root returns the empty track addressing a sandbox's root snapshot.
func Root() Track {
	return Track{}
}

// New builds a track from the provided indices, rejecting negatives.
func New(indices ...int) (Track, error) {
	t := make(Track, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return nil, fmt.Errorf("track index %d is negative", idx)
		}
		t = append(t, idx)
	}
	return t, nil
}

// Parse converts the dotted string form ("0.2.1") back into a track.
// The empty string parses to the root track.
func Parse(value string) (Track, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Track{}, nil
	}
	parts := strings.Split(trimmed, ".")
	t := make(Track, 0, len(parts))
	for _, part := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parse track %q: %w", value, err)
		}
		if idx < 0 {
			return nil, fmt.Errorf("parse track %q: index %d is negative", value, idx)
		}
		t = append(t, idx)
	}
	return t, nil
}

// String renders the dotted form used for tree keys and file-group templates.
// The root track renders as the empty string.
func (t Track) String() string {
	if len(t) == 0 {
		return ""
	}
	parts := make([]string, len(t))
	for i, idx := range t {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// IsRoot reports whether the track addresses the sandbox root.
func (t Track) IsRoot() bool {
	return len(t) == 0
}

// Depth returns the number of indices in the track.
func (t Track) Depth() int {
	return len(t)
}

// Equal reports element-wise equality.
func (t Track) Equal(other Track) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether other extends t by one or more indices.
// A track is not a prefix of itself.
func (t Track) IsPrefixOf(other Track) bool {
	if len(other) <= len(t) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// Parent returns the track with the last index removed. The parent of the
// root is the root.
func (t Track) Parent() Track {
	if len(t) == 0 {
		return Track{}
	}
	parent := make(Track, len(t)-1)
	copy(parent, t[:len(t)-1])
	return parent
}

// Child returns a copy of the track extended by the given child index.
func (t Track) Child(index int) Track {
	child := make(Track, len(t), len(t)+1)
	copy(child, t)
	return append(child, index)
}

// Last returns the final index. Calling Last on the root track is a
// programming error and panics.
func (t Track) Last() int {
	if len(t) == 0 {
		panic("track: Last called on root track")
	}
	return t[len(t)-1]
}

// Clone returns an independent copy.
func (t Track) Clone() Track {
	cp := make(Track, len(t))
	copy(cp, t)
	return cp
}

// MarshalJSON renders the wire form, an array of non-negative integers.
func (t Track) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(t))
}

// UnmarshalJSON accepts the wire form and validates indices.
func (t *Track) UnmarshalJSON(data []byte) error {
	var indices []int
	if err := json.Unmarshal(data, &indices); err != nil {
		return fmt.Errorf("unmarshal track: %w", err)
	}
	for _, idx := range indices {
		if idx < 0 {
			return fmt.Errorf("unmarshal track: index %d is negative", idx)
		}
	}
	*t = Track(indices)
	return nil
}
