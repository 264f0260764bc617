package track_test

import (
	"encoding/json"
	"testing"

	"scriptorium/internal/track"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		input string
		want  track.Track
	}{
		{"", track.Track{}},
		{"0", track.Track{0}},
		{"0.2", track.Track{0, 2}},
		{" 1.0.3 ", track.Track{1, 0, 3}},
	}
	for _, tc := range cases {
		got, err := track.Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.input, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("Parse(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseRejectsNegativeAndGarbage(t *testing.T) {
	for _, input := range []string{"-1", "0.-2", "a.b", "0..1"} {
		if _, err := track.Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestParentAndChild(t *testing.T) {
	base := track.Track{0, 2}
	child := base.Child(5)
	if !child.Equal(track.Track{0, 2, 5}) {
		t.Fatalf("Child = %v", child)
	}
	if !child.Parent().Equal(base) {
		t.Fatalf("Parent = %v", child.Parent())
	}
	if !track.Root().Parent().IsRoot() {
		t.Fatal("parent of root should remain root")
	}

	// Child must not alias the receiver's backing array.
	other := base.Child(9)
	if !child.Equal(track.Track{0, 2, 5}) {
		t.Fatalf("Child aliased backing storage: %v vs %v", child, other)
	}
}

func TestIsPrefixOf(t *testing.T) {
	base := track.Track{0, 2}
	if !base.IsPrefixOf(track.Track{0, 2, 1}) {
		t.Fatal("expected prefix")
	}
	if base.IsPrefixOf(base) {
		t.Fatal("a track is not a prefix of itself")
	}
	if base.IsPrefixOf(track.Track{0, 3, 1}) {
		t.Fatal("diverging track is not a prefix")
	}
	if !track.Root().IsPrefixOf(track.Track{0}) {
		t.Fatal("root is a prefix of every non-root track")
	}
}

func TestJSONWireForm(t *testing.T) {
	data, err := json.Marshal(track.Track{0, 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[0,2]" {
		t.Fatalf("wire form = %s", data)
	}

	var decoded track.Track
	if err := json.Unmarshal([]byte("[1,0,4]"), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(track.Track{1, 0, 4}) {
		t.Fatalf("decoded = %v", decoded)
	}

	if err := json.Unmarshal([]byte("[1,-2]"), &decoded); err == nil {
		t.Fatal("negative index should fail")
	}

	var nilTrack track.Track
	data, err = json.Marshal(nilTrack)
	if err != nil {
		t.Fatalf("marshal nil: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("nil track wire form = %s", data)
	}
}
