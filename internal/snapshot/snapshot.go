package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scriptorium/internal/track"
)

const (
	metaFileName = "snapshot.toml"
	dataDirName  = "data"
)

// Lock records who is consuming a snapshot's output and why. A locked
// snapshot rejects configuration changes and removal until unlocked.
type Lock struct {
	SourceID string    `toml:"source_id"`
	Comment  string    `toml:"comment,omitempty"`
	LockedAt time.Time `toml:"locked_at"`
}

// Meta is the persisted per-snapshot configuration.
type Meta struct {
	Label       string `toml:"label,omitempty"`
	Description string `toml:"description,omitempty"`
	Lock        *Lock  `toml:"lock,omitempty"`
}

// View is the read model handed to presentation layers and collaborators.
type View struct {
	Track       track.Track `json:"track"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description,omitempty"`
	Lock        *Lock       `json:"lock,omitempty"`
	IsRoot      bool        `json:"is_root"`
	ChildCount  int         `json:"child_count"`
	// Children lists the live child indices in creation order. Indices may
	// have holes where siblings were removed.
	Children []int `json:"children"`
}

// Locked reports whether the view carries a lock.
func (v View) Locked() bool {
	return v.Lock != nil
}

func loadMeta(dir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, nil
		}
		return Meta{}, fmt.Errorf("read snapshot meta: %w", err)
	}
	var meta Meta
	if err := toml.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parse snapshot meta: %w", err)
	}
	return meta, nil
}

func saveMeta(dir string, meta Meta) error {
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal snapshot meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}
	return nil
}
