package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"scriptorium/internal/services"
	"scriptorium/internal/track"
)

// Tree is one sandbox's snapshot tree. All operations are safe for
// concurrent use; mutations are serialized per Tree.
type Tree struct {
	mu    sync.RWMutex
	dir   string // sandbox directory; root snapshot lives in dir/root
	arena map[string]*node
}

type node struct {
	meta     Meta
	children []int // live child indices, creation order
}

const rootDirName = "root"

// Open loads (or initializes) the snapshot tree stored under sandboxDir.
func Open(sandboxDir string) (*Tree, error) {
	rootDir := filepath.Join(sandboxDir, rootDirName)
	if err := os.MkdirAll(filepath.Join(rootDir, dataDirName), 0o755); err != nil {
		return nil, fmt.Errorf("initialize snapshot tree: %w", err)
	}

	t := &Tree{dir: sandboxDir, arena: make(map[string]*node)}
	if err := t.loadSubtree(track.Root(), rootDir); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) loadSubtree(at track.Track, dir string) error {
	meta, err := loadMeta(dir)
	if err != nil {
		return err
	}
	n := &node{meta: meta}
	t.arena[at.String()] = n

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read snapshot directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idx, err := strconv.Atoi(entry.Name())
		if err != nil || idx < 0 {
			continue
		}
		n.children = append(n.children, idx)
	}
	sort.Ints(n.children)

	for _, idx := range n.children {
		child := at.Child(idx)
		if err := t.loadSubtree(child, t.dirFor(child)); err != nil {
			return err
		}
	}
	return nil
}

// Dir returns the sandbox directory the tree is rooted under.
func (t *Tree) Dir() string {
	return t.dir
}

// dirFor maps a track onto its snapshot directory.
func (t *Tree) dirFor(at track.Track) string {
	parts := make([]string, 0, len(at)+2)
	parts = append(parts, t.dir, rootDirName)
	for _, idx := range at {
		parts = append(parts, strconv.Itoa(idx))
	}
	return filepath.Join(parts...)
}

// DataDir returns the provider-output directory of the snapshot at the given
// track without checking the track resolves; callers that need resolution
// guarantees should Resolve first.
func (t *Tree) DataDir(at track.Track) string {
	return filepath.Join(t.dirFor(at), dataDirName)
}

// Resolve returns the view of the snapshot at the given track.
func (t *Tree) Resolve(at track.Track) (View, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.arena[at.String()]
	if !ok {
		return View{}, trackNotFound(at)
	}
	return t.viewLocked(at, n), nil
}

// Derived returns the direct children of the snapshot at the given track in
// index order. A leaf yields an empty slice.
func (t *Tree) Derived(at track.Track) ([]View, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.arena[at.String()]
	if !ok {
		return nil, trackNotFound(at)
	}
	views := make([]View, 0, len(n.children))
	for _, idx := range n.children {
		child := at.Child(idx)
		views = append(views, t.viewLocked(child, t.arena[child.String()]))
	}
	return views, nil
}

// Path returns every snapshot from root through the given track inclusive,
// in root-to-leaf order.
func (t *Tree) Path(at track.Track) ([]View, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.arena[at.String()]; !ok {
		return nil, trackNotFound(at)
	}
	views := make([]View, 0, len(at)+1)
	for depth := 0; depth <= len(at); depth++ {
		prefix := at[:depth].Clone()
		views = append(views, t.viewLocked(prefix, t.arena[prefix.String()]))
	}
	return views, nil
}

// Append attaches a new empty child snapshot under parent and returns its
// track. The assigned index extends the live child list: highest index plus
// one, so holes left by removals are never reused.
func (t *Tree) Append(parent track.Track, meta Meta) (track.Track, error) {
	return t.append(parent, meta, "")
}

// AppendPopulated attaches a new child snapshot whose data directory is
// moved into place from populatedDir before the child becomes visible. This
// is the append-after-populate path the scheduler uses so readers never see
// a partially written snapshot.
func (t *Tree) AppendPopulated(parent track.Track, meta Meta, populatedDir string) (track.Track, error) {
	return t.append(parent, meta, populatedDir)
}

func (t *Tree) append(parent track.Track, meta Meta, populatedDir string) (track.Track, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parentNode, ok := t.arena[parent.String()]
	if !ok {
		return nil, trackNotFound(parent)
	}

	index := 0
	if len(parentNode.children) > 0 {
		index = parentNode.children[len(parentNode.children)-1] + 1
	}
	child := parent.Child(index)
	childDir := t.dirFor(child)

	if err := os.MkdirAll(childDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if populatedDir != "" {
		if err := os.Rename(populatedDir, filepath.Join(childDir, dataDirName)); err != nil {
			_ = os.RemoveAll(childDir)
			return nil, fmt.Errorf("move populated output: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Join(childDir, dataDirName), 0o755); err != nil {
		_ = os.RemoveAll(childDir)
		return nil, fmt.Errorf("create snapshot data directory: %w", err)
	}
	if err := saveMeta(childDir, meta); err != nil {
		_ = os.RemoveAll(childDir)
		return nil, err
	}

	parentNode.children = append(parentNode.children, index)
	t.arena[child.String()] = &node{meta: meta}
	return child, nil
}

// RemoveDerived detaches and deletes the subtree rooted at the given child
// of parent. Locked snapshots anywhere in the subtree refuse removal.
func (t *Tree) RemoveDerived(parent track.Track, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	parentNode, ok := t.arena[parent.String()]
	if !ok {
		return trackNotFound(parent)
	}
	pos := -1
	for i, idx := range parentNode.children {
		if idx == index {
			pos = i
			break
		}
	}
	if pos < 0 {
		return trackNotFound(parent.Child(index))
	}

	child := parent.Child(index)
	if locked := t.lockedWithin(child); locked != nil {
		return services.Wrap(services.ErrConflict, "snapshot", "remove",
			fmt.Sprintf("snapshot %q is locked by %s", child, locked.SourceID), nil)
	}

	if err := os.RemoveAll(t.dirFor(child)); err != nil {
		return fmt.Errorf("remove snapshot subtree: %w", err)
	}
	t.dropSubtreeLocked(child)
	parentNode.children = append(parentNode.children[:pos], parentNode.children[pos+1:]...)
	return nil
}

// ResetRoot deletes all derived snapshots, preserving root configuration.
// Locks held below the root do not block a reset; resetting is the sandbox
// owner's recovery hatch.
func (t *Tree) ResetRoot() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := t.arena[""]
	for _, idx := range root.children {
		child := track.Track{idx}
		if err := os.RemoveAll(t.dirFor(child)); err != nil {
			return fmt.Errorf("remove snapshot subtree: %w", err)
		}
		t.dropSubtreeLocked(child)
	}
	root.children = nil
	return nil
}

// SetLock locks the snapshot at the given track. Locking an already locked
// snapshot is a conflict.
func (t *Tree) SetLock(at track.Track, sourceID, comment string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.arena[at.String()]
	if !ok {
		return trackNotFound(at)
	}
	if n.meta.Lock != nil {
		return services.Wrap(services.ErrConflict, "snapshot", "lock",
			fmt.Sprintf("snapshot %q already locked by %s", at, n.meta.Lock.SourceID), nil)
	}
	meta := n.meta
	meta.Lock = &Lock{SourceID: sourceID, Comment: comment, LockedAt: time.Now().UTC()}
	if err := saveMeta(t.dirFor(at), meta); err != nil {
		return err
	}
	n.meta = meta
	return nil
}

// ClearLock unlocks the snapshot at the given track. Unlocking an unlocked
// snapshot is a conflict.
func (t *Tree) ClearLock(at track.Track) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.arena[at.String()]
	if !ok {
		return trackNotFound(at)
	}
	if n.meta.Lock == nil {
		return services.Wrap(services.ErrConflict, "snapshot", "unlock",
			fmt.Sprintf("snapshot %q is not locked", at), nil)
	}
	meta := n.meta
	meta.Lock = nil
	if err := saveMeta(t.dirFor(at), meta); err != nil {
		return err
	}
	n.meta = meta
	return nil
}

// UpdateConfiguration changes label and description. Locked snapshots refuse
// the update.
func (t *Tree) UpdateConfiguration(at track.Track, label, description string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.arena[at.String()]
	if !ok {
		return trackNotFound(at)
	}
	if n.meta.Lock != nil {
		return services.Wrap(services.ErrConflict, "snapshot", "configure",
			fmt.Sprintf("snapshot %q is locked by %s", at, n.meta.Lock.SourceID), nil)
	}
	meta := n.meta
	meta.Label = label
	meta.Description = description
	if err := saveMeta(t.dirFor(at), meta); err != nil {
		return err
	}
	n.meta = meta
	return nil
}

// Walk visits every snapshot in depth-first track order.
func (t *Tree) Walk(visit func(View)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.walkLocked(track.Root(), visit)
}

func (t *Tree) walkLocked(at track.Track, visit func(View)) {
	n, ok := t.arena[at.String()]
	if !ok {
		return
	}
	visit(t.viewLocked(at, n))
	for _, idx := range n.children {
		t.walkLocked(at.Child(idx), visit)
	}
}

func (t *Tree) viewLocked(at track.Track, n *node) View {
	view := View{
		Track:       at.Clone(),
		Label:       n.meta.Label,
		Description: n.meta.Description,
		IsRoot:      at.IsRoot(),
		ChildCount:  len(n.children),
		Children:    append([]int(nil), n.children...),
	}
	if n.meta.Lock != nil {
		lock := *n.meta.Lock
		view.Lock = &lock
	}
	return view
}

// lockedWithin returns the first lock found in the subtree rooted at the
// given track, or nil.
func (t *Tree) lockedWithin(at track.Track) *Lock {
	prefix := at.String()
	for key, n := range t.arena {
		if n.meta.Lock == nil {
			continue
		}
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return n.meta.Lock
		}
	}
	return nil
}

func (t *Tree) dropSubtreeLocked(at track.Track) {
	prefix := at.String()
	for key := range t.arena {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			delete(t.arena, key)
		}
	}
}

func trackNotFound(at track.Track) error {
	return services.Wrap(services.ErrTrackNotFound, "snapshot", "resolve",
		fmt.Sprintf("track [%s] does not resolve", at), nil)
}
