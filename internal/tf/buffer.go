package tf

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/asteroid-view/internal/geom"
)

// Buffer is a Sink that keeps only the most recent transform for each child
// frame. It never stores history.
type Buffer struct {
	tree *Tree

	mu     sync.RWMutex
	latest map[string]TransformStamped
}

// NewBuffer creates an empty Buffer for tree. A nil tree uses SceneTree.
func NewBuffer(tree *Tree) *Buffer {
	if tree == nil {
		tree = SceneTree()
	}
	return &Buffer{
		tree:   tree,
		latest: make(map[string]TransformStamped),
	}
}

// SendTransform implements Sink. It replaces the stored transform for the child.
func (b *Buffer) SendTransform(ts TransformStamped) error {
	b.mu.Lock()
	b.latest[ts.Child] = ts
	b.mu.Unlock()
	return nil
}

// Lookup returns the latest transform whose child is frame.
func (b *Buffer) Lookup(frame string) (TransformStamped, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ts, ok := b.latest[frame]
	return ts, ok
}

// WorldPose resolves the pose of frame relative to the tree root by composing
// the latest transforms along its ancestry.
func (b *Buffer) WorldPose(frame string) (geom.Pose, error) {
	if !b.tree.Has(frame) {
		return geom.Pose{}, fmt.Errorf("%w: unknown frame %q", ErrUnknownEdge, frame)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	pose := geom.IdentityPose()
	for f := frame; f != b.tree.Root(); {
		ts, ok := b.latest[f]
		if !ok {
			return geom.Pose{}, fmt.Errorf("%w: no transform for %q", ErrOrphanFrame, f)
		}
		pose = ts.Pose.Compose(pose)
		f = ts.Parent
	}
	return pose, nil
}

// Snapshot returns the latest transforms ordered by child name.
func (b *Buffer) Snapshot() []TransformStamped {
	b.mu.RLock()
	out := make([]TransformStamped, 0, len(b.latest))
	for _, ts := range b.latest {
		out = append(out, ts)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Child < out[j].Child })
	return out
}
