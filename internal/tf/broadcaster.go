package tf

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/monitoring"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// TransformStamped is one transform record on the coordinate-frame bus: the
// pose of Child relative to Parent at Stamp.
type TransformStamped struct {
	Parent string
	Child  string
	Pose   geom.Pose
	Stamp  time.Time
}

// Sink receives transform records. Implementations return an error only when
// the underlying bus is unavailable.
type Sink interface {
	SendTransform(TransformStamped) error
}

// MultiSink fans each transform out to every sink in order. The first error
// stops delivery and is returned.
type MultiSink []Sink

// SendTransform implements Sink.
func (m MultiSink) SendTransform(ts TransformStamped) error {
	for _, s := range m {
		if err := s.SendTransform(ts); err != nil {
			return err
		}
	}
	return nil
}

// Broadcaster stamps and publishes transforms for edges of a fixed tree.
// It is safe for concurrent use, but each scene loop owns one broadcaster.
type Broadcaster struct {
	sink  Sink
	clock timeutil.Clock
	tree  *Tree

	mu        sync.Mutex
	published map[string]bool
}

// NewBroadcaster creates a Broadcaster that publishes to sink. A nil clock
// uses the wall clock and a nil tree uses SceneTree.
func NewBroadcaster(sink Sink, clock timeutil.Clock, tree *Tree) *Broadcaster {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if tree == nil {
		tree = SceneTree()
	}
	return &Broadcaster{
		sink:      sink,
		clock:     clock,
		tree:      tree,
		published: map[string]bool{tree.Root(): true},
	}
}

// Tree returns the topology the broadcaster validates against.
func (b *Broadcaster) Tree() *Tree {
	return b.tree
}

// Broadcast emits one transform of child relative to parent, stamped with the
// current time, and returns that stamp so dependent artifacts can carry the
// same instant.
func (b *Broadcaster) Broadcast(position r3.Vec, orientation quat.Number, parent, child string) (time.Time, error) {
	if err := b.tree.CheckEdge(parent, child); err != nil {
		return time.Time{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.published[parent] {
		return time.Time{}, fmt.Errorf("%w: %s -> %s", ErrOrphanFrame, parent, child)
	}

	stamp := b.clock.Now()
	ts := TransformStamped{
		Parent: parent,
		Child:  child,
		Pose:   geom.Pose{Position: position, Orientation: orientation},
		Stamp:  stamp,
	}
	if err := b.sink.SendTransform(ts); err != nil {
		return time.Time{}, fmt.Errorf("broadcast %s -> %s: %w", parent, child, err)
	}
	b.published[child] = true
	monitoring.Debugf("[TF] %s -> %s %s", parent, child, ts.Pose)
	return stamp, nil
}

// BroadcastPose is Broadcast for a geom.Pose.
func (b *Broadcaster) BroadcastPose(p geom.Pose, parent, child string) (time.Time, error) {
	return b.Broadcast(p.Position, p.Orientation, parent, child)
}
