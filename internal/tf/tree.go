// Package tf maintains the scene's coordinate-frame tree and broadcasts
// stamped transforms between parent and child frames.
package tf

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Frame names in the scene tree.
const (
	FrameWorld       = "world"
	FrameAsteroid    = "asteroid"
	FrameCamera      = "camera"
	FrameCameraLeft  = "camera-left"
	FrameCameraRight = "camera-right"
)

var (
	// ErrUnknownEdge is returned for a (parent, child) pair that is not an
	// edge of the tree.
	ErrUnknownEdge = errors.New("tf: unknown frame edge")

	// ErrOrphanFrame is returned when a child transform is emitted before its
	// parent frame exists.
	ErrOrphanFrame = errors.New("tf: parent frame not yet broadcast")
)

// Edge is a (parent, child) pair in the tree.
type Edge struct {
	Parent string
	Child  string
}

// Tree is a fixed frame topology. Each frame has exactly one parent except the
// root. The topology cannot change after construction; only the poses attached
// to its edges vary at runtime.
type Tree struct {
	root  string
	g     *simple.DirectedGraph
	ids   map[string]int64
	names map[int64]string
	order []string
}

// NewTree builds a tree rooted at root from the given edges. It fails if a
// frame has two parents, the root has a parent, an edge references a frame
// unreachable from root, or the edges form a cycle.
func NewTree(root string, edges []Edge) (*Tree, error) {
	t := &Tree{
		root:  root,
		g:     simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
	t.node(root)

	for _, e := range edges {
		if e.Parent == "" || e.Child == "" || e.Parent == e.Child {
			return nil, fmt.Errorf("invalid edge %q -> %q", e.Parent, e.Child)
		}
		if e.Child == root {
			return nil, fmt.Errorf("root frame %q cannot have a parent", root)
		}
		c := t.node(e.Child)
		if t.g.To(c.ID()).Len() > 0 {
			return nil, fmt.Errorf("frame %q already has a parent", e.Child)
		}
		p := t.node(e.Parent)
		t.g.SetEdge(t.g.NewEdge(p, c))
	}

	sorted, err := topo.Sort(t.g)
	if err != nil {
		return nil, fmt.Errorf("frame tree is not acyclic: %w", err)
	}
	for _, n := range sorted {
		name := t.names[n.ID()]
		if name != root && t.g.To(n.ID()).Len() == 0 {
			return nil, fmt.Errorf("frame %q is not connected to root %q", name, root)
		}
		t.order = append(t.order, name)
	}
	return t, nil
}

// SceneTree returns the asteroid scene topology:
//
//	world
//	├── asteroid
//	└── camera
//	    ├── camera-left
//	    └── camera-right
func SceneTree() *Tree {
	t, err := NewTree(FrameWorld, []Edge{
		{FrameWorld, FrameAsteroid},
		{FrameWorld, FrameCamera},
		{FrameCamera, FrameCameraLeft},
		{FrameCamera, FrameCameraRight},
	})
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) node(name string) graph.Node {
	if id, ok := t.ids[name]; ok {
		return t.g.Node(id)
	}
	n := t.g.NewNode()
	t.g.AddNode(n)
	t.ids[name] = n.ID()
	t.names[n.ID()] = name
	return n
}

// Root returns the root frame name.
func (t *Tree) Root() string {
	return t.root
}

// Has reports whether name is a frame in the tree.
func (t *Tree) Has(name string) bool {
	_, ok := t.ids[name]
	return ok
}

// Parent returns the parent of child. The root and unknown frames have none.
func (t *Tree) Parent(child string) (string, bool) {
	id, ok := t.ids[child]
	if !ok {
		return "", false
	}
	parents := t.g.To(id)
	if !parents.Next() {
		return "", false
	}
	return t.names[parents.Node().ID()], true
}

// CheckEdge returns ErrUnknownEdge unless parent is child's parent.
func (t *Tree) CheckEdge(parent, child string) error {
	pid, ok := t.ids[parent]
	cid, ok2 := t.ids[child]
	if !ok || !ok2 || !t.g.HasEdgeFromTo(pid, cid) {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownEdge, parent, child)
	}
	return nil
}

// Frames returns all frames with every parent before its children.
func (t *Tree) Frames() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
