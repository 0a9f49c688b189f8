// Package marker builds the asteroid mesh marker and republishes it whenever
// the asteroid frame moves.
package marker

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/tf"
)

// Type identifies how a marker is rendered.
type Type int

// Action tells the renderer what to do with a marker id.
type Action int

const (
	TypeMeshResource Type = 10

	ActionAdd    Action = 0
	ActionDelete Action = 2
)

const (
	// Topic is the marker collection topic.
	Topic = "asteroid_marker"

	// DefaultMeshPackage is prefixed to mesh file names.
	DefaultMeshPackage = "package://view_asteroid/meshes/"

	// Namespace and ID identify the asteroid marker across updates.
	Namespace = "asteroid"
	ID        = 1
)

// RGBA is a marker colour. All-zero means "use the mesh's own materials".
type RGBA struct {
	R, G, B, A float32
}

// Marker is a renderable mesh descriptor. Its pose is the fixed offset within
// FrameID; world placement comes entirely from FrameID's transform.
type Marker struct {
	Type                 Type
	Action               Action
	Namespace            string
	ID                   int
	FrameID              string
	Stamp                time.Time
	Pose                 geom.Pose
	Scale                r3.Vec
	Color                RGBA
	MeshResource         string
	UseEmbeddedMaterials bool
}

// Array is a marker collection published as one message.
type Array struct {
	Markers []Marker
}

// MeshSpec describes the mesh marker to build.
type MeshSpec struct {
	Package     string
	File        string
	Scale       float64
	Offset      r3.Vec
	Orientation quat.Number
}

// NewMeshMarker builds the asteroid mesh marker. Offset is in mesh units and
// is scaled to match the render frame.
func NewMeshMarker(spec MeshSpec, stamp time.Time) Marker {
	pkg := spec.Package
	if pkg == "" {
		pkg = DefaultMeshPackage
	}
	orientation := spec.Orientation
	if orientation == (quat.Number{}) {
		orientation = geom.Identity()
	}
	return Marker{
		Type:      TypeMeshResource,
		Action:    ActionAdd,
		Namespace: Namespace,
		ID:        ID,
		FrameID:   tf.FrameAsteroid,
		Stamp:     stamp,
		Pose: geom.Pose{
			Position:    r3.Scale(spec.Scale, spec.Offset),
			Orientation: orientation,
		},
		Scale:                r3.Vec{X: spec.Scale, Y: spec.Scale, Z: spec.Scale},
		MeshResource:         pkg + spec.File,
		UseEmbeddedMaterials: true,
	}
}
