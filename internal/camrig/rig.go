// Package camrig derives the stereo camera frames from a received camera pose.
package camrig

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/tf"
)

// DefaultBaseline is the lens separation used when none is configured.
const DefaultBaseline = 0.2

// LensRotation returns q_cam1 * q_cam2, where q_cam1 is +90° about Y and
// q_cam2 is -90° about Z. It maps the body frame onto the optical frame of
// each lens.
func LensRotation() quat.Number {
	c, s := math.Cos(math.Pi/4), math.Sin(math.Pi/4)
	qCam1 := quat.Number{Real: c, Jmag: s}
	qCam2 := quat.Number{Real: c, Kmag: -s}
	return geom.Compose(qCam1, qCam2)
}

// Link is one unstamped edge of the rig.
type Link struct {
	Parent string
	Child  string
	Pose   geom.Pose
}

// Derive returns, in emission order, the camera frame (the received pose
// verbatim relative to world) and the two lens frames relative to camera. The
// lens frames do not depend on the received orientation.
func Derive(camera geom.Pose, baseline float64) []Link {
	qCam := LensRotation()
	return []Link{
		{Parent: tf.FrameWorld, Child: tf.FrameCamera, Pose: camera},
		{Parent: tf.FrameCamera, Child: tf.FrameCameraLeft, Pose: geom.Pose{Orientation: qCam}},
		{Parent: tf.FrameCamera, Child: tf.FrameCameraRight, Pose: geom.Pose{
			Position:    r3.Vec{Y: baseline},
			Orientation: qCam,
		}},
	}
}

// Composer broadcasts the rig for every camera pose event.
type Composer struct {
	broadcaster *tf.Broadcaster
	baseline    float64
}

// NewComposer creates a Composer emitting through b.
func NewComposer(b *tf.Broadcaster, baseline float64) *Composer {
	return &Composer{broadcaster: b, baseline: baseline}
}

// Baseline returns the configured lens separation.
func (c *Composer) Baseline() float64 {
	return c.baseline
}

// HandlePose broadcasts all rig frames from the single pose snapshot. It
// stops at the first failed broadcast.
func (c *Composer) HandlePose(camera geom.Pose) error {
	for _, l := range Derive(camera, c.baseline) {
		if _, err := c.broadcaster.BroadcastPose(l.Pose, l.Parent, l.Child); err != nil {
			return err
		}
	}
	return nil
}
