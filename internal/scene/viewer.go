package scene

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/asteroid-view/internal/camrig"
	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/posebus"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// ViewerConfig configures a Viewer.
type ViewerConfig struct {
	ObjectTopic string
	CameraTopic string
	Interval    time.Duration
}

// ViewerStats are cumulative dispatch counters.
type ViewerStats struct {
	ObjectPoses  uint64
	CameraPoses  uint64
	UnknownTopic uint64
	NonUnitQuat  uint64
}

// Viewer routes inbound pose events to the frame tree and the marker
// synthesizer.
type Viewer struct {
	cfg         ViewerConfig
	broadcaster *tf.Broadcaster
	rig         *camrig.Composer
	markers     *marker.Synthesizer
	clock       timeutil.Clock

	objectPoses atomic.Uint64
	cameraPoses atomic.Uint64
	unknown     atomic.Uint64
	nonUnit     atomic.Uint64
}

// NewViewer wires a viewer. A nil clock uses the wall clock.
func NewViewer(cfg ViewerConfig, b *tf.Broadcaster, rig *camrig.Composer, markers *marker.Synthesizer, clock timeutil.Clock) *Viewer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Millisecond
	}
	return &Viewer{cfg: cfg, broadcaster: b, rig: rig, markers: markers, clock: clock}
}

// Stats returns the dispatch counters.
func (v *Viewer) Stats() ViewerStats {
	return ViewerStats{
		ObjectPoses:  v.objectPoses.Load(),
		CameraPoses:  v.cameraPoses.Load(),
		UnknownTopic: v.unknown.Load(),
		NonUnitQuat:  v.nonUnit.Load(),
	}
}

// Dispatch handles one pose event. Errors mean the outbound bus is gone.
func (v *Viewer) Dispatch(msg posebus.Message) error {
	if !geom.IsUnit(msg.Pose.Orientation) {
		n := v.nonUnit.Add(1)
		if n == 1 || n%1000 == 0 {
			log.Printf("[Viewer] non-unit orientation on %s (|q|=%.6f, %d so far); passing through",
				msg.Topic, quat.Abs(msg.Pose.Orientation), n)
		}
	}

	switch msg.Topic {
	case v.cfg.ObjectTopic:
		return v.handleObjectPose(msg.Pose)
	case v.cfg.CameraTopic:
		v.cameraPoses.Add(1)
		return v.rig.HandlePose(msg.Pose)
	default:
		n := v.unknown.Add(1)
		if n == 1 || n%1000 == 0 {
			log.Printf("[Viewer] ignoring pose on unknown topic %q (%d so far)", msg.Topic, n)
		}
		return nil
	}
}

// handleObjectPose moves the asteroid frame and restamps the marker with the
// same stamp so the mesh never lags its frame.
func (v *Viewer) handleObjectPose(pose geom.Pose) error {
	stamp, err := v.broadcaster.BroadcastPose(pose, tf.FrameWorld, tf.FrameAsteroid)
	if err != nil {
		return fmt.Errorf("broadcast asteroid: %w", err)
	}
	if err := v.markers.Refresh(stamp); err != nil {
		return err
	}
	v.objectPoses.Add(1)
	return nil
}

// Drain dispatches every event already queued on events without blocking.
func (v *Viewer) Drain(events <-chan posebus.Message) error {
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if err := v.Dispatch(msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Run drains events on every tick until ctx is cancelled.
func (v *Viewer) Run(ctx context.Context, events <-chan posebus.Message) error {
	ticker := v.clock.NewTicker(v.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[Viewer] listening for %s and %s, tick %v", v.cfg.ObjectTopic, v.cfg.CameraTopic, v.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			s := v.Stats()
			log.Printf("[Viewer] stopping: object=%d camera=%d unknown=%d non_unit=%d",
				s.ObjectPoses, s.CameraPoses, s.UnknownTopic, s.NonUnitQuat)
			return ctx.Err()
		case <-ticker.C():
			if err := v.Drain(events); err != nil {
				return err
			}
		}
	}
}
