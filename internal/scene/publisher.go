// Package scene runs the two scene loops: the pose publisher that drives the
// asteroid spin, and the viewer that turns inbound poses into frame
// transforms and mesh markers.
package scene

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// PoseSender publishes a pose on a topic. *posebus.Sender implements it.
type PoseSender interface {
	Publish(topic string, pose geom.Pose) error
}

// PublisherConfig configures a PosePublisher.
type PublisherConfig struct {
	ObjectTopic string
	CameraTopic string
	// CameraPose is published unchanged on every tick.
	CameraPose geom.Pose
	Interval   time.Duration
}

// PosePublisher advances the spin model on a fixed tick and publishes the
// resulting asteroid pose together with the fixed camera pose.
type PosePublisher struct {
	cfg         PublisherConfig
	model       *motion.SpinModel
	broadcaster *tf.Broadcaster
	bus         PoseSender
	clock       timeutil.Clock

	ticks atomic.Uint64
}

// NewPosePublisher wires a publisher. A nil clock uses the wall clock.
func NewPosePublisher(cfg PublisherConfig, model *motion.SpinModel, b *tf.Broadcaster, bus PoseSender, clock timeutil.Clock) *PosePublisher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Millisecond
	}
	return &PosePublisher{cfg: cfg, model: model, broadcaster: b, bus: bus, clock: clock}
}

// Ticks returns the number of completed ticks.
func (p *PosePublisher) Ticks() uint64 {
	return p.ticks.Load()
}

// Step runs one tick: compute the asteroid pose, broadcast world->asteroid
// and publish both poses on the bus.
func (p *PosePublisher) Step() error {
	pose := p.model.Next()

	if _, err := p.broadcaster.BroadcastPose(pose, tf.FrameWorld, tf.FrameAsteroid); err != nil {
		return fmt.Errorf("broadcast asteroid: %w", err)
	}
	if err := p.bus.Publish(p.cfg.ObjectTopic, pose); err != nil {
		return err
	}
	if err := p.bus.Publish(p.cfg.CameraTopic, p.cfg.CameraPose); err != nil {
		return err
	}
	p.ticks.Add(1)
	return nil
}

// Run ticks until ctx is cancelled. A failed publish ends the loop with the
// error; cancellation returns ctx.Err().
func (p *PosePublisher) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[Publisher] publishing %s and %s every %v (omega=%.3f rad/s)",
		p.cfg.ObjectTopic, p.cfg.CameraTopic, p.cfg.Interval, p.model.Omega())

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Publisher] stopping after %d ticks", p.ticks.Load())
			return ctx.Err()
		case <-ticker.C():
			if err := p.Step(); err != nil {
				return err
			}
		}
	}
}
