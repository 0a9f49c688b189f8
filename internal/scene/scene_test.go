package scene

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/camrig"
	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/posebus"
	"github.com/banshee-data/asteroid-view/internal/testutil"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

const (
	objectTopic = "/asteroid/pose"
	cameraTopic = "/camera/pose"
)

var errBusDown = errors.New("bus down")

type published struct {
	topic string
	pose  geom.Pose
}

// recorder stands in for every outbound bus: transforms, markers and poses.
type recorder struct {
	mu         sync.Mutex
	transforms []tf.TransformStamped
	markers    []marker.Array
	poses      []published
	err        error
}

func (r *recorder) SendTransform(ts tf.TransformStamped) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.transforms = append(r.transforms, ts)
	return nil
}

func (r *recorder) PublishMarkers(topic string, a marker.Array) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.markers = append(r.markers, a)
	return nil
}

func (r *recorder) Publish(topic string, pose geom.Pose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.poses = append(r.poses, published{topic, pose})
	return nil
}

func (r *recorder) snapshot() ([]tf.TransformStamped, []marker.Array, []published) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tf.TransformStamped(nil), r.transforms...),
		append([]marker.Array(nil), r.markers...),
		append([]published(nil), r.poses...)
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func newTestPublisher(clock *timeutil.MockClock, rec *recorder) *PosePublisher {
	model := motion.NewSpinModel(motion.DefaultOmega, clock)
	b := tf.NewBroadcaster(rec, clock, nil)
	cfg := PublisherConfig{
		ObjectTopic: objectTopic,
		CameraTopic: cameraTopic,
		CameraPose:  geom.IdentityPose(),
		Interval:    10 * time.Millisecond,
	}
	return NewPosePublisher(cfg, model, b, rec, clock)
}

func TestPosePublisher_StepScenario(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	rec := &recorder{}
	p := newTestPublisher(clock, rec)

	clock.Advance(seconds(2 * math.Pi))
	require.NoError(t, p.Step())

	transforms, _, poses := rec.snapshot()
	require.Len(t, transforms, 1)
	ts := transforms[0]
	assert.Equal(t, tf.FrameWorld, ts.Parent)
	assert.Equal(t, tf.FrameAsteroid, ts.Child)

	want := quat.Number{Real: 0.5, Imag: 0.5, Jmag: -0.5, Kmag: 0.5}
	testutil.AssertQuatNear(t, ts.Pose.Orientation, want, 1e-6)
	assert.Equal(t, r3.Vec{}, ts.Pose.Position)

	require.Len(t, poses, 2)
	assert.Equal(t, objectTopic, poses[0].topic)
	assert.Equal(t, ts.Pose, poses[0].pose)
	assert.Equal(t, cameraTopic, poses[1].topic)
	assert.Equal(t, geom.IdentityPose(), poses[1].pose)
	assert.Equal(t, uint64(1), p.Ticks())
}

func TestPosePublisher_RunStopsOnBusError(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	rec := &recorder{}
	p := newTestPublisher(clock, rec)

	// The broadcast sink works but the pose bus fails.
	p.bus = &recorder{err: errBusDown}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	var err error
	require.Eventually(t, func() bool {
		clock.Advance(10 * time.Millisecond)
		select {
		case err = <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, err, errBusDown)
}

func TestPosePublisher_RunTicksUntilCancelled(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	rec := &recorder{}
	p := newTestPublisher(clock, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		clock.Advance(10 * time.Millisecond)
		return p.Ticks() >= 3
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, _, poses := rec.snapshot()
	assert.Equal(t, 2*int(p.Ticks()), len(poses))
}

func newTestViewer(clock timeutil.Clock, rec *recorder) *Viewer {
	b := tf.NewBroadcaster(rec, clock, nil)
	rig := camrig.NewComposer(b, camrig.DefaultBaseline)
	m := marker.NewMeshMarker(marker.MeshSpec{File: "bennu.dae", Scale: 1}, time.Time{})
	synth := marker.NewSynthesizer(marker.NewState(m), rec)
	cfg := ViewerConfig{ObjectTopic: objectTopic, CameraTopic: cameraTopic, Interval: 5 * time.Millisecond}
	return NewViewer(cfg, b, rig, synth, clock)
}

func TestViewer_ObjectPoseStampCoherence(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	clock.SetAutoAdvance(time.Millisecond)
	rec := &recorder{}
	v := newTestViewer(clock, rec)

	for i := 0; i < 3; i++ {
		pose := geom.Pose{Orientation: motion.Orientation(0.25, float64(i))}
		require.NoError(t, v.Dispatch(posebus.Message{Topic: objectTopic, Pose: pose}))
	}

	transforms, markers, _ := rec.snapshot()
	require.Len(t, transforms, 3)
	require.Len(t, markers, 3)
	for i := range transforms {
		require.Len(t, markers[i].Markers, 1)
		assert.Equal(t, transforms[i].Stamp, markers[i].Markers[0].Stamp, "event %d", i)
		if i > 0 {
			assert.True(t, transforms[i].Stamp.After(transforms[i-1].Stamp))
		}
	}
	assert.Equal(t, uint64(3), v.Stats().ObjectPoses)
}

func TestViewer_CameraPoseScenario(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	rec := &recorder{}
	v := newTestViewer(clock, rec)

	camera := geom.Pose{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Orientation: geom.Identity()}
	require.NoError(t, v.Dispatch(posebus.Message{Topic: cameraTopic, Pose: camera}))

	transforms, markers, _ := rec.snapshot()
	assert.Empty(t, markers)
	require.Len(t, transforms, 3)

	qCam := quat.Number{Real: 0.5, Imag: -0.5, Jmag: 0.5, Kmag: -0.5}
	assert.Equal(t, tf.FrameCamera, transforms[0].Child)
	assert.Equal(t, camera, transforms[0].Pose)

	assert.Equal(t, tf.FrameCameraLeft, transforms[1].Child)
	assert.Equal(t, r3.Vec{}, transforms[1].Pose.Position)
	testutil.AssertQuatNear(t, transforms[1].Pose.Orientation, qCam, 1e-12)

	assert.Equal(t, tf.FrameCameraRight, transforms[2].Child)
	testutil.AssertPoseNear(t, transforms[2].Pose, geom.Pose{Position: r3.Vec{Y: 0.2}, Orientation: qCam}, 1e-12)
}

func TestViewer_UnknownTopicAndNonUnit(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	rec := &recorder{}
	v := newTestViewer(clock, rec)

	require.NoError(t, v.Dispatch(posebus.Message{Topic: "/nobody", Pose: geom.IdentityPose()}))

	skewed := geom.Pose{Orientation: quat.Number{Real: 2}}
	require.NoError(t, v.Dispatch(posebus.Message{Topic: objectTopic, Pose: skewed}))

	transforms, _, _ := rec.snapshot()
	require.Len(t, transforms, 1)
	assert.Equal(t, skewed, transforms[0].Pose, "pose must pass through unchanged")

	stats := v.Stats()
	assert.Equal(t, uint64(1), stats.UnknownTopic)
	assert.Equal(t, uint64(1), stats.NonUnitQuat)
}

func TestViewer_BusErrorIsReturned(t *testing.T) {
	rec := &recorder{err: errBusDown}
	v := newTestViewer(timeutil.NewMockClock(t0), rec)

	err := v.Dispatch(posebus.Message{Topic: objectTopic, Pose: geom.IdentityPose()})
	assert.ErrorIs(t, err, errBusDown)
	err = v.Dispatch(posebus.Message{Topic: cameraTopic, Pose: geom.IdentityPose()})
	assert.ErrorIs(t, err, errBusDown)
}

func TestViewer_RunDrainsPendingEvents(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	rec := &recorder{}
	v := newTestViewer(clock, rec)

	events := make(chan posebus.Message, 8)
	events <- posebus.Message{Topic: cameraTopic, Pose: geom.IdentityPose()}
	events <- posebus.Message{Topic: objectTopic, Pose: geom.IdentityPose()}
	events <- posebus.Message{Topic: objectTopic, Pose: geom.IdentityPose()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx, events) }()

	require.Eventually(t, func() bool {
		clock.Advance(5 * time.Millisecond)
		s := v.Stats()
		return s.CameraPoses == 1 && s.ObjectPoses == 2
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, events)
}
