package main

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/camrig"
	"github.com/banshee-data/asteroid-view/internal/config"
	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/posebus"
	"github.com/banshee-data/asteroid-view/internal/testutil"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

const defaultsFile = "../../config/asteroid.defaults.json"

func setFlag(t *testing.T, name, value string) {
	t.Helper()
	require.NoError(t, flag.Set(name, value))
	t.Cleanup(func() { flag.Set(name, "") })
}

func loadDefaults(t *testing.T) *config.SceneConfig {
	t.Helper()
	cfg, err := config.Load(defaultsFile)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateViewer())
	return cfg
}

func TestFlagDefaults(t *testing.T) {
	if configPath == nil || *configPath != config.DefaultConfigPath {
		t.Errorf("expected -config default %q", config.DefaultConfigPath)
	}
	for name, v := range map[string]*string{"pose-bus": poseBus, "addr": addr, "debug-listen": debugListen} {
		if v == nil || *v != "" {
			t.Errorf("expected -%s to default to empty", name)
		}
	}
}

func TestResolveAddrs(t *testing.T) {
	cfg := loadDefaults(t)

	bus, vis, debug := resolveAddrs(cfg)
	assert.Equal(t, "127.0.0.1:7400", bus)
	assert.Equal(t, "localhost:50061", vis)
	assert.Equal(t, "", debug)

	setFlag(t, "addr", "localhost:0")
	setFlag(t, "debug-listen", "localhost:6062")
	bus, vis, debug = resolveAddrs(cfg)
	assert.Equal(t, "127.0.0.1:7400", bus, "unset flag keeps the configured value")
	assert.Equal(t, "localhost:0", vis)
	assert.Equal(t, "localhost:6062", debug)
}

type sceneRecorder struct {
	transforms []tf.TransformStamped
	markers    []marker.Array
}

func (r *sceneRecorder) SendTransform(ts tf.TransformStamped) error {
	r.transforms = append(r.transforms, ts)
	return nil
}

func (r *sceneRecorder) PublishMarkers(topic string, a marker.Array) error {
	r.markers = append(r.markers, a)
	return nil
}

func TestNewViewer_WiresConfig(t *testing.T) {
	cfg := loadDefaults(t)
	scale := 2.0
	offset := []float64{1, 0, 0}
	cfg.ScaleObject = &scale
	cfg.OffsetObject = &offset

	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.SetAutoAdvance(time.Millisecond)
	out := &sceneRecorder{}
	viewer, frames := newViewer(cfg, out, clock)

	require.NoError(t, viewer.Dispatch(posebus.Message{Topic: "/asteroid/pose", Pose: geom.IdentityPose()}))
	require.Len(t, out.transforms, 1)
	require.Len(t, out.markers, 1)

	m := out.markers[0].Markers[0]
	assert.Equal(t, "package://view_asteroid/meshes/bennu.dae", m.MeshResource)
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 2}, m.Scale)
	assert.Equal(t, r3.Vec{X: 2}, m.Pose.Position)
	assert.True(t, m.Stamp.Equal(out.transforms[0].Stamp))

	camera := geom.Pose{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Orientation: geom.Identity()}
	require.NoError(t, viewer.Dispatch(posebus.Message{Topic: "/camera/pose", Pose: camera}))

	right, ok := frames.Lookup(tf.FrameCameraRight)
	require.True(t, ok)
	testutil.AssertPoseNear(t, right.Pose, geom.Pose{Position: r3.Vec{Y: 0.2}, Orientation: camrig.LensRotation()}, 1e-12)

	world, err := frames.WorldPose(tf.FrameCamera)
	require.NoError(t, err)
	testutil.AssertPoseNear(t, world, camera, 1e-12)
	assert.Len(t, out.transforms, 4)
}
