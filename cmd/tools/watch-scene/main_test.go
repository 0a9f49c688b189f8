package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/visualiser"
)

func TestSubscribeRequest(t *testing.T) {
	tests := []struct {
		frames  string
		markers bool
		want    visualiser.SubscribeRequest
	}{
		{"", true, visualiser.SubscribeRequest{IncludeMarkers: true}},
		{"asteroid", false, visualiser.SubscribeRequest{Frames: []string{"asteroid"}}},
		{" camera-left, camera-right ,", true, visualiser.SubscribeRequest{
			Frames: []string{"camera-left", "camera-right"}, IncludeMarkers: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subscribeRequest(tt.frames, tt.markers), "frames %q", tt.frames)
	}
}

func TestFormatUpdate(t *testing.T) {
	stamp := time.Date(2026, 1, 1, 12, 30, 45, 123456000, time.UTC)
	lines := formatUpdate(visualiser.Update{
		Kind: visualiser.KindTransform,
		Seq:  7,
		Transform: tf.TransformStamped{
			Parent: tf.FrameWorld, Child: tf.FrameAsteroid, Pose: geom.IdentityPose(), Stamp: stamp,
		},
	})
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "#7 world -> asteroid @ 12:30:45.123456: "), lines[0])

	m := marker.NewMeshMarker(marker.MeshSpec{File: "bennu.dae", Scale: 1}, stamp)
	lines = formatUpdate(visualiser.Update{
		Kind: visualiser.KindMarkers, Seq: 8, Topic: marker.Topic,
		Markers: marker.Array{Markers: []marker.Marker{m}},
	})
	assert.Equal(t, []string{
		"#8 asteroid_marker asteroid/1 in asteroid @ 12:30:45.123456: package://view_asteroid/meshes/bennu.dae",
	}, lines)
}

// lockedBuffer is written by watch and read by the test goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_PrintsFilteredStream(t *testing.T) {
	pub := visualiser.NewPublisher(visualiser.DefaultConfig())
	lis := bufconn.Listen(1 << 20)
	require.NoError(t, pub.StartListener(lis))
	defer pub.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, visualiser.NewClient(conn), subscribeRequest(tf.FrameAsteroid, false), out)
	}()
	require.Eventually(t, func() bool { return pub.Stats().ClientCount == 1 },
		2*time.Second, 5*time.Millisecond)

	stamp := time.Unix(1000, 0)
	for _, child := range []string{tf.FrameCamera, tf.FrameAsteroid} {
		require.NoError(t, pub.SendTransform(tf.TransformStamped{
			Parent: tf.FrameWorld, Child: child, Pose: geom.IdentityPose(), Stamp: stamp,
		}))
	}
	m := marker.NewMeshMarker(marker.MeshSpec{File: "bennu.dae", Scale: 1}, stamp)
	require.NoError(t, pub.PublishMarkers(marker.Topic, marker.Array{Markers: []marker.Marker{m}}))

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "world -> asteroid") },
		2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.NotContains(t, out.String(), "world -> camera")
	assert.NotContains(t, out.String(), marker.Topic)
}
