package scene

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/testutil"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

func TestFramesHandler(t *testing.T) {
	buf := tf.NewBuffer(nil)
	require.NoError(t, buf.SendTransform(tf.TransformStamped{
		Parent: tf.FrameWorld, Child: tf.FrameCamera,
		Pose:  geom.Pose{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Orientation: geom.Identity()},
		Stamp: t0,
	}))
	require.NoError(t, buf.SendTransform(tf.TransformStamped{
		Parent: tf.FrameCamera, Child: tf.FrameCameraRight,
		Pose:  geom.Pose{Position: r3.Vec{Y: 0.2}, Orientation: geom.Identity()},
		Stamp: t0,
	}))

	rr := httptest.NewRecorder()
	framesHandler(buf)(rr, httptest.NewRequest(http.MethodGet, "/debug/frames", nil))
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got []frameView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, tf.FrameCamera, got[0].Child)
	assert.Equal(t, tf.FrameCameraRight, got[1].Child)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, got[1].Orientation)
	assert.Empty(t, got[1].WorldError)
	assert.NotEmpty(t, got[1].World)

	rr = httptest.NewRecorder()
	framesHandler(buf)(rr, httptest.NewRequest(http.MethodPost, "/debug/frames", nil))
	testutil.AssertStatusCode(t, rr.Code, http.StatusMethodNotAllowed)
}

func TestSpinChartHandler(t *testing.T) {
	model := motion.NewSpinModel(0.25, timeutil.NewMockClock(t0))

	rr := httptest.NewRecorder()
	spinChartHandler(model)(rr, httptest.NewRequest(http.MethodGet, "/debug/spin?n=16", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rr.Body.String(), "Asteroid orientation")

	still := motion.NewSpinModel(0, timeutil.NewMockClock(t0))
	rr = httptest.NewRecorder()
	spinChartHandler(still)(rr, httptest.NewRequest(http.MethodGet, "/debug/spin", nil))
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
}

func TestAttachAdminRoutes(t *testing.T) {
	mux := http.NewServeMux()
	AttachAdminRoutes(mux, DebugSources{
		Frames: tf.NewBuffer(nil),
		Stats: func() map[string]interface{} {
			return map[string]interface{}{"ticks": 7, "since": time.Second.String()}
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/debug/scene-stats", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, float64(7), got["ticks"])
}
