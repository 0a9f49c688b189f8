// Package testutil provides shared test helpers for poses, config files and
// debug handlers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertQuatNear fails the test if got and want differ in any component by
// more than tol.
func AssertQuatNear(t testing.TB, got, want quat.Number, tol float64) {
	t.Helper()
	if !geom.QuatEqualWithin(got, want, tol) {
		t.Errorf("quaternion = %v, want %v (tol %g)", got, want, tol)
	}
}

// AssertVecNear fails the test if got and want differ in any component by
// more than tol.
func AssertVecNear(t testing.TB, got, want r3.Vec, tol float64) {
	t.Helper()
	if !geom.VecEqualWithin(got, want, tol) {
		t.Errorf("vector = %v, want %v (tol %g)", got, want, tol)
	}
}

// AssertPoseNear compares position and orientation within tol.
func AssertPoseNear(t testing.TB, got, want geom.Pose, tol float64) {
	t.Helper()
	AssertVecNear(t, got.Position, want.Position, tol)
	AssertQuatNear(t, got.Orientation, want.Orientation, tol)
}

// WriteFile writes content to name inside a fresh temp directory and returns
// the full path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
