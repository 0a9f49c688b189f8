// Package motion derives the asteroid's pose from elapsed time.
package motion

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// DefaultOmega is the asteroid spin rate in rad/s.
const DefaultOmega = 0.25

// Tilt is the fixed pitch of the spin axis about Y.
const Tilt = -math.Pi / 2

// SpinModel spins the asteroid about its own X axis at a fixed rate while the
// X axis is held pitched by Tilt about the world Y axis. The pose is derived
// from scratch on every call, so no integration error accumulates.
type SpinModel struct {
	omega float64
	clock timeutil.Clock
	t0    time.Time
}

// NewSpinModel captures the start time from clock. A nil clock uses the wall
// clock.
func NewSpinModel(omega float64, clock timeutil.Clock) *SpinModel {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SpinModel{omega: omega, clock: clock, t0: clock.Now()}
}

// Omega returns the spin rate in rad/s.
func (m *SpinModel) Omega() float64 {
	return m.omega
}

// Start returns the time captured at construction.
func (m *SpinModel) Start() time.Time {
	return m.t0
}

// Orientation returns R_y(Tilt) * R_x(omega*dt). Pitch is the outer rotation
// and roll the inner one; swapping them turns the spin into a precession.
func Orientation(omega, dt float64) quat.Number {
	roll := omega * dt
	pitch := Tilt
	return geom.Compose(
		geom.AxisAngle(geom.UnitY, pitch),
		geom.AxisAngle(geom.UnitX, roll),
	)
}

// PoseAt returns the asteroid pose relative to world dt seconds after start.
// The asteroid stays at the world origin.
func (m *SpinModel) PoseAt(dt float64) geom.Pose {
	return geom.Pose{Orientation: Orientation(m.omega, dt)}
}

// Next returns the pose for the current clock time.
func (m *SpinModel) Next() geom.Pose {
	return m.PoseAt(m.clock.Since(m.t0).Seconds())
}

// Sample is one evaluation of the model.
type Sample struct {
	T    float64
	Roll float64
	Pose geom.Pose
}

// Samples evaluates the model at n evenly spaced instants over [0, span].
func (m *SpinModel) Samples(n int, span time.Duration) []Sample {
	if n <= 0 {
		return nil
	}
	out := make([]Sample, n)
	step := 0.0
	if n > 1 {
		step = span.Seconds() / float64(n-1)
	}
	for i := range out {
		dt := float64(i) * step
		out[i] = Sample{T: dt, Roll: m.omega * dt, Pose: m.PoseAt(dt)}
	}
	return out
}

// Period returns the time for one full revolution, or zero when not spinning.
func (m *SpinModel) Period() time.Duration {
	if m.omega == 0 {
		return 0
	}
	return time.Duration(2 * math.Pi / math.Abs(m.omega) * float64(time.Second))
}
