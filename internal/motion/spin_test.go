package motion

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// closedForm is R_y(-pi/2) * R_x(roll) multiplied out by hand.
func closedForm(roll float64) quat.Number {
	h := math.Sqrt2 / 2
	c, s := math.Cos(roll/2), math.Sin(roll/2)
	return quat.Number{Real: h * c, Imag: h * s, Jmag: -h * c, Kmag: h * s}
}

func TestOrientation_MatchesClosedForm(t *testing.T) {
	for _, dt := range []float64{0, 0.01, 1, 2 * math.Pi, 10, 123.456, 1e4} {
		got := Orientation(DefaultOmega, dt)
		want := closedForm(DefaultOmega * dt)
		if !geom.QuatEqualWithin(got, want, 1e-9) {
			t.Errorf("dt=%v: got %v, want %v", dt, got, want)
		}
		if !geom.IsUnit(got) {
			t.Errorf("dt=%v: |q| = %v", dt, quat.Abs(got))
		}
	}
}

func TestOrientation_PitchIsOuter(t *testing.T) {
	roll := 0.7
	got := Orientation(1, roll)
	swapped := geom.Compose(geom.AxisAngle(geom.UnitX, roll), geom.AxisAngle(geom.UnitY, Tilt))
	if geom.QuatEqualWithin(got, swapped, 1e-6) {
		t.Fatal("orientation equals R_x*R_y; composition order is reversed")
	}

	// The body X axis (spin axis) stays pitched onto world +Z for every roll.
	for _, dt := range []float64{0, 1, 5, 17} {
		axis := geom.Rotate(Orientation(DefaultOmega, dt), geom.UnitX)
		if !geom.VecEqualWithin(axis, r3.Vec{Z: 1}, 1e-9) {
			t.Errorf("dt=%v: spin axis = %v, want +Z", dt, axis)
		}
	}
}

// seconds converts a fractional second count to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func TestScenario_QuarterTurnAfterTwoPiSeconds(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewSpinModel(0.25, clock)

	clock.Advance(seconds(2 * math.Pi))
	pose := m.Next()

	want := quat.Number{Real: 0.5, Imag: 0.5, Jmag: -0.5, Kmag: 0.5}
	if !geom.QuatEqualWithin(pose.Orientation, want, 1e-6) {
		t.Errorf("orientation = %v, want %v", pose.Orientation, want)
	}
	if pose.Position != (r3.Vec{}) {
		t.Errorf("position = %v, want origin", pose.Position)
	}
}

func TestSpinModel_StatelessTicks(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	m := NewSpinModel(DefaultOmega, clock)

	if !m.Start().Equal(time.Unix(100, 0)) {
		t.Errorf("Start = %v", m.Start())
	}

	for i := 0; i < 1000; i++ {
		clock.Advance(10 * time.Millisecond)
		_ = m.Next()
	}
	got := m.Next()
	want := m.PoseAt(10)
	if !geom.QuatEqualWithin(got.Orientation, want.Orientation, 1e-12) {
		t.Errorf("after 1000 ticks got %v, want %v", got.Orientation, want.Orientation)
	}
}

func TestSamplesAndPeriod(t *testing.T) {
	m := NewSpinModel(DefaultOmega, timeutil.NewMockClock(time.Unix(0, 0)))

	period := m.Period()
	wantPeriod := seconds(8 * math.Pi)
	if d := period - wantPeriod; d > time.Microsecond || d < -time.Microsecond {
		t.Errorf("Period = %v, want %v", period, wantPeriod)
	}

	samples := m.Samples(5, period)
	if len(samples) != 5 {
		t.Fatalf("len = %d", len(samples))
	}
	if samples[0].T != 0 {
		t.Errorf("first sample at %v", samples[0].T)
	}
	if math.Abs(samples[4].Roll-2*math.Pi) > 1e-6 {
		t.Errorf("last roll = %v, want 2pi", samples[4].Roll)
	}

	if m.Samples(0, period) != nil {
		t.Error("Samples(0) should be nil")
	}
	if NewSpinModel(0, nil).Period() != 0 {
		t.Error("zero omega should have zero period")
	}
}
