// Command plot-spin renders the asteroid orientation quaternion over one
// revolution to a PNG, for checking the spin model offline.
//
// Usage:
//
//	go run ./cmd/tools/plot-spin [flags]
//
// Flags:
//
//	-omega    Spin rate in rad/s (default: 0.25)
//	-samples  Number of samples (default: 400)
//	-out      Output file (default: spin.png)
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/security"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

func main() {
	omega := flag.Float64("omega", motion.DefaultOmega, "Spin rate in rad/s")
	samples := flag.Int("samples", 400, "Number of samples over one revolution")
	out := flag.String("out", "spin.png", "Output PNG file")
	flag.Parse()

	if err := security.ValidateOutputPath(*out); err != nil {
		log.Fatalf("invalid output path: %v", err)
	}

	model := motion.NewSpinModel(*omega, timeutil.NewMockClock(time.Time{}))
	if err := plotSpin(model, *samples, *out); err != nil {
		log.Fatalf("plot failed: %v", err)
	}
	log.Printf("wrote %s (omega=%.3f rad/s, period=%v)", *out, *omega, model.Period())
}

// plotSpin samples model over one period and saves the w, x, y, z
// components as line series.
func plotSpin(model *motion.SpinModel, n int, out string) error {
	period := model.Period()
	if period == 0 {
		return fmt.Errorf("omega must be non-zero")
	}
	if n < 2 {
		return fmt.Errorf("need at least 2 samples, got %d", n)
	}

	components := []struct {
		name string
		pts  plotter.XYs
	}{
		{name: "w"}, {name: "x"}, {name: "y"}, {name: "z"},
	}
	for _, s := range model.Samples(n, period) {
		q := s.Pose.Orientation
		for i, v := range []float64{q.Real, q.Imag, q.Jmag, q.Kmag} {
			components[i].pts = append(components[i].pts, plotter.XY{X: s.T, Y: v})
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Asteroid orientation, omega=%.3f rad/s", model.Omega())
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "quaternion component"
	p.Y.Min, p.Y.Max = -1, 1

	for i, c := range components {
		line, err := plotter.NewLine(c.pts)
		if err != nil {
			return fmt.Errorf("series %s: %w", c.name, err)
		}
		line.Width = vg.Points(1)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(c.name, line)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(14*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	return nil
}
