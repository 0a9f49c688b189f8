package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

func TestPlotSpin(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spin.png")
	model := motion.NewSpinModel(0.25, timeutil.NewMockClock(time.Time{}))

	if err := plotSpin(model, 50, out); err != nil {
		t.Fatalf("plotSpin: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected non-empty PNG")
	}
}

func TestPlotSpin_Errors(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spin.png")
	clock := timeutil.NewMockClock(time.Time{})

	if err := plotSpin(motion.NewSpinModel(0, clock), 50, out); err == nil {
		t.Error("expected error for omega=0")
	}
	if err := plotSpin(motion.NewSpinModel(0.25, clock), 1, out); err == nil {
		t.Error("expected error for a single sample")
	}
}
