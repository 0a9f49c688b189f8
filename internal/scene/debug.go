package scene

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/asteroid-view/internal/httputil"
	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/tf"
)

// DebugSources are the live objects exposed under /debug/.
type DebugSources struct {
	// Frames is the latest transform per frame.
	Frames *tf.Buffer
	// Model, when set, enables the spin chart.
	Model *motion.SpinModel
	// Stats returns process counters for the stats page.
	Stats func() map[string]interface{}
}

// AttachAdminRoutes registers the debug pages on mux.
func AttachAdminRoutes(mux *http.ServeMux, src DebugSources) {
	debug := tsweb.Debugger(mux)

	if src.Frames != nil {
		debug.HandleFunc("frames", "Latest transform and world pose of every frame", framesHandler(src.Frames))
	}
	if src.Model != nil {
		debug.HandleFunc("spin", "Asteroid orientation over one revolution", spinChartHandler(src.Model))
	}
	if src.Stats != nil {
		debug.HandleFunc("scene-stats", "Scene loop and transport counters", func(w http.ResponseWriter, r *http.Request) {
			if httputil.RequireGET(w, r) {
				httputil.WriteJSON(w, http.StatusOK, src.Stats())
			}
		})
	}
}

// ServeDebug serves the debug pages on addr until ctx is cancelled. An empty
// addr disables the server.
func ServeDebug(ctx context.Context, addr string, src DebugSources) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	AttachAdminRoutes(mux, src)
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Debug] serving /debug/ on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("debug server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Debug] shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("[Debug] force close error: %v", err)
		}
	}
	return nil
}

type frameView struct {
	Parent      string     `json:"parent"`
	Child       string     `json:"child"`
	Stamp       time.Time  `json:"stamp"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation_xyzw"`
	World       string     `json:"world_pose,omitempty"`
	WorldError  string     `json:"world_error,omitempty"`
}

func framesHandler(buf *tf.Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireGET(w, r) {
			return
		}
		snap := buf.Snapshot()
		out := make([]frameView, 0, len(snap))
		for _, ts := range snap {
			p, q := ts.Pose.Position, ts.Pose.Orientation
			fv := frameView{
				Parent:      ts.Parent,
				Child:       ts.Child,
				Stamp:       ts.Stamp,
				Position:    [3]float64{p.X, p.Y, p.Z},
				Orientation: [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real},
			}
			if world, err := buf.WorldPose(ts.Child); err != nil {
				fv.WorldError = err.Error()
			} else {
				fv.World = world.String()
			}
			out = append(out, fv)
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

// spinChartHandler renders the orientation quaternion components over one
// revolution. Query param n sets the sample count (default 200).
func spinChartHandler(model *motion.SpinModel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireGET(w, r) {
			return
		}
		n := 200
		if v := r.URL.Query().Get("n"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed >= 2 && parsed <= 5000 {
				n = parsed
			}
		}
		period := model.Period()
		if period == 0 {
			httputil.WriteJSONError(w, http.StatusNotFound, "model is not spinning (omega=0)")
			return
		}

		samples := model.Samples(n, period)
		x := make([]string, len(samples))
		series := map[string][]opts.LineData{}
		for i, s := range samples {
			x[i] = strconv.FormatFloat(s.T, 'f', 2, 64)
			q := s.Pose.Orientation
			series["w"] = append(series["w"], opts.LineData{Value: q.Real})
			series["x"] = append(series["x"], opts.LineData{Value: q.Imag})
			series["y"] = append(series["y"], opts.LineData{Value: q.Jmag})
			series["z"] = append(series["z"], opts.LineData{Value: q.Kmag})
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "Asteroid spin", Width: "100%", Height: "600px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    "Asteroid orientation",
				Subtitle: fmt.Sprintf("omega=%.3f rad/s period=%v samples=%d", model.Omega(), period.Round(time.Millisecond), n),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1}),
		)
		line.SetXAxis(x)
		for _, name := range []string{"w", "x", "y", "z"} {
			line.AddSeries(name, series[name])
		}

		page := components.NewPage()
		page.AddCharts(line)

		var buf bytes.Buffer
		if err := page.Render(&buf); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
