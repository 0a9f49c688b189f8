// Command view-asteroid listens for asteroid and camera poses on the pose bus
// and streams the resulting frame tree and asteroid mesh marker to visualiser
// clients over gRPC.
//
// Usage:
//
//	go run ./cmd/view-asteroid [flags]
//
// Flags:
//
//	-config        Scene config file (default: config/asteroid.defaults.json)
//	-pose-bus      Override pose_bus_addr
//	-addr          Override visualiser_addr
//	-debug-listen  Override debug_listen (e.g. localhost:6062)
//	-v             Log every transform
//	-version       Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/asteroid-view/internal/camrig"
	"github.com/banshee-data/asteroid-view/internal/config"
	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/monitoring"
	"github.com/banshee-data/asteroid-view/internal/posebus"
	"github.com/banshee-data/asteroid-view/internal/scene"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
	"github.com/banshee-data/asteroid-view/internal/version"
	"github.com/banshee-data/asteroid-view/internal/visualiser"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Scene configuration file")
	poseBus     = flag.String("pose-bus", "", "Pose bus address (overrides pose_bus_addr)")
	addr        = flag.String("addr", "", "Visualiser gRPC listen address (overrides visualiser_addr)")
	debugListen = flag.String("debug-listen", "", "Debug HTTP listen address (overrides debug_listen)")
	verbose     = flag.Bool("v", false, "Log every transform")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const program = "view-asteroid"

// override returns value when the flag was given, otherwise configured.
func override(value, configured string) string {
	if value != "" {
		return value
	}
	return configured
}

// resolveAddrs applies command-line overrides to the configured addresses.
func resolveAddrs(cfg *config.SceneConfig) (busAddr, visAddr, debugAddr string) {
	return override(*poseBus, cfg.GetPoseBusAddr()),
		override(*addr, cfg.GetVisualiserAddr()),
		override(*debugListen, cfg.GetDebugListen())
}

// sceneSink receives both the frame tree and the marker stream.
type sceneSink interface {
	tf.Sink
	marker.Sink
}

// newViewer wires the frame buffer, camera rig and mesh marker to a viewer
// whose output goes to out.
func newViewer(cfg *config.SceneConfig, out sceneSink, clock timeutil.Clock) (*scene.Viewer, *tf.Buffer) {
	frames := tf.NewBuffer(nil)
	broadcaster := tf.NewBroadcaster(tf.MultiSink{frames, out}, clock, nil)
	rig := camrig.NewComposer(broadcaster, cfg.GetCamBaseline())

	mesh := marker.NewMeshMarker(marker.MeshSpec{
		Package: cfg.GetMeshPackage(),
		File:    cfg.GetFile3D(),
		Scale:   cfg.GetScaleObject(),
		Offset:  cfg.GetOffsetObject(),
	}, clock.Now())
	markers := marker.NewSynthesizer(marker.NewState(mesh), out)
	log.Printf("[Viewer] mesh %s scale=%.3f offset=%v", mesh.MeshResource, cfg.GetScaleObject(), cfg.GetOffsetObject())

	viewer := scene.NewViewer(scene.ViewerConfig{
		ObjectTopic: cfg.GetObjectPoseTopic(),
		CameraTopic: cfg.GetCameraPoseTopic(),
		Interval:    cfg.GetViewInterval(),
	}, broadcaster, rig, markers, clock)
	return viewer, frames
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(program))
		return
	}
	log.Print(version.String(program))
	monitoring.SetDebug(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateViewer(); err != nil {
		log.Fatalf("invalid config %s: %v", *configPath, err)
	}

	busAddr, visAddr, debugAddr := resolveAddrs(cfg)

	visCfg := visualiser.DefaultConfig()
	visCfg.ListenAddr = visAddr
	vis := visualiser.NewPublisher(visCfg)
	if err := vis.Start(); err != nil {
		log.Fatalf("failed to start visualiser: %v", err)
	}
	defer vis.Stop()

	clock := timeutil.RealClock{}
	viewer, frames := newViewer(cfg, vis, clock)

	listener := posebus.NewListener(posebus.ListenerConfig{
		Address: busAddr,
		Topics:  []string{cfg.GetObjectPoseTopic(), cfg.GetCameraPoseTopic()},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("pose bus unavailable: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := scene.ServeDebug(ctx, debugAddr, scene.DebugSources{
			Frames: frames,
			Stats: func() map[string]interface{} {
				return map[string]interface{}{
					"viewer":     viewer.Stats(),
					"pose_bus":   listener.Stats(),
					"visualiser": vis.Stats(),
				}
			},
		})
		if err != nil {
			log.Printf("debug server failed: %v", err)
		}
	}()

	if err := viewer.Run(ctx, listener.Events()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("viewer failed: %v", err)
	}

	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
