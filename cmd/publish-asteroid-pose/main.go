// Command publish-asteroid-pose drives the asteroid spin and publishes the
// asteroid and camera poses on the pose bus at a fixed rate.
//
// Usage:
//
//	go run ./cmd/publish-asteroid-pose [flags]
//
// Flags:
//
//	-config        Scene config file (default: config/asteroid.defaults.json)
//	-pose-bus      Override pose_bus_addr
//	-debug-listen  Override debug_listen (e.g. localhost:6061)
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

	"github.com/banshee-data/asteroid-view/internal/config"
	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/monitoring"
	"github.com/banshee-data/asteroid-view/internal/motion"
	"github.com/banshee-data/asteroid-view/internal/posebus"
	"github.com/banshee-data/asteroid-view/internal/scene"
	"github.com/banshee-data/asteroid-view/internal/tf"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
	"github.com/banshee-data/asteroid-view/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Scene configuration file")
	poseBus     = flag.String("pose-bus", "", "Pose bus address (overrides pose_bus_addr)")
	debugListen = flag.String("debug-listen", "", "Debug HTTP listen address (overrides debug_listen)")
	verbose     = flag.Bool("v", false, "Log every transform")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const program = "publish-asteroid-pose"

// override returns value when the flag was given, otherwise configured.
func override(value, configured string) string {
	if value != "" {
		return value
	}
	return configured
}

// resolveAddrs applies command-line overrides to the configured addresses.
func resolveAddrs(cfg *config.SceneConfig) (busAddr, debugAddr string) {
	return override(*poseBus, cfg.GetPoseBusAddr()), override(*debugListen, cfg.GetDebugListen())
}

// newPublisher wires the spin model and frame buffer to a pose publisher that
// sends on bus.
func newPublisher(cfg *config.SceneConfig, bus scene.PoseSender, clock timeutil.Clock) (*scene.PosePublisher, *tf.Buffer, *motion.SpinModel) {
	frames := tf.NewBuffer(nil)
	broadcaster := tf.NewBroadcaster(frames, clock, nil)
	model := motion.NewSpinModel(cfg.GetOmega(), clock)

	publisher := scene.NewPosePublisher(scene.PublisherConfig{
		ObjectTopic: cfg.GetObjectPoseTopic(),
		CameraTopic: cfg.GetCameraPoseTopic(),
		CameraPose:  geom.Pose{Position: cfg.GetCameraPosition(), Orientation: geom.Identity()},
		Interval:    cfg.GetPublishInterval(),
	}, model, broadcaster, bus, clock)
	return publisher, frames, model
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
	if err := cfg.ValidatePublisher(); err != nil {
		log.Fatalf("invalid config %s: %v", *configPath, err)
	}

	busAddr, debugAddr := resolveAddrs(cfg)

	clock := timeutil.RealClock{}
	sender, err := posebus.Dial(busAddr, clock)
	if err != nil {
		log.Fatalf("pose bus unavailable: %v", err)
	}
	defer sender.Close()

	publisher, frames, model := newPublisher(cfg, sender, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := scene.ServeDebug(ctx, debugAddr, scene.DebugSources{
			Frames: frames,
			Model:  model,
			Stats: func() map[string]interface{} {
				return map[string]interface{}{
					"ticks":    publisher.Ticks(),
					"omega":    model.Omega(),
					"pose_bus": busAddr,
				}
			},
		})
		if err != nil {
			log.Printf("debug server failed: %v", err)
		}
	}()

	if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("pose publisher failed: %v", err)
	}

	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
