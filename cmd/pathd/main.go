// pathd: camera path daemon
// Records keyframes, plays them back as a smooth camera path and spins the
// camera on request. Control surfaces talk to it over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/cinepath/internal/config"
	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/hub"
	"github.com/teslashibe/cinepath/pkg/persist"
	"github.com/teslashibe/cinepath/pkg/playback"
	"github.com/teslashibe/cinepath/pkg/server"
)

var version = "0.1.0"

var (
	configPath = flag.String("config", "", "YAML config file")
	port       = flag.String("port", "", "HTTP server port (overrides config)")
	cameraKind = flag.String("camera", "", "Camera: sim or remote (overrides config)")
	storePath  = flag.String("store", "", "Persistence file (overrides config)")
	noStore    = flag.Bool("no-store", false, "Disable persistence")
	debug      = flag.Bool("debug", false, "Enable debug logging and request logs")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pathd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.LogLevel)
	log.Info("starting pathd", "version", version, "port", cfg.Port, "camera", cfg.Camera)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := frameloop.NewLoop(cfg.FPS)
	syncHub := hub.New("sync")

	var (
		cam    camera.Sink
		viewer *server.ViewerBridge
	)
	switch cfg.Camera {
	case config.CameraRemote:
		viewer = server.NewViewerBridge(loop, cfg.Viewport.Width, cfg.Viewport.Height)
		cam = viewer
	default:
		cam = camera.NewSimulated(loop, cfg.Viewport.Width, cfg.Viewport.Height)
	}

	sinks := engine.Multi{server.NewHubSink(syncHub)}
	var store *persist.JSONStore
	if cfg.StorePath != "" {
		store, err = persist.NewJSONStore(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		sinks = append(sinks, store)
	}

	eng := engine.New(cam, loop, sinks, engineOptions(cfg))
	if store != nil {
		st := store.State()
		eng.Restore(st.Keyframes, st.Settings)
		log.Info("restored state", "path", cfg.StorePath, "keyframes", len(st.Keyframes))
	}

	srv := server.New(server.Options{Port: cfg.Port, Debug: cfg.Debug}, loop, eng, syncHub, viewer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return syncHub.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if store != nil {
		g.Go(func() error { return store.Run(ctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("pathd stopped")
	return err
}

func applyFlags(cfg *config.Config) {
	if *port != "" {
		cfg.Port = *port
	}
	if *cameraKind != "" {
		cfg.Camera = *cameraKind
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *noStore {
		cfg.StorePath = ""
	}
	if *debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}

func engineOptions(cfg config.Config) engine.Options {
	return engine.Options{
		Playback: playback.Options{
			Speed:          cfg.Playback.Speed,
			SettleDuration: cfg.Playback.SettleDuration,
			SettleDelay:    cfg.Playback.SettleDelay,
		},
		OrbitRate:       cfg.Orbit.Rate,
		RevisitDuration: cfg.Playback.RevisitFlight,
		Countdown: engine.Countdown{
			Steps:    cfg.Countdown.Steps,
			Interval: cfg.Countdown.Interval,
			Flash:    cfg.Countdown.Flash,
		},
	}
}
