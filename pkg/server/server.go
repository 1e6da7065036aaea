// Package server exposes the path engine over HTTP and WebSocket.
//
// Routes:
//
//	GET  /health          liveness
//	GET  /metrics         counters
//	GET  /api/status      engine snapshot
//	GET  /api/keyframes   export (wire format)
//	POST /api/keyframes   import (wire format)
//	POST /api/commands    one command, same body as a websocket command
//	GET  /ws/control      command ingress for control surfaces
//	GET  /ws/sync         sync broadcast (keyframes, playback, countdown, ...)
//	GET  /ws/viewer       remote viewer bridge
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fws "github.com/gofiber/websocket/v2"
	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/hub"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// callTimeout bounds how long a request waits for the frame loop
	callTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Loop is the frame loop the engine runs on. Requests hop onto it with Call
// or Post; the viewer bridge also schedules timers on it.
type Loop interface {
	frameloop.Scheduler
	Post(fn func())
	Call(ctx context.Context, fn func()) error
	Frames() uint64
}

var _ Loop = (*frameloop.Loop)(nil)

// Options configures the server.
type Options struct {
	Port  string
	Debug bool // request logging
}

// Server is the control and viewer server.
type Server struct {
	app    *fiber.App
	port   string
	loop   Loop
	eng    *engine.Engine
	sync   *hub.Hub
	viewer *ViewerBridge
	log    *slog.Logger

	started          time.Time
	commandsReceived atomic.Uint64
	commandsRejected atomic.Uint64
}

// New creates a server. viewer may be nil when the camera is simulated; the
// /ws/viewer route is then not registered.
func New(opts Options, loop Loop, eng *engine.Engine, syncHub *hub.Hub, viewer *ViewerBridge) *Server {
	s := &Server{
		port:    opts.Port,
		loop:    loop,
		eng:     eng,
		sync:    syncHub,
		viewer:  viewer,
		log:     log.Component("server"),
		started: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "cinepath",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/keyframes", s.handleExport)
	api.Post("/keyframes", s.handleImport)
	api.Post("/commands", s.handleCommandHTTP)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sync", fws.New(s.handleSyncWS))
	app.Get("/ws/control", websocket.New(s.handleControlWS))
	if viewer != nil {
		app.Get("/ws/viewer", websocket.New(viewer.Serve))
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", "http://localhost:"+s.port)
		errCh <- s.app.Listen(":" + s.port)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	case err := <-errCh:
		return err
	}
}

// dispatch runs cmd on the frame loop and returns the engine's verdict.
func (s *Server) dispatch(ctx context.Context, cmd engine.Command) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var err error
	if cerr := s.loop.Call(ctx, func() { err = s.eng.Dispatch(cmd) }); cerr != nil {
		return cerr
	}
	return err
}

// importJSON runs an import on the frame loop.
func (s *Server) importJSON(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var err error
	if cerr := s.loop.Call(ctx, func() { err = s.eng.ImportJSON(data) }); cerr != nil {
		return cerr
	}
	return err
}

// isTimeout reports whether err came from the frame loop not answering.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
