// Package orbit spins the camera around the point it is looking at.
package orbit

import (
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/frameloop"
)

// DefaultRate is the rotation per frame in radians.
const DefaultRate = 0.002

// Camera is what the orbit controller needs from the viewer.
type Camera interface {
	camera.Rotator
	camera.Picker
}

// Controller owns at most one orbit session.
type Controller struct {
	mu sync.Mutex

	cam   Camera
	sched frameloop.Scheduler
	rate  float64
	log   *slog.Logger

	active   bool
	pivot    mgl64.Vec3
	frame    frameloop.Handle
	onChange func(active bool)
}

// New creates an orbit controller. A non-positive rate uses DefaultRate.
func New(cam Camera, sched frameloop.Scheduler, rate float64) *Controller {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Controller{
		cam:   cam,
		sched: sched,
		rate:  rate,
		log:   log.Component("orbit"),
	}
}

// OnChange sets the callback fired when the orbit starts or stops.
func (c *Controller) OnChange(fn func(active bool)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Toggle starts orbiting the point under the viewport center, or stops the
// current orbit. Starting fails with ErrNoPivotTarget when nothing is
// pickable; the controller stays inactive in that case.
func (c *Controller) Toggle() error {
	if c.Active() {
		c.Deactivate()
		return nil
	}
	return c.Activate(nil)
}

// Activate starts orbiting the point under the viewport center. before, if
// set, runs once a pivot has been found and just ahead of the first
// rotation; a miss returns ErrNoPivotTarget without calling it. Activating
// while already active is a no-op.
func (c *Controller) Activate(before func()) error {
	if c.Active() {
		return nil
	}

	pivot, ok := c.pick()
	if !ok {
		c.log.Warn("orbit toggle found no pivot")
		return ErrNoPivotTarget
	}
	if before != nil {
		before()
	}

	c.mu.Lock()
	c.active = true
	c.pivot = pivot
	c.frame = c.sched.OnFrame(c.step)
	fn := c.onChange
	c.mu.Unlock()

	c.log.Info("orbit started", "pivot", pivot, "rate", c.rate)
	if fn != nil {
		fn(true)
	}
	return nil
}

// pick tries the precise depth pick first and falls back to the ground ray.
func (c *Controller) pick() (mgl64.Vec3, bool) {
	x, y := c.cam.ViewportCenter()
	if p, ok := c.cam.PickPosition(x, y); ok {
		return p, true
	}
	return c.cam.PickGroundPoint(x, y)
}

func (c *Controller) step() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	pivot, rate := c.pivot, c.rate
	c.mu.Unlock()

	c.cam.RotateAbout(pivot, rate)
}

// Deactivate stops the orbit synchronously. No-op when inactive.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	if c.frame != nil {
		c.frame.Cancel()
		c.frame = nil
	}
	fn := c.onChange
	c.mu.Unlock()

	c.log.Info("orbit stopped")
	if fn != nil {
		fn(false)
	}
}

// Active reports whether an orbit is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Pivot returns the current pivot and whether an orbit is running.
func (c *Controller) Pivot() (mgl64.Vec3, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pivot, c.active
}
