package playback

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/pathmath"
)

// Camera is what the playback controller needs from the viewer.
type Camera interface {
	camera.Poser
	camera.Flyer
}

// Source is the live keyframe sequence.
type Source interface {
	Len() int
	Snapshot() []keyframe.Keyframe
}

// session is one start-to-finish playback.
type session struct {
	id       string
	points   []keyframe.Keyframe
	progress float64
	ticks    int
	pending  frameloop.Handle

	// settleDeadline fires if the fly-to-start never reports landing, for
	// example because a later flight replaced it.
	settleDeadline frameloop.Handle
	settled        bool
}

// Controller owns the animation loop for path playback.
type Controller struct {
	mu sync.Mutex

	cam   Camera
	sched frameloop.Scheduler
	src   Source
	opts  Options
	log   *slog.Logger

	speed   float64
	state   State
	session *session
	last    RunInfo
	onState StateFunc
}

// RunInfo summarises the most recent finished session.
type RunInfo struct {
	ID       string  `json:"id"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Ticks    int     `json:"ticks"`
}

// NewController creates a playback controller. Frames are scheduled on
// sched, poses are pushed to cam and keyframes are read from src.
func NewController(cam Camera, sched frameloop.Scheduler, src Source, opts Options) *Controller {
	def := DefaultOptions()
	if opts.Speed <= 0 {
		opts.Speed = def.Speed
	}
	if opts.SettleDuration < 0 {
		opts.SettleDuration = def.SettleDuration
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = def.SettleDelay
	}
	return &Controller{
		cam:   cam,
		sched: sched,
		src:   src,
		opts:  opts,
		speed: opts.Speed,
		state: StateIdle,
		log:   log.Component("playback"),
	}
}

// OnStateChange sets the callback for state transitions.
func (c *Controller) OnStateChange(fn StateFunc) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Start begins playback of the current sequence. The camera first flies to
// the first keyframe, waits for the scene to settle and only then starts
// ticking. It fails with ErrInsufficientKeyframes when fewer than two
// keyframes exist; no state changes in that case.
func (c *Controller) Start() error {
	points := c.src.Snapshot()
	if len(points) < 2 {
		return fmt.Errorf("%w (have %d)", ErrInsufficientKeyframes, len(points))
	}

	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		return ErrAlreadyPlaying
	}
	s := &session{
		id:     uuid.New().String(),
		points: points,
	}
	c.session = s
	c.mu.Unlock()

	c.setState(StatePreparing)
	c.log.Info("playback preparing", "session", s.id, "keyframes", len(points))

	deadline := c.sched.After(c.opts.SettleDuration+SettleGrace, func() {
		c.log.Warn("settle flight never landed, starting anyway", "session", s.id)
		c.settle(s)
	})
	c.mu.Lock()
	if c.session == s && !s.settled {
		s.settleDeadline = deadline
	} else {
		deadline.Cancel()
	}
	c.mu.Unlock()

	c.cam.FlyTo(points[0], c.opts.SettleDuration, func() { c.settle(s) })
	return nil
}

// settle ends the fly-to-start and schedules the first tick after the
// settle delay. Only the first call per session counts.
func (c *Controller) settle(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s || s.settled {
		return
	}
	s.settled = true
	if s.settleDeadline != nil {
		s.settleDeadline.Cancel()
		s.settleDeadline = nil
	}
	s.pending = c.sched.After(c.opts.SettleDelay, func() { c.begin(s) })
}

// begin enters Running and runs the first tick immediately.
func (c *Controller) begin(s *session) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	s.progress = 0
	s.pending = nil
	c.mu.Unlock()

	c.setState(StateRunning)
	c.log.Info("starting cinematic path", "session", s.id)
	c.tick(s)
}

// tick advances one frame. The next tick is only requested after the pose
// for this one has been pushed.
func (c *Controller) tick(s *session) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	s.pending = nil

	if c.src.Len() == 0 {
		c.mu.Unlock()
		c.finish(s, StateStopped, "keyframes cleared")
		return
	}

	n := len(s.points)
	global := s.progress / float64(n-1)
	if global >= 1 {
		c.mu.Unlock()
		c.finish(s, StateCompleted, "path complete")
		return
	}

	pose := Sample(s.points, s.progress)
	speed := pathmath.DampSpeed(c.speed, global)
	s.progress += speed
	s.ticks++
	c.mu.Unlock()

	c.cam.SetPose(pose)
	c.log.Debug("tick", "session", s.id, "progress", global, "pose", pose.String())

	c.mu.Lock()
	if c.session == s {
		s.pending = c.sched.RequestFrame(func() { c.tick(s) })
	}
	c.mu.Unlock()
}

func (c *Controller) finish(s *session, to State, reason string) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	if s.settleDeadline != nil {
		s.settleDeadline.Cancel()
		s.settleDeadline = nil
	}
	c.session = nil
	ticks := s.ticks
	c.last = RunInfo{ID: s.id, State: to.String(), Progress: s.progress, Ticks: ticks}
	c.mu.Unlock()

	c.setState(to)
	c.log.Info("playback finished", "session", s.id, "state", to.String(), "reason", reason, "ticks", ticks)
	c.setState(StateIdle)
}

// Stop cancels a live session synchronously: no further ticks run and the
// camera is not touched again. Stopping with nothing live is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return
	}
	c.finish(s, StateStopped, "stopped")
}

// SetSpeed changes the per-tick speed. It applies from the next tick,
// including mid-playback.
func (c *Controller) SetSpeed(v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, v)
	}
	c.mu.Lock()
	c.speed = v
	c.mu.Unlock()
	return nil
}

// Speed returns the current per-tick speed.
func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether a session is live.
func (c *Controller) Active() bool {
	return c.State().Active()
}

// Progress returns the live session's progress in segment units, or 0.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.session.progress
}

// LastRun returns a summary of the most recent finished session.
func (c *Controller) LastRun() RunInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// GlobalProgress returns progress as a fraction of the whole path, or 0.
func (c *Controller) GlobalProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || len(c.session.points) < 2 {
		return 0
	}
	return c.session.progress / float64(len(c.session.points)-1)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
