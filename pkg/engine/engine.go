// Package engine is the command interpreter that ties the keyframe store,
// playback and orbit together behind a single camera.
//
// Dispatch, ImportJSON and Restore must run on the scheduler goroutine. The
// server posts incoming commands to the frame loop; tests drive a manual
// clock directly. Keyframes, Settings and Status are safe from any goroutine.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/orbit"
	"github.com/teslashibe/cinepath/pkg/playback"
)

// Countdown configures the clapperboard that precedes a synced take.
type Countdown struct {
	// Steps is where the countdown starts (default: 3).
	Steps int

	// Interval is the time each step is shown (default: 1s).
	Interval time.Duration

	// Flash is how long the all-white flash frame is held (default: 1/30s).
	Flash time.Duration
}

// Options configures an Engine.
type Options struct {
	Playback  playback.Options
	OrbitRate float64

	// RevisitDuration is the flight time to a revisited keyframe
	// (default: 1.5s).
	RevisitDuration time.Duration

	Countdown Countdown
}

// Default engine parameters.
const (
	DefaultRevisitDuration   = 1500 * time.Millisecond
	DefaultCountdownSteps    = 3
	DefaultCountdownInterval = time.Second
	DefaultFlash             = time.Second / 30
)

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Playback:        playback.DefaultOptions(),
		OrbitRate:       orbit.DefaultRate,
		RevisitDuration: DefaultRevisitDuration,
		Countdown: Countdown{
			Steps:    DefaultCountdownSteps,
			Interval: DefaultCountdownInterval,
			Flash:    DefaultFlash,
		},
	}
}

// Status is a point-in-time view of the engine.
type Status struct {
	Active         bool             `json:"active"`
	Keyframes      int              `json:"keyframes"`
	Playback       string           `json:"playback"`
	Progress       float64          `json:"progress"`
	GlobalProgress float64          `json:"globalProgress"`
	Speed          float64          `json:"speed"`
	Orbiting       bool             `json:"orbiting"`
	CountingDown   bool             `json:"countingDown"`
	Clapperboard   bool             `json:"clapperboard"`
	LastRun        playback.RunInfo `json:"lastRun"`
}

// Engine owns one keyframe sequence and the controllers that consume it.
type Engine struct {
	mu sync.Mutex

	cam   camera.Sink
	sched frameloop.Scheduler
	sync  SyncSink
	opts  Options
	log   *slog.Logger

	store *keyframe.Store
	play  *playback.Controller
	orbit *orbit.Controller

	countdown    frameloop.Handle
	clapperboard bool
}

// New wires an engine to a camera, a scheduler and a sync sink. A nil sink
// discards sync events.
func New(cam camera.Sink, sched frameloop.Scheduler, sink SyncSink, opts Options) *Engine {
	def := DefaultOptions()
	if opts.RevisitDuration <= 0 {
		opts.RevisitDuration = def.RevisitDuration
	}
	if opts.Countdown.Steps <= 0 {
		opts.Countdown.Steps = def.Countdown.Steps
	}
	if opts.Countdown.Interval <= 0 {
		opts.Countdown.Interval = def.Countdown.Interval
	}
	if opts.Countdown.Flash <= 0 {
		opts.Countdown.Flash = def.Countdown.Flash
	}
	if sink == nil {
		sink = Nop{}
	}

	e := &Engine{
		cam:   cam,
		sched: sched,
		sync:  sink,
		opts:  opts,
		log:   log.Component("engine"),
		store: keyframe.NewStore(),
	}
	e.play = playback.NewController(cam, sched, e.store, opts.Playback)
	e.orbit = orbit.New(cam, sched, opts.OrbitRate)

	e.store.OnChange(sink.SyncKeyframes)
	e.play.OnStateChange(func(s playback.State) {
		switch s {
		case playback.StatePreparing:
			sink.SyncPlayback(true)
		case playback.StateCompleted, playback.StateStopped:
			sink.SyncPlayback(false)
		}
	})
	e.orbit.OnChange(sink.SyncOrbit)
	return e
}

// Dispatch executes one command. User-visible failures are logged, reported
// to the sync sink as a notice and returned; the engine state is unchanged
// in that case.
func (e *Engine) Dispatch(cmd Command) error {
	var err error
	switch c := cmd.(type) {
	case Record:
		e.record()
	case Play:
		err = e.playCmd(c.Clapperboard)
	case Stop:
		e.stop()
	case Spin:
		err = e.spin()
	case Revisit:
		e.revisit(c.Index)
	case Delete:
		e.store.DeleteAt(c.Index)
	case ClearAll:
		e.clearAll()
	case Import:
		e.store.ReplaceAll(c.Keyframes)
		e.log.Info("imported keyframes", "count", len(c.Keyframes))
	case SetSpeed:
		err = e.setSpeed(c.Value)
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}

	if err != nil {
		e.log.Warn("command failed", "command", cmd.Name(), "error", err)
		e.sync.Notice(err)
	}
	return err
}

// ImportJSON decodes a wire-format sequence and imports it. A malformed
// payload leaves the store untouched and is reported like any other failed
// command.
func (e *Engine) ImportJSON(data []byte) error {
	seq, err := keyframe.Decode(data)
	if err != nil {
		e.log.Warn("import rejected", "error", err)
		e.sync.Notice(err)
		return err
	}
	return e.Dispatch(Import{Keyframes: seq})
}

// Keyframes returns a copy of the current sequence.
func (e *Engine) Keyframes() []keyframe.Keyframe {
	return e.store.Snapshot()
}

// Restore loads persisted state. The sequence is broadcast like an import;
// settings are applied silently.
func (e *Engine) Restore(seq []keyframe.Keyframe, st Settings) {
	e.store.ReplaceAll(seq)
	if st.Speed > 0 {
		if err := e.play.SetSpeed(st.Speed); err != nil {
			e.log.Warn("ignoring persisted speed", "speed", st.Speed, "error", err)
		}
	}
	e.mu.Lock()
	e.clapperboard = st.Clapperboard
	e.mu.Unlock()
}

// Settings returns the current control-surface preferences.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Settings{Speed: e.play.Speed(), Clapperboard: e.clapperboard}
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	counting := e.countdown != nil
	clap := e.clapperboard
	e.mu.Unlock()

	return Status{
		Active:         e.play.Active(),
		Keyframes:      e.store.Len(),
		Playback:       e.play.State().String(),
		Progress:       e.play.Progress(),
		GlobalProgress: e.play.GlobalProgress(),
		Speed:          e.play.Speed(),
		Orbiting:       e.orbit.Active(),
		CountingDown:   counting,
		Clapperboard:   clap,
		LastRun:        e.play.LastRun(),
	}
}

func (e *Engine) record() {
	idx := e.store.Append(e.cam.Pose())
	e.log.Info(fmt.Sprintf("recorded point %d", idx+1))
}

func (e *Engine) playCmd(clapperboard bool) error {
	e.mu.Lock()
	counting := e.countdown != nil
	changed := e.clapperboard != clapperboard
	e.clapperboard = clapperboard
	e.mu.Unlock()

	if changed {
		e.sync.SyncSettings(e.Settings())
	}
	if counting || e.play.Active() {
		return playback.ErrAlreadyPlaying
	}
	if n := e.store.Len(); n < 2 {
		return fmt.Errorf("%w (have %d)", playback.ErrInsufficientKeyframes, n)
	}
	if !clapperboard {
		return e.startPlayback()
	}

	e.orbit.Deactivate()
	e.tickCountdown(e.opts.Countdown.Steps)
	return nil
}

// tickCountdown shows one clapperboard step and schedules the next. Step 0
// is the flash; playback starts once it has been held.
func (e *Engine) tickCountdown(step int) {
	e.sync.SyncCountdown(step)
	e.log.Debug("clapperboard", "step", step)

	var h frameloop.Handle
	if step > 0 {
		h = e.sched.After(e.opts.Countdown.Interval, func() { e.tickCountdown(step - 1) })
	} else {
		h = e.sched.After(e.opts.Countdown.Flash, func() {
			e.mu.Lock()
			e.countdown = nil
			e.mu.Unlock()
			if err := e.startPlayback(); err != nil {
				e.log.Warn("playback after countdown failed", "error", err)
				e.sync.Notice(err)
			}
		})
	}

	e.mu.Lock()
	e.countdown = h
	e.mu.Unlock()
}

func (e *Engine) cancelCountdown() {
	e.mu.Lock()
	h := e.countdown
	e.countdown = nil
	e.mu.Unlock()

	if h != nil {
		h.Cancel()
		e.log.Info("clapperboard cancelled")
	}
}

func (e *Engine) startPlayback() error {
	e.orbit.Deactivate()
	return e.play.Start()
}

// stop cancels the countdown and playback. A stop during the fly-to-start
// leaves the camera where it is instead of finishing the flight.
func (e *Engine) stop() {
	e.cancelCountdown()
	if e.play.State() == playback.StatePreparing {
		e.cam.SetPose(e.cam.Pose())
	}
	e.play.Stop()
}

// spin toggles the orbit. Playback and any countdown are stopped only once
// a pivot has been found, so a missed pick changes nothing.
func (e *Engine) spin() error {
	if e.orbit.Active() {
		e.orbit.Deactivate()
		return nil
	}
	return e.orbit.Activate(e.stop)
}

func (e *Engine) revisit(index int) {
	kf, err := e.store.Get(index)
	if err != nil {
		e.log.Debug("revisit ignored", "index", index, "error", err)
		return
	}
	e.cam.FlyTo(kf, e.opts.RevisitDuration, nil)
}

// clearAll empties the store and stops the orbit at once. A running playback
// notices the empty store on its next tick.
func (e *Engine) clearAll() {
	e.cancelCountdown()
	e.store.Clear()
	e.orbit.Deactivate()
}

func (e *Engine) setSpeed(v float64) error {
	if err := e.play.SetSpeed(v); err != nil {
		return err
	}
	e.sync.SyncSettings(e.Settings())
	return nil
}

// IsUserError reports whether err is one of the failures a control surface
// should show to the user.
func IsUserError(err error) bool {
	return errors.Is(err, playback.ErrInsufficientKeyframes) ||
		errors.Is(err, playback.ErrAlreadyPlaying) ||
		errors.Is(err, playback.ErrInvalidSpeed) ||
		errors.Is(err, orbit.ErrNoPivotTarget) ||
		errors.Is(err, keyframe.ErrMalformedImport)
}
