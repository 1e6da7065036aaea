// Package playback turns a sparse list of keyframes into a continuous camera
// move.
//
// Progress is measured in segment units: the integer part picks the segment
// between two consecutive keyframes, the fractional part is the position
// inside it. Each frame the controller samples a Catmull-Rom spline at the
// current progress, cuts the camera to that pose and then advances progress
// by the live speed, damped near both ends of the path.
package playback

import "time"

// State is the playback state machine's current state.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota

	// StatePreparing means the camera is flying to the first keyframe or
	// waiting for the scene to settle before the first tick.
	StatePreparing

	// StateRunning means ticks are being scheduled.
	StateRunning

	// StateCompleted means the last session reached the end of the path.
	StateCompleted

	// StateStopped means the last session was stopped or cancelled.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Active reports whether the state belongs to a live session.
func (s State) Active() bool {
	return s == StatePreparing || s == StateRunning
}

// StateFunc is called on every state transition.
type StateFunc func(s State)

// Options configures a Controller.
type Options struct {
	// Speed is the initial progress increment per tick (default: 0.005).
	Speed float64

	// SettleDuration is the fly-to-start duration (default: 2s).
	SettleDuration time.Duration

	// SettleDelay is the pause after landing so the scene can stream in
	// detail before the first tick (default: 1s).
	SettleDelay time.Duration
}

// Default playback parameters.
const (
	DefaultSpeed          = 0.005
	DefaultSettleDuration = 2 * time.Second
	DefaultSettleDelay    = 1 * time.Second

	// SettleGrace is how long past SettleDuration the controller waits for
	// the fly-to-start to land before settling without it.
	SettleGrace = 5 * time.Second
)

// DefaultOptions returns sensible defaults for playback.
func DefaultOptions() Options {
	return Options{
		Speed:          DefaultSpeed,
		SettleDuration: DefaultSettleDuration,
		SettleDelay:    DefaultSettleDelay,
	}
}
