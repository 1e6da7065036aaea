package engine

import "github.com/teslashibe/cinepath/pkg/keyframe"

// Settings are the control-surface preferences worth remembering between
// runs.
type Settings struct {
	Speed        float64 `json:"speed"`
	Clapperboard bool    `json:"clapperboard"`
}

// SyncSink receives everything a control surface needs to mirror the engine.
// Calls happen on the scheduler goroutine and must not block.
type SyncSink interface {
	// SyncKeyframes is called with the full sequence after every mutation.
	SyncKeyframes(seq []keyframe.Keyframe)

	// SyncPlayback reports whether a playback session is live.
	SyncPlayback(active bool)

	// SyncOrbit reports whether the orbit is running.
	SyncOrbit(active bool)

	// SyncCountdown reports a clapperboard step: 3, 2, 1, then 0 for the
	// flash.
	SyncCountdown(step int)

	// SyncSettings is called when speed or the clapperboard preference
	// changes.
	SyncSettings(s Settings)

	// Notice carries a user-visible failure.
	Notice(err error)
}

// Nop ignores everything. Embed it to implement only part of SyncSink.
type Nop struct{}

func (Nop) SyncKeyframes([]keyframe.Keyframe) {}
func (Nop) SyncPlayback(bool)                 {}
func (Nop) SyncOrbit(bool)                    {}
func (Nop) SyncCountdown(int)                 {}
func (Nop) SyncSettings(Settings)             {}
func (Nop) Notice(error)                      {}

// Multi fans every call out to each sink in order.
type Multi []SyncSink

func (m Multi) SyncKeyframes(seq []keyframe.Keyframe) {
	for _, s := range m {
		s.SyncKeyframes(seq)
	}
}

func (m Multi) SyncPlayback(active bool) {
	for _, s := range m {
		s.SyncPlayback(active)
	}
}

func (m Multi) SyncOrbit(active bool) {
	for _, s := range m {
		s.SyncOrbit(active)
	}
}

func (m Multi) SyncCountdown(step int) {
	for _, s := range m {
		s.SyncCountdown(step)
	}
}

func (m Multi) SyncSettings(st Settings) {
	for _, s := range m {
		s.SyncSettings(st)
	}
}

func (m Multi) Notice(err error) {
	for _, s := range m {
		s.Notice(err)
	}
}

var (
	_ SyncSink = Nop{}
	_ SyncSink = Multi(nil)
)
