package frameloop

import "time"

// DefaultInterval is one frame at 60 Hz.
const DefaultInterval = time.Second / 60

// Manual is a virtual-clock scheduler. Time only moves when Step or Advance
// is called, which makes animation state machines deterministic in tests.
type Manual struct {
	core
	now      time.Time
	interval time.Duration
}

var _ Scheduler = (*Manual)(nil)

// NewManual creates a virtual scheduler that advances by interval per frame.
// A non-positive interval falls back to DefaultInterval.
func NewManual(interval time.Duration) *Manual {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manual{
		now:      time.Unix(0, 0),
		interval: interval,
	}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// RequestFrame runs fn once on the next Step.
func (m *Manual) RequestFrame(fn func()) Handle {
	return m.addFrame(fn, false)
}

// OnFrame runs fn on every Step until cancelled.
func (m *Manual) OnFrame(fn func()) Handle {
	return m.addFrame(fn, true)
}

// After runs fn on the first Step at or past now+d.
func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.addTimer(m.now.Add(d), fn)
}

// Step advances virtual time by one frame and runs that frame.
func (m *Manual) Step() {
	m.now = m.now.Add(m.interval)
	m.runFrame(m.now)
}

// StepN runs n frames.
func (m *Manual) StepN(n int) {
	for i := 0; i < n; i++ {
		m.Step()
	}
}

// Advance runs frames until at least d of virtual time has passed.
func (m *Manual) Advance(d time.Duration) {
	end := m.now.Add(d)
	for m.now.Before(end) {
		m.Step()
	}
}

// RunUntil steps until cond returns true or max frames have run. It reports
// whether cond was met.
func (m *Manual) RunUntil(max int, cond func() bool) bool {
	for i := 0; i < max; i++ {
		if cond() {
			return true
		}
		m.Step()
	}
	return cond()
}
