package frameloop

import (
	"context"
	"time"

	"github.com/teslashibe/cinepath/internal/log"
)

// Loop drives frames from a wall-clock ticker. Work from other goroutines
// must go through Post so that it runs between frames on the loop goroutine.
type Loop struct {
	core
	interval time.Duration
	posts    chan func()
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates a loop ticking at fps frames per second.
// fps should be ~60 to match a display refresh.
func NewLoop(fps int) *Loop {
	interval := DefaultInterval
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &Loop{
		interval: interval,
		posts:    make(chan func(), 256),
	}
}

// Now returns wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// RequestFrame runs fn once on the next frame.
func (l *Loop) RequestFrame(fn func()) Handle {
	return l.addFrame(fn, false)
}

// OnFrame runs fn on every frame until cancelled.
func (l *Loop) OnFrame(fn func()) Handle {
	return l.addFrame(fn, true)
}

// After runs fn on the first frame at or past now+d.
func (l *Loop) After(d time.Duration, fn func()) Handle {
	return l.addTimer(time.Now().Add(d), fn)
}

// Post queues fn to run on the loop goroutine. It never blocks the caller
// for long: when the queue is full the work is dropped and logged.
func (l *Loop) Post(fn func()) {
	select {
	case l.posts <- fn:
	default:
		log.Warn("frame loop queue full, dropping posted work")
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case l.posts <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes frames until ctx is cancelled. Blocks.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Info("frame loop started", "fps", int(time.Second/l.interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("frame loop stopped", "frames", l.Frames())
			return ctx.Err()
		case fn := <-l.posts:
			fn()
		case now := <-ticker.C:
			l.runFrame(now)
		}
	}
}
