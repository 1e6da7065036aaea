// Package frameloop is the cooperative scheduler the path engine runs on.
//
// All callbacks run on a single goroutine, one at a time, once per frame.
// Nothing blocks: waiting is expressed as a deferred callback (After) and
// animation as a callback that re-requests the next frame (RequestFrame).
//
// Two implementations share the same core:
//   - Loop drives frames from a real time.Ticker and accepts work posted
//     from other goroutines (websocket handlers).
//   - Manual is a virtual clock for tests; frames only happen on Step.
package frameloop

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	Cancel()
}

// Scheduler registers frame and timer callbacks.
type Scheduler interface {
	// Now returns the scheduler's notion of current time.
	Now() time.Time

	// RequestFrame runs fn once on the next frame.
	RequestFrame(fn func()) Handle

	// OnFrame runs fn on every frame until cancelled.
	OnFrame(fn func()) Handle

	// After runs fn on the first frame at or past now+d.
	After(d time.Duration, fn func()) Handle
}

type task struct {
	seq       uint64
	fn        func()
	repeat    bool
	due       time.Time
	cancelled atomic.Bool
}

// Cancel stops the task from running again. Safe to call more than once.
func (t *task) Cancel() {
	t.cancelled.Store(true)
}

// core holds pending callbacks. Callbacks added while a frame is running
// are deferred to the next frame, so no callback is ever re-entered.
type core struct {
	mu     sync.Mutex
	seq    uint64
	frame  []*task
	timers []*task
	frames atomic.Uint64
}

func (c *core) addFrame(fn func(), repeat bool) *task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &task{seq: c.seq, fn: fn, repeat: repeat}
	c.frame = append(c.frame, t)
	return t
}

func (c *core) addTimer(due time.Time, fn func()) *task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &task{seq: c.seq, fn: fn, due: due}
	c.timers = append(c.timers, t)
	return t
}

// runFrame fires due timers (earliest first) then frame callbacks in
// registration order.
func (c *core) runFrame(now time.Time) {
	c.mu.Lock()
	var due, pending []*task
	for _, t := range c.timers {
		switch {
		case t.cancelled.Load():
		case !t.due.After(now):
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	frame := c.frame
	c.frame = nil
	c.mu.Unlock()

	c.frames.Add(1)

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	for _, t := range due {
		if !t.cancelled.Load() {
			t.fn()
		}
	}

	var kept []*task
	for _, t := range frame {
		if t.cancelled.Load() {
			continue
		}
		t.fn()
		if t.repeat && !t.cancelled.Load() {
			kept = append(kept, t)
		}
	}

	c.mu.Lock()
	live := kept[:len(kept):len(kept)]
	for _, t := range c.frame {
		if !t.cancelled.Load() {
			live = append(live, t)
		}
	}
	c.frame = live
	c.mu.Unlock()
}

// Pending returns the number of live frame and timer callbacks.
func (c *core) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.frame {
		if !t.cancelled.Load() {
			n++
		}
	}
	for _, t := range c.timers {
		if !t.cancelled.Load() {
			n++
		}
	}
	return n
}

// Frames returns how many frames have run.
func (c *core) Frames() uint64 {
	return c.frames.Load()
}
