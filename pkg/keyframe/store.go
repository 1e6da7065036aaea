// Package keyframe holds the ordered list of recorded camera poses.
//
// Index in the list is a keyframe's only identity: recording order is
// playback order, and deleting shifts later keyframes down by one.
package keyframe

import (
	"fmt"
	"sync"

	"github.com/teslashibe/cinepath/pkg/camera"
)

// Keyframe is one recorded camera pose.
type Keyframe = camera.Pose

// ChangeFunc receives a copy of the full sequence after every mutation.
type ChangeFunc func(seq []Keyframe)

// Store is an ordered, mutable keyframe sequence. Every mutation notifies
// the change callback with the full sequence.
type Store struct {
	mu       sync.RWMutex
	frames   []Keyframe
	onChange ChangeFunc
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// OnChange sets the callback invoked after each mutation.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Append adds k at the end and returns its index.
func (s *Store) Append(k Keyframe) int {
	s.mu.Lock()
	s.frames = append(s.frames, k)
	idx := len(s.frames) - 1
	s.mu.Unlock()

	s.notify()
	return idx
}

// DeleteAt removes the keyframe at index. Out-of-range indices are ignored
// because control surfaces may hold stale indices; the change notification
// is still sent so they can resynchronise. It reports whether anything was
// removed.
func (s *Store) DeleteAt(index int) bool {
	s.mu.Lock()
	removed := index >= 0 && index < len(s.frames)
	if removed {
		s.frames = append(s.frames[:index], s.frames[index+1:]...)
	}
	s.mu.Unlock()

	s.notify()
	return removed
}

// Clear empties the sequence. A playback in progress notices on its next
// tick.
func (s *Store) Clear() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()

	s.notify()
}

// ReplaceAll swaps in a new sequence wholesale.
func (s *Store) ReplaceAll(frames []Keyframe) {
	s.mu.Lock()
	s.frames = append([]Keyframe(nil), frames...)
	s.mu.Unlock()

	s.notify()
}

// Get returns the keyframe at index.
func (s *Store) Get(index int) (Keyframe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.frames) {
		return Keyframe{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.frames))
	}
	return s.frames[index], nil
}

// Len returns the number of keyframes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Snapshot returns a copy of the sequence.
func (s *Store) Snapshot() []Keyframe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Keyframe{}, s.frames...)
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()

	if fn != nil {
		fn(s.Snapshot())
	}
}
