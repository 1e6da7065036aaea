// Package persist keeps the keyframe sequence and control-surface settings
// on disk between daemon runs.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/keyframe"
)

// State is everything that survives a restart.
type State struct {
	Keyframes []keyframe.Keyframe
	Settings  engine.Settings
}

// JSONStore persists State to a JSON file. It is an engine.SyncSink: sync
// calls only record the change and wake the writer, so they never touch the
// disk on the frame loop. Run does the writing; bursts of changes coalesce
// into one write.
type JSONStore struct {
	engine.Nop

	path string
	log  *slog.Logger

	mu    sync.Mutex
	state State
	dirty bool
	saves int

	// writeMu serializes writers (Run and Flush)
	writeMu sync.Mutex
	wake    chan struct{}
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int             `json:"version"`
	UpdatedAt string          `json:"updated_at"`
	Keyframes json.RawMessage `json:"keyframes"`
	Settings  engine.Settings `json:"settings"`
}

const currentVersion = 1

// NewJSONStore opens the store at path. A missing file is an empty store;
// it is created on the first save.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path: path,
		log:  log.Component("persist"),
		wake: make(chan struct{}, 1),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}
	return s, nil
}

// load reads the store from disk.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	var seq []keyframe.Keyframe
	if len(stored.Keyframes) > 0 {
		seq, err = keyframe.Decode(stored.Keyframes)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state = State{Keyframes: seq, Settings: stored.Settings}
	s.mu.Unlock()

	s.log.Info("restored state", "path", s.path, "keyframes", len(seq))
	return nil
}

// Run writes pending changes until ctx is cancelled, then flushes whatever
// is left. Blocks.
func (s *JSONStore) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				s.log.Error("final save failed", "error", err)
				return err
			}
			return nil
		case <-s.wake:
			if err := s.Flush(); err != nil {
				s.log.Error("failed to save state", "error", err)
			}
		}
	}
}

// Flush writes the current state if it changed since the last write.
func (s *JSONStore) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	st := s.state
	s.dirty = false
	s.mu.Unlock()

	if err := s.write(st); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return nil
}

// write puts st on disk with a temp file and rename.
func (s *JSONStore) write(st State) error {
	kfs, err := keyframe.Encode(st.Keyframes)
	if err != nil {
		return err
	}

	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Keyframes: kfs,
		Settings:  st.Settings,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// State returns the current state, written or not.
func (s *JSONStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Keyframes = append([]keyframe.Keyframe(nil), st.Keyframes...)
	return st
}

// Saves returns how many times the file has been written.
func (s *JSONStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SyncKeyframes records the new sequence for the writer.
func (s *JSONStore) SyncKeyframes(seq []keyframe.Keyframe) {
	s.mu.Lock()
	s.state.Keyframes = seq
	s.dirty = true
	s.mu.Unlock()
	s.signal()
}

// SyncSettings records the new settings for the writer.
func (s *JSONStore) SyncSettings(st engine.Settings) {
	s.mu.Lock()
	s.state.Settings = st
	s.dirty = true
	s.mu.Unlock()
	s.signal()
}

func (s *JSONStore) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
		// A wake-up is already pending; it will pick this change up.
	}
}

var _ engine.SyncSink = (*JSONStore)(nil)
