package engine

import "github.com/teslashibe/cinepath/pkg/keyframe"

// Command is one user intent. The set is closed: only the types in this file
// implement it, and Dispatch handles every one of them.
type Command interface {
	// Name is the wire name of the command.
	Name() string
	command()
}

// Command wire names.
const (
	NameRecord   = "RECORD"
	NamePlay     = "PLAY"
	NameStop     = "STOP"
	NameSpin     = "SPIN"
	NameRevisit  = "REVISIT"
	NameDelete   = "DELETE"
	NameClearAll = "CLEAR_ALL"
	NameImport   = "IMPORT"
	NameSetSpeed = "SET_SPEED"
)

// Record appends the camera's current pose as a keyframe.
type Record struct{}

// Play starts playback, optionally after a clapperboard countdown.
type Play struct {
	Clapperboard bool
}

// Stop cancels playback or a pending countdown.
type Stop struct{}

// Spin toggles the orbit around the point at the viewport center.
type Spin struct{}

// Revisit flies the camera to a recorded keyframe.
type Revisit struct {
	Index int
}

// Delete removes a recorded keyframe.
type Delete struct {
	Index int
}

// ClearAll removes every keyframe and stops the orbit.
type ClearAll struct{}

// Import replaces the whole keyframe sequence.
type Import struct {
	Keyframes []keyframe.Keyframe
}

// SetSpeed sets the per-tick playback speed.
type SetSpeed struct {
	Value float64
}

func (Record) Name() string   { return NameRecord }
func (Play) Name() string     { return NamePlay }
func (Stop) Name() string     { return NameStop }
func (Spin) Name() string     { return NameSpin }
func (Revisit) Name() string  { return NameRevisit }
func (Delete) Name() string   { return NameDelete }
func (ClearAll) Name() string { return NameClearAll }
func (Import) Name() string   { return NameImport }
func (SetSpeed) Name() string { return NameSetSpeed }

func (Record) command()   {}
func (Play) command()     {}
func (Stop) command()     {}
func (Spin) command()     {}
func (Revisit) command()  {}
func (Delete) command()   {}
func (ClearAll) command() {}
func (Import) command()   {}
func (SetSpeed) command() {}
