// Package camera defines the contract between the path engine and the 3D
// viewer it drives.
//
// The contract is split into small capabilities (Poser, Flyer, Rotator and
// Picker) that compose into Sink. Consumers should depend only on what they use; the
// playback controller never picks, the orbit controller never flies.
package camera

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Poser reads and cuts the camera pose.
type Poser interface {
	// Pose returns the camera's current pose.
	Pose() Pose

	// SetPose moves the camera immediately, with no tween.
	SetPose(p Pose)
}

// Flyer performs smooth transitions.
type Flyer interface {
	// FlyTo tweens the camera to p over d. onComplete, if non-nil, runs once
	// the flight lands. A new flight or SetPose cancels the previous one and
	// its callback never runs.
	FlyTo(p Pose, d time.Duration, onComplete func())
}

// Rotator is the per-frame orbit primitive.
type Rotator interface {
	// RotateAbout turns the camera by radians about the vertical axis
	// through pivot, keeping it aimed the same way relative to the pivot.
	RotateAbout(pivot mgl64.Vec3, radians float64)
}

// Picker resolves screen positions to world points.
type Picker interface {
	// ViewportCenter returns the screen coordinates of the viewport center.
	ViewportCenter() (x, y float64)

	// PickPosition is the precise pick against rendered scene depth.
	PickPosition(x, y float64) (mgl64.Vec3, bool)

	// PickGroundPoint casts a ray through the screen position and intersects
	// it with the ground surface.
	PickGroundPoint(x, y float64) (mgl64.Vec3, bool)
}

// Sink is the composite camera interface the engine is wired with.
type Sink interface {
	Poser
	Flyer
	Rotator
	Picker
}

// Ensure Simulated implements Sink
var _ Sink = (*Simulated)(nil)
