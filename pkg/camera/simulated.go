package camera

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/pathmath"
)

// Default simulated viewport.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultFOV            = math.Pi / 3 // horizontal
)

// Simulated is an in-process viewer: a free camera over a flat ground plane
// at Z = GroundHeight. It stands in for a real viewer when none is connected
// and backs the engine tests.
type Simulated struct {
	mu sync.Mutex

	sched frameloop.Scheduler
	pose  Pose

	width, height float64
	fov           float64

	// GroundHeight is the Z of the ground plane used by PickGroundPoint.
	GroundHeight float64

	// DepthPick, when set, answers PickPosition. Without it the simulated
	// scene has no depth buffer and precise picks always miss.
	DepthPick func(x, y float64) (mgl64.Vec3, bool)

	flight frameloop.Handle
}

// NewSimulated creates a simulated viewer. Flights are animated on sched.
func NewSimulated(sched frameloop.Scheduler, width, height int) *Simulated {
	if width <= 0 {
		width = DefaultViewportWidth
	}
	if height <= 0 {
		height = DefaultViewportHeight
	}
	return &Simulated{
		sched:  sched,
		width:  float64(width),
		height: float64(height),
		fov:    DefaultFOV,
	}
}

// Pose returns the current pose.
func (s *Simulated) Pose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// SetPose cuts to p and cancels any flight in progress.
func (s *Simulated) SetPose(p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFlightLocked()
	s.pose = p
}

// FlyTo tweens to p over d using the ease-in/ease-out curve. Heading takes
// the short way round.
func (s *Simulated) FlyTo(p Pose, d time.Duration, onComplete func()) {
	s.mu.Lock()
	s.cancelFlightLocked()
	from := s.pose
	s.mu.Unlock()

	if d <= 0 {
		s.SetPose(p)
		if onComplete != nil {
			onComplete()
		}
		return
	}

	start := s.sched.Now()
	var h frameloop.Handle
	h = s.sched.OnFrame(func() {
		frac := float64(s.sched.Now().Sub(start)) / float64(d)
		done := frac >= 1
		e := pathmath.Ease(pathmath.Clamp(frac, 0, 1))

		s.mu.Lock()
		if s.flight != h {
			s.mu.Unlock()
			return
		}
		s.pose = Pose{
			Position: mgl64.Vec3{
				pathmath.Lerp(from.Position[0], p.Position[0], e),
				pathmath.Lerp(from.Position[1], p.Position[1], e),
				pathmath.Lerp(from.Position[2], p.Position[2], e),
			},
			Heading: pathmath.LerpAngle(from.Heading, p.Heading, e),
			Pitch:   pathmath.Lerp(from.Pitch, p.Pitch, e),
			Roll:    pathmath.LerpAngle(from.Roll, p.Roll, e),
		}
		if done {
			s.pose = p
			s.cancelFlightLocked()
		}
		s.mu.Unlock()

		if done && onComplete != nil {
			onComplete()
		}
	})

	s.mu.Lock()
	s.flight = h
	s.mu.Unlock()
}

// Flying reports whether a flight is in progress.
func (s *Simulated) Flying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight != nil
}

func (s *Simulated) cancelFlightLocked() {
	if s.flight != nil {
		s.flight.Cancel()
		s.flight = nil
	}
}

// RotateAbout orbits the camera around the vertical axis through pivot.
func (s *Simulated) RotateAbout(pivot mgl64.Vec3, radians float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = Orbit(s.pose, pivot, radians)
}

// ViewportCenter returns the middle of the viewport in pixels.
func (s *Simulated) ViewportCenter() (x, y float64) {
	return s.width / 2, s.height / 2
}

// PickPosition delegates to DepthPick.
func (s *Simulated) PickPosition(x, y float64) (mgl64.Vec3, bool) {
	if s.DepthPick == nil {
		return mgl64.Vec3{}, false
	}
	return s.DepthPick(x, y)
}

// PickGroundPoint intersects the view ray through (x, y) with the ground
// plane. It misses when the ray points at or above the horizon.
func (s *Simulated) PickGroundPoint(x, y float64) (mgl64.Vec3, bool) {
	s.mu.Lock()
	pose := s.pose
	s.mu.Unlock()

	// Offset the view direction by the screen position. Good enough for a
	// pinhole camera with small angles; the center ray is exact.
	cx, cy := s.ViewportCenter()
	vfov := s.fov * s.height / s.width
	ray := Pose{
		Heading: pose.Heading + (x-cx)/cx*s.fov/2,
		Pitch:   pose.Pitch - (y-cy)/cy*vfov/2,
	}
	dir := ray.Direction()

	if dir[2] >= -1e-9 {
		return mgl64.Vec3{}, false
	}
	height := pose.Position[2] - s.GroundHeight
	if height <= 0 {
		return mgl64.Vec3{}, false
	}
	t := height / -dir[2]
	return pose.Position.Add(dir.Mul(t)), true
}

func wrapHeading(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}
