package camera

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a camera position plus heading/pitch/roll in radians.
// Position is in the viewer's world frame; the engine only does arithmetic
// on its components.
type Pose struct {
	Position mgl64.Vec3
	Heading  float64
	Pitch    float64
	Roll     float64
}

// wirePosition mirrors the viewer's Cartesian3 JSON shape.
type wirePosition struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type wirePose struct {
	Position *wirePosition `json:"position"`
	Heading  *float64      `json:"heading"`
	Pitch    *float64      `json:"pitch"`
	Roll     *float64      `json:"roll"`
}

// MarshalJSON encodes the pose as
// {"position":{"x":..,"y":..,"z":..},"heading":..,"pitch":..,"roll":..}.
func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePose{
		Position: &wirePosition{X: &p.Position[0], Y: &p.Position[1], Z: &p.Position[2]},
		Heading:  &p.Heading,
		Pitch:    &p.Pitch,
		Roll:     &p.Roll,
	})
}

// UnmarshalJSON decodes the wire shape and rejects missing or non-finite
// fields.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var w wirePose
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Position == nil {
		return fmt.Errorf("missing position")
	}

	fields := []struct {
		name string
		v    *float64
	}{
		{"position.x", w.Position.X},
		{"position.y", w.Position.Y},
		{"position.z", w.Position.Z},
		{"heading", w.Heading},
		{"pitch", w.Pitch},
		{"roll", w.Roll},
	}
	for _, f := range fields {
		if f.v == nil {
			return fmt.Errorf("missing %s", f.name)
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
	}

	*p = Pose{
		Position: mgl64.Vec3{*w.Position.X, *w.Position.Y, *w.Position.Z},
		Heading:  *w.Heading,
		Pitch:    *w.Pitch,
		Roll:     *w.Roll,
	}
	return nil
}

// Direction returns the unit view vector for the pose. Heading is measured
// clockwise from +Y (north) towards +X (east); negative pitch looks down.
func (p Pose) Direction() mgl64.Vec3 {
	cp := math.Cos(p.Pitch)
	return mgl64.Vec3{
		math.Sin(p.Heading) * cp,
		math.Cos(p.Heading) * cp,
		math.Sin(p.Pitch),
	}
}

// String formats the pose for logs.
func (p Pose) String() string {
	return fmt.Sprintf("pos=(%.2f,%.2f,%.2f) hpr=(%.3f,%.3f,%.3f)",
		p.Position[0], p.Position[1], p.Position[2], p.Heading, p.Pitch, p.Roll)
}

// Orbit returns p turned by radians about the vertical axis through pivot. A
// positive angle turns counter-clockwise seen from above, which lowers the
// compass heading by the same amount. Pitch and roll are kept.
func Orbit(p Pose, pivot mgl64.Vec3, radians float64) Pose {
	q := mgl64.QuatRotate(radians, mgl64.Vec3{0, 0, 1})
	p.Position = pivot.Add(q.Rotate(p.Position.Sub(pivot)))
	p.Heading = wrapHeading(p.Heading - radians)
	return p
}
