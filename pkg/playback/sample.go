package playback

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/pathmath"
)

// Sample evaluates the camera pose at progress along points. It needs at
// least two points.
//
// Control points are clamped at both ends so the first and last segments
// still get a tangent. Heading blends the short way between the segment's
// inner keyframes only; pitch follows the spline; roll is always zero.
func Sample(points []keyframe.Keyframe, progress float64) camera.Pose {
	n := len(points)
	i := int(math.Floor(progress))
	if i > n-2 {
		i = n - 2
	}
	if i < 0 {
		i = 0
	}
	t := progress - float64(i)

	p0 := points[max(i-1, 0)]
	p1 := points[i]
	p2 := points[min(i+1, n-1)]
	p3 := points[min(i+2, n-1)]

	var pos mgl64.Vec3
	for axis := 0; axis < 3; axis++ {
		pos[axis] = pathmath.Interpolate(p0.Position[axis], p1.Position[axis], p2.Position[axis], p3.Position[axis], t)
	}

	return camera.Pose{
		Position: pos,
		Heading:  pathmath.LerpAngle(p1.Heading, p2.Heading, t),
		Pitch:    pathmath.Interpolate(p0.Pitch, p1.Pitch, p2.Pitch, p3.Pitch, t),
		Roll:     0,
	}
}
