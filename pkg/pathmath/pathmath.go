// Package pathmath holds the pure functions behind cinematic camera paths:
// Catmull-Rom interpolation, shortest-path angle blending and the easing
// curves used to shape speed near the ends of a path.
//
// Nothing in this package keeps state or touches the camera.
package pathmath

import "math"

// Interpolate evaluates a uniform Catmull-Rom segment between p1 and p2 at
// t ∈ [0, 1]. p0 and p3 are the outer control points that shape the tangents.
func Interpolate(p0, p1, p2, p3, t float64) float64 {
	v0 := (p2 - p0) * 0.5
	v1 := (p3 - p1) * 0.5
	t2 := t * t
	t3 := t * t2
	return (2*p1-2*p2+v0+v1)*t3 + (-3*p1+3*p2-2*v0-v1)*t2 + v0*t + p1
}

// LerpAngle blends from start towards end by amt, always turning the short
// way round. The difference is folded into (-π, π] before scaling, so the
// rotation never exceeds half a turn whatever range the inputs are in.
func LerpAngle(start, end, amt float64) float64 {
	return start + NormalizeAngle(end-start)*amt
}

// NormalizeAngle folds an angle difference into (-π, π].
func NormalizeAngle(diff float64) float64 {
	if math.IsNaN(diff) || math.IsInf(diff, 0) {
		return diff
	}
	for diff <= -math.Pi {
		diff += 2 * math.Pi
	}
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	return diff
}

// Ease is the quadratic ease-in/ease-out curve on [0, 1].
func Ease(x float64) float64 {
	if x < 0.5 {
		return 2 * x * x
	}
	return 1 - math.Pow(-2*x+2, 2)/2
}

// DampSpeed attenuates a per-tick speed inside the first and last tenth of a
// path. globalProgress is the fraction of the path already covered. Mid-path
// speed is returned unchanged.
func DampSpeed(speed, globalProgress float64) float64 {
	if globalProgress < 0.1 {
		speed *= globalProgress*10 + 0.1
	}
	if globalProgress > 0.9 {
		speed *= (1-globalProgress)*10 + 0.1
	}
	return speed
}

// Lerp performs linear interpolation between a and b.
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Clamp restricts v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
