package pathmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

func TestInterpolateConstant(t *testing.T) {
	for _, p := range []float64{0, 1, -3.5, 1e6} {
		for _, tt := range []float64{0, 0.1, 0.25, 0.5, 0.9, 1} {
			assert.InDelta(t, p, Interpolate(p, p, p, p, tt), tolerance, "p=%v t=%v", p, tt)
		}
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	assert.InDelta(t, 2.0, Interpolate(1, 2, 5, 7, 0), tolerance)
	assert.InDelta(t, 5.0, Interpolate(1, 2, 5, 7, 1), tolerance)
}

func TestInterpolateLinearControlPoints(t *testing.T) {
	// Evenly spaced control points reduce Catmull-Rom to a straight line.
	for _, tt := range []float64{0, 0.2, 0.5, 0.75, 1} {
		assert.InDelta(t, 10+10*tt, Interpolate(0, 10, 20, 30, tt), tolerance)
	}
}

func TestLerpAngle(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		amt        float64
		want       float64
	}{
		{"zero", 0, 0, 0.5, 0},
		{"quarter turn", 0, math.Pi / 2, 0.5, math.Pi / 4},
		{"wrap forward", 350 * math.Pi / 180, 10 * math.Pi / 180, 0.5, 360 * math.Pi / 180},
		{"wrap backward", 10 * math.Pi / 180, 350 * math.Pi / 180, 0.5, 0},
		{"end", 0.3, 1.2, 1, 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LerpAngle(tt.start, tt.end, tt.amt), 1e-9)
		})
	}
}

func TestLerpAngleNeverExceedsHalfTurn(t *testing.T) {
	for a := -20.0; a <= 20; a += 0.37 {
		for b := -20.0; b <= 20; b += 0.41 {
			turn := LerpAngle(a, b, 1) - a
			assert.LessOrEqual(t, math.Abs(turn), math.Pi+tolerance, "a=%v b=%v", a, b)
		}
	}
}

func TestNormalizeAngleRange(t *testing.T) {
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), tolerance)
	assert.InDelta(t, math.Pi, NormalizeAngle(math.Pi), tolerance)
	assert.InDelta(t, 0.5, NormalizeAngle(0.5+6*math.Pi), 1e-9)
	assert.True(t, math.IsNaN(NormalizeAngle(math.NaN())))
}

func TestEase(t *testing.T) {
	assert.InDelta(t, 0.0, Ease(0), tolerance)
	assert.InDelta(t, 0.5, Ease(0.5), tolerance)
	assert.InDelta(t, 1.0, Ease(1), tolerance)
	assert.InDelta(t, 0.125, Ease(0.25), tolerance)
	assert.InDelta(t, 0.875, Ease(0.75), tolerance)

	prev := Ease(0)
	for x := 0.01; x <= 1; x += 0.01 {
		cur := Ease(x)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestDampSpeed(t *testing.T) {
	tests := []struct {
		progress float64
		want     float64
	}{
		{0, 0.1},
		{0.05, 0.6},
		{0.5, 1},
		{0.9, 1},
		{0.95, 0.6},
		{0.99, 0.2},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, DampSpeed(1, tt.progress), 1e-9, "progress=%v", tt.progress)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(5, 0, 1))
	assert.Equal(t, 0.0, Clamp(-5, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}
