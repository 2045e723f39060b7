package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vec is a 2D vector. Arithmetic goes through the r2 package functions
// (r2.Add, r2.Sub, r2.Scale, r2.Norm).
type Vec = r2.Vec

// Distance returns |b - a|.
func Distance(a, b Vec) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// IsFinite reports whether both components are neither NaN nor Inf.
func IsFinite(v Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Axis returns the component of v along axis 0 (x) or 1 (y).
func Axis(v Vec, axis int) float64 {
	if axis == 0 {
		return v.X
	}
	return v.Y
}

// SetAxis returns v with the component along axis replaced by x.
func SetAxis(v Vec, axis int, x float64) Vec {
	if axis == 0 {
		v.X = x
	} else {
		v.Y = x
	}
	return v
}
