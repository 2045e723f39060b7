package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/agentsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// BoundLennardJones is a Lennard-Jones pair interaction whose separation is
// clamped from below at Bound and which vanishes beyond Cutoff.
type BoundLennardJones struct {
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`
	Sigma   float64 `json:"sigma" yaml:"sigma"`
	Bound   float64 `json:"bound" yaml:"bound"`
	Cutoff  float64 `json:"cutoff" yaml:"cutoff"`
}

// fallback direction for coincident agents
var unitX = dynamo.Vec{X: 1}

func (lj BoundLennardJones) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"epsilon", lj.Epsilon}, {"sigma", lj.Sigma}, {"bound", lj.Bound}, {"cutoff", lj.Cutoff},
	} {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", dynamo.ErrInvalidConfig, p.name, p.v)
		}
	}
	if lj.Bound >= lj.Sigma {
		return fmt.Errorf("%w: bound (%g) must be smaller than sigma (%g)", dynamo.ErrInvalidConfig, lj.Bound, lj.Sigma)
	}
	if lj.Sigma > lj.Cutoff {
		return fmt.Errorf("%w: sigma (%g) must not exceed cutoff (%g)", dynamo.ErrInvalidConfig, lj.Sigma, lj.Cutoff)
	}
	return nil
}

// Mix combines the parameters of two agents. The result is independent of
// argument order so pair forces stay antisymmetric.
func (lj BoundLennardJones) Mix(other BoundLennardJones) BoundLennardJones {
	if lj == other {
		return lj
	}
	return BoundLennardJones{
		Epsilon: math.Sqrt(lj.Epsilon * other.Epsilon),
		Sigma:   (lj.Sigma + other.Sigma) / 2,
		Bound:   math.Max(lj.Bound, other.Bound),
		Cutoff:  math.Max(lj.Cutoff, other.Cutoff),
	}
}

// Magnitude returns the signed force magnitude at separation r; positive
// values are repulsive.
func (lj BoundLennardJones) Magnitude(r float64) float64 {
	if r > lj.Cutoff {
		return 0
	}
	r = math.Max(r, lj.Bound)
	s6 := math.Pow(lj.Sigma/r, 6)
	return 24 * lj.Epsilon / r * (2*s6*s6 - s6)
}

// Potential returns the pair energy at separation r (zero beyond Cutoff).
func (lj BoundLennardJones) Potential(r float64) float64 {
	if r > lj.Cutoff {
		return 0
	}
	r = math.Max(r, lj.Bound)
	s6 := math.Pow(lj.Sigma/r, 6)
	return 4 * lj.Epsilon * (s6*s6 - s6)
}

// Force returns the force exerted on the agent at p1 by the agent at p2
// carrying the other interaction parameters. The force on the second agent
// is the negation of the result.
func (lj BoundLennardJones) Force(p1, p2 dynamo.Vec, other BoundLennardJones) (dynamo.Vec, error) {
	params := lj.Mix(other)

	d := r2.Sub(p2, p1)
	r := r2.Norm(d)
	if r > params.Cutoff {
		return dynamo.Vec{}, nil
	}

	dir := unitX
	if r > 0 {
		dir = r2.Scale(1/r, d)
	}

	f := r2.Scale(-params.Magnitude(r), dir)
	if !dynamo.IsFinite(f) {
		return dynamo.Vec{}, &dynamo.CalcError{Op: "lennard-jones force", Value: f}
	}
	return f, nil
}
