package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/agentsim/internal/dynamo"
)

// Clock is a fixed-stepsize clock with save points snapped onto the grid
// T0 + k*Dt. Time is derived from the integer iteration so it never drifts.
type Clock struct {
	T0 float64
	Dt float64

	iteration uint64
	end       uint64
	saves     []uint64
	next      int
}

// NewClock snaps every save point to its nearest grid iteration, drops
// duplicates, and ends the run at the last save point.
func NewClock(t0, dt float64, savePoints []float64) (*Clock, error) {
	if math.IsNaN(t0) || math.IsInf(t0, 0) {
		return nil, fmt.Errorf("%w: t0 must be finite, got %g", dynamo.ErrInvalidConfig, t0)
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidConfig, dt)
	}
	if len(savePoints) == 0 {
		return nil, fmt.Errorf("%w: at least one save point is required", dynamo.ErrInvalidConfig)
	}

	saves := make([]uint64, 0, len(savePoints))
	for _, s := range savePoints {
		k := math.Round((s - t0) / dt)
		if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
			return nil, fmt.Errorf("%w: save point %g is not reachable from t0=%g", dynamo.ErrInvalidConfig, s, t0)
		}
		saves = append(saves, uint64(k))
	}
	slices.Sort(saves)
	saves = slices.Compact(saves)

	return &Clock{
		T0:    t0,
		Dt:    dt,
		end:   saves[len(saves)-1],
		saves: saves,
	}, nil
}

// Time returns the current simulation time.
func (c *Clock) Time() float64 { return c.timeAt(c.iteration) }

func (c *Clock) timeAt(k uint64) float64 { return c.T0 + float64(k)*c.Dt }

func (c *Clock) Iteration() uint64 { return c.iteration }

// TotalSteps is the number of steps from T0 to the end time.
func (c *Clock) TotalSteps() uint64 { return c.end }

func (c *Clock) EndTime() float64 { return c.timeAt(c.end) }

// Done reports whether the end time has been reached.
func (c *Clock) Done() bool { return c.iteration >= c.end }

// IsSavePoint reports whether a snapshot is due at the current iteration
// and has not been taken yet.
func (c *Clock) IsSavePoint() bool {
	return c.next < len(c.saves) && c.saves[c.next] == c.iteration
}

// MarkSaved records that the due snapshot was written.
func (c *Clock) MarkSaved() {
	if c.IsSavePoint() {
		c.next++
	}
}

// Advance moves the clock one step forward.
func (c *Clock) Advance() {
	c.iteration++
	for c.next < len(c.saves) && c.saves[c.next] < c.iteration {
		c.next++
	}
}

// SavePoints returns the snapped save times.
func (c *Clock) SavePoints() []float64 {
	out := make([]float64, len(c.saves))
	for i, k := range c.saves {
		out[i] = c.timeAt(k)
	}
	return out
}
