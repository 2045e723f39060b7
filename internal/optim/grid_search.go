package optim

import (
	"context"
	"fmt"
	"math"
	"maps"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/experiment"
)

// GridSearch runs every combination of parameter values and keeps the one
// minimizing a final metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Trial is one evaluated combination. Err is set when the run failed; the
// combination is then skipped.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search evaluates the grid on copies of base. It fails only when the grid
// is malformed, ctx is canceled or no combination finished.
func (g *GridSearch) Search(
	ctx context.Context,
	base *config.Config,
	metricName string,
	opts ...experiment.Option,
) (map[string]float64, float64, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, fmt.Errorf("%w: %d parameters but %d ranges",
			dynamo.ErrInvalidConfig, len(g.paramNames), len(g.ranges))
	}

	s := &search{
		g:      g,
		base:   base,
		metric: metricName,
		opts:   opts,
		best:   math.Inf(1),
	}
	if err := s.recurse(ctx, 0, make(map[string]float64)); err != nil {
		return nil, 0, s.trials, err
	}
	if s.bestParams == nil {
		return nil, 0, s.trials, fmt.Errorf("no combination produced metric %q", metricName)
	}
	return s.bestParams, s.best, s.trials, nil
}

type search struct {
	g      *GridSearch
	base   *config.Config
	metric string
	opts   []experiment.Option

	best       float64
	bestParams map[string]float64
	trials     []Trial
}

func (s *search) recurse(ctx context.Context, depth int, current map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(s.g.paramNames) {
		s.evaluate(ctx, current)
		return nil
	}

	name := s.g.paramNames[depth]
	for _, val := range s.g.ranges[depth] {
		next := maps.Clone(current)
		next[name] = val
		if err := s.recurse(ctx, depth+1, next); err != nil {
			return err
		}
	}
	return nil
}

func (s *search) evaluate(ctx context.Context, params map[string]float64) {
	trial := Trial{Params: params, Value: math.NaN()}
	defer func() { s.trials = append(s.trials, trial) }()

	cfg := s.base.Clone()
	if trial.Err = cfg.ApplyParams(params); trial.Err != nil {
		return
	}
	res, err := experiment.Run(ctx, cfg, s.opts...)
	if err != nil {
		trial.Err = err
		return
	}
	val, ok := res.Metrics[s.metric]
	if !ok {
		trial.Err = fmt.Errorf("metric %q not recorded", s.metric)
		return
	}
	trial.Value = val

	if val < s.best {
		s.best = val
		s.bestParams = maps.Clone(params)
	}
}
