package optimize

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// gridSearch sweeps the full Cartesian product of the parameter grids.
// Coordinates are enumerated in nested order with parameter 0 as the
// outermost axis. Evaluation fans out across workers, but results land
// in a slice indexed by enumeration order and the best-result scan runs
// sequentially afterwards, so output ordering and the first-wins
// tie-break are unaffected by scheduling.
func (o *Optimizer) gridSearch(
	strat *strategy.Strategy,
	defs []ParameterDef,
	objective ObjectiveFn,
	input *series.Series,
	opts types.OptimizeOptions,
) (*Result, error) {
	axes := buildAxes(defs)
	coordsList := enumerateCoords(axes)

	o.logger.Debug("starting grid search",
		zap.Int("parameters", len(defs)),
		zap.Int("combinations", len(coordsList)),
	)

	iterations := make([]IterationResult, len(coordsList))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, coords := range coordsList {
		i, coords := i, coords
		g.Go(func() error {
			iteration, err := o.evaluate(strat, coordParams(defs, axes, coords), objective, input)
			if err != nil {
				return err
			}
			iterations[i] = iteration
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	hasBest := false
	for _, iteration := range iterations {
		if !hasBest || accepts(iteration.Result, result.BestResult, opts.SearchDirection) {
			result.BestResult = iteration.Result
			result.BestParameterValues = iteration.ParameterValues
			hasBest = true
		}
	}
	if opts.RecordAllResults {
		result.AllResults = iterations
	}

	return result, nil
}

// enumerateCoords lists every coordinate vector of the grid in nested
// order, outermost axis first.
func enumerateCoords(axes [][]float64) [][]int {
	total := 1
	for _, axis := range axes {
		total *= len(axis)
	}

	coordsList := make([][]int, 0, total)
	coords := make([]int, len(axes))
	for {
		snapshot := make([]int, len(coords))
		copy(snapshot, coords)
		coordsList = append(coordsList, snapshot)

		axis := len(axes) - 1
		for axis >= 0 {
			coords[axis]++
			if coords[axis] < len(axes[axis]) {
				break
			}
			coords[axis] = 0
			axis--
		}
		if axis < 0 {
			return coordsList
		}
	}
}
