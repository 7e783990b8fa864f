package optimize

import (
	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/random"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

const defaultNumStartingPoints = 4

// hillClimb runs a first-improvement local search from several random
// starting points drawn from the discrete grid. A per-run cache keyed
// by coordinate vector avoids re-evaluating coordinates reached from
// more than one path; the global best is updated on every fresh
// evaluation.
func (o *Optimizer) hillClimb(
	strat *strategy.Strategy,
	defs []ParameterDef,
	objective ObjectiveFn,
	input *series.Series,
	opts types.OptimizeOptions,
) (*Result, error) {
	axes := buildAxes(defs)

	numStarts := opts.NumStartingPoints
	if numStarts <= 0 {
		numStarts = defaultNumStartingPoints
	}
	rng := random.New(opts.RandomSeed)

	o.logger.Debug("starting hill climb",
		zap.Int("parameters", len(defs)),
		zap.Int("startingPoints", numStarts),
		zap.Int64("randomSeed", opts.RandomSeed),
	)

	result := &Result{}
	hasBest := false
	cache := make(map[string]float64)

	// evaluate resolves a coordinate through the cache. Fresh
	// evaluations are recorded and compared against the global best.
	evaluate := func(coords []int) (float64, error) {
		key := coordKey(coords)
		if cached, ok := cache[key]; ok {
			return cached, nil
		}
		iteration, err := o.evaluate(strat, coordParams(defs, axes, coords), objective, input)
		if err != nil {
			return 0, err
		}
		cache[key] = iteration.Result
		if opts.RecordAllResults {
			result.AllResults = append(result.AllResults, iteration)
		}
		if !hasBest || accepts(iteration.Result, result.BestResult, opts.SearchDirection) {
			result.BestResult = iteration.Result
			result.BestParameterValues = iteration.ParameterValues
			hasBest = true
		}
		return iteration.Result, nil
	}

	for start := 0; start < numStarts; start++ {
		working := make([]int, len(axes))
		for i, axis := range axes {
			working[i] = rng.Intn(len(axis))
		}
		if _, seen := cache[coordKey(working)]; seen {
			continue
		}

		workingResult, err := evaluate(working)
		if err != nil {
			return nil, err
		}

		// Walk to the first strictly-improving neighbor until no
		// neighbor improves.
		for {
			improved := false
			for _, next := range neighborCoords(working, axes) {
				nextResult, err := evaluate(next)
				if err != nil {
					return nil, err
				}
				if accepts(nextResult, workingResult, opts.SearchDirection) {
					working = next
					workingResult = nextResult
					improved = true
					break
				}
			}
			if !improved {
				break
			}
		}
	}

	return result, nil
}

// neighborCoords perturbs each axis by one positive step, axes in
// order, then each axis by one negative step, skipping out-of-bounds
// moves.
func neighborCoords(coords []int, axes [][]float64) [][]int {
	neighbors := make([][]int, 0, 2*len(coords))
	for i := range coords {
		if coords[i]+1 < len(axes[i]) {
			neighbors = append(neighbors, bumpCoord(coords, i, +1))
		}
	}
	for i := range coords {
		if coords[i]-1 >= 0 {
			neighbors = append(neighbors, bumpCoord(coords, i, -1))
		}
	}
	return neighbors
}

func bumpCoord(coords []int, axis, delta int) []int {
	out := make([]int, len(coords))
	copy(out, coords)
	out[axis] += delta
	return out
}
