// Package optimize provides strategy parameter optimization over the
// backtesting engine: an exhaustive grid search and a random-restart
// hill climb. Both are deterministic given the same inputs and seed.
package optimize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/backtest"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// ParameterDef defines the discrete search range of one parameter.
type ParameterDef struct {
	Name          string  `json:"name"`
	StartingValue float64 `json:"startingValue"`
	EndingValue   float64 `json:"endingValue"`
	StepSize      float64 `json:"stepSize"`
}

// ObjectiveFn reduces a trade list to the scalar being optimized.
type ObjectiveFn func(trades []types.Trade) float64

// IterationResult records a single evaluated coordinate.
type IterationResult struct {
	ParameterValues strategy.Params `json:"parameterValues"`
	Result          float64         `json:"result"`
	NumTrades       int             `json:"numTrades"`
}

// Result is the outcome of an optimization run.
type Result struct {
	BestResult          float64           `json:"bestResult"`
	BestParameterValues strategy.Params   `json:"bestParameterValues"`
	AllResults          []IterationResult `json:"allResults,omitempty"`
	DurationMS          *int64            `json:"durationMS,omitempty"`
}

// Optimizer searches strategy parameter space using the backtest as an
// oracle.
type Optimizer struct {
	logger *zap.Logger
	engine *backtest.Engine
}

// NewOptimizer creates an optimizer.
func NewOptimizer(logger *zap.Logger) *Optimizer {
	return &Optimizer{
		logger: logger,
		engine: backtest.NewEngine(logger),
	}
}

// Optimize dispatches to the configured search algorithm. The default
// is an exhaustive grid search maximizing the objective.
func (o *Optimizer) Optimize(
	strat *strategy.Strategy,
	defs []ParameterDef,
	objective ObjectiveFn,
	input *series.Series,
	opts types.OptimizeOptions,
) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("optimize: strategy must not be nil")
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("optimize: at least one parameter definition is required")
	}
	for _, def := range defs {
		if def.StepSize <= 0 {
			return nil, fmt.Errorf("optimize: parameter %q must have a positive step size", def.Name)
		}
		if def.EndingValue < def.StartingValue {
			return nil, fmt.Errorf("optimize: parameter %q ending value %v is below starting value %v",
				def.Name, def.EndingValue, def.StartingValue)
		}
	}
	if objective == nil {
		return nil, fmt.Errorf("optimize: objective function must not be nil")
	}
	if input == nil || input.None() {
		return nil, fmt.Errorf("optimize: input series contains no bars")
	}

	if opts.SearchDirection == "" {
		opts.SearchDirection = types.SearchDirectionMax
	}
	if opts.OptimizationType == "" {
		opts.OptimizationType = types.OptimizationTypeGrid
	}

	started := time.Now()

	var result *Result
	var err error
	switch opts.OptimizationType {
	case types.OptimizationTypeGrid:
		result, err = o.gridSearch(strat, defs, objective, input, opts)
	case types.OptimizationTypeHillClimb:
		result, err = o.hillClimb(strat, defs, objective, input, opts)
	default:
		return nil, fmt.Errorf("optimize: unknown optimization type %q", opts.OptimizationType)
	}
	if err != nil {
		return nil, err
	}

	if opts.RecordDuration {
		ms := time.Since(started).Milliseconds()
		result.DurationMS = &ms
	}

	o.logger.Debug("optimization complete",
		zap.String("type", string(opts.OptimizationType)),
		zap.Float64("bestResult", result.BestResult),
	)

	return result, nil
}

// axisValues expands one parameter definition into its discrete grid.
func axisValues(def ParameterDef) []float64 {
	var values []float64
	for v := def.StartingValue; v <= def.EndingValue; v += def.StepSize {
		values = append(values, v)
	}
	return values
}

// buildAxes expands every parameter definition.
func buildAxes(defs []ParameterDef) [][]float64 {
	axes := make([][]float64, len(defs))
	for i, def := range defs {
		axes[i] = axisValues(def)
	}
	return axes
}

// coordParams maps a coordinate vector onto named parameter overrides.
func coordParams(defs []ParameterDef, axes [][]float64, coords []int) strategy.Params {
	overrides := make(strategy.Params, len(defs))
	for i, def := range defs {
		overrides[def.Name] = axes[i][coords[i]]
	}
	return overrides
}

// coordKey renders a coordinate vector as a cache key. Keys are only
// used for membership, never iterated, so output order stays
// deterministic.
func coordKey(coords []int) string {
	var sb strings.Builder
	for i, c := range coords {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

// accepts reports whether candidate strictly beats best in the search
// direction. Strict inequality makes the first coordinate reaching the
// optimum win on ties.
func accepts(candidate, best float64, direction types.SearchDirection) bool {
	if direction == types.SearchDirectionMin {
		return candidate < best
	}
	return candidate > best
}

// evaluate backtests one coordinate and applies the objective.
func (o *Optimizer) evaluate(
	strat *strategy.Strategy,
	overrides strategy.Params,
	objective ObjectiveFn,
	input *series.Series,
) (IterationResult, error) {
	trial := strat.WithParameters(overrides)
	trades, err := o.engine.Run(trial, input, types.BacktestOptions{})
	if err != nil {
		return IterationResult{}, err
	}
	return IterationResult{
		ParameterValues: overrides,
		Result:          objective(trades),
		NumTrades:       len(trades),
	}, nil
}
