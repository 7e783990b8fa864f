// Package grademark is a deterministic backtesting engine for
// rule-based trading strategies over historical price bars, with grid
// and hill-climb parameter optimization, walk-forward evaluation and
// Monte Carlo resampling layered on top.
//
// The package re-exports the engine's types and exposes its five entry
// points: Backtest, Optimize, WalkForwardOptimize, MonteCarlo and the
// ComputeEquityCurve/ComputeDrawdown reductions. The cmd/server binary
// serves the same operations over HTTP.
package grademark

import (
	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/analysis"
	"github.com/andywkff/grademark/internal/backtest"
	"github.com/andywkff/grademark/internal/montecarlo"
	"github.com/andywkff/grademark/internal/optimize"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/internal/walkforward"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// Strategy types.
type (
	Strategy       = strategy.Strategy
	Params         = strategy.Params
	EntryRule      = strategy.EntryRule
	ExitRule       = strategy.ExitRule
	StopFunc       = strategy.StopFunc
	PrepIndicators = strategy.PrepIndicators
	EnterPosition  = strategy.EnterPosition
	ExitPosition   = strategy.ExitPosition
	EnterOptions   = strategy.EnterOptions
	EntryContext   = strategy.EntryContext
	ExitContext    = strategy.ExitContext
	StopContext    = strategy.StopContext
)

// Value and option types.
type (
	Bar              = types.Bar
	Trade            = types.Trade
	Position         = types.Position
	TimeValue        = types.TimeValue
	TradeDirection   = types.TradeDirection
	ExitReason       = types.ExitReason
	BacktestOptions  = types.BacktestOptions
	OptimizeOptions  = types.OptimizeOptions
	Series           = series.Series
	ParameterDef     = optimize.ParameterDef
	ObjectiveFn      = optimize.ObjectiveFn
	OptimizeResult   = optimize.Result
	MonteCarloOption = montecarlo.Options
	Summary          = analysis.Summary
)

const (
	TradeDirectionLong  = types.TradeDirectionLong
	TradeDirectionShort = types.TradeDirectionShort
)

// FromBars wraps a bar slice as an ordered series.
func FromBars(bars []Bar) *Series {
	return series.FromBars(bars)
}

// Backtest simulates the strategy over the input series and returns the
// completed trades in entry order.
func Backtest(strat *Strategy, input *Series, opts BacktestOptions) ([]Trade, error) {
	return backtest.NewEngine(zap.NewNop()).Run(strat, input, opts)
}

// Optimize searches the parameter space for the coordinate that
// optimizes the objective, using the backtest as an oracle.
func Optimize(strat *Strategy, defs []ParameterDef, objective ObjectiveFn, input *Series, opts OptimizeOptions) (*OptimizeResult, error) {
	return optimize.NewOptimizer(zap.NewNop()).Optimize(strat, defs, objective, input, opts)
}

// WalkForwardOptimize alternates in-sample optimization and
// out-of-sample backtesting across sliding windows and returns the
// concatenated out-of-sample trades.
func WalkForwardOptimize(strat *Strategy, defs []ParameterDef, objective ObjectiveFn, input *Series, inSampleSize, outSampleSize int, opts OptimizeOptions) ([]Trade, error) {
	result, err := walkforward.NewHarness(zap.NewNop()).Run(strat, defs, objective, input, inSampleSize, outSampleSize, opts)
	if err != nil {
		return nil, err
	}
	return result.Trades, nil
}

// MonteCarlo draws numIterations samples of numSamples trades each,
// uniformly with replacement from the input population.
func MonteCarlo(trades []Trade, numIterations, numSamples int, opts MonteCarloOption) ([][]Trade, error) {
	return montecarlo.Resample(trades, numIterations, numSamples, opts)
}

// ComputeEquityCurve compounds startingCapital through every trade's
// growth.
func ComputeEquityCurve(startingCapital float64, trades []Trade) ([]float64, error) {
	return analysis.ComputeEquityCurve(startingCapital, trades)
}

// ComputeDrawdown returns the gap between equity and its running peak
// at every point of the equity curve.
func ComputeDrawdown(startingCapital float64, trades []Trade) ([]float64, error) {
	return analysis.ComputeDrawdown(startingCapital, trades)
}

// ComputeSummary reduces a trade list to headline statistics.
func ComputeSummary(trades []Trade) *Summary {
	return analysis.ComputeSummary(trades)
}
