// Package walkforward implements walk-forward evaluation: repeated
// in-sample optimization followed by out-of-sample backtesting across
// sliding windows, guarding against overfitting.
package walkforward

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/backtest"
	"github.com/andywkff/grademark/internal/optimize"
	"github.com/andywkff/grademark/internal/random"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// Result carries the concatenated out-of-sample trades.
type Result struct {
	Trades []types.Trade `json:"trades"`
}

// Harness runs walk-forward evaluations.
type Harness struct {
	logger    *zap.Logger
	optimizer *optimize.Optimizer
	engine    *backtest.Engine
}

// NewHarness creates a walk-forward harness.
func NewHarness(logger *zap.Logger) *Harness {
	return &Harness{
		logger:    logger,
		optimizer: optimize.NewOptimizer(logger),
		engine:    backtest.NewEngine(logger),
	}
}

// Run slides an in-sample/out-of-sample window pair over the input
// series. For each window it optimizes over the in-sample slice,
// applies the best parameters to a clone of the strategy, backtests the
// out-of-sample slice, and concatenates the resulting trades. Windows
// advance by outSampleSize; the walk terminates when a full
// out-of-sample window no longer fits.
func (h *Harness) Run(
	strat *strategy.Strategy,
	defs []optimize.ParameterDef,
	objective optimize.ObjectiveFn,
	input *series.Series,
	inSampleSize int,
	outSampleSize int,
	opts types.OptimizeOptions,
) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("walkforward: strategy must not be nil")
	}
	if objective == nil {
		return nil, fmt.Errorf("walkforward: objective function must not be nil")
	}
	if input == nil || input.None() {
		return nil, fmt.Errorf("walkforward: input series contains no bars")
	}
	if inSampleSize <= 0 {
		return nil, fmt.Errorf("walkforward: in-sample size must be positive, got %d", inSampleSize)
	}
	if outSampleSize <= 0 {
		return nil, fmt.Errorf("walkforward: out-of-sample size must be positive, got %d", outSampleSize)
	}

	// Per-window seeds come from the harness PRNG so the whole walk is
	// reproducible from the top-level seed. The real draw is truncated
	// to a 31-bit integer seed.
	rng := random.New(opts.RandomSeed)

	var trades []types.Trade
	window := 0

	for offset := 0; ; offset += outSampleSize {
		inSample := input.Skip(offset).Take(inSampleSize)
		outSample := input.Skip(offset + inSampleSize).Take(outSampleSize)
		if outSample.Count() < outSampleSize {
			break
		}

		windowOpts := opts
		windowOpts.RandomSeed = rng.Int31()
		windowOpts.RecordAllResults = false
		windowOpts.RecordDuration = false

		optResult, err := h.optimizer.Optimize(strat, defs, objective, inSample, windowOpts)
		if err != nil {
			return nil, fmt.Errorf("walkforward: window %d optimization failed: %w", window, err)
		}

		tuned := strat.WithParameters(optResult.BestParameterValues)
		outTrades, err := h.engine.Run(tuned, outSample, types.BacktestOptions{})
		if err != nil {
			return nil, fmt.Errorf("walkforward: window %d out-of-sample backtest failed: %w", window, err)
		}

		h.logger.Debug("walk-forward window complete",
			zap.Int("window", window),
			zap.Int("offset", offset),
			zap.Float64("inSampleBest", optResult.BestResult),
			zap.Int("outSampleTrades", len(outTrades)),
		)

		trades = append(trades, outTrades...)
		window++
	}

	h.logger.Debug("walk-forward complete",
		zap.Int("windows", window),
		zap.Int("trades", len(trades)),
	)

	return &Result{Trades: trades}, nil
}
