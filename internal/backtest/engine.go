// Package backtest provides the single-position, bar-by-bar backtesting
// engine. The engine is a deterministic fold over an ordered bar
// sequence: rule callbacks run synchronously inside the loop, and their
// only side effects are the enter/exit intent signals.
package backtest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// positionStatus is the engine's state tag. A position exists iff the
// status is statusPosition or statusExit.
type positionStatus int

const (
	statusNone positionStatus = iota
	statusEnter
	statusPosition
	statusExit
)

// Engine runs backtests. It holds no per-run state and is safe to reuse
// across runs.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a backtesting engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// run carries the state of a single backtest.
type run struct {
	strat *strategy.Strategy
	opts  types.BacktestOptions

	status positionStatus

	// Pending entry, valid while status == statusEnter.
	direction             types.TradeDirection
	conditionalEntryPrice *float64

	// Open position, valid while status is statusPosition or statusExit.
	position *types.Position

	trades  []types.Trade
	ruleErr error
}

// Run simulates the strategy over the input series and returns the
// completed trades in entry order.
func (e *Engine) Run(strat *strategy.Strategy, input *series.Series, opts types.BacktestOptions) ([]types.Trade, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy must not be nil")
	}
	if strat.EntryRule == nil {
		return nil, fmt.Errorf("backtest: strategy must define an entry rule")
	}
	if input == nil || input.None() {
		return nil, fmt.Errorf("backtest: input series contains no bars")
	}

	lookbackPeriod := strat.Lookback()
	if input.Count() < lookbackPeriod {
		return nil, fmt.Errorf("backtest: input series has %d bars, fewer than the lookback period of %d",
			input.Count(), lookbackPeriod)
	}

	indicators := input
	if strat.PrepIndicators != nil {
		prepped, err := strat.PrepIndicators(strat.Parameters, input)
		if err != nil {
			return nil, fmt.Errorf("backtest: indicator preparation failed: %w", err)
		}
		indicators = prepped
	}

	r := &run{strat: strat, opts: opts}
	buffer := newLookbackBuffer(lookbackPeriod)

	for _, bar := range indicators.Bars() {
		buffer.push(bar)
		if !buffer.full() {
			continue
		}
		lookback := buffer.snapshot()

		switch r.status {
		case statusNone:
			r.evalEntryRule(bar, lookback)
		case statusEnter:
			r.tryFill(bar, lookback)
		case statusPosition:
			r.onPositionBar(bar, lookback)
		case statusExit:
			r.closePosition(bar.Time, bar.Open, types.ExitReasonExitRule)
		default:
			return nil, fmt.Errorf("backtest: unrecognized state %d", r.status)
		}

		if r.ruleErr != nil {
			return nil, r.ruleErr
		}
	}

	if r.position != nil {
		last, err := indicators.Last()
		if err != nil {
			return nil, err
		}
		r.closePosition(last.Time, last.Close, types.ExitReasonFinalize)
	}

	e.logger.Debug("backtest complete",
		zap.Int("bars", input.Count()),
		zap.Int("trades", len(r.trades)),
	)

	return r.trades, nil
}

// evalEntryRule invokes the entry rule on bar. If the rule signals
// entry, the fill is deferred to a later bar's open.
func (r *run) evalEntryRule(bar types.Bar, lookback []types.Bar) {
	r.strat.EntryRule(func(opts *strategy.EnterOptions) {
		if r.status != statusNone {
			r.ruleErr = fmt.Errorf("backtest: enterPosition signaled while a position is already open or pending")
			return
		}
		r.direction = types.TradeDirectionLong
		r.conditionalEntryPrice = nil
		if opts != nil {
			if opts.Direction != "" {
				r.direction = opts.Direction
			}
			if opts.EntryPrice != 0 {
				price := opts.EntryPrice
				r.conditionalEntryPrice = &price
			}
		}
		r.status = statusEnter
	}, strategy.EntryContext{
		Bar:        bar,
		Lookback:   lookback,
		Parameters: r.strat.Parameters,
	})
}

// tryFill attempts the deferred entry on bar. A conditional entry is
// gated on the entry level being traded through; until then the engine
// stays in the entry state and re-evaluates on the next bar.
func (r *run) tryFill(bar types.Bar, lookback []types.Bar) {
	if r.conditionalEntryPrice != nil {
		if r.direction == types.TradeDirectionLong && bar.High < *r.conditionalEntryPrice {
			return
		}
		if r.direction == types.TradeDirectionShort && bar.Low > *r.conditionalEntryPrice {
			return
		}
	}

	entryPrice := bar.Open
	pos := &types.Position{
		Direction:  r.direction,
		EntryTime:  bar.Time,
		EntryPrice: entryPrice,
		Growth:     1,
	}

	ctx := strategy.StopContext{
		EntryPrice: entryPrice,
		Position:   pos,
		Bar:        bar,
		Lookback:   lookback,
		Parameters: r.strat.Parameters,
	}

	if r.strat.StopLoss != nil {
		distance := r.strat.StopLoss(ctx)
		stop := entryPrice - distance
		if pos.Direction == types.TradeDirectionShort {
			stop = entryPrice + distance
		}
		pos.InitialStopPrice = types.Float64Ptr(stop)
		pos.CurStopPrice = types.Float64Ptr(stop)
	}

	if r.strat.TrailingStopLoss != nil {
		distance := r.strat.TrailingStopLoss(ctx)
		candidate := entryPrice - distance
		if pos.Direction == types.TradeDirectionShort {
			candidate = entryPrice + distance
		}
		if pos.InitialStopPrice == nil {
			pos.InitialStopPrice = types.Float64Ptr(candidate)
		} else if pos.Direction == types.TradeDirectionLong {
			if candidate > *pos.InitialStopPrice {
				pos.InitialStopPrice = types.Float64Ptr(candidate)
			}
		} else if candidate < *pos.InitialStopPrice {
			pos.InitialStopPrice = types.Float64Ptr(candidate)
		}
		pos.CurStopPrice = types.Float64Ptr(*pos.InitialStopPrice)
		if r.opts.RecordStopPrice {
			pos.StopPriceSeries = []types.TimeValue{{Time: bar.Time, Value: *pos.CurStopPrice}}
		}
	}

	if pos.CurStopPrice != nil {
		unitRisk := entryPrice - *pos.InitialStopPrice
		if pos.Direction == types.TradeDirectionShort {
			unitRisk = *pos.InitialStopPrice - entryPrice
		}
		riskPct := unitRisk / entryPrice * 100
		pos.InitialUnitRisk = types.Float64Ptr(unitRisk)
		pos.InitialRiskPct = types.Float64Ptr(riskPct)
		pos.CurRiskPct = types.Float64Ptr(riskPct)
		pos.CurRMultiple = types.Float64Ptr(0)
		if r.opts.RecordRisk {
			pos.RiskSeries = []types.TimeValue{{Time: bar.Time, Value: riskPct}}
		}
	}

	if r.strat.ProfitTarget != nil {
		distance := r.strat.ProfitTarget(ctx)
		target := entryPrice + distance
		if pos.Direction == types.TradeDirectionShort {
			target = entryPrice - distance
		}
		pos.ProfitTarget = types.Float64Ptr(target)
	}

	r.position = pos
	r.conditionalEntryPrice = nil
	r.status = statusPosition
}

// onPositionBar processes one bar while a position is open. Exits are
// evaluated in fixed priority; the first match closes the position at
// its configured price and nothing else runs for the bar. The stop in
// effect at the start of the bar governs the bar, so the stop-loss check
// precedes the trailing ratchet, and a reachable stop wins over a
// reachable profit target.
func (r *run) onPositionBar(bar types.Bar, lookback []types.Bar) {
	pos := r.position
	long := pos.Direction == types.TradeDirectionLong

	if pos.CurStopPrice != nil {
		if long && bar.Low <= *pos.CurStopPrice {
			r.closePosition(bar.Time, *pos.CurStopPrice, types.ExitReasonStopLoss)
			return
		}
		if !long && bar.High >= *pos.CurStopPrice {
			r.closePosition(bar.Time, *pos.CurStopPrice, types.ExitReasonStopLoss)
			return
		}
	}

	if r.strat.TrailingStopLoss != nil {
		distance := r.strat.TrailingStopLoss(strategy.StopContext{
			EntryPrice: pos.EntryPrice,
			Position:   pos,
			Bar:        bar,
			Lookback:   lookback,
			Parameters: r.strat.Parameters,
		})
		if long {
			candidate := bar.Close - distance
			if candidate > *pos.CurStopPrice {
				pos.CurStopPrice = types.Float64Ptr(candidate)
			}
		} else {
			candidate := bar.Close + distance
			if candidate < *pos.CurStopPrice {
				pos.CurStopPrice = types.Float64Ptr(candidate)
			}
		}
		if r.opts.RecordStopPrice {
			pos.StopPriceSeries = append(pos.StopPriceSeries, types.TimeValue{Time: bar.Time, Value: *pos.CurStopPrice})
		}
	}

	if pos.ProfitTarget != nil {
		if long && bar.High >= *pos.ProfitTarget {
			r.closePosition(bar.Time, *pos.ProfitTarget, types.ExitReasonProfitTarget)
			return
		}
		if !long && bar.Low <= *pos.ProfitTarget {
			r.closePosition(bar.Time, *pos.ProfitTarget, types.ExitReasonProfitTarget)
			return
		}
	}

	updatePosition(pos, bar)

	if r.opts.RecordRisk && pos.CurRiskPct != nil {
		pos.RiskSeries = append(pos.RiskSeries, types.TimeValue{Time: bar.Time, Value: *pos.CurRiskPct})
	}

	if r.strat.ExitRule != nil {
		r.strat.ExitRule(func() {
			if r.status != statusPosition {
				r.ruleErr = fmt.Errorf("backtest: exitPosition signaled while no position is open")
				return
			}
			r.status = statusExit
		}, strategy.ExitContext{
			Bar:        bar,
			Lookback:   lookback,
			EntryPrice: pos.EntryPrice,
			Position:   pos,
			Parameters: r.strat.Parameters,
		})
	}
}

// updatePosition refreshes the running metrics of an open position for
// the bar just observed.
func updatePosition(pos *types.Position, bar types.Bar) {
	if pos.Direction == types.TradeDirectionLong {
		pos.Profit = bar.Close - pos.EntryPrice
		pos.Growth = bar.Close / pos.EntryPrice
	} else {
		pos.Profit = pos.EntryPrice - bar.Close
		pos.Growth = pos.EntryPrice / bar.Close
	}
	pos.ProfitPct = pos.Profit / pos.EntryPrice * 100

	if pos.CurStopPrice != nil {
		unitRisk := bar.Close - *pos.CurStopPrice
		if pos.Direction == types.TradeDirectionShort {
			unitRisk = *pos.CurStopPrice - bar.Close
		}
		pos.CurRiskPct = types.Float64Ptr(unitRisk / bar.Close * 100)
		if pos.InitialUnitRisk != nil && *pos.InitialUnitRisk != 0 {
			pos.CurRMultiple = types.Float64Ptr(pos.Profit / *pos.InitialUnitRisk)
		}
	}

	pos.HoldingPeriod++
}

// closePosition converts the open position into a Trade, appends it and
// resets the engine state.
func (r *run) closePosition(exitTime time.Time, exitPrice float64, reason types.ExitReason) {
	pos := r.position

	profit := exitPrice - pos.EntryPrice
	growth := exitPrice / pos.EntryPrice
	if pos.Direction == types.TradeDirectionShort {
		profit = pos.EntryPrice - exitPrice
		growth = pos.EntryPrice / exitPrice
	}

	trade := types.Trade{
		Direction:       pos.Direction,
		EntryTime:       pos.EntryTime,
		EntryPrice:      pos.EntryPrice,
		ExitTime:        exitTime,
		ExitPrice:       exitPrice,
		Profit:          profit,
		ProfitPct:       profit / pos.EntryPrice * 100,
		Growth:          growth,
		RiskPct:         pos.InitialRiskPct,
		RiskSeries:      pos.RiskSeries,
		HoldingPeriod:   pos.HoldingPeriod,
		ExitReason:      reason,
		StopPrice:       pos.InitialStopPrice,
		StopPriceSeries: pos.StopPriceSeries,
		ProfitTarget:    pos.ProfitTarget,
	}
	if pos.InitialUnitRisk != nil && *pos.InitialUnitRisk != 0 {
		trade.RMultiple = types.Float64Ptr(profit / *pos.InitialUnitRisk)
	}

	r.trades = append(r.trades, trade)
	r.position = nil
	r.status = statusNone
}
