// Package strategy defines the strategy contract consumed by the
// backtesting engine, along with a registry of built-in strategies.
package strategy

import (
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// Params is the opaque parameter bucket of a strategy, a mapping from
// parameter name to value. Optimizers overlay coordinate vectors onto
// a clone of this map.
type Params map[string]float64

// Clone returns an independent copy of the parameter bucket.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns the named parameter, or fallback if absent.
func (p Params) Get(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// EnterOptions qualifies an entry signal. A zero EntryPrice requests an
// unconditional fill at the next bar's open; a non-zero EntryPrice gates
// the fill on that level being traded through on a subsequent bar.
type EnterOptions struct {
	Direction  types.TradeDirection
	EntryPrice float64
}

// EnterPosition signals entry intent. It is a one-shot intent signal:
// it records the request on the engine, the rule function returns
// normally, and the fill happens on a later bar.
type EnterPosition func(opts *EnterOptions)

// ExitPosition signals exit intent for the open position.
type ExitPosition func()

// EntryContext is passed to the entry rule.
type EntryContext struct {
	Bar        types.Bar
	Lookback   []types.Bar
	Parameters Params
}

// ExitContext is passed to the exit rule while a position is open.
type ExitContext struct {
	Bar        types.Bar
	Lookback   []types.Bar
	EntryPrice float64
	Position   *types.Position
	Parameters Params
}

// StopContext is passed to the stop-loss, trailing-stop and
// profit-target functions.
type StopContext struct {
	EntryPrice float64
	Position   *types.Position
	Bar        types.Bar
	Lookback   []types.Bar
	Parameters Params
}

// EntryRule decides whether to open a position. Invoked only while no
// position is open or pending.
type EntryRule func(enter EnterPosition, ctx EntryContext)

// ExitRule decides whether to close the open position.
type ExitRule func(exit ExitPosition, ctx ExitContext)

// StopFunc returns a non-negative price distance (not a price). The
// engine converts the distance to a stop or target price using the
// position direction.
type StopFunc func(ctx StopContext) float64

// PrepIndicators transforms the raw input series into the indicator
// series the rules evaluate against. It must produce one bar per input
// bar, preserving order and index.
type PrepIndicators func(params Params, input *series.Series) (*series.Series, error)

// Strategy is the full rule set for a single-instrument, single-position
// trading strategy.
type Strategy struct {
	Parameters       Params
	LookbackPeriod   int
	PrepIndicators   PrepIndicators
	EntryRule        EntryRule
	ExitRule         ExitRule
	StopLoss         StopFunc
	TrailingStopLoss StopFunc
	ProfitTarget     StopFunc
}

// Lookback returns the effective lookback period, defaulting to 1.
func (s *Strategy) Lookback() int {
	if s.LookbackPeriod < 1 {
		return 1
	}
	return s.LookbackPeriod
}

// Clone returns a copy of the strategy with an independent parameter
// bucket. Rule functions are shared; they must not close over mutable
// state.
func (s *Strategy) Clone() *Strategy {
	out := *s
	out.Parameters = s.Parameters.Clone()
	return &out
}

// WithParameters returns a clone with the given overrides applied on
// top of the existing parameters.
func (s *Strategy) WithParameters(overrides Params) *Strategy {
	out := s.Clone()
	if out.Parameters == nil {
		out.Parameters = make(Params, len(overrides))
	}
	for k, v := range overrides {
		out.Parameters[k] = v
	}
	return out
}
