package strategy

import (
	"sync"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// Registry manages named strategy factories.
type Registry struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	factories map[string]func() *Strategy
}

// NewRegistry creates a registry with the built-in strategies
// registered.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger:    logger,
		factories: make(map[string]func() *Strategy),
	}

	r.Register("mean-reversion", NewMeanReversion)
	r.Register("momentum", NewMomentum)
	r.Register("breakout", NewBreakout)

	return r
}

// Register registers a strategy factory under name.
func (r *Registry) Register(name string, factory func() *Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a fresh strategy by name.
func (r *Registry) Create(name string) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// List returns the registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// smaIndicators attaches a simple moving average of the close under the
// given field name. Bars inside the warm-up window carry no value.
func smaIndicators(field string, period int) func(input *series.Series) *series.Series {
	return func(input *series.Series) *series.Series {
		if input.Count() < period {
			return input
		}
		sma := talib.Sma(input.Closes(), period)
		return input.Map(func(i int, bar types.Bar) types.Bar {
			if i < period-1 {
				return bar
			}
			return bar.WithValue(field, sma[i])
		})
	}
}

// NewMeanReversion enters long when the close dips below its moving
// average and exits when it recovers above it.
func NewMeanReversion() *Strategy {
	return &Strategy{
		Parameters:     Params{"smaPeriod": 30},
		LookbackPeriod: 1,
		PrepIndicators: func(params Params, input *series.Series) (*series.Series, error) {
			period := int(params.Get("smaPeriod", 30))
			return smaIndicators("sma", period)(input), nil
		},
		EntryRule: func(enter EnterPosition, ctx EntryContext) {
			sma, ok := ctx.Bar.Values["sma"]
			if !ok {
				return
			}
			if ctx.Bar.Close < sma {
				enter(nil)
			}
		},
		ExitRule: func(exit ExitPosition, ctx ExitContext) {
			sma, ok := ctx.Bar.Values["sma"]
			if !ok {
				return
			}
			if ctx.Bar.Close > sma {
				exit()
			}
		},
	}
}

// NewMomentum enters long when the close has risen by more than
// threshold over the lookback window, with an ATR-scaled trailing stop.
func NewMomentum() *Strategy {
	return &Strategy{
		Parameters:     Params{"period": 14, "threshold": 0.02, "atrPeriod": 14, "atrMult": 3},
		LookbackPeriod: 15,
		PrepIndicators: func(params Params, input *series.Series) (*series.Series, error) {
			atrPeriod := int(params.Get("atrPeriod", 14))
			if input.Count() <= atrPeriod {
				return input, nil
			}
			atr := talib.Atr(input.Highs(), input.Lows(), input.Closes(), atrPeriod)
			return input.Map(func(i int, bar types.Bar) types.Bar {
				if i < atrPeriod {
					return bar
				}
				return bar.WithValue("atr", atr[i])
			}), nil
		},
		EntryRule: func(enter EnterPosition, ctx EntryContext) {
			period := int(ctx.Parameters.Get("period", 14))
			threshold := ctx.Parameters.Get("threshold", 0.02)
			if len(ctx.Lookback) <= period {
				return
			}
			past := ctx.Lookback[len(ctx.Lookback)-1-period].Close
			if past <= 0 {
				return
			}
			if ctx.Bar.Close/past-1 > threshold {
				enter(nil)
			}
		},
		TrailingStopLoss: func(ctx StopContext) float64 {
			atr, ok := ctx.Bar.Values["atr"]
			if !ok {
				return ctx.Bar.Close * 0.05
			}
			return atr * ctx.Parameters.Get("atrMult", 3)
		},
	}
}

// NewBreakout enters long on a close above the highest high of the
// channel, with a fixed-fraction stop loss and a measured profit target.
func NewBreakout() *Strategy {
	return &Strategy{
		Parameters:     Params{"channelPeriod": 20, "stopPct": 0.03, "targetPct": 0.08},
		LookbackPeriod: 21,
		EntryRule: func(enter EnterPosition, ctx EntryContext) {
			period := int(ctx.Parameters.Get("channelPeriod", 20))
			if len(ctx.Lookback) <= period {
				return
			}
			highest := 0.0
			for _, bar := range ctx.Lookback[len(ctx.Lookback)-1-period : len(ctx.Lookback)-1] {
				if bar.High > highest {
					highest = bar.High
				}
			}
			if ctx.Bar.Close > highest {
				enter(nil)
			}
		},
		StopLoss: func(ctx StopContext) float64 {
			return ctx.EntryPrice * ctx.Parameters.Get("stopPct", 0.03)
		},
		ProfitTarget: func(ctx StopContext) float64 {
			return ctx.EntryPrice * ctx.Parameters.Get("targetPct", 0.08)
		},
	}
}
