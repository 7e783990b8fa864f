package strategy_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

func TestParamsClone(t *testing.T) {
	original := strategy.Params{"a": 1, "b": 2}
	clone := original.Clone()

	clone["a"] = 99
	if original["a"] != 1 {
		t.Error("mutating a clone must not affect the original")
	}
}

func TestStrategyCloneIndependentParameters(t *testing.T) {
	strat := &strategy.Strategy{
		Parameters: strategy.Params{"period": 10},
		EntryRule:  func(enter strategy.EnterPosition, ctx strategy.EntryContext) {},
	}

	tuned := strat.WithParameters(strategy.Params{"period": 20, "extra": 5})

	if strat.Parameters["period"] != 10 {
		t.Errorf("original period changed to %v", strat.Parameters["period"])
	}
	if tuned.Parameters["period"] != 20 {
		t.Errorf("tuned period: got %v, want 20", tuned.Parameters["period"])
	}
	if tuned.Parameters["extra"] != 5 {
		t.Errorf("tuned extra: got %v, want 5", tuned.Parameters["extra"])
	}
}

func TestLookbackDefault(t *testing.T) {
	strat := &strategy.Strategy{}
	if strat.Lookback() != 1 {
		t.Errorf("default lookback: got %d, want 1", strat.Lookback())
	}
	strat.LookbackPeriod = 30
	if strat.Lookback() != 30 {
		t.Errorf("lookback: got %d, want 30", strat.Lookback())
	}
}

func TestRegistryBuiltins(t *testing.T) {
	registry := strategy.NewRegistry(zap.NewNop())

	for _, name := range []string{"mean-reversion", "momentum", "breakout"} {
		strat, ok := registry.Create(name)
		if !ok {
			t.Errorf("builtin strategy %q not registered", name)
			continue
		}
		if strat.EntryRule == nil {
			t.Errorf("strategy %q has no entry rule", name)
		}
	}

	if _, ok := registry.Create("no-such-strategy"); ok {
		t.Error("unknown strategy must not resolve")
	}
}

func TestMeanReversionIndicators(t *testing.T) {
	strat := strategy.NewMeanReversion()
	strat.Parameters["smaPeriod"] = 3

	bars := make([]types.Bar, 10)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = types.Bar{
			Time:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Open:  price, High: price, Low: price, Close: price,
			Volume: 100,
		}
	}

	prepped, err := strat.PrepIndicators(strat.Parameters, series.FromBars(bars))
	if err != nil {
		t.Fatalf("prep indicators failed: %v", err)
	}

	if prepped.Count() != len(bars) {
		t.Fatalf("indicator series count: got %d, want %d", prepped.Count(), len(bars))
	}

	// First period-1 bars carry no moving average.
	for i := 0; i < 2; i++ {
		if _, ok := prepped.At(i).Values["sma"]; ok {
			t.Errorf("bar %d inside warm-up window should carry no sma", i)
		}
	}
	// With closes 100..109, the 3-bar average at index i is close-1.
	for i := 2; i < prepped.Count(); i++ {
		sma, ok := prepped.At(i).Values["sma"]
		if !ok {
			t.Fatalf("bar %d missing sma", i)
		}
		want := prepped.At(i).Close - 1
		if diff := sma - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("bar %d sma: got %v, want %v", i, sma, want)
		}
	}
}
