package walkforward_test

import (
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/optimize"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/internal/walkforward"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

func makeBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		bars[i] = types.Bar{
			Time:  time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
			Open:  price, High: price + 1, Low: price - 1, Close: price,
			Volume: 500,
		}
	}
	return bars
}

func holdToEnd() *strategy.Strategy {
	return &strategy.Strategy{
		Parameters: strategy.Params{"x": 1},
		EntryRule: func(enter strategy.EnterPosition, ctx strategy.EntryContext) {
			enter(nil)
		},
	}
}

func totalProfit(trades []types.Trade) float64 {
	total := 0.0
	for _, trade := range trades {
		total += trade.Profit
	}
	return total
}

func defs() []optimize.ParameterDef {
	return []optimize.ParameterDef{
		{Name: "x", StartingValue: 1, EndingValue: 3, StepSize: 1},
	}
}

func TestWalkForwardWindows(t *testing.T) {
	harness := walkforward.NewHarness(zap.NewNop())
	input := series.FromBars(makeBars(12))

	// Windows advance by the out-of-sample size: offsets 0, 2, 4 and 6
	// fit a full 4+2 window; offset 8 leaves no out-of-sample bars.
	result, err := harness.Run(holdToEnd(), defs(), totalProfit, input, 4, 2, types.OptimizeOptions{})
	if err != nil {
		t.Fatalf("walk-forward failed: %v", err)
	}

	// Each 2-bar out-of-sample window yields exactly one finalized
	// trade: signal on the first bar, fill and finalize on the second.
	if len(result.Trades) != 4 {
		t.Fatalf("expected 4 out-of-sample trades, got %d", len(result.Trades))
	}
	for i, trade := range result.Trades {
		if trade.ExitReason != types.ExitReasonFinalize {
			t.Errorf("trade %d exit reason: got %q, want %q", i, trade.ExitReason, types.ExitReasonFinalize)
		}
	}

	// Out-of-sample trades are concatenated in window order.
	for i := 1; i < len(result.Trades); i++ {
		if !result.Trades[i].EntryTime.After(result.Trades[i-1].EntryTime) {
			t.Errorf("trade %d entry %v not after trade %d entry %v",
				i, result.Trades[i].EntryTime, i-1, result.Trades[i-1].EntryTime)
		}
	}
}

func TestWalkForwardTerminatesWhenOutSampleShort(t *testing.T) {
	harness := walkforward.NewHarness(zap.NewNop())

	// 7 bars fit exactly one 4+3 window and nothing more.
	result, err := harness.Run(holdToEnd(), defs(), totalProfit, series.FromBars(makeBars(7)), 4, 3, types.OptimizeOptions{})
	if err != nil {
		t.Fatalf("walk-forward failed: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Errorf("expected 1 trade from a single window, got %d", len(result.Trades))
	}

	// 6 bars cannot fit any window.
	result, err = harness.Run(holdToEnd(), defs(), totalProfit, series.FromBars(makeBars(6)), 4, 3, types.OptimizeOptions{})
	if err != nil {
		t.Fatalf("walk-forward failed: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades when no window fits, got %d", len(result.Trades))
	}
}

func TestWalkForwardSeedDeterminism(t *testing.T) {
	harness := walkforward.NewHarness(zap.NewNop())
	input := series.FromBars(makeBars(20))

	run := func() *walkforward.Result {
		result, err := harness.Run(holdToEnd(), defs(), totalProfit, input, 6, 3,
			types.OptimizeOptions{
				OptimizationType: types.OptimizationTypeHillClimb,
				RandomSeed:       42,
			})
		if err != nil {
			t.Fatalf("walk-forward failed: %v", err)
		}
		return result
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("two walk-forward runs with the same seed produced different results")
	}
}

func TestWalkForwardValidation(t *testing.T) {
	harness := walkforward.NewHarness(zap.NewNop())
	input := series.FromBars(makeBars(10))

	if _, err := harness.Run(nil, defs(), totalProfit, input, 4, 2, types.OptimizeOptions{}); err == nil {
		t.Error("expected error for nil strategy")
	}
	if _, err := harness.Run(holdToEnd(), defs(), nil, input, 4, 2, types.OptimizeOptions{}); err == nil {
		t.Error("expected error for nil objective")
	}
	if _, err := harness.Run(holdToEnd(), defs(), totalProfit, series.FromBars(nil), 4, 2, types.OptimizeOptions{}); err == nil {
		t.Error("expected error for empty series")
	}
	if _, err := harness.Run(holdToEnd(), defs(), totalProfit, input, 0, 2, types.OptimizeOptions{}); err == nil {
		t.Error("expected error for non-positive in-sample size")
	}
	if _, err := harness.Run(holdToEnd(), defs(), totalProfit, input, 4, -1, types.OptimizeOptions{}); err == nil {
		t.Error("expected error for non-positive out-of-sample size")
	}
}
