// Package analysis provides pure post-processing reductions over a
// completed trade list: equity curve, drawdown, and summary statistics.
package analysis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andywkff/grademark/pkg/types"
)

// ComputeEquityCurve compounds startingCapital through every trade's
// growth. The curve has one more point than there are trades; point 0
// is the starting capital.
func ComputeEquityCurve(startingCapital float64, trades []types.Trade) ([]float64, error) {
	if startingCapital <= 0 {
		return nil, fmt.Errorf("analysis: starting capital must be positive, got %v", startingCapital)
	}

	curve := make([]float64, 0, len(trades)+1)
	equity := startingCapital
	curve = append(curve, equity)
	for _, trade := range trades {
		equity *= trade.Growth
		curve = append(curve, equity)
	}
	return curve, nil
}

// ComputeDrawdown returns, for each point of the equity curve, the gap
// between equity and the running peak. Every value is zero or negative.
func ComputeDrawdown(startingCapital float64, trades []types.Trade) ([]float64, error) {
	if startingCapital <= 0 {
		return nil, fmt.Errorf("analysis: starting capital must be positive, got %v", startingCapital)
	}

	drawdown := make([]float64, 0, len(trades)+1)
	equity := startingCapital
	peak := equity
	drawdown = append(drawdown, 0)
	for _, trade := range trades {
		equity *= trade.Growth
		if equity > peak {
			peak = equity
		}
		drawdown = append(drawdown, equity-peak)
	}
	return drawdown, nil
}

// Summary aggregates a trade list into headline statistics. Ratio
// arithmetic is carried in decimals so serialized summaries don't pick
// up float artifacts.
type Summary struct {
	TotalTrades      int             `json:"totalTrades"`
	WinningTrades    int             `json:"winningTrades"`
	LosingTrades     int             `json:"losingTrades"`
	WinRate          decimal.Decimal `json:"winRate"`
	ProfitFactor     decimal.Decimal `json:"profitFactor"`
	Expectancy       decimal.Decimal `json:"expectancy"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
	LargestWin       decimal.Decimal `json:"largestWin"`
	LargestLoss      decimal.Decimal `json:"largestLoss"`
	AvgHoldingPeriod decimal.Decimal `json:"avgHoldingPeriod"`
	FirstEntryTime   time.Time       `json:"firstEntryTime,omitempty"`
	LastExitTime     time.Time       `json:"lastExitTime,omitempty"`
}

// ComputeSummary reduces the trade list to a Summary. An empty list
// yields a zero summary.
func ComputeSummary(trades []types.Trade) *Summary {
	summary := &Summary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return summary
	}

	var totalWins, totalLosses, totalProfit decimal.Decimal
	var totalHolding int64

	for _, trade := range trades {
		profit := decimal.NewFromFloat(trade.Profit)
		totalProfit = totalProfit.Add(profit)
		totalHolding += int64(trade.HoldingPeriod)

		if trade.Profit > 0 {
			summary.WinningTrades++
			totalWins = totalWins.Add(profit)
			if profit.GreaterThan(summary.LargestWin) {
				summary.LargestWin = profit
			}
		} else if trade.Profit < 0 {
			summary.LosingTrades++
			loss := profit.Abs()
			totalLosses = totalLosses.Add(loss)
			if loss.GreaterThan(summary.LargestLoss) {
				summary.LargestLoss = loss
			}
		}
	}

	total := decimal.NewFromInt(int64(len(trades)))
	summary.TotalProfit = totalProfit
	summary.WinRate = decimal.NewFromInt(int64(summary.WinningTrades)).Div(total)
	summary.AvgHoldingPeriod = decimal.NewFromInt(totalHolding).Div(total)

	if !totalLosses.IsZero() {
		summary.ProfitFactor = totalWins.Div(totalLosses)
	}

	if summary.WinningTrades > 0 || summary.LosingTrades > 0 {
		var avgWin, avgLoss decimal.Decimal
		if summary.WinningTrades > 0 {
			avgWin = totalWins.Div(decimal.NewFromInt(int64(summary.WinningTrades)))
		}
		if summary.LosingTrades > 0 {
			avgLoss = totalLosses.Div(decimal.NewFromInt(int64(summary.LosingTrades)))
		}
		winPct := summary.WinRate
		lossPct := decimal.NewFromInt(1).Sub(winPct)
		summary.Expectancy = winPct.Mul(avgWin).Sub(lossPct.Mul(avgLoss))
	}

	summary.FirstEntryTime = trades[0].EntryTime
	summary.LastExitTime = trades[len(trades)-1].ExitTime

	return summary
}
