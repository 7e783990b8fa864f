// Package types provides shared type definitions for the backtesting engine.
package types

import (
	"time"
)

// TradeDirection represents the direction of a trade.
type TradeDirection string

const (
	TradeDirectionLong  TradeDirection = "long"
	TradeDirectionShort TradeDirection = "short"
)

// ExitReason identifies which mechanism closed a position.
type ExitReason string

const (
	ExitReasonStopLoss     ExitReason = "stop-loss"
	ExitReasonProfitTarget ExitReason = "profit-target"
	ExitReasonExitRule     ExitReason = "exit-rule"
	ExitReasonFinalize     ExitReason = "finalize"
)

// Bar is a single OHLCV sample. Indicator bars carry additional
// real-valued fields in Values, keyed by indicator name.
type Bar struct {
	Time   time.Time          `json:"time"`
	Open   float64            `json:"open"`
	High   float64            `json:"high"`
	Low    float64            `json:"low"`
	Close  float64            `json:"close"`
	Volume float64            `json:"volume"`
	Values map[string]float64 `json:"values,omitempty"`
}

// Value returns the named indicator field, or zero if absent.
func (b Bar) Value(name string) float64 {
	return b.Values[name]
}

// WithValue returns a copy of the bar with the named indicator field set.
func (b Bar) WithValue(name string, value float64) Bar {
	values := make(map[string]float64, len(b.Values)+1)
	for k, v := range b.Values {
		values[k] = v
	}
	values[name] = value
	b.Values = values
	return b
}

// TimeValue is a single point of a recorded per-bar series.
type TimeValue struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Position is an open trade that has not yet been closed. It exists only
// between the entry fill and the conversion into a Trade, and is mutated
// once per bar while open.
type Position struct {
	Direction  TradeDirection `json:"direction"`
	EntryTime  time.Time      `json:"entryTime"`
	EntryPrice float64        `json:"entryPrice"`

	// Running metrics, refreshed every bar the position is held.
	Profit        float64 `json:"profit"`
	ProfitPct     float64 `json:"profitPct"`
	Growth        float64 `json:"growth"`
	HoldingPeriod int     `json:"holdingPeriod"`

	// Risk state, present only when a stop was armed at entry.
	InitialStopPrice *float64 `json:"initialStopPrice,omitempty"`
	CurStopPrice     *float64 `json:"curStopPrice,omitempty"`
	InitialUnitRisk  *float64 `json:"initialUnitRisk,omitempty"`
	InitialRiskPct   *float64 `json:"initialRiskPct,omitempty"`
	CurRiskPct       *float64 `json:"curRiskPct,omitempty"`
	CurRMultiple     *float64 `json:"curRMultiple,omitempty"`

	ProfitTarget *float64 `json:"profitTarget,omitempty"`

	StopPriceSeries []TimeValue `json:"stopPriceSeries,omitempty"`
	RiskSeries      []TimeValue `json:"riskSeries,omitempty"`
}

// Trade is a finalized, closed position record. Field names are part of
// the contract for downstream analysis.
type Trade struct {
	Direction       TradeDirection `json:"direction"`
	EntryTime       time.Time      `json:"entryTime"`
	EntryPrice      float64        `json:"entryPrice"`
	ExitTime        time.Time      `json:"exitTime"`
	ExitPrice       float64        `json:"exitPrice"`
	Profit          float64        `json:"profit"`
	ProfitPct       float64        `json:"profitPct"`
	Growth          float64        `json:"growth"`
	RiskPct         *float64       `json:"riskPct,omitempty"`
	RMultiple       *float64       `json:"rmultiple,omitempty"`
	RiskSeries      []TimeValue    `json:"riskSeries,omitempty"`
	HoldingPeriod   int            `json:"holdingPeriod"`
	ExitReason      ExitReason     `json:"exitReason"`
	StopPrice       *float64       `json:"stopPrice,omitempty"`
	StopPriceSeries []TimeValue    `json:"stopPriceSeries,omitempty"`
	ProfitTarget    *float64       `json:"profitTarget,omitempty"`
}

// Float64Ptr returns a pointer to v. Convenience for optional fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
