// Package types provides configuration types for the backtesting engine.
package types

import (
	"time"
)

// BacktestOptions controls optional recording during a backtest run.
type BacktestOptions struct {
	RecordStopPrice bool `json:"recordStopPrice,omitempty"`
	RecordRisk      bool `json:"recordRisk,omitempty"`
}

// SearchDirection selects whether the optimizer maximizes or minimizes
// the objective.
type SearchDirection string

const (
	SearchDirectionMax SearchDirection = "max"
	SearchDirectionMin SearchDirection = "min"
)

// OptimizationType selects the search algorithm.
type OptimizationType string

const (
	OptimizationTypeGrid      OptimizationType = "grid"
	OptimizationTypeHillClimb OptimizationType = "hill-climb"
)

// OptimizeOptions configures an optimization run.
type OptimizeOptions struct {
	SearchDirection   SearchDirection  `json:"searchDirection,omitempty"`
	OptimizationType  OptimizationType `json:"optimizationType,omitempty"`
	RecordAllResults  bool             `json:"recordAllResults,omitempty"`
	RecordDuration    bool             `json:"recordDuration,omitempty"`
	RandomSeed        int64            `json:"randomSeed,omitempty"`
	NumStartingPoints int              `json:"numStartingPoints,omitempty"`
}

// ServerConfig represents API server configuration.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	DataDir        string        `json:"dataDir"`
	ResultsDir     string        `json:"resultsDir"`
	EnableMetrics  bool          `json:"enableMetrics"`
	MaxConnections int           `json:"maxConnections"`
}
