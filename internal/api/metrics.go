package api

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks API-level counters exposed on /metrics.
type Metrics struct {
	BacktestsStarted   prometheus.Counter
	BacktestsCompleted prometheus.Counter
	BacktestsFailed    prometheus.Counter
	OptimizeRuns       *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	TradesEmitted      prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics returns the process-wide API metrics, registering them
// with the default registry on first use.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = newMetrics()
	})
	return sharedMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		BacktestsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grademark_backtests_started_total",
			Help: "Number of backtest runs started.",
		}),
		BacktestsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grademark_backtests_completed_total",
			Help: "Number of backtest runs completed successfully.",
		}),
		BacktestsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grademark_backtests_failed_total",
			Help: "Number of backtest runs that failed.",
		}),
		OptimizeRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grademark_optimize_runs_total",
			Help: "Number of optimization runs by algorithm.",
		}, []string{"type"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "grademark_run_duration_seconds",
			Help:    "Wall-clock duration of backtest runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		TradesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grademark_trades_emitted_total",
			Help: "Number of trades emitted across all backtest runs.",
		}),
	}
}
