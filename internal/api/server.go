// Package api provides the HTTP and WebSocket server exposing the
// backtesting, optimization and walk-forward services.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/analysis"
	"github.com/andywkff/grademark/internal/backtest"
	"github.com/andywkff/grademark/internal/data"
	"github.com/andywkff/grademark/internal/montecarlo"
	"github.com/andywkff/grademark/internal/optimize"
	"github.com/andywkff/grademark/internal/store"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/internal/walkforward"
	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	dataStore  *data.Store
	runStore   *store.RunStore
	registry   *strategy.Registry
	engine     *backtest.Engine
	optimizer  *optimize.Optimizer
	harness    *walkforward.Harness
	hub        *Hub
	metrics    *Metrics
}

// NewServer creates the API server and wires its routes.
func NewServer(
	logger *zap.Logger,
	config *types.ServerConfig,
	dataStore *data.Store,
	runStore *store.RunStore,
	registry *strategy.Registry,
) *Server {
	s := &Server{
		logger:    logger,
		config:    config,
		router:    mux.NewRouter(),
		dataStore: dataStore,
		runStore:  runStore,
		registry:  registry,
		engine:    backtest.NewEngine(logger),
		optimizer: optimize.NewOptimizer(logger),
		harness:   walkforward.NewHarness(logger),
		hub:       NewHub(logger),
		metrics:   NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/strategies", s.handleListStrategies).Methods("GET")

	s.router.HandleFunc("/api/v1/data/symbols", s.handleGetSymbols).Methods("GET")
	s.router.HandleFunc("/api/v1/data/history/{symbol}", s.handleGetHistory).Methods("GET")

	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetRun).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/trades", s.handleGetRunTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/equity", s.handleGetRunEquity).Methods("GET")

	s.router.HandleFunc("/api/v1/optimize", s.handleOptimize).Methods("POST")
	s.router.HandleFunc("/api/v1/walkforward", s.handleWalkForward).Methods("POST")
	s.router.HandleFunc("/api/v1/montecarlo", s.handleMonteCarlo).Methods("POST")

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start runs the hub and serves HTTP until shutdown.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]interface{}{"strategies": names})
}

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": s.dataStore.Symbols()})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	bars, err := s.dataStore.LoadSeries(symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"bars":   bars.Bars(),
		"count":  bars.Count(),
	})
}

// BacktestRequest is the payload of POST /api/v1/backtest/run.
type BacktestRequest struct {
	Symbol     string                `json:"symbol"`
	Strategy   string                `json:"strategy"`
	Parameters strategy.Params       `json:"parameters,omitempty"`
	Options    types.BacktestOptions `json:"options,omitempty"`
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	strat, input, err := s.resolve(req.Strategy, req.Symbol, req.Parameters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	run := store.Run{
		ID:        uuid.New().String(),
		Symbol:    req.Symbol,
		Strategy:  req.Strategy,
		Status:    "running",
		CreatedAt: time.Now(),
	}
	if err := s.runStore.CreateRun(run); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.metrics.BacktestsStarted.Inc()
	s.hub.Publish(MsgTypeRunStarted, run)

	go s.executeRun(run, strat, input, req.Options)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"id": run.ID, "status": run.Status})
}

// executeRun performs a backtest in the background and records the
// outcome.
func (s *Server) executeRun(run store.Run, strat *strategy.Strategy, input *series.Series, opts types.BacktestOptions) {
	started := time.Now()

	trades, err := s.engine.Run(strat, input, opts)
	s.metrics.RunDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		s.metrics.BacktestsFailed.Inc()
		if storeErr := s.runStore.FailRun(run.ID, err.Error()); storeErr != nil {
			s.logger.Error("failed to record failed run", zap.String("id", run.ID), zap.Error(storeErr))
		}
		s.hub.Publish(MsgTypeRunFailed, map[string]string{"id": run.ID, "error": err.Error()})
		s.logger.Warn("backtest run failed", zap.String("id", run.ID), zap.Error(err))
		return
	}

	if err := s.runStore.CompleteRun(run.ID, trades); err != nil {
		s.logger.Error("failed to record completed run", zap.String("id", run.ID), zap.Error(err))
		return
	}

	s.metrics.BacktestsCompleted.Inc()
	s.metrics.TradesEmitted.Add(float64(len(trades)))
	s.hub.Publish(MsgTypeRunCompleted, map[string]interface{}{
		"id":        run.ID,
		"numTrades": len(trades),
	})

	s.logger.Info("backtest run completed",
		zap.String("id", run.ID),
		zap.String("symbol", run.Symbol),
		zap.Int("trades", len(trades)),
		zap.Duration("duration", time.Since(started)),
	)
}

// resolve instantiates a named strategy with parameter overrides and
// loads the symbol's bar series.
func (s *Server) resolve(strategyName, symbol string, overrides strategy.Params) (*strategy.Strategy, *series.Series, error) {
	if strategyName == "" {
		return nil, nil, fmt.Errorf("strategy name is required")
	}
	if symbol == "" {
		return nil, nil, fmt.Errorf("symbol is required")
	}

	strat, ok := s.registry.Create(strategyName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown strategy %q", strategyName)
	}
	if len(overrides) > 0 {
		strat = strat.WithParameters(overrides)
	}

	input, err := s.dataStore.LoadSeries(symbol)
	if err != nil {
		return nil, nil, err
	}

	return strat, input, nil
}

// objectiveByName maps an objective name from the request to its
// reduction.
func objectiveByName(name string) (optimize.ObjectiveFn, error) {
	switch name {
	case "", "totalProfit":
		return func(trades []types.Trade) float64 {
			total := 0.0
			for _, trade := range trades {
				total += trade.Profit
			}
			return total
		}, nil
	case "growth":
		return func(trades []types.Trade) float64 {
			growth := 1.0
			for _, trade := range trades {
				growth *= trade.Growth
			}
			return growth
		}, nil
	case "numTrades":
		return func(trades []types.Trade) float64 {
			return float64(len(trades))
		}, nil
	default:
		return nil, fmt.Errorf("unknown objective %q", name)
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runStore.ListRuns(0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runStore.GetRun(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRunTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.runStore.GetTrades(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":  trades,
		"summary": analysis.ComputeSummary(trades),
	})
}

func (s *Server) handleGetRunEquity(w http.ResponseWriter, r *http.Request) {
	trades, err := s.runStore.GetTrades(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	capital := 10000.0
	if raw := r.URL.Query().Get("capital"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%f", &capital); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid capital %q", raw))
			return
		}
	}

	equity, err := analysis.ComputeEquityCurve(capital, trades)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	drawdown, err := analysis.ComputeDrawdown(capital, trades)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"equity":   equity,
		"drawdown": drawdown,
	})
}

// OptimizeRequest is the payload of POST /api/v1/optimize.
type OptimizeRequest struct {
	Symbol     string                   `json:"symbol"`
	Strategy   string                   `json:"strategy"`
	Parameters []optimize.ParameterDef  `json:"parameters"`
	Objective  string                   `json:"objective"`
	Options    types.OptimizeOptions    `json:"options,omitempty"`
	Overrides  strategy.Params          `json:"overrides,omitempty"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	strat, input, err := s.resolve(req.Strategy, req.Symbol, req.Overrides)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	objective, err := objectiveByName(req.Objective)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.optimizer.Optimize(strat, req.Parameters, objective, input, req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	optType := req.Options.OptimizationType
	if optType == "" {
		optType = types.OptimizationTypeGrid
	}
	s.metrics.OptimizeRuns.WithLabelValues(string(optType)).Inc()

	writeJSON(w, http.StatusOK, result)
}

// WalkForwardRequest is the payload of POST /api/v1/walkforward.
type WalkForwardRequest struct {
	Symbol        string                  `json:"symbol"`
	Strategy      string                  `json:"strategy"`
	Parameters    []optimize.ParameterDef `json:"parameters"`
	Objective     string                  `json:"objective"`
	InSampleSize  int                     `json:"inSampleSize"`
	OutSampleSize int                     `json:"outSampleSize"`
	Options       types.OptimizeOptions   `json:"options,omitempty"`
	Overrides     strategy.Params         `json:"overrides,omitempty"`
}

func (s *Server) handleWalkForward(w http.ResponseWriter, r *http.Request) {
	var req WalkForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	strat, input, err := s.resolve(req.Strategy, req.Symbol, req.Overrides)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	objective, err := objectiveByName(req.Objective)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.harness.Run(strat, req.Parameters, objective, input,
		req.InSampleSize, req.OutSampleSize, req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":  result.Trades,
		"summary": analysis.ComputeSummary(result.Trades),
	})
}

// MonteCarloRequest is the payload of POST /api/v1/montecarlo.
type MonteCarloRequest struct {
	RunID         string `json:"runId"`
	NumIterations int    `json:"numIterations"`
	NumSamples    int    `json:"numSamples"`
	RandomSeed    int64  `json:"randomSeed,omitempty"`
}

func (s *Server) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	trades, err := s.runStore.GetTrades(req.RunID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	samples, err := montecarlo.Resample(trades, req.NumIterations, req.NumSamples,
		montecarlo.Options{RandomSeed: req.RandomSeed})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"iterations": len(samples),
		"samples":    samples,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), s.hub, conn)
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
