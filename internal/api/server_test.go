package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/api"
	"github.com/andywkff/grademark/internal/data"
	"github.com/andywkff/grademark/internal/optimize"
	"github.com/andywkff/grademark/internal/store"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/types"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	logger := zap.NewNop()

	dataStore, err := data.NewStore(logger, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create data store: %v", err)
	}

	bars := make([]types.Bar, 40)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = types.Bar{
			Time:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:  price, High: price + 2, Low: price - 2, Close: price,
			Volume: 1000,
		}
	}
	if err := dataStore.SaveBars("TEST", bars); err != nil {
		t.Fatalf("failed to seed bar data: %v", err)
	}

	runStore, err := store.NewRunStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create run store: %v", err)
	}
	t.Cleanup(func() { runStore.Close() })

	config := &types.ServerConfig{
		Host:          "localhost",
		Port:          0,
		WebSocketPath: "/ws",
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		EnableMetrics: false,
	}

	return api.NewServer(logger, config, dataStore, runStore, strategy.NewRegistry(logger))
}

func doRequest(t *testing.T, server *api.Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, server, http.MethodGet, "/api/v1/health", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload["status"] != "healthy" {
		t.Errorf("status field: got %v, want healthy", payload["status"])
	}
}

func TestListStrategiesEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, server, http.MethodGet, "/api/v1/strategies", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.Code)
	}

	var payload struct {
		Strategies []string `json:"strategies"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(payload.Strategies) < 3 {
		t.Errorf("strategies: got %v, want at least the 3 builtins", payload.Strategies)
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, server, http.MethodGet, "/api/v1/data/symbols", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.Code)
	}

	var payload struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(payload.Symbols) != 1 || payload.Symbols[0] != "TEST" {
		t.Errorf("symbols: got %v, want [TEST]", payload.Symbols)
	}
}

func TestOptimizeEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := api.OptimizeRequest{
		Symbol:   "TEST",
		Strategy: "mean-reversion",
		Parameters: []optimize.ParameterDef{
			{Name: "smaPeriod", StartingValue: 3, EndingValue: 9, StepSize: 3},
		},
		Objective: "numTrades",
	}

	resp := doRequest(t, server, http.MethodPost, "/api/v1/optimize", req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", resp.Code, resp.Body.String())
	}

	var result optimize.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.BestParameterValues == nil {
		t.Error("expected best parameter values in response")
	}
}

func TestOptimizeUnknownStrategy(t *testing.T) {
	server := newTestServer(t)

	req := api.OptimizeRequest{
		Symbol:   "TEST",
		Strategy: "no-such-strategy",
		Parameters: []optimize.ParameterDef{
			{Name: "x", StartingValue: 1, EndingValue: 2, StepSize: 1},
		},
	}

	resp := doRequest(t, server, http.MethodPost, "/api/v1/optimize", req)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.Code)
	}
}

func TestBacktestRunEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := api.BacktestRequest{
		Symbol:   "TEST",
		Strategy: "mean-reversion",
	}

	resp := doRequest(t, server, http.MethodPost, "/api/v1/backtest/run", req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.ID == "" {
		t.Fatal("expected run id in response")
	}

	// The run executes in the background; poll for completion.
	deadline := time.Now().Add(5 * time.Second)
	for {
		getResp := doRequest(t, server, http.MethodGet, "/api/v1/backtest/"+payload.ID, nil)
		if getResp.Code != http.StatusOK {
			t.Fatalf("get run status: got %d: %s", getResp.Code, getResp.Body.String())
		}
		var run store.Run
		if err := json.Unmarshal(getResp.Body.Bytes(), &run); err != nil {
			t.Fatalf("invalid run body: %v", err)
		}
		if run.Status == "completed" {
			break
		}
		if run.Status == "failed" {
			t.Fatalf("run failed: %s", run.Message)
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete in time, status %q", run.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBacktestRunMissingSymbol(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, server, http.MethodPost, "/api/v1/backtest/run", api.BacktestRequest{Strategy: "momentum"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.Code)
	}
}
