// Package store persists completed backtest runs and their trades to a
// sqlite database for later inspection through the API.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/andywkff/grademark/pkg/types"
)

// Run is a persisted backtest run record.
type Run struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Strategy    string     `json:"strategy"`
	Status      string     `json:"status"`
	NumTrades   int        `json:"numTrades"`
	TotalProfit float64    `json:"totalProfit"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// RunStore manages the backtest_runs and backtest_trades tables.
type RunStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewRunStore opens (or creates) the runs database under root.
func NewRunStore(root string) (*RunStore, error) {
	if root == "" {
		return nil, fmt.Errorf("store: results root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			num_trades INTEGER NOT NULL DEFAULT 0,
			total_profit REAL NOT NULL DEFAULT 0,
			message TEXT,
			created_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			direction TEXT NOT NULL,
			entry_time INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_time INTEGER NOT NULL,
			exit_price REAL NOT NULL,
			profit REAL NOT NULL,
			profit_pct REAL NOT NULL,
			growth REAL NOT NULL,
			holding_period INTEGER NOT NULL,
			exit_reason TEXT NOT NULL,
			detail_json TEXT,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: schema migration failed: %w", err)
		}
	}
	return nil
}

// CreateRun inserts a new run in the given status.
func (s *RunStore) CreateRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO backtest_runs (id, symbol, strategy, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Strategy, run.Status, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun marks a run finished and stores its trades.
func (s *RunStore) CompleteRun(runID string, trades []types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	totalProfit := 0.0
	for _, trade := range trades {
		totalProfit += trade.Profit
	}

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(
		`UPDATE backtest_runs SET status = 'completed', num_trades = ?, total_profit = ?, completed_at = ? WHERE id = ?`,
		len(trades), totalProfit, now, runID,
	); err != nil {
		return fmt.Errorf("store: failed to complete run %s: %w", runID, err)
	}

	for seq, trade := range trades {
		detail, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("store: failed to encode trade %d of run %s: %w", seq, runID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO backtest_trades
				(run_id, seq, direction, entry_time, entry_price, exit_time, exit_price,
				 profit, profit_pct, growth, holding_period, exit_reason, detail_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, seq, string(trade.Direction),
			trade.EntryTime.UnixMilli(), trade.EntryPrice,
			trade.ExitTime.UnixMilli(), trade.ExitPrice,
			trade.Profit, trade.ProfitPct, trade.Growth,
			trade.HoldingPeriod, string(trade.ExitReason), string(detail),
		); err != nil {
			return fmt.Errorf("store: failed to insert trade %d of run %s: %w", seq, runID, err)
		}
	}

	return tx.Commit()
}

// FailRun marks a run failed with a message.
func (s *RunStore) FailRun(runID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE backtest_runs SET status = 'failed', message = ?, completed_at = ? WHERE id = ?`,
		message, time.Now().UnixMilli(), runID,
	)
	return err
}

// GetRun fetches one run by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, symbol, strategy, status, num_trades, total_profit, COALESCE(message, ''), created_at, completed_at
		 FROM backtest_runs WHERE id = ?`, runID,
	)
	return scanRun(row)
}

// ListRuns returns runs ordered most recent first.
func (s *RunStore) ListRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, symbol, strategy, status, num_trades, total_profit, COALESCE(message, ''), created_at, completed_at
		 FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetTrades returns the trades of a run in entry order.
func (s *RunStore) GetTrades(runID string) ([]types.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT detail_json FROM backtest_trades WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []types.Trade
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, err
		}
		var trade types.Trade
		if err := json.Unmarshal([]byte(detail), &trade); err != nil {
			return nil, fmt.Errorf("store: failed to decode trade of run %s: %w", runID, err)
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Symbol, &run.Strategy, &run.Status,
		&run.NumTrades, &run.TotalProfit, &run.Message, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: run not found")
		}
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAt)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		run.CompletedAt = &t
	}
	return &run, nil
}
