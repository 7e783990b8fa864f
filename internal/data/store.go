// Package data provides the historical bar store backing the API
// server. Bars live on disk as JSON or CSV files, one file per symbol,
// and are cached in memory after the first load.
package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

// Store provides access to historical bar data.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string
	cache   map[string][]types.Bar
}

// NewStore creates a store rooted at dataDir, creating the directory if
// needed.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data: failed to create data directory: %w", err)
	}
	return &Store{
		logger:  logger,
		dataDir: dataDir,
		cache:   make(map[string][]types.Bar),
	}, nil
}

// Symbols lists the symbols with a data file on disk.
func (s *Store) Symbols() []string {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		s.logger.Warn("failed to list data directory", zap.Error(err))
		return nil
	}

	var symbols []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext == ".json" || ext == ".csv" {
			symbols = append(symbols, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(symbols)
	return symbols
}

// LoadSeries returns the bar series for a symbol, reading it from disk
// on first access.
func (s *Store) LoadSeries(symbol string) (*series.Series, error) {
	s.mu.RLock()
	bars, ok := s.cache[symbol]
	s.mu.RUnlock()
	if ok {
		return series.FromBars(bars), nil
	}

	bars, err := s.loadBars(symbol)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[symbol] = bars
	s.mu.Unlock()

	s.logger.Info("loaded bar data",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)

	return series.FromBars(bars), nil
}

// SaveBars writes a symbol's bars to disk as JSON and refreshes the
// cache.
func (s *Store) SaveBars(symbol string, bars []types.Bar) error {
	path := filepath.Join(s.dataDir, symbol+".json")
	payload, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("data: failed to encode bars for %s: %w", symbol, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("data: failed to write bars for %s: %w", symbol, err)
	}

	s.mu.Lock()
	s.cache[symbol] = bars
	s.mu.Unlock()
	return nil
}

func (s *Store) loadBars(symbol string) ([]types.Bar, error) {
	jsonPath := filepath.Join(s.dataDir, symbol+".json")
	if _, err := os.Stat(jsonPath); err == nil {
		return s.loadJSON(jsonPath)
	}

	csvPath := filepath.Join(s.dataDir, symbol+".csv")
	if _, err := os.Stat(csvPath); err == nil {
		return s.loadCSV(csvPath)
	}

	return nil, fmt.Errorf("data: no data file for symbol %q in %s", symbol, s.dataDir)
}

func (s *Store) loadJSON(path string) ([]types.Bar, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("data: failed to read %s: %w", path, err)
	}
	var bars []types.Bar
	if err := json.Unmarshal(payload, &bars); err != nil {
		return nil, fmt.Errorf("data: failed to decode %s: %w", path, err)
	}
	return bars, nil
}

// loadCSV reads bars from a header-first CSV file with columns
// time,open,high,low,close,volume. Time is RFC3339 or a unix epoch in
// seconds.
func (s *Store) loadCSV(path string) ([]types.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("data: failed to parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("data: %s contains no bar rows", path)
	}

	bars := make([]types.Bar, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) < 6 {
			return nil, fmt.Errorf("data: %s row %d has %d columns, want 6", path, i+2, len(record))
		}
		bar, err := parseCSVRow(record)
		if err != nil {
			return nil, fmt.Errorf("data: %s row %d: %w", path, i+2, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCSVRow(record []string) (types.Bar, error) {
	barTime, err := parseTime(record[0])
	if err != nil {
		return types.Bar{}, err
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		value, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("invalid numeric field %q: %w", record[i+1], err)
		}
		fields[i] = value
	}

	return types.Bar{
		Time:   barTime,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time value %q", raw)
}
