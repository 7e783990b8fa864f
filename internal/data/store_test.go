package data_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andywkff/grademark/internal/data"
	"github.com/andywkff/grademark/pkg/types"
)

func testBars() []types.Bar {
	return []types.Bar{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101, Volume: 5000},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 101, High: 104, Low: 100, Close: 103, Volume: 6200},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 103, High: 103, Low: 98, Close: 99, Volume: 7100},
	}
}

func TestSaveAndLoadJSON(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	bars := testBars()
	if err := store.SaveBars("BTCUSD", bars); err != nil {
		t.Fatalf("failed to save bars: %v", err)
	}

	loaded, err := store.LoadSeries("BTCUSD")
	if err != nil {
		t.Fatalf("failed to load series: %v", err)
	}

	if loaded.Count() != len(bars) {
		t.Fatalf("loaded count: got %d, want %d", loaded.Count(), len(bars))
	}
	for i := 0; i < loaded.Count(); i++ {
		if loaded.At(i).Close != bars[i].Close {
			t.Errorf("bar %d close: got %v, want %v", i, loaded.At(i).Close, bars[i].Close)
		}
		if !loaded.At(i).Time.Equal(bars[i].Time) {
			t.Errorf("bar %d time: got %v, want %v", i, loaded.At(i).Time, bars[i].Time)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	csv := "time,open,high,low,close,volume\n" +
		"2024-01-01T00:00:00Z,100,102,99,101,5000\n" +
		"1704153600,101,104,100,103,6200\n"
	if err := os.WriteFile(filepath.Join(dir, "ETHUSD.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	store, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	loaded, err := store.LoadSeries("ETHUSD")
	if err != nil {
		t.Fatalf("failed to load series: %v", err)
	}

	if loaded.Count() != 2 {
		t.Fatalf("loaded count: got %d, want 2", loaded.Count())
	}
	if loaded.At(0).Close != 101 {
		t.Errorf("bar 0 close: got %v, want 101", loaded.At(0).Close)
	}
	// Epoch timestamps parse as UTC.
	want := time.Unix(1704153600, 0).UTC()
	if !loaded.At(1).Time.Equal(want) {
		t.Errorf("bar 1 time: got %v, want %v", loaded.At(1).Time, want)
	}
}

func TestSymbols(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.SaveBars("ZZZ", testBars()); err != nil {
		t.Fatalf("failed to save bars: %v", err)
	}
	if err := store.SaveBars("AAA", testBars()); err != nil {
		t.Fatalf("failed to save bars: %v", err)
	}

	symbols := store.Symbols()
	if len(symbols) != 2 || symbols[0] != "AAA" || symbols[1] != "ZZZ" {
		t.Errorf("symbols: got %v, want [AAA ZZZ]", symbols)
	}
}

func TestLoadMissingSymbol(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.LoadSeries("MISSING"); err == nil {
		t.Error("expected error for missing symbol")
	}
}

func TestMalformedCSV(t *testing.T) {
	dir := t.TempDir()
	csv := "time,open,high,low,close,volume\nnot-a-time,1,2,3,4,5\n"
	if err := os.WriteFile(filepath.Join(dir, "BAD.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	store, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.LoadSeries("BAD"); err == nil {
		t.Error("expected error for malformed CSV")
	}
}
