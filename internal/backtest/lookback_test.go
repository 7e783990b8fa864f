package backtest

import (
	"testing"
	"time"

	"github.com/andywkff/grademark/pkg/types"
)

func lbBar(i int) types.Bar {
	return types.Bar{
		Time:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
		Close: float64(i),
	}
}

func TestLookbackFillsBeforeEvicting(t *testing.T) {
	buf := newLookbackBuffer(3)

	if buf.full() {
		t.Error("new buffer must not be full")
	}

	buf.push(lbBar(0))
	buf.push(lbBar(1))
	if buf.full() {
		t.Error("buffer with 2 of 3 bars must not be full")
	}

	buf.push(lbBar(2))
	if !buf.full() {
		t.Error("buffer with 3 of 3 bars must be full")
	}

	snapshot := buf.snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("snapshot length: got %d, want 3", len(snapshot))
	}
	for i, bar := range snapshot {
		if bar.Close != float64(i) {
			t.Errorf("snapshot[%d] close: got %v, want %v", i, bar.Close, float64(i))
		}
	}
}

func TestLookbackEvictsOldest(t *testing.T) {
	buf := newLookbackBuffer(3)
	for i := 0; i < 7; i++ {
		buf.push(lbBar(i))
	}

	snapshot := buf.snapshot()
	want := []float64{4, 5, 6}
	for i, bar := range snapshot {
		if bar.Close != want[i] {
			t.Errorf("snapshot[%d] close: got %v, want %v", i, bar.Close, want[i])
		}
	}
}

func TestLookbackSingleCapacity(t *testing.T) {
	buf := newLookbackBuffer(1)
	buf.push(lbBar(0))
	if !buf.full() {
		t.Error("capacity-1 buffer must be full after one push")
	}
	buf.push(lbBar(5))
	snapshot := buf.snapshot()
	if len(snapshot) != 1 || snapshot[0].Close != 5 {
		t.Errorf("snapshot: got %v, want single bar with close 5", snapshot)
	}
}
