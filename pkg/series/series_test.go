package series_test

import (
	"testing"
	"time"

	"github.com/andywkff/grademark/pkg/series"
	"github.com/andywkff/grademark/pkg/types"
)

func makeBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = types.Bar{
			Time:  time.Date(2024, 2, 1+i, 0, 0, 0, 0, time.UTC),
			Close: float64(i),
		}
	}
	return bars
}

func TestCountAndNone(t *testing.T) {
	empty := series.FromBars(nil)
	if !empty.None() {
		t.Error("empty series must report None")
	}
	if empty.Count() != 0 {
		t.Errorf("empty count: got %d, want 0", empty.Count())
	}

	s := series.FromBars(makeBars(5))
	if s.None() {
		t.Error("non-empty series must not report None")
	}
	if s.Count() != 5 {
		t.Errorf("count: got %d, want 5", s.Count())
	}
}

func TestLast(t *testing.T) {
	s := series.FromBars(makeBars(3))
	last, err := s.Last()
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if last.Close != 2 {
		t.Errorf("last close: got %v, want 2", last.Close)
	}

	if _, err := series.FromBars(nil).Last(); err == nil {
		t.Error("expected error for last of empty series")
	}
}

func TestSkipTake(t *testing.T) {
	s := series.FromBars(makeBars(10))

	window := s.Skip(3).Take(4)
	if window.Count() != 4 {
		t.Fatalf("window count: got %d, want 4", window.Count())
	}
	if window.At(0).Close != 3 {
		t.Errorf("window start: got %v, want 3", window.At(0).Close)
	}
	if window.At(3).Close != 6 {
		t.Errorf("window end: got %v, want 6", window.At(3).Close)
	}

	if s.Skip(20).Count() != 0 {
		t.Error("skipping past the end must yield an empty series")
	}
	if s.Take(20).Count() != 10 {
		t.Error("taking past the end must yield the whole series")
	}
	if s.Take(0).Count() != 0 {
		t.Error("taking zero must yield an empty series")
	}
	if s.Skip(0).Count() != 10 {
		t.Error("skipping zero must yield the whole series")
	}
}

func TestBakeDetaches(t *testing.T) {
	backing := makeBars(5)
	s := series.FromBars(backing)

	baked := s.Skip(1).Take(2).Bake()
	backing[1].Close = 99

	if baked.At(0).Close != 1 {
		t.Errorf("baked series must be detached from the parent backing slice, got %v", baked.At(0).Close)
	}
}

func TestMapPreservesOrderAndIndex(t *testing.T) {
	s := series.FromBars(makeBars(4))

	mapped := s.Map(func(i int, bar types.Bar) types.Bar {
		return bar.WithValue("idx", float64(i))
	})

	if mapped.Count() != 4 {
		t.Fatalf("mapped count: got %d, want 4", mapped.Count())
	}
	for i := 0; i < mapped.Count(); i++ {
		if mapped.At(i).Value("idx") != float64(i) {
			t.Errorf("bar %d: index value %v", i, mapped.At(i).Value("idx"))
		}
		if !mapped.At(i).Time.Equal(s.At(i).Time) {
			t.Errorf("bar %d: time changed by map", i)
		}
	}
}
