// Package series provides the ordered bar sequence consumed by the
// backtesting engine. A Series is a cheap view over a backing slice:
// Skip and Take return new views without copying, so walk-forward
// windowing copies no bar data per window.
package series

import (
	"errors"

	"github.com/andywkff/grademark/pkg/types"
)

// ErrEmpty is returned when an operation requires at least one bar.
var ErrEmpty = errors.New("series: empty series")

// Series is an ordered sequence of bars in ascending time order.
type Series struct {
	bars []types.Bar
}

// FromBars wraps a slice of bars. The slice is not copied; callers must
// not mutate it afterwards.
func FromBars(bars []types.Bar) *Series {
	return &Series{bars: bars}
}

// Count returns the number of bars in the series.
func (s *Series) Count() int {
	return len(s.bars)
}

// None reports whether the series is empty.
func (s *Series) None() bool {
	return len(s.bars) == 0
}

// First returns the first bar.
func (s *Series) First() (types.Bar, error) {
	if len(s.bars) == 0 {
		return types.Bar{}, ErrEmpty
	}
	return s.bars[0], nil
}

// Last returns the final bar.
func (s *Series) Last() (types.Bar, error) {
	if len(s.bars) == 0 {
		return types.Bar{}, ErrEmpty
	}
	return s.bars[len(s.bars)-1], nil
}

// At returns the bar at index i. Callers must ensure 0 <= i < Count().
func (s *Series) At(i int) types.Bar {
	return s.bars[i]
}

// Skip returns a view of the series with the first n bars removed.
func (s *Series) Skip(n int) *Series {
	if n <= 0 {
		return s
	}
	if n >= len(s.bars) {
		return &Series{}
	}
	return &Series{bars: s.bars[n:]}
}

// Take returns a view of at most the first n bars.
func (s *Series) Take(n int) *Series {
	if n <= 0 {
		return &Series{}
	}
	if n >= len(s.bars) {
		return s
	}
	return &Series{bars: s.bars[:n]}
}

// Bake copies the view into a compact backing slice, detaching it from
// the parent series.
func (s *Series) Bake() *Series {
	baked := make([]types.Bar, len(s.bars))
	copy(baked, s.bars)
	return &Series{bars: baked}
}

// Bars returns the backing slice in time order. The slice must be
// treated as read-only.
func (s *Series) Bars() []types.Bar {
	return s.bars
}

// Map returns a new series produced by applying fn to every bar in
// order, preserving index. Used by indicator preparation.
func (s *Series) Map(fn func(i int, bar types.Bar) types.Bar) *Series {
	out := make([]types.Bar, len(s.bars))
	for i, bar := range s.bars {
		out[i] = fn(i, bar)
	}
	return &Series{bars: out}
}

// Closes extracts the close column. Indicator helpers take flat columns.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, bar := range s.bars {
		out[i] = bar.Close
	}
	return out
}

// Highs extracts the high column.
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, bar := range s.bars {
		out[i] = bar.High
	}
	return out
}

// Lows extracts the low column.
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, bar := range s.bars {
		out[i] = bar.Low
	}
	return out
}
