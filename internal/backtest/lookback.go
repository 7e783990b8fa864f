package backtest

import (
	"github.com/andywkff/grademark/pkg/types"
)

// lookbackBuffer is a bounded ring of the most recent bars. Once full,
// pushing evicts the oldest bar. The snapshot passed to rule callbacks
// is rebuilt into a scratch slice reused across bars, so the hot loop
// allocates once.
type lookbackBuffer struct {
	buf     []types.Bar
	scratch []types.Bar
	head    int
	size    int
}

func newLookbackBuffer(capacity int) *lookbackBuffer {
	return &lookbackBuffer{
		buf:     make([]types.Bar, capacity),
		scratch: make([]types.Bar, capacity),
	}
}

func (b *lookbackBuffer) push(bar types.Bar) {
	if b.size < len(b.buf) {
		b.buf[(b.head+b.size)%len(b.buf)] = bar
		b.size++
		return
	}
	b.buf[b.head] = bar
	b.head = (b.head + 1) % len(b.buf)
}

func (b *lookbackBuffer) full() bool {
	return b.size == len(b.buf)
}

// snapshot returns the buffered bars ordered oldest to newest. The
// returned slice is valid until the next call.
func (b *lookbackBuffer) snapshot() []types.Bar {
	for i := 0; i < b.size; i++ {
		b.scratch[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return b.scratch[:b.size]
}
