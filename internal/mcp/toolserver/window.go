package toolserver

import (
	"slices"
	"sync"
)

// defaultWindowSize is the number of recent calls kept per tool.
const defaultWindowSize = 100

// callWindow is a ring buffer over the most recent tool calls. Safe for
// concurrent use.
type callWindow struct {
	mu     sync.Mutex
	millis []int64
	failed []bool
	pos    int
	total  int
}

// newCallWindow creates a window holding size calls. size ≤ 0 uses
// [defaultWindowSize].
func newCallWindow(size int) *callWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &callWindow{
		millis: make([]int64, size),
		failed: make([]bool, size),
	}
}

// record stores one call, overwriting the oldest once the window is full.
func (w *callWindow) record(ms int64, failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.millis[w.pos] = ms
	w.failed[w.pos] = failed
	w.pos = (w.pos + 1) % len(w.millis)
	w.total++
}

// stats returns latency percentiles and the error rate over the window and
// the number of calls recorded overall.
func (w *callWindow) stats() (p50, p99 int64, errorRate float64, total int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := min(w.total, len(w.millis))
	if n == 0 {
		return 0, 0, 0, w.total
	}

	sorted := slices.Clone(w.millis[:n])
	slices.Sort(sorted)

	failures := 0
	for _, f := range w.failed[:n] {
		if f {
			failures++
		}
	}

	p50 = sorted[n/2]
	p99 = sorted[int(float64(n-1)*0.99)]
	return p50, p99, float64(failures) / float64(n), w.total
}
