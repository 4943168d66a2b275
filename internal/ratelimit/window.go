package ratelimit

import (
	"sync"
	"time"

	"github.com/rocketstack/roadmapper/internal/tier"
)

// slidingWindow counts events in a trailing interval per key. It exists so a
// deployment without Redis still gets real (if single-instance) enforcement,
// and so the window semantics are testable with a simulated clock.
type slidingWindow struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func newSlidingWindow() *slidingWindow {
	return &slidingWindow{entries: make(map[string][]time.Time)}
}

func (w *slidingWindow) allow(key string, q tier.Quota, now time.Time) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-q.Window)
	kept := w.entries[key][:0]
	for _, ts := range w.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	res := Result{Limit: q.Requests, Reset: now.Add(q.Window)}
	if len(kept) > 0 {
		res.Reset = kept[0].Add(q.Window)
	}

	if len(kept) >= q.Requests {
		w.entries[key] = kept
		return res
	}

	kept = append(kept, now)
	w.entries[key] = kept
	res.Success = true
	res.Remaining = q.Requests - len(kept)
	return res
}
