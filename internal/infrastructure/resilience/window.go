package resilience

import "time"

// bucket holds outcome counts for one slice of the sliding window.
type bucket struct {
	successes uint64
	failures  uint64
}

// window tracks success/failure counts over a fixed span divided into
// equal buckets. Old buckets are cleared as time advances, so counts
// always reflect roughly the last span of activity.
//
// window is not safe for concurrent use; the owning Breaker's mutex
// guards every call.
type window struct {
	buckets    []bucket
	span       time.Duration
	bucketSpan time.Duration
	idx        int
	lastRotate time.Time
}

func newWindow(span time.Duration, n int) *window {
	return &window{
		buckets:    make([]bucket, n),
		span:       span,
		bucketSpan: span / time.Duration(n),
		lastRotate: time.Now(),
	}
}

// rotate advances the current bucket index, clearing every bucket whose
// slice of the window has elapsed since the last update.
func (w *window) rotate(now time.Time) {
	elapsed := now.Sub(w.lastRotate)
	if elapsed < w.bucketSpan {
		return
	}

	steps := int(elapsed / w.bucketSpan)
	if steps >= len(w.buckets) {
		for i := range w.buckets {
			w.buckets[i] = bucket{}
		}
		w.idx = 0
	} else {
		for i := 0; i < steps; i++ {
			w.idx = (w.idx + 1) % len(w.buckets)
			w.buckets[w.idx] = bucket{}
		}
	}
	w.lastRotate = now
}

func (w *window) add(now time.Time, success bool) {
	w.rotate(now)
	if success {
		w.buckets[w.idx].successes++
	} else {
		w.buckets[w.idx].failures++
	}
}

// errorPercent returns the failure percentage and total sample count
// within the window.
func (w *window) errorPercent(now time.Time) (float64, uint64) {
	w.rotate(now)

	var successes, failures uint64
	for _, b := range w.buckets {
		successes += b.successes
		failures += b.failures
	}

	total := successes + failures
	if total == 0 {
		return 0, 0
	}
	return float64(failures) / float64(total) * 100, total
}

func (w *window) reset(now time.Time) {
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
	w.idx = 0
	w.lastRotate = now
}
