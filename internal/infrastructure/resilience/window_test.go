package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowCounts(t *testing.T) {
	w := newWindow(time.Second, 10)
	now := time.Now()

	w.add(now, true)
	w.add(now, false)
	w.add(now, false)

	rate, total := w.errorPercent(now)
	assert.Equal(t, uint64(3), total)
	assert.InDelta(t, 66.6, rate, 0.1)
}

func TestWindowEmpty(t *testing.T) {
	w := newWindow(time.Second, 10)

	rate, total := w.errorPercent(time.Now())
	assert.Equal(t, uint64(0), total)
	assert.Equal(t, 0.0, rate)
}

func TestWindowExpiresOldBuckets(t *testing.T) {
	w := newWindow(time.Second, 10)
	now := time.Now()

	w.add(now, false)
	w.add(now, false)

	// A full window later the failures have aged out.
	later := now.Add(2 * time.Second)
	_, total := w.errorPercent(later)
	assert.Equal(t, uint64(0), total)
}

func TestWindowPartialRotation(t *testing.T) {
	w := newWindow(time.Second, 10)
	now := time.Now()

	w.add(now, false)
	// Half a window later the old bucket still counts.
	mid := now.Add(500 * time.Millisecond)
	w.add(mid, true)

	rate, total := w.errorPercent(mid)
	assert.Equal(t, uint64(2), total)
	assert.InDelta(t, 50.0, rate, 0.1)
}

func TestWindowReset(t *testing.T) {
	w := newWindow(time.Second, 10)
	now := time.Now()

	w.add(now, false)
	w.reset(now)

	_, total := w.errorPercent(now)
	assert.Equal(t, uint64(0), total)
}
