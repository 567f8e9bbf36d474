// Package throughput measures transfer speed for a single job.
package throughput

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"
)

// minSampleGap keeps the smoothed rate from being dominated by bursts of
// tiny chunks arriving within the same few milliseconds.
const minSampleGap = 100 * time.Millisecond

// Tracker accumulates transferred bytes. CurrentRate is the plain average
// since Start; SmoothedRate is an exponentially weighted moving average of
// per-sample speeds and reacts faster to changes.
type Tracker struct {
	mu sync.Mutex

	now       func() time.Time
	startedAt time.Time
	lastSeen  time.Time
	total     int64

	sampleAt    time.Time
	sampleBytes int64
	avg         ewma.MovingAverage
}

// New returns a started tracker. now may be nil to use the wall clock.
func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{now: now}
	t.Start()
	return t
}

// Start resets the counters and records a fresh baseline.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.startedAt = now
	t.lastSeen = now
	t.sampleAt = now
	t.total = 0
	t.sampleBytes = 0
	t.avg = ewma.NewMovingAverage()
}

// Record adds delta bytes. Negative deltas are ignored so the total never
// decreases.
func (t *Tracker) Record(delta int64) {
	if delta <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.total += delta
	t.lastSeen = now
	t.sampleBytes += delta

	if gap := now.Sub(t.sampleAt); gap >= minSampleGap {
		t.avg.Add(float64(t.sampleBytes) / gap.Seconds())
		t.sampleAt = now
		t.sampleBytes = 0
	}
}

// Total returns the cumulative byte count.
func (t *Tracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Elapsed returns wall time since Start.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.startedAt)
}

// CurrentRate returns bytes per second since Start, or 0 when nothing was
// recorded or no time has passed.
func (t *Tracker) CurrentRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.now().Sub(t.startedAt).Seconds()
	if elapsed <= 0 || t.total == 0 {
		return 0
	}
	return float64(t.total) / elapsed
}

// SmoothedRate returns the moving average speed, falling back to
// CurrentRate until the first sample has been taken.
func (t *Tracker) SmoothedRate() float64 {
	t.mu.Lock()
	v := t.avg.Value()
	t.mu.Unlock()

	if v > 0 {
		return v
	}
	return t.CurrentRate()
}
