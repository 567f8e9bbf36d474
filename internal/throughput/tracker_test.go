package throughput

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 10, 12, 12, 0, 0, 0, time.UTC)}
}

func TestTracker_ZeroWhenNothingRecorded(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	assert.Zero(t, tr.CurrentRate())
	clk.advance(time.Second)
	assert.Zero(t, tr.CurrentRate())
	assert.Zero(t, tr.SmoothedRate())
}

func TestTracker_ZeroWhenNoTimeElapsed(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	tr.Record(1024)
	assert.Zero(t, tr.CurrentRate())
	assert.Equal(t, int64(1024), tr.Total())
}

func TestTracker_CurrentRateIsCumulativeOverElapsed(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	clk.advance(time.Second)
	tr.Record(1000)
	clk.advance(time.Second)
	tr.Record(3000)

	assert.InDelta(t, 2000.0, tr.CurrentRate(), 0.001)
	assert.Equal(t, 2*time.Second, tr.Elapsed())
}

func TestTracker_IgnoresNonPositiveDeltas(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	tr.Record(500)
	tr.Record(-200)
	tr.Record(0)

	assert.Equal(t, int64(500), tr.Total())
}

func TestTracker_StartResets(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	clk.advance(time.Second)
	tr.Record(4096)
	tr.Start()

	assert.Zero(t, tr.Total())
	assert.Zero(t, tr.CurrentRate())
}

func TestTracker_SmoothedRateFollowsSamples(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	for i := 0; i < 5; i++ {
		clk.advance(time.Second)
		tr.Record(2048)
	}

	assert.InDelta(t, 2048.0, tr.SmoothedRate(), 0.001)
}

func TestTracker_SmoothedRateFallsBackBeforeFirstSample(t *testing.T) {
	clk := newClock()
	tr := New(clk.now)

	clk.advance(50 * time.Millisecond)
	tr.Record(100)

	assert.InDelta(t, tr.CurrentRate(), tr.SmoothedRate(), 0.001)
}
