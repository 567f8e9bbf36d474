// Package progress throttles progress updates for a running transfer and
// renders them for chat messages or a terminal.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/metrics"
	"github.com/dmitrijs2005/filerelay/internal/throughput"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 5 * time.Second
)

type Options struct {
	// Interval is the minimum gap between two non-final updates.
	Interval time.Duration
	// Timeout bounds a single sink call.
	Timeout time.Duration
	Now     func() time.Time
	Logger  logging.Logger
}

// Reporter converts cumulative byte counts into throttled sink updates.
// Report never blocks longer than Options.Timeout and never returns an
// error: a failing sink must not affect the transfer it describes.
type Reporter struct {
	action  string
	sink    Sink
	tracker *throughput.Tracker

	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      logging.Logger

	mu           sync.Mutex
	seen         int64
	lastEmit     time.Time
	backoffUntil time.Time
	finalSent    bool
	inflight     chan struct{}
}

func NewReporter(action string, sink Sink, opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if sink == nil {
		sink = Discard
	}

	return &Reporter{
		action:   action,
		sink:     sink,
		tracker:  throughput.New(opts.Now),
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      opts.Now,
		log:      opts.Logger,
	}
}

// Tracker exposes the underlying byte counter.
func (r *Reporter) Tracker() *throughput.Tracker {
	return r.tracker
}

// Report records that current of total bytes are done. Updates are emitted
// at most once per interval, except that current == total is always
// emitted once. Concurrent callers may report out of order; the rendered
// position is the highest one seen.
func (r *Reporter) Report(ctx context.Context, current, total int64) {
	r.mu.Lock()
	if current > r.seen {
		r.tracker.Record(current - r.seen)
		r.seen = current
	}
	shown := r.seen

	now := r.now()
	final := current == total

	switch {
	case final && r.finalSent:
		r.mu.Unlock()
		return
	case !final && !r.lastEmit.IsZero() && now.Sub(r.lastEmit) < r.interval:
		r.mu.Unlock()
		return
	case !final && now.Before(r.backoffUntil):
		r.mu.Unlock()
		metrics.ProgressUpdatesTotal.WithLabelValues("backoff").Inc()
		return
	case !final && r.inflight != nil:
		r.mu.Unlock()
		metrics.ProgressUpdatesTotal.WithLabelValues("busy").Inc()
		return
	}

	prev := r.inflight
	done := make(chan struct{})
	r.inflight = done
	r.lastEmit = now
	if final {
		r.finalSent = true
	}
	snap := newSnapshot(r.action, shown, total, r.tracker.SmoothedRate(), r.tracker.Elapsed())
	r.mu.Unlock()

	// The terminal update waits for a still running call so the last
	// message the sink sees is the complete one.
	if prev != nil {
		t := time.NewTimer(r.timeout)
		select {
		case <-prev:
		case <-t.C:
		case <-ctx.Done():
		}
		t.Stop()
	}

	err := r.emit(ctx, snap, done)
	r.handle(ctx, err, final, now)
}

func (r *Reporter) emit(ctx context.Context, snap Snapshot, done chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	result := make(chan error, 1)

	go func() {
		defer cancel()
		err := r.sink.Update(ctx, snap)

		r.mu.Lock()
		if r.inflight == done {
			r.inflight = nil
		}
		r.mu.Unlock()
		close(done)

		result <- err
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) handle(ctx context.Context, err error, final bool, at time.Time) {
	if err == nil {
		metrics.ProgressUpdatesTotal.WithLabelValues("sent").Inc()
		return
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		metrics.ProgressUpdatesTotal.WithLabelValues("rate_limited").Inc()
		r.mu.Lock()
		r.backoffUntil = at.Add(rl.Wait)
		if final {
			r.finalSent = false
		}
		r.mu.Unlock()
		r.log.Debug(ctx, "progress update rate limited", "action", r.action, "wait", rl.Wait)
		return
	}

	metrics.ProgressUpdatesTotal.WithLabelValues("failed").Inc()
	r.log.Debug(ctx, "progress update failed", "action", r.action, "err", err)
}
