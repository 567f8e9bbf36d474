package progress

import (
	"context"
	"fmt"
	"time"
)

// Sink renders progress somewhere: a chat message, a terminal, a test spy.
type Sink interface {
	Update(ctx context.Context, s Snapshot) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, s Snapshot) error

func (f SinkFunc) Update(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}

// RateLimitError is returned by a Sink when the transport asked us to slow
// down. The reporter skips updates until Wait has elapsed.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited for %s: %v", e.Wait, e.Err)
	}
	return fmt.Sprintf("rate limited for %s", e.Wait)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Discard is a Sink that accepts every update and renders nothing.
var Discard Sink = SinkFunc(func(context.Context, Snapshot) error { return nil })
