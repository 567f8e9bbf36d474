package progress

import (
	"context"
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

const terminalTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`

// TerminalSink draws snapshots as a pb progress bar. A new bar is started
// whenever the action changes, so one sink can follow the download and the
// upload stage of the same job.
type TerminalSink struct {
	mu     sync.Mutex
	w      io.Writer
	bar    *pb.ProgressBar
	action string
}

func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

func (s *TerminalSink) Update(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar == nil || s.action != snap.Action {
		s.finishLocked()
		bar := pb.ProgressBarTemplate(terminalTemplate).New(0)
		bar.SetWriter(s.w)
		bar.Set(pb.Bytes, true)
		bar.Set("prefix", snap.Action+": ")
		bar.Start()
		s.bar = bar
		s.action = snap.Action
	}

	s.bar.SetTotal(snap.Total)
	s.bar.SetCurrent(snap.Current)
	if snap.Total > 0 && snap.Current >= snap.Total {
		s.finishLocked()
	}
	return nil
}

// Close stops a bar that never reached its total.
func (s *TerminalSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
}

func (s *TerminalSink) finishLocked() {
	if s.bar != nil {
		s.bar.Finish()
		s.bar = nil
	}
}
