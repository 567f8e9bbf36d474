package progress

import (
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

const (
	barWidth   = 20
	barFilled  = "█"
	barPending = "○"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// Snapshot is one rendered progress state handed to a Sink.
type Snapshot struct {
	Action  string
	Current int64
	Total   int64
	Percent float64
	Rate    float64 // bytes per second
	Elapsed time.Duration
	// ETA is only meaningful when Rate > 0.
	ETA time.Duration
}

func newSnapshot(action string, current, total int64, rate float64, elapsed time.Duration) Snapshot {
	s := Snapshot{
		Action:  action,
		Current: current,
		Total:   total,
		Rate:    rate,
		Elapsed: elapsed,
	}
	if total > 0 {
		s.Percent = 100 * float64(current) / float64(total)
	}
	if rate > 0 && total > current {
		s.ETA = time.Duration(float64(total-current) / rate * float64(time.Second))
	}
	return s
}

// Bar renders the fixed-width proportional bar. Values outside 0..100
// percent are clamped for drawing only.
func (s Snapshot) Bar() string {
	filled := int(s.Percent / 5)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat(barFilled, filled) + strings.Repeat(barPending, barWidth-filled)
}

// String renders the multi-line status text used for chat messages.
func (s Snapshot) String() string {
	eta := "unknown"
	if s.Rate > 0 {
		eta = FormatClock(s.ETA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s in progress...\n", s.Action)
	fmt.Fprintf(&b, "[%s] %.2f%%\n", s.Bar(), s.Percent)
	fmt.Fprintf(&b, "Speed: %s/s\n", HumanBytes(int64(s.Rate)))
	fmt.Fprintf(&b, "Transferred: %s / %s\n", HumanBytes(s.Current), HumanBytes(s.Total))
	fmt.Fprintf(&b, "Elapsed: %s\n", FormatClock(s.Elapsed))
	fmt.Fprintf(&b, "ETA: %s", eta)
	return b.String()
}

// HumanBytes formats n with binary multiples and two decimals, e.g. "1.50 MB".
func HumanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return units.CustomSize("%.2f %s", float64(n), 1024.0, sizeUnits)
}

// FormatClock renders d as MM:SS, or HH:MM:SS once it reaches an hour.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
