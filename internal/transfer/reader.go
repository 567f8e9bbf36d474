package transfer

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/filerelay/internal/common"
)

// progressReader reports the furthest offset read so far. The SDK may seek
// back to rewind a request body; reported progress never goes backwards.
type progressReader struct {
	rs     io.ReadSeeker
	report func(done int64)

	mu  sync.Mutex
	pos int64
	max int64
}

func newProgressReader(rs io.ReadSeeker, report func(done int64)) *progressReader {
	return &progressReader{rs: rs, report: report}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.rs.Read(p)

	r.mu.Lock()
	r.pos += int64(n)
	advanced := r.pos > r.max
	if advanced {
		r.max = r.pos
	}
	done := r.max
	r.mu.Unlock()

	if advanced && r.report != nil {
		r.report(done)
	}
	return n, err
}

func (r *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.rs.Seek(offset, whence)
	if err == nil {
		r.mu.Lock()
		r.pos = pos
		r.mu.Unlock()
	}
	return pos, err
}

// limitWriter fails writes that would take the total past limit. The bytes
// up to the limit are still written.
type limitWriter struct {
	w        io.Writer
	limit    int64
	n        int64
	exceeded atomic.Bool
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if l.n+int64(len(p)) <= l.limit {
		n, err := l.w.Write(p)
		l.n += int64(n)
		return n, err
	}

	l.exceeded.Store(true)
	room := l.limit - l.n
	n := 0
	if room > 0 {
		var err error
		n, err = l.w.Write(p[:room])
		l.n += int64(n)
		if err != nil {
			return n, err
		}
	}
	return n, fmt.Errorf("%w: more than %d bytes received", common.ErrSizeLimitExceeded, l.limit)
}
