package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/registry"
	"github.com/dmitrijs2005/filerelay/internal/storage"
)

// patternByte is the content at offset i of every generated test file.
func patternByte(i int64) byte { return byte(i % 251) }

type patternReader struct {
	off, size int64
}

func (r *patternReader) Read(p []byte) (int, error) {
	if r.off >= r.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if rem := r.size - r.off; n > rem {
		n = rem
	}
	for i := int64(0); i < n; i++ {
		p[i] = patternByte(r.off + i)
	}
	r.off += n
	return int(n), nil
}

// spySource writes actual bytes of the pattern and claims declared bytes.
type spySource struct {
	name     string
	declared int64
	actual   int64

	err  error
	hang chan struct{}

	calls    atomic.Int32
	accepted atomic.Int64
}

func (s *spySource) Name() string { return s.name }
func (s *spySource) Size() int64  { return s.declared }

func (s *spySource) Download(ctx context.Context, dst io.Writer, progress func(done, total int64)) error {
	s.calls.Add(1)
	if s.hang != nil {
		<-s.hang
		return errors.New("released")
	}

	buf := make([]byte, 1<<20)
	r := &patternReader{size: s.actual}
	var done int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			s.accepted.Add(int64(w))
			if werr != nil {
				return werr
			}
			done += int64(n)
			progress(done, s.declared)
		}
		if err == io.EOF {
			break
		}
	}
	return s.err
}

type uploadedPart struct {
	Number int32
	Size   int64
	First  byte
}

type fakeStore struct {
	mu sync.Mutex

	putKey  string
	putBody []byte
	putCT   string

	created   int
	parts     []uploadedPart
	completed []storage.CompletedPart
	completes int
	aborts    int

	partSize int64
	failPart int32
	hangPart bool
	putErr   error

	// slowPart delays every part and ignores cancellation while doing so
	slowPart  time.Duration
	lateParts int

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putKey, f.putBody, f.putCT = key, b, contentType
	return f.putErr
}

func (f *fakeStore) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return "upload-1", nil
}

func (f *fakeStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if f.hangPart {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if partNumber == f.failPart {
		return "", errors.New("part rejected")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	// let later parts overtake earlier ones
	time.Sleep(time.Duration(10-partNumber%10) * time.Millisecond)
	if f.slowPart > 0 {
		time.Sleep(f.slowPart)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aborts > 0 {
		f.lateParts++
	}
	var first byte
	if buf.Len() > 0 {
		first = buf.Bytes()[0]
	}
	f.parts = append(f.parts, uploadedPart{Number: partNumber, Size: int64(buf.Len()), First: first})
	return "etag-" + string(rune('A'+partNumber)), nil
}

func (f *fakeStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	f.completed = append([]storage.CompletedPart(nil), parts...)
	return nil
}

func (f *fakeStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.aborts++
	return nil
}

type presignerFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)

func (f presignerFunc) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return f(ctx, key, ttl)
}

type harness struct {
	pipeline *Pipeline
	store    *fakeStore
	registry *registry.Registry
	dir      string
}

func newHarness(t *testing.T, presignErr error, tweak func(*Options)) *harness {
	t.Helper()

	reg, err := registry.Open(filepath.Join(t.TempDir(), "callbacks.json"), registry.Options{})
	require.NoError(t, err)

	minter := links.NewMinter(presignerFunc(func(_ context.Context, key string, _ time.Duration) (string, error) {
		if presignErr != nil {
			return "", presignErr
		}
		return "https://s3.example/relay/" + key + "?X-Amz-Signature=x", nil
	}), "https://player.example")

	dir := filepath.Join(t.TempDir(), "downloads")
	opts := Options{
		DownloadDir:        dir,
		MaxFileSize:        2048 << 20,
		MultipartThreshold: 50 << 20,
		PartSize:           16 << 20,
		Workers:            4,
		StageTimeout:       time.Minute,
		PresignTTL:         time.Hour,
		ProgressInterval:   time.Second,
		ProgressTimeout:    time.Second,
	}
	if tweak != nil {
		tweak(&opts)
	}

	store := &fakeStore{}
	return &harness{
		pipeline: New(store, minter, reg, logging.Discard(), opts),
		store:    store,
		registry: reg,
		dir:      dir,
	}
}

// requireNoResidue asserts the download directory holds no files.
func (h *harness) requireNoResidue(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	require.Empty(t, entries, "transient files left behind")
}
