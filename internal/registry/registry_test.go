package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filerelay/internal/common"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func counterTokens() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("t%04d", n)
	}
}

func openTest(t *testing.T, path string, clock *fakeClock, opts Options) *Registry {
	t.Helper()
	opts.Now = clock.Now
	if opts.NewToken == nil {
		opts.NewToken = counterTokens()
	}
	r, err := Open(path, opts)
	require.NoError(t, err)
	return r
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func TestRegistry_StoreLookupRoundTrip(t *testing.T) {
	clock := newClock()
	r := openTest(t, filepath.Join(t.TempDir(), "callbacks.json"), clock, Options{})

	token, err := r.Store("user_1/123_ab_clip.mp4", "1", "clip.mp4")
	require.NoError(t, err)

	e, err := r.Lookup(token)
	require.NoError(t, err)
	assert.Equal(t, token, e.Token)
	assert.Equal(t, "user_1/123_ab_clip.mp4", e.ObjectKey)
	assert.Equal(t, "1", e.OwnerID)
	assert.Equal(t, "clip.mp4", e.OriginalName)
	assert.Equal(t, int64(1), e.AccessCount)
	assert.Equal(t, clock.Now(), e.CreatedAt)
}

func TestRegistry_DefaultTokens(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "callbacks.json"), Options{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := r.Store("k", "1", "n")
		require.NoError(t, err)
		assert.Len(t, token, tokenLength)
		assert.Empty(t, strings.Trim(token, tokenAlphabet))
		assert.False(t, seen[token])
		seen[token] = true
	}
	// copy:<token> must fit Telegram's 64 byte callback payload
	assert.Less(t, len("copy:")+tokenLength, 64)
}

func TestRegistry_RegeneratesOnCollision(t *testing.T) {
	tokens := []string{"dup", "dup", "fresh"}
	i := 0
	next := func() string {
		t := tokens[i]
		i++
		return t
	}
	r := openTest(t, filepath.Join(t.TempDir(), "callbacks.json"), newClock(), Options{NewToken: next})

	a, err := r.Store("a", "1", "a")
	require.NoError(t, err)
	b, err := r.Store("b", "1", "b")
	require.NoError(t, err)
	assert.Equal(t, "dup", a)
	assert.Equal(t, "fresh", b)
}

func TestRegistry_LookupMissing(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "callbacks.json"), newClock(), Options{})

	_, err := r.Lookup("nope")
	assert.ErrorIs(t, err, common.ErrCallbackExpiredOrMissing)
}

func TestRegistry_ExpiredIsAbsent(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "callbacks.json")
	r := openTest(t, path, clock, Options{TTL: time.Hour})

	token, err := r.Store("k", "1", "n")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = r.Lookup(token)
	require.NoError(t, err, "an entry exactly TTL old is still valid")

	clock.Advance(time.Nanosecond)
	_, err = r.Lookup(token)
	assert.ErrorIs(t, err, common.ErrCallbackExpiredOrMissing)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ExpiredOnDiskIsSweptAtOpen(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "callbacks.json")
	r := openTest(t, path, clock, Options{TTL: time.Hour})

	_, err := r.Store("old", "1", "old")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	fresh, err := r.Store("new", "1", "new")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	reopened := openTest(t, path, clock, Options{TTL: time.Hour})
	assert.Equal(t, 1, reopened.Len())
	e, err := reopened.Lookup(fresh)
	require.NoError(t, err)
	assert.Equal(t, "new", e.ObjectKey)
}

func TestRegistry_SweepExpired(t *testing.T) {
	clock := newClock()
	r := openTest(t, filepath.Join(t.TempDir(), "callbacks.json"), clock, Options{TTL: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := r.Store(fmt.Sprintf("k%d", i), "1", "n")
		require.NoError(t, err)
	}
	clock.Advance(2 * time.Hour)
	_, err := r.Store("keep", "1", "n")
	require.NoError(t, err)

	n, err := r.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, r.Len())

	n, err = r.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRegistry_CapacityEvictsOldestFirst(t *testing.T) {
	clock := newClock()
	r := openTest(t, filepath.Join(t.TempDir(), "callbacks.json"), clock, Options{MaxEntries: 5})

	var tokens []string
	for i := 0; i < 8; i++ {
		token, err := r.Store(fmt.Sprintf("k%d", i), "1", "n")
		require.NoError(t, err)
		tokens = append(tokens, token)
		if i%2 == 0 {
			clock.Advance(time.Second)
		}
	}

	assert.Equal(t, 5, r.Len())
	for _, token := range tokens[:3] {
		_, err := r.Lookup(token)
		assert.ErrorIs(t, err, common.ErrCallbackExpiredOrMissing, token)
	}
	for _, token := range tokens[3:] {
		_, err := r.Lookup(token)
		assert.NoError(t, err, token)
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "callbacks.json"), newClock(), Options{})

	token, err := r.Store("k", "1", "n")
	require.NoError(t, err)

	require.NoError(t, r.Remove(token))
	require.NoError(t, r.Remove(token))
	require.NoError(t, r.Remove("never-existed"))

	_, err = r.Lookup(token)
	assert.ErrorIs(t, err, common.ErrCallbackExpiredOrMissing)
}

func TestRegistry_PersistsAcrossReopen(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "callbacks.json")
	r := openTest(t, path, clock, Options{FlushEvery: 3})

	token, err := r.Store("k", "7", "movie.mkv")
	require.NoError(t, err)

	// two lookups stay below the flush threshold
	_, err = r.Lookup(token)
	require.NoError(t, err)
	_, err = r.Lookup(token)
	require.NoError(t, err)

	before := openTest(t, path, clock, Options{})
	e, err := before.Lookup(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.AccessCount, "batched bookkeeping not yet flushed")

	require.NoError(t, r.Close())
	after := openTest(t, path, clock, Options{})
	e, err = after.Lookup(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.AccessCount)
	assert.Equal(t, "movie.mkv", e.OriginalName)
}

func TestRegistry_SeqSurvivesReopen(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "callbacks.json")
	r := openTest(t, path, clock, Options{})

	a, err := r.Store("a", "1", "a")
	require.NoError(t, err)
	b, err := r.Store("b", "1", "b")
	require.NoError(t, err)

	names := []string{"c", "d"}
	gen := func() string {
		n := names[0]
		names = names[1:]
		return n
	}
	reopened := openTest(t, path, clock, Options{NewToken: gen, MaxEntries: 3})
	_, err = reopened.Store("c", "1", "c")
	require.NoError(t, err)
	_, err = reopened.Store("d", "1", "d")
	require.NoError(t, err)

	// all four share a timestamp, so only the sequence decides
	_, err = reopened.Lookup(a)
	assert.ErrorIs(t, err, common.ErrCallbackExpiredOrMissing)
	for _, token := range []string{b, "c", "d"} {
		_, err = reopened.Lookup(token)
		assert.NoError(t, err, token)
	}
}

func TestRegistry_CorruptFileIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callbacks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entries": [`), 0o600))

	r := openTest(t, path, newClock(), Options{})
	assert.Equal(t, 0, r.Len())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = r.Store("k", "1", "n")
	require.NoError(t, err)
}

func TestRegistry_StoreFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	// a directory at the target path makes the final rename fail
	path := filepath.Join(dir, "callbacks.json")
	r := openTest(t, path, newClock(), Options{})
	require.NoError(t, os.Mkdir(path, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(path, "x"), nil, 0o600))

	_, err := r.Store("k", "1", "n")
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RunSweepsAndFlushes(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "callbacks.json")
	r := openTest(t, path, clock, Options{TTL: time.Minute, FlushEvery: 100})

	expiring, err := r.Store("k", "1", "n")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, err = r.Lookup(expiring)
	assert.ErrorIs(t, err, common.ErrCallbackExpiredOrMissing)
}
