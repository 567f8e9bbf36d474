// Package registry maps short callback tokens to stored objects.
//
// Inline buttons can only carry a few dozen bytes, so the bot puts a token
// in the button and keeps the object key, owner and original file name
// here. The registry is file backed, expires entries after a TTL and caps
// its size by evicting the oldest entries first.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/jsonstore"
	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/metrics"
)

const (
	DefaultTTL        = 48 * time.Hour
	DefaultMaxEntries = 1000
	DefaultFlushEvery = 10

	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	tokenLength   = 12
	tokenAttempts = 8
)

// Entry is one registered object.
type Entry struct {
	Token          string    `json:"token"`
	ObjectKey      string    `json:"object_key"`
	OwnerID        string    `json:"owner_id"`
	OriginalName   string    `json:"original_name"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`
	// Seq orders entries created within the same clock tick.
	Seq uint64 `json:"seq"`
}

type document struct {
	Seq     uint64           `json:"seq"`
	Entries map[string]Entry `json:"entries"`
}

type Options struct {
	TTL        time.Duration
	MaxEntries int
	// FlushEvery batches persistence of access bookkeeping: the file is
	// rewritten after this many lookups. Values below 1 mean every lookup.
	FlushEvery int
	Now        func() time.Time
	Logger     logging.Logger
	// NewToken overrides token generation.
	NewToken func() string
}

type Registry struct {
	mu sync.Mutex

	store   *jsonstore.Store
	entries map[string]Entry
	seq     uint64
	dirty   int

	ttl        time.Duration
	maxEntries int
	flushEvery int
	now        func() time.Time
	newToken   func() string
	log        logging.Logger
}

// Open loads the registry persisted at path. A corrupt file is moved aside
// and the registry starts empty; expired entries are swept immediately.
func Open(path string, opts Options) (*Registry, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.FlushEvery < 1 {
		opts.FlushEvery = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.NewToken == nil {
		gen, err := nanoid.CustomASCII(tokenAlphabet, tokenLength)
		if err != nil {
			return nil, fmt.Errorf("token generator: %w", err)
		}
		opts.NewToken = gen
	}

	r := &Registry{
		store:      jsonstore.New(path),
		entries:    make(map[string]Entry),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		flushEvery: opts.FlushEvery,
		now:        opts.Now,
		newToken:   opts.NewToken,
		log:        opts.Logger.With("component", "registry"),
	}

	ctx := context.Background()
	var doc document
	_, err := r.store.Load(&doc)
	switch {
	case errors.Is(err, jsonstore.ErrCorrupt):
		r.log.Warn(ctx, "callback registry quarantined, starting empty",
			"path", path, "err", fmt.Errorf("%w: %v", common.ErrRegistryCorrupt, err))
	case err != nil:
		return nil, fmt.Errorf("open registry: %w", err)
	default:
		r.seq = doc.Seq
		for token, e := range doc.Entries {
			e.Token = token
			r.entries[token] = e
		}
	}

	if _, err := r.SweepExpired(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evictLocked() > 0 {
		if err := r.saveLocked(); err != nil {
			return nil, err
		}
	}
	metrics.CallbackEntries.Set(float64(len(r.entries)))
	return r, nil
}

// Store registers an object and returns its fresh token. The registry is
// persisted before Store returns; on a write error nothing is registered.
func (r *Registry) Store(objectKey, ownerID, originalName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, err := r.uniqueTokenLocked()
	if err != nil {
		return "", err
	}

	now := r.now()
	r.seq++
	r.entries[token] = Entry{
		Token:          token,
		ObjectKey:      objectKey,
		OwnerID:        ownerID,
		OriginalName:   originalName,
		CreatedAt:      now,
		LastAccessedAt: now,
		Seq:            r.seq,
	}
	evicted := r.evictOverflowLocked(token)

	if err := r.saveLocked(); err != nil {
		delete(r.entries, token)
		for _, e := range evicted {
			r.entries[e.Token] = e
		}
		return "", err
	}

	metrics.CallbackEntries.Set(float64(len(r.entries)))
	return token, nil
}

// Lookup returns the entry for token and updates its access bookkeeping.
// Unknown and expired tokens yield common.ErrCallbackExpiredOrMissing;
// expired ones are removed on the spot.
func (r *Registry) Lookup(token string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return Entry{}, common.ErrCallbackExpiredOrMissing
	}

	now := r.now()
	if r.expired(e, now) {
		delete(r.entries, token)
		metrics.CallbackEntries.Set(float64(len(r.entries)))
		if err := r.saveLocked(); err != nil {
			r.log.Warn(context.Background(), "persist after expiry failed", "token", token, "err", err)
		}
		return Entry{}, common.ErrCallbackExpiredOrMissing
	}

	e.AccessCount++
	e.LastAccessedAt = now
	r.entries[token] = e

	r.dirty++
	if r.dirty >= r.flushEvery {
		if err := r.saveLocked(); err != nil {
			r.log.Warn(context.Background(), "persist access bookkeeping failed", "token", token, "err", err)
		}
	}
	return e, nil
}

// Remove deletes token. Removing an unknown token is not an error.
func (r *Registry) Remove(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[token]; !ok {
		return nil
	}
	delete(r.entries, token)
	metrics.CallbackEntries.Set(float64(len(r.entries)))
	return r.saveLocked()
}

// SweepExpired removes every entry older than the TTL and returns how many
// were dropped.
func (r *Registry) SweepExpired() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for token, e := range r.entries {
		if r.expired(e, now) {
			delete(r.entries, token)
			removed++
		}
	}
	metrics.CallbackEntries.Set(float64(len(r.entries)))

	if removed == 0 {
		return 0, nil
	}
	if err := r.saveLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Run sweeps expired entries every interval until ctx is done, then flushes
// pending bookkeeping.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.Flush()
		case <-ticker.C:
			n, err := r.SweepExpired()
			if err != nil {
				r.log.Error(ctx, "sweep failed", "err", err)
				continue
			}
			if n > 0 {
				r.log.Info(ctx, "swept expired callbacks", "removed", n)
			}
		}
	}
}

// Flush writes unpersisted access bookkeeping.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirty == 0 {
		return nil
	}
	return r.saveLocked()
}

func (r *Registry) Close() error {
	return r.Flush()
}

// Len reports the number of entries, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) expired(e Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > r.ttl
}

func (r *Registry) uniqueTokenLocked() (string, error) {
	for range tokenAttempts {
		t := r.newToken()
		if _, taken := r.entries[t]; !taken && t != "" {
			return t, nil
		}
	}
	return "", errors.New("registry: could not allocate a unique token")
}

// evictOverflowLocked drops the oldest entries until the registry fits,
// never touching keep, and returns what it dropped.
func (r *Registry) evictOverflowLocked(keep string) []Entry {
	if len(r.entries) <= r.maxEntries {
		return nil
	}

	ordered := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Token != keep {
			ordered = append(ordered, e)
		}
	}
	slices.SortFunc(ordered, func(a, b Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	var evicted []Entry
	for _, e := range ordered {
		if len(r.entries) <= r.maxEntries {
			break
		}
		delete(r.entries, e.Token)
		evicted = append(evicted, e)
	}
	return evicted
}

func (r *Registry) evictLocked() int {
	return len(r.evictOverflowLocked(""))
}

func (r *Registry) saveLocked() error {
	doc := document{Seq: r.seq, Entries: r.entries}
	if err := r.store.Save(doc); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	r.dirty = 0
	return nil
}
