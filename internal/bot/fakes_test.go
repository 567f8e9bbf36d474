package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/registry"
	"github.com/dmitrijs2005/filerelay/internal/storage"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	answers []tgbotapi.CallbackConfig
	fileURL string
	sendErr error
	updates chan tgbotapi.Update
	stopped bool
	nextID  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10), nextID: 100}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file url")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// texts returns the text of every sent message and edit, in order.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastEdit() (tgbotapi.EditMessageTextConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if e, ok := f.sent[i].(tgbotapi.EditMessageTextConfig); ok {
			return e, true
		}
	}
	return tgbotapi.EditMessageTextConfig{}, false
}

func (f *fakeAPI) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1].Text
}

type fakePipeline struct {
	mu     sync.Mutex
	calls  int
	owner  string
	name   string
	result *transfer.Result
	err    error
	run    func(ctx context.Context, src transfer.Source, sink progress.Sink) error
}

func (f *fakePipeline) Run(ctx context.Context, src transfer.Source, owner string, sink progress.Sink) (*transfer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.owner = owner
	f.name = src.Name()
	f.mu.Unlock()

	if f.run != nil {
		if err := f.run(ctx, src, sink); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCallbacks struct {
	entries   map[string]registry.Entry
	removed   []string
	removeErr error
}

func (f *fakeCallbacks) Lookup(token string) (registry.Entry, error) {
	e, ok := f.entries[token]
	if !ok {
		return registry.Entry{}, common.ErrCallbackExpiredOrMissing
	}
	return e, nil
}

func (f *fakeCallbacks) Remove(token string) error {
	f.removed = append(f.removed, token)
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.entries, token)
	return nil
}

type fakeObjects struct {
	objects []storage.ObjectInfo
	deleted []string
	headErr error
}

func (f *fakeObjects) HeadObject(_ context.Context, key string) (*storage.ObjectInfo, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	for _, o := range f.objects {
		if o.Key == key {
			o := o
			return &o, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjects) ListObjects(_ context.Context, prefix string, limit int) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for _, o := range f.objects {
		if len(o.Key) >= len(prefix) && o.Key[:len(prefix)] == prefix {
			out = append(out, o)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeLinks struct {
	err error
}

func (f *fakeLinks) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example/" + key + "?sig=fresh", nil
}

func (f *fakeLinks) PlayerURL(string, string) (string, bool) { return "", false }

type fakeAuth struct {
	admin   int64
	allowed map[int64]bool
}

func (f *fakeAuth) IsAllowed(id int64) bool { return f.allowed[id] }
func (f *fakeAuth) IsAdmin(id int64) bool   { return id == f.admin }
func (f *fakeAuth) Add(id int64) error {
	f.allowed[id] = true
	return nil
}
func (f *fakeAuth) Remove(id int64) error {
	delete(f.allowed, id)
	return nil
}
func (f *fakeAuth) List() []int64 {
	var ids []int64
	for id := range f.allowed {
		ids = append(ids, id)
	}
	return ids
}
