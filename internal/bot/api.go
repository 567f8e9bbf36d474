// Package bot is the Telegram front-end: it turns incoming media messages
// into pipeline runs, renders results with inline buttons and answers the
// button callbacks.
package bot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/netx"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/registry"
	"github.com/dmitrijs2005/filerelay/internal/storage"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Transferer interface {
	Run(ctx context.Context, src transfer.Source, owner string, sink progress.Sink) (*transfer.Result, error)
}

type Callbacks interface {
	Lookup(token string) (registry.Entry, error)
	Remove(token string) error
}

type Objects interface {
	HeadObject(ctx context.Context, key string) (*storage.ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectInfo, error)
}

type Links interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	PlayerURL(key, presigned string) (string, bool)
}

type Authorizer interface {
	IsAllowed(id int64) bool
	IsAdmin(id int64) bool
	Add(id int64) error
	Remove(id int64) error
	List() []int64
}

// telegramSource downloads a file through the Bot API file endpoint.
type telegramSource struct {
	api    API
	client *http.Client
	media  media
}

func (s *telegramSource) Name() string { return s.media.Name }
func (s *telegramSource) Size() int64  { return s.media.Size }

func (s *telegramSource) Download(ctx context.Context, dst io.Writer, report func(done, total int64)) error {
	// the direct URL embeds the bot token and must not be logged
	u, err := s.api.GetFileDirectURL(s.media.FileID)
	if err != nil {
		return err
	}
	_, err = netx.Download(ctx, s.client, u, dst, s.media.Size, report)
	return err
}

// messageSink renders progress by editing the status message.
type messageSink struct {
	api       API
	chatID    int64
	messageID int
}

func (s *messageSink) Update(_ context.Context, snap progress.Snapshot) error {
	_, err := s.api.Send(tgbotapi.NewEditMessageText(s.chatID, s.messageID, snap.String()))
	return asRateLimit(err)
}

// asRateLimit turns a Telegram flood-wait answer into a RateLimitError.
func asRateLimit(err error) error {
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return &progress.RateLimitError{Wait: time.Duration(tgErr.RetryAfter) * time.Second, Err: err}
	}
	return err
}

var _ Links = (*links.Minter)(nil)
