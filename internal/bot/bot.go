package bot

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/filerelay/internal/logging"
)

type Options struct {
	PresignTTL  time.Duration
	MaxFileSize int64
	// RateLimit uploads are allowed per RatePeriod and user; 0 disables it.
	RateLimit  int
	RatePeriod time.Duration
	// HTTPClient downloads files from the Bot API.
	HTTPClient *http.Client
	Now        func() time.Time
}

type Deps struct {
	API       API
	Pipeline  Transferer
	Callbacks Callbacks
	Objects   Objects
	Links     Links
	Auth      Authorizer
	Logger    logging.Logger
}

type Bot struct {
	api       API
	pipeline  Transferer
	callbacks Callbacks
	objects   Objects
	links     Links
	auth      Authorizer
	log       logging.Logger
	opts      Options

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func New(d Deps, opts Options) *Bot {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.RatePeriod <= 0 {
		opts.RatePeriod = time.Minute
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Bot{
		api:       d.API,
		pipeline:  d.Pipeline,
		callbacks: d.Callbacks,
		objects:   d.Objects,
		links:     d.Links,
		auth:      d.Auth,
		log:       log.With("component", "bot"),
		opts:      opts,
		limiters:  make(map[int64]*rate.Limiter),
	}
}

// Run polls for updates until ctx is done. Every update is handled in its
// own goroutine; Run returns after all of them have finished.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	m, ok := resolveMedia(msg, b.opts.Now())
	if !ok {
		return
	}
	if !b.auth.IsAllowed(userID) {
		b.reply(ctx, msg.Chat.ID, textUnauthorized)
		return
	}
	if b.opts.RateLimit > 0 && !b.limiter(userID).Allow() {
		b.reply(ctx, msg.Chat.ID, textRateLimited)
		return
	}
	b.relay(ctx, msg.Chat.ID, userID, m)
}

func (b *Bot) relay(ctx context.Context, chatID, userID int64, m media) {
	log := b.log.With("user", userID, "kind", m.Kind.String())

	status, err := b.api.Send(tgbotapi.NewMessage(chatID, startText(m)))
	if err != nil {
		log.Error(ctx, "send status message", "err", err)
		return
	}

	src := &telegramSource{api: b.api, client: b.opts.HTTPClient, media: m}
	sink := &messageSink{api: b.api, chatID: chatID, messageID: status.MessageID}

	res, err := b.pipeline.Run(ctx, src, strconv.FormatInt(userID, 10), sink)
	if err != nil {
		b.edit(ctx, chatID, status.MessageID, failureText(err, b.opts.MaxFileSize), nil)
		return
	}

	markup := resultKeyboard(res)
	b.edit(ctx, chatID, status.MessageID, resultText(res, b.opts.PresignTTL), markup)
}

func (b *Bot) limiter(userID int64) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.limiters[userID]
	if !ok {
		n := b.opts.RateLimit
		l = rate.NewLimiter(rate.Every(b.opts.RatePeriod/time.Duration(n)), n)
		b.limiters[userID] = l
	}
	return l
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn(ctx, "send reply", "chat", chatID, "err", err)
	}
}

func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	var c tgbotapi.Chattable
	if markup != nil {
		c = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		c = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn(ctx, "edit message", "chat", chatID, "err", err)
	}
}
