// Package app wires the relay components together and runs them until the
// process is told to stop.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/filerelay/internal/auth"
	"github.com/dmitrijs2005/filerelay/internal/bot"
	"github.com/dmitrijs2005/filerelay/internal/config"
	"github.com/dmitrijs2005/filerelay/internal/filex"
	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/player"
	"github.com/dmitrijs2005/filerelay/internal/registry"
	"github.com/dmitrijs2005/filerelay/internal/storage"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

// objectStore is everything the app needs from the bucket.
type objectStore interface {
	transfer.ObjectStore
	bot.Objects
	links.Presigner
}

var (
	newObjectStore = func(ctx context.Context, cfg *config.Config) (objectStore, error) {
		return storage.NewS3Store(ctx, cfg)
	}
	newBotAPI = func(token string) (bot.API, error) {
		return tgbotapi.NewBotAPI(token)
	}
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *registry.Registry
	player   *player.Server
	bot      *bot.Bot
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is not set")
	}

	var err error
	if cfg.DataDir, err = filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if cfg.DownloadDir, err = filex.EnsureDir(cfg.DownloadDir); err != nil {
		return nil, fmt.Errorf("download dir: %w", err)
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	reg, err := registry.Open(cfg.RegistryPath(), registry.Options{
		TTL:        cfg.RegistryTTL,
		MaxEntries: cfg.RegistryMaxEntries,
		FlushEvery: cfg.RegistryFlushEvery,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("registry init error: %w", err)
	}

	users, err := auth.Open(cfg.UsersPath(), cfg.AdminID, cfg.AllowedUsers, logger)
	if err != nil {
		return nil, fmt.Errorf("allow-list init error: %w", err)
	}

	api, err := newBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init error: %w", err)
	}

	minter := links.NewMinter(store, cfg.PlayerBaseURL)
	pipeline := transfer.New(store, minter, reg, logger, transfer.OptionsFromConfig(cfg))

	b := bot.New(bot.Deps{
		API:       api,
		Pipeline:  pipeline,
		Callbacks: reg,
		Objects:   store,
		Links:     minter,
		Auth:      users,
		Logger:    logger,
	}, bot.Options{
		PresignTTL:  cfg.PresignTTL,
		MaxFileSize: cfg.MaxFileSize,
		RateLimit:   cfg.UserRateLimit,
		RatePeriod:  cfg.UserRatePeriod,
		HTTPClient:  &http.Client{},
	})

	return &App{
		config:   cfg,
		logger:   logger,
		registry: reg,
		player:   player.New(cfg.HTTPAddr, logger),
		bot:      b,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the bot, the player server and the registry sweeper. On a
// signal or the first component error the rest are stopped and the registry
// is flushed.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.bot.Run(gctx)
	})
	g.Go(func() error {
		return app.player.Run(gctx)
	})
	g.Go(func() error {
		return app.registry.Run(gctx, app.config.RegistrySweepInterval)
	})

	err := g.Wait()
	if cerr := app.registry.Close(); cerr != nil {
		app.logger.Error(ctx, "registry flush on shutdown", "err", cerr)
	}
	app.logger.Info(ctx, "app stopped")
	return err
}
