// Package bot собирает процесс Telegram-бота.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/subscription-bot/internal/app/infra"
	schedulerapp "github.com/magabrotheeeer/subscription-bot/internal/app/scheduler"
	"github.com/magabrotheeeer/subscription-bot/internal/bot"
	"github.com/magabrotheeeer/subscription-bot/internal/cache"
	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-bot/internal/http/server"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/migrations"
	"github.com/magabrotheeeer/subscription-bot/internal/services/broadcast"
	"github.com/magabrotheeeer/subscription-bot/internal/services/lifecycle"
	schedulerservice "github.com/magabrotheeeer/subscription-bot/internal/services/scheduler"
	"github.com/magabrotheeeer/subscription-bot/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-bot/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

// App представляет приложение бота.
type App struct {
	api       *tgbotapi.BotAPI
	handler   *bot.Handler
	scheduler *schedulerservice.Service
	server    *http.Server
	db        *repository.Storage
	cache     *cache.Cache
	sink      *infra.Sink
	cfg       *config.Config
	loc       *time.Location
	logger    *slog.Logger
}

// New создает новый экземпляр приложения бота.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	api, tgClient, err := infra.Telegram(cfg, logger)
	if err != nil {
		closeResources(db, cacheRedis, nil, logger)
		return nil, err
	}
	sink, err := infra.NewSink(cfg, tgClient)
	if err != nil {
		closeResources(db, cacheRedis, nil, logger)
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	catalog := texts.New(cfg.AnnualPrice, cfg.MonthlyPrice)
	engine := lifecycle.New(lifecycle.Terms{
		AnnualMonths:  cfg.AnnualMonths,
		MonthlyMonths: cfg.MonthlyMonths,
	})

	subscriptionService := subscription.New(
		db,
		cacheRedis,
		sink,
		engine,
		catalog,
		m,
		logger.With(slog.String("component", "subscription")),
		subscription.Options{
			Location:  loc,
			StatusTTL: cfg.StatusTTL,
		},
	)
	broadcastService := broadcast.New(
		db,
		tgClient,
		logger.With(slog.String("component", "broadcast")),
		m,
		cfg.SendDelay,
	)
	handler := bot.NewHandler(
		subscriptionService,
		broadcastService,
		tgClient,
		cfg,
		catalog,
		m,
		logger.With(slog.String("component", "bot")),
		cfg.Workers,
	)

	var scheduler *schedulerservice.Service
	if cfg.Scheduler.Enabled {
		scheduler = schedulerapp.NewService(cfg, loc, db, cacheRedis, sink, m, logger)
	}

	router := server.NewRouter(logger, cfg.HTTPServer, server.Deps{
		Checks: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
		Subscribers: subscriptionService,
	})

	return &App{
		api:       api,
		handler:   handler,
		scheduler: scheduler,
		server:    server.NewServer(cfg.HTTPServer, router),
		db:        db,
		cache:     cacheRedis,
		sink:      sink,
		cfg:       cfg,
		loc:       loc,
		logger:    logger,
	}, nil
}

func closeResources(db *repository.Storage, cacheRedis *cache.Cache, sink *infra.Sink, logger *slog.Logger) {
	if sink != nil {
		sink.Close(logger)
	}
	if cacheRedis != nil {
		if err := cacheRedis.Close(); err != nil {
			logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run получает обновления long polling и обслуживает HTTP до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopScheduler := func() {}
	if a.scheduler != nil {
		stopScheduler = schedulerapp.Start(ctx, a.scheduler, a.cfg.Scheduler, a.loc, a.logger)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.PollTimeout
	updates := a.api.GetUpdatesChan(u)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.handler.Run(ctx, updates)
	}()
	a.logger.Info("bot started", slog.String("username", a.api.Self.UserName))

	err := server.Serve(ctx, a.server, a.logger)
	cancel()

	a.logger.Info("shutting down bot")
	a.api.StopReceivingUpdates()
	<-done
	stopScheduler()
	closeResources(a.db, a.cache, a.sink, a.logger)
	return err
}
