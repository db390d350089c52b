// Package scheduler собирает процесс планировщика напоминаний.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/subscription-bot/internal/app/infra"
	"github.com/magabrotheeeer/subscription-bot/internal/cache"
	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-bot/internal/http/server"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/services/lifecycle"
	schedulerservice "github.com/magabrotheeeer/subscription-bot/internal/services/scheduler"
	"github.com/magabrotheeeer/subscription-bot/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

// App представляет приложение планировщика.
type App struct {
	service *schedulerservice.Service
	server  *http.Server
	db      *repository.Storage
	cache   *cache.Cache
	sink    *infra.Sink
	cfg     config.Scheduler
	loc     *time.Location
	logger  *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := infra.WaitForDB(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	_, tgClient, err := infra.Telegram(cfg, logger)
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
	service := NewService(cfg, loc, db, cacheRedis, sink, m, logger)

	router := server.NewRouter(logger, cfg.HTTPServer, server.Deps{
		Checks: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
	})

	return &App{
		service: service,
		server:  server.NewServer(cfg.HTTPServer, router),
		db:      db,
		cache:   cacheRedis,
		sink:    sink,
		cfg:     cfg.Scheduler,
		loc:     loc,
		logger:  logger,
	}, nil
}

// NewService собирает сервис планировщика поверх общих зависимостей процесса.
func NewService(
	cfg *config.Config,
	loc *time.Location,
	db *repository.Storage,
	cacheRedis *cache.Cache,
	sink *infra.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *schedulerservice.Service {
	engine := lifecycle.New(lifecycle.Terms{
		AnnualMonths:  cfg.AnnualMonths,
		MonthlyMonths: cfg.MonthlyMonths,
	})
	return schedulerservice.New(
		db,
		sink,
		cacheRedis,
		engine,
		texts.New(cfg.AnnualPrice, cfg.MonthlyPrice),
		m,
		logger.With(slog.String("component", "scheduler")),
		schedulerservice.Options{
			Location:         loc,
			RemindDaysBefore: cfg.RemindDaysBefore,
			MarkTTL:          cfg.ReminderMarkTTL,
			Snapshots:        cacheRedis,
		},
	)
}

// Start запускает проходы t по расписанию cfg. Возвращённая функция
// останавливает расписание и дожидается текущего прохода.
func Start(ctx context.Context, t Ticker, cfg config.Scheduler, loc *time.Location, logger *slog.Logger) (stop func()) {
	c := newCron(ctx, t, cfg.InitialDelay, cfg.Interval, loc, logger)
	c.Start()
	logger.Info("scheduler started",
		slog.Duration("initial_delay", cfg.InitialDelay),
		slog.Duration("interval", cfg.Interval),
		slog.String("timezone", loc.String()),
	)
	return func() {
		<-c.Stop().Done()
		logger.Info("scheduler stopped")
	}
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

// Run запускает планировщик и служебный HTTP-сервер до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	stop := Start(ctx, a.service, a.cfg, a.loc, a.logger)

	err := server.Serve(ctx, a.server, a.logger)

	a.logger.Info("shutting down scheduler service")
	stop()
	closeResources(a.db, a.cache, a.sink, a.logger)
	return err
}
