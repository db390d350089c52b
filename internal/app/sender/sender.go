// Package sender собирает процесс доставки уведомлений из очереди.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-bot/internal/app/infra"
	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/http/server"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	senderservice "github.com/magabrotheeeer/subscription-bot/internal/services/sender"
)

// App представляет приложение отправителя.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	server        *http.Server
	limit         int
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправителя.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq url is not set")
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.ConnRetries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues(), cfg.ConsumerLimit)
	if err != nil {
		infra.CloseRabbit(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	_, tgClient, err := infra.Telegram(cfg, logger)
	if err != nil {
		infra.CloseRabbit(ch, conn, logger)
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	senderService := senderservice.New(tgClient, m, logger.With(slog.String("component", "sender")))

	router := server.NewRouter(logger, cfg.HTTPServer, server.Deps{})

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		server:        server.NewServer(cfg.HTTPServer, router),
		limit:         cfg.ConsumerLimit,
		logger:        logger,
	}, nil
}

// Run читает очередь доставки до отмены ctx или потери соединения с брокером.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx, a.server, a.logger)
	}()

	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.DeliverQueue, a.limit, a.logger, a.senderService.Handle)
	if err != nil {
		a.logger.Error("consumer stopped", slog.String("queue", rabbitmq.DeliverQueue), sl.Err(err))
	}
	cancel()

	a.logger.Info("sender service shutting down gracefully")
	if serr := <-serveErr; serr != nil {
		a.logger.Error("HTTP server stopped with error", sl.Err(serr))
	}
	infra.CloseRabbit(a.ch, a.conn, a.logger)
	return err
}
