// Package infra собирает общие для процессов зависимости:
// хранилище, клиента Telegram и канал доставки уведомлений.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
	"github.com/magabrotheeeer/subscription-bot/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-bot/internal/telegram"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
)

// WaitForDB ждёт, пока в базе появится схема.
func WaitForDB(ctx context.Context, db *repository.Storage, log *slog.Logger) error {
	var err error
	for attempt := range dbReadyAttempts {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		log.Warn("database not ready", slog.Int("attempt", attempt+1), sl.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dbReadyDelay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// Telegram подключается к Bot API и создаёт клиента.
func Telegram(cfg *config.Config, log *slog.Logger) (*tgbotapi.BotAPI, *telegram.Client, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init bot api: %w", err)
	}
	log.Info("authorized in telegram", slog.String("username", api.Self.UserName))

	client := telegram.NewClient(api, log, telegram.Payments{
		ProviderToken: cfg.ProviderToken,
		Currency:      cfg.Currency,
		Catalog:       texts.New(cfg.AnnualPrice, cfg.MonthlyPrice),
	})
	return api, client, nil
}

// Sink — канал доставки уведомлений и освобождение его ресурсов.
type Sink struct {
	notify.Sink
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewSink выбирает доставку по notifications.transport:
// напрямую в Telegram или через очередь RabbitMQ.
func NewSink(cfg *config.Config, direct notify.Sink) (*Sink, error) {
	if cfg.Transport != config.TransportRabbitMQ {
		return &Sink{Sink: direct}, nil
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.ConnRetries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues(), cfg.ConsumerLimit)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	return &Sink{Sink: notify.NewQueueSink(ch), conn: conn, ch: ch}, nil
}

// Close закрывает канал и соединение с брокером, если они открывались.
func (s *Sink) Close(log *slog.Logger) {
	CloseRabbit(s.ch, s.conn, log)
}

// CloseRabbit закрывает канал и соединение RabbitMQ.
func CloseRabbit(ch *amqp.Channel, conn *amqp.Connection, log *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			log.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Error("failed to close connection", sl.Err(err))
		}
	}
}
