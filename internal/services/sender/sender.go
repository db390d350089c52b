// Package sender доставляет уведомления из очереди RabbitMQ в Telegram.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
	"github.com/magabrotheeeer/subscription-bot/internal/telegram"
)

// Service обрабатывает сообщения очереди notification.deliver.
type Service struct {
	sink    notify.Sink
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт отправителя.
func New(sink notify.Sink, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		sink:    sink,
		metrics: m,
		log:     log,
	}
}

// Handle разбирает сообщение и доставляет его.
// Нечитаемое сообщение и постоянная ошибка Telegram оборачивают rabbitmq.ErrDrop,
// остальные ошибки возвращают сообщение в очередь.
func (s *Service) Handle(ctx context.Context, body []byte) error {
	const op = "sender.Handle"

	n, err := notify.Decode(body)
	if err != nil {
		s.log.Error("failed to decode notification", sl.Err(err))
		s.count("malformed")
		return fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.With(slog.String("id", n.ID), sl.ChatID(n.ChatID), slog.String("kind", string(n.Kind)))
	if err := s.sink.Send(ctx, n); err != nil {
		if telegram.IsPermanent(err) {
			log.Warn("notification dropped", sl.Err(err))
			s.count("dropped")
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDrop, err)
		}
		log.Warn("notification delivery failed, will retry", sl.Err(err))
		s.count("retried")
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("notification delivered")
	s.count("delivered")
	return nil
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.QueueMessages.WithLabelValues(result).Inc()
	}
}
