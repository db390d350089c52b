// Package notify доставляет уведомления пользователям: напрямую через Telegram
// или через очередь RabbitMQ, которую разбирает отдельный процесс sender.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// Sink принимает уведомление к доставке.
type Sink interface {
	Send(ctx context.Context, n models.Notification) error
}

// QueueSink публикует уведомления в очередь доставки.
type QueueSink struct {
	mu sync.Mutex
	ch rabbitmq.Publisher
}

// NewQueueSink создаёт издателя поверх канала RabbitMQ.
func NewQueueSink(ch rabbitmq.Publisher) *QueueSink {
	return &QueueSink{ch: ch}
}

// Send присваивает уведомлению идентификатор и публикует его.
func (q *QueueSink) Send(ctx context.Context, n models.Notification) error {
	const op = "notify.QueueSink.Send"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	// Публикация в один канал AMQP не должна идти из нескольких горутин одновременно.
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := rabbitmq.PublishMessage(q.ch, rabbitmq.NotificationsExchange, rabbitmq.DeliverRoutingKey, n.ID, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Decode разбирает уведомление из очереди. Ошибки разбора помечены rabbitmq.ErrDrop:
// такое сообщение не станет корректным при повторе.
func Decode(body []byte) (models.Notification, error) {
	const op = "notify.Decode"

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return models.Notification{}, fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDrop, err)
	}
	if n.ChatID == 0 || n.Text == "" {
		return models.Notification{}, fmt.Errorf("%s: %w: empty chat id or text", op, rabbitmq.ErrDrop)
	}
	return n, nil
}
