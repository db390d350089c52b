package rabbitmq

// NotificationsExchange — direct exchange для уведомлений пользователям.
const NotificationsExchange = "notifications"

// Очередь доставки уведомлений в Telegram.
const (
	DeliverQueue      = "notification.deliver"
	DeliverRoutingKey = "deliver"
)

// QueueConfig описывает очередь и ключ её привязки.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые объявляют и издатель, и потребитель.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: DeliverQueue, RoutingKey: DeliverRoutingKey},
	}
}
