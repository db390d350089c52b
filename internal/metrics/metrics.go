// Package metrics объявляет метрики Prometheus бота, планировщика и отправителя.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subscription_bot"

// Metrics набор счётчиков сервиса.
type Metrics struct {
	RemindersSent    *prometheus.CounterVec
	Expirations      *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	PassFailures     *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	BroadcastSends   *prometheus.CounterVec
	Payments         *prometheus.CounterVec
	UpdatesHandled   *prometheus.CounterVec
	QueueMessages    *prometheus.CounterVec
}

// New регистрирует метрики в reg. Для основного процесса передаётся
// prometheus.DefaultRegisterer, в тестах — свежий prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemindersSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "reminders_sent_total",
			Help:      "Reminders delivered to subscribers, by kind.",
		}, []string{"kind"}),
		Expirations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "expirations_total",
			Help:      "Entitlement expirations applied, by kind.",
		}, []string{"kind"}),
		DeliveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "delivery_failures_total",
			Help:      "Notifications the sink failed to deliver, by kind.",
		}, []string{"kind"}),
		PassFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pass_failures_total",
			Help:      "Scheduler passes aborted by an error or panic.",
		}, []string{"pass"}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full scheduler tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		BroadcastSends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "sends_total",
			Help:      "Broadcast sends per recipient, by result.",
		}, []string{"result"}),
		Payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "payments_total",
			Help:      "Confirmed payments, by plan and result.",
		}, []string{"plan", "result"}),
		UpdatesHandled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "updates_total",
			Help:      "Telegram updates handled, by type.",
		}, []string{"type"}),
		QueueMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sender",
			Name:      "messages_total",
			Help:      "Queued notifications consumed, by result.",
		}, []string{"result"}),
	}
}
