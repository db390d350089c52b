// Package bot разбирает обновления Telegram и передаёт их сервисам.
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/services/broadcast"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

// Значения по умолчанию.
const (
	DefaultWorkers      = 4
	DefaultDrainTimeout = 30 * time.Second
)

// Subscriptions — сценарии пользователя.
type Subscriptions interface {
	Register(ctx context.Context, sub models.Subscriber) error
	HandlePayment(ctx context.Context, chatID int64, plan models.Plan) (models.Subscriber, error)
	Cancel(ctx context.Context, chatID int64) (models.Subscriber, error)
	Status(ctx context.Context, chatID int64) (string, error)
	HasActiveAnnual(ctx context.Context, chatID int64) (bool, error)
	ActiveSummary(ctx context.Context) (string, error)
}

// Broadcasts — черновики рассылок администраторов.
type Broadcasts interface {
	Start(adminID int64)
	IsCollecting(adminID int64) bool
	AddMedia(adminID int64, item models.MediaItem) bool
	SetCaption(adminID int64, text string) bool
	FinalizeAndBroadcast(ctx context.Context, adminID int64) (broadcast.Report, error)
}

// Messenger — исходящие вызовы Bot API.
type Messenger interface {
	Reply(ctx context.Context, chatID int64, text string, kb models.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID string) error
	SendInvoice(ctx context.Context, chatID int64, plan models.Plan) error
	AnswerPreCheckout(ctx context.Context, queryID string) error
}

// Admins определяет администраторов бота.
type Admins interface {
	IsAdmin(chatID int64) bool
}

// Handler обрабатывает обновления Telegram.
type Handler struct {
	subs       Subscriptions
	broadcasts Broadcasts
	messenger  Messenger
	admins     Admins
	catalog    texts.Catalog
	metrics    *metrics.Metrics
	log        *slog.Logger
	workers    int

	drainTimeout time.Duration
	background   sync.WaitGroup
}

// NewHandler создаёт обработчик. workers ≤ 0 заменяется DefaultWorkers.
func NewHandler(
	subs Subscriptions,
	broadcasts Broadcasts,
	messenger Messenger,
	admins Admins,
	catalog texts.Catalog,
	m *metrics.Metrics,
	log *slog.Logger,
	workers int,
) *Handler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Handler{
		subs:       subs,
		broadcasts: broadcasts,
		messenger:  messenger,
		admins:     admins,
		catalog:    catalog,
		metrics:    m,
		log:        log,
		workers:    workers,

		drainTimeout: DefaultDrainTimeout,
	}
}

// Run читает обновления до отмены ctx или закрытия канала.
// Обновления одного чата обрабатываются по порядку, разные чаты параллельно.
// После отмены ctx уже полученные обновления дообрабатываются,
// но не дольше DrainTimeout: Telegram не пришлёт их повторно.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	stopDrain := context.AfterFunc(ctx, func() {
		time.AfterFunc(h.drainTimeout, cancelWork)
	})
	defer stopDrain()

	shards := make([]chan tgbotapi.Update, h.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 16)
		wg.Add(1)
		go func(in <-chan tgbotapi.Update) {
			defer wg.Done()
			for upd := range in {
				h.HandleUpdate(workCtx, upd)
			}
		}(shards[i])
	}

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
		h.background.Wait()
	}()

	dispatch := func(upd tgbotapi.Update) {
		shards[shardOf(chatOf(upd), h.workers)] <- upd
	}

	for {
		select {
		case <-ctx.Done():
			n := drainBuffered(updates, dispatch)
			h.log.Info("update loop stopped", slog.Int("drained", n))
			return
		case upd, ok := <-updates:
			if !ok {
				h.log.Info("updates channel closed")
				return
			}
			dispatch(upd)
		}
	}
}

// drainBuffered передаёт обновления, уже лежащие в канале, не дожидаясь новых.
func drainBuffered(updates <-chan tgbotapi.Update, dispatch func(tgbotapi.Update)) int {
	n := 0
	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				return n
			}
			dispatch(upd)
			n++
		default:
			return n
		}
	}
}

func shardOf(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}

func chatOf(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	case upd.PreCheckoutQuery != nil && upd.PreCheckoutQuery.From != nil:
		return upd.PreCheckoutQuery.From.ID
	default:
		return 0
	}
}

// HandleUpdate обрабатывает одно обновление. Паника не выходит за пределы обновления.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("update handling panicked", slog.Int("update_id", upd.UpdateID), slog.Any("panic", r))
		}
	}()

	switch {
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.count("callback")
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.PreCheckoutQuery != nil:
		h.count("pre_checkout")
		if err := h.messenger.AnswerPreCheckout(ctx, upd.PreCheckoutQuery.ID); err != nil {
			h.log.Error("failed to answer pre-checkout", sl.Err(err))
		}
	default:
		h.count("other")
	}
}

func (h *Handler) register(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if from == nil {
		return
	}
	err := h.subs.Register(ctx, models.Subscriber{
		ChatID:    chatID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		IsAdmin:   h.admins.IsAdmin(chatID),
	})
	if err != nil {
		h.log.Error("failed to register user", sl.ChatID(chatID), sl.Err(err))
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, kb models.Keyboard) {
	if err := h.messenger.Reply(ctx, chatID, text, kb); err != nil {
		h.log.Warn("failed to reply", sl.ChatID(chatID), sl.Err(err))
	}
}

func (h *Handler) count(kind string) {
	if h.metrics != nil {
		h.metrics.UpdatesHandled.WithLabelValues(kind).Inc()
	}
}
