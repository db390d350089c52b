package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/services/lifecycle"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	h.register(ctx, chatID, msg.From)

	if msg.SuccessfulPayment != nil {
		h.count("payment")
		h.handlePayment(ctx, chatID, msg.SuccessfulPayment)
		return
	}
	h.count("message")

	admin := h.admins.IsAdmin(chatID)
	if msg.IsCommand() {
		if h.handleCommand(ctx, chatID, msg.Command(), admin) {
			return
		}
	}

	if !admin || !h.broadcasts.IsCollecting(chatID) {
		return
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		h.finishBroadcast(ctx, chatID, text)
		return
	}
	if item, ok := mediaOf(msg); ok {
		h.broadcasts.AddMedia(chatID, item)
		// Подпись к медиа тоже считается текстом рассылки.
		if caption := strings.TrimSpace(msg.Caption); caption != "" {
			h.broadcasts.SetCaption(chatID, caption)
		}
	}
}

// handleCommand возвращает false, если команда не распознана.
func (h *Handler) handleCommand(ctx context.Context, chatID int64, command string, admin bool) bool {
	switch {
	case command == "start":
		h.reply(ctx, chatID, h.catalog.Welcome(), texts.StartMenu())
	case command == "admin" && admin:
		h.reply(ctx, chatID, texts.AdminPanel, nil)
	case command == "subs" && admin:
		summary, err := h.subs.ActiveSummary(ctx)
		if err != nil {
			h.log.Error("failed to list subscribers", sl.Err(err))
			return true
		}
		h.reply(ctx, chatID, summary, nil)
	case command == "send" && admin:
		h.broadcasts.Start(chatID)
		h.reply(ctx, chatID, texts.BroadcastIntro, nil)
	default:
		return false
	}
	return true
}

// finishBroadcast задаёт текст и запускает рассылку в фоне, чтобы не задерживать
// остальные чаты того же обработчика.
func (h *Handler) finishBroadcast(ctx context.Context, adminID int64, text string) {
	h.broadcasts.SetCaption(adminID, text)
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		report, err := h.broadcasts.FinalizeAndBroadcast(ctx, adminID)
		if err != nil {
			h.log.Error("broadcast failed", slog.Int64("admin_id", adminID), sl.Err(err))
		}
		h.reply(context.WithoutCancel(ctx), adminID, texts.BroadcastDone(report.Recipients, report.Delivered), nil)
	}()
}

func mediaOf(msg *tgbotapi.Message) (models.MediaItem, bool) {
	switch {
	case len(msg.Photo) > 0:
		best := msg.Photo[len(msg.Photo)-1]
		for _, p := range msg.Photo {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		return models.MediaItem{Kind: models.MediaPhoto, FileID: best.FileID}, true
	case msg.Video != nil:
		return models.MediaItem{Kind: models.MediaVideo, FileID: msg.Video.FileID}, true
	case msg.Document != nil:
		return models.MediaItem{Kind: models.MediaDocument, FileID: msg.Document.FileID}, true
	default:
		return models.MediaItem{}, false
	}
}

func (h *Handler) handlePayment(ctx context.Context, chatID int64, payment *tgbotapi.SuccessfulPayment) {
	log := h.log.With(sl.ChatID(chatID), slog.String("payload", payment.InvoicePayload))

	plan, err := models.ParsePlan(payment.InvoicePayload)
	if err != nil {
		log.Error("unknown invoice payload", sl.Err(err))
		return
	}

	_, err = h.subs.HandlePayment(ctx, chatID, plan)
	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrNoActiveAnnual):
		log.Warn("monthly payment rejected", sl.Err(err))
	default:
		log.Error("failed to apply payment", sl.Err(err))
		h.reply(ctx, chatID, texts.PaymentFailed, nil)
	}
}
