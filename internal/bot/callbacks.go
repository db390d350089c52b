package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := chatOf(tgbotapi.Update{CallbackQuery: cq})
	if chatID == 0 {
		return
	}
	h.register(ctx, chatID, cq.From)

	if err := h.messenger.AnswerCallback(ctx, cq.ID); err != nil {
		h.log.Warn("failed to answer callback", sl.ChatID(chatID), sl.Err(err))
	}

	switch cq.Data {
	case texts.CallbackMySubscription:
		status, err := h.subs.Status(ctx, chatID)
		if err != nil {
			h.log.Error("failed to load status", sl.ChatID(chatID), sl.Err(err))
			return
		}
		h.reply(ctx, chatID, status, texts.BackToMenu())
	case texts.CallbackBuy:
		active, err := h.subs.HasActiveAnnual(ctx, chatID)
		if err != nil {
			h.log.Error("failed to check annual", sl.ChatID(chatID), sl.Err(err))
			return
		}
		if active {
			h.invoice(ctx, chatID, models.PlanMonthly)
		} else {
			h.invoice(ctx, chatID, models.PlanAnnual)
		}
	case texts.CallbackBuyYear:
		h.invoice(ctx, chatID, models.PlanAnnual)
	case texts.CallbackBuyMonth:
		active, err := h.subs.HasActiveAnnual(ctx, chatID)
		if err != nil {
			h.log.Error("failed to check annual", sl.ChatID(chatID), sl.Err(err))
			return
		}
		if !active {
			h.reply(ctx, chatID, h.catalog.MonthlyRequiresAnnual(), texts.BuyYear())
			return
		}
		h.invoice(ctx, chatID, models.PlanMonthly)
	case texts.CallbackCancel:
		h.reply(ctx, chatID, texts.ConfirmCancel, texts.ConfirmCancelKeyboard())
	case texts.CallbackCancelYes:
		if _, err := h.subs.Cancel(ctx, chatID); err != nil {
			h.log.Error("failed to cancel subscription", sl.ChatID(chatID), sl.Err(err))
		}
	case texts.CallbackCancelNo, texts.CallbackBackToMenu:
		h.reply(ctx, chatID, h.catalog.Welcome(), texts.StartMenu())
	default:
		h.log.Debug("unknown callback", sl.ChatID(chatID), slog.String("data", cq.Data))
	}
}

func (h *Handler) invoice(ctx context.Context, chatID int64, plan models.Plan) {
	if err := h.messenger.SendInvoice(ctx, chatID, plan); err != nil {
		h.log.Error("failed to send invoice", sl.ChatID(chatID), slog.String("plan", string(plan)), sl.Err(err))
		h.reply(ctx, chatID, texts.InvoiceFailed, nil)
	}
}
