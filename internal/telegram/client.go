// Package telegram отправляет сообщения, медиа и счета через Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// API — часть *tgbotapi.BotAPI, которой пользуется клиент.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Client оборачивает Bot API.
type Client struct {
	api      API
	log      *slog.Logger
	payments Payments
}

// NewClient создаёт клиента.
func NewClient(api API, log *slog.Logger, payments Payments) *Client {
	return &Client{
		api:      api,
		log:      log,
		payments: payments,
	}
}

// Send доставляет уведомление. Реализует notify.Sink.
func (c *Client) Send(ctx context.Context, n models.Notification) error {
	const op = "telegram.Send"
	if err := c.Reply(ctx, n.ChatID, n.Text, n.Keyboard); err != nil {
		return fmt.Errorf("%s: %s: %w", op, n.Kind, err)
	}
	c.log.Debug("notification sent", slog.Int64("chat_id", n.ChatID), slog.String("kind", string(n.Kind)))
	return nil
}

// Reply отправляет текст с необязательной inline-клавиатурой.
func (c *Client) Reply(ctx context.Context, chatID int64, text string, kb models.Keyboard) error {
	const op = "telegram.Reply"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = inlineKeyboard(kb)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendText отправляет простой текст.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.Reply(ctx, chatID, text, nil)
}

// AnswerCallback снимает «часики» с нажатой кнопки.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	const op = "telegram.AnswerCallback"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func inlineKeyboard(kb models.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
