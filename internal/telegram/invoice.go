package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/texts"
)

// Payments — настройки выставления счетов.
type Payments struct {
	ProviderToken string
	Currency      string
	Catalog       texts.Catalog
}

// SendInvoice выставляет счёт на тариф plan.
func (c *Client) SendInvoice(ctx context.Context, chatID int64, plan models.Plan) error {
	const op = "telegram.SendInvoice"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var (
		title, description, label string
		amount                    int
		startParameter            string
	)
	switch plan {
	case models.PlanAnnual:
		title, description, label = c.payments.Catalog.AnnualInvoice()
		amount = c.payments.Catalog.AnnualPrice
		startParameter = "subscribe_year"
	case models.PlanMonthly:
		title, description, label = c.payments.Catalog.MonthlyInvoice()
		amount = c.payments.Catalog.MonthlyPrice
		startParameter = "subscribe_month"
	default:
		return fmt.Errorf("%s: unknown plan %q", op, plan)
	}

	invoice := tgbotapi.NewInvoice(chatID, title, description, string(plan),
		c.payments.ProviderToken, startParameter, c.payments.Currency,
		[]tgbotapi.LabeledPrice{{Label: label, Amount: amount}})
	// Без явного пустого списка API получает null и отклоняет счёт.
	invoice.SuggestedTipAmounts = []int{}

	if _, err := c.api.Send(invoice); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AnswerPreCheckout подтверждает готовность принять платёж.
func (c *Client) AnswerPreCheckout(ctx context.Context, queryID string) error {
	const op = "telegram.AnswerPreCheckout"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := c.api.Request(tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: queryID, OK: true}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
