// Package texts собирает тексты сообщений и клавиатуры бота.
// Цены передаются в копейках и печатаются в рублях.
package texts

import (
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// Данные inline-кнопок.
const (
	CallbackMySubscription = "MY_SUBSCRIPTION"
	CallbackBuy            = "BUY_SUBSCRIPTION"
	CallbackBuyYear        = "BUY_YEAR_SUBSCRIPTION"
	CallbackBuyMonth       = "BUY_MONTH_SUBSCRIPTION"
	CallbackCancel         = "CANCEL_SUBSCRIPTION"
	CallbackCancelYes      = "CONFIRM_CANCEL_YES"
	CallbackCancelNo       = "CONFIRM_CANCEL_NO"
	CallbackBackToMenu     = "BACK_TO_MENU"
)

// Фиксированные тексты.
const (
	AdminPanel = "🛠 Админ-панель\n\n" +
		"• /subs — 👥 показать активные годовые подписки и статус месяца\n" +
		"• /send — 📣 сделать рассылку (сначала медиа/файлы, затем текст)"
	BroadcastIntro = "📣 Режим рассылки\n\n" +
		"1️⃣ Отправьте фото (можно несколько), видео и/или файлы.\n" +
		"2️⃣ Когда закончите с медиа — пришлите одним сообщением текст рассылки.\n\n" +
		"✉️ Всё будет отправлено пользователям одним сообщением."
	ConfirmCancel = "❓ Вы действительно хотите отменить подписку?\n" +
		"После отмены доступ к сервису может быть ограничен."
	Cancelled           = "Ваша подписка отменена."
	NoActiveSubscribers = "🕊 Сейчас нет ни одной активной годовой подписки."
	InvoiceFailed       = "⚠️ Ошибка при создании счёта. Попробуйте позже."
	PaymentFailed       = "⚠️ Не удалось провести оплату. Напишите нам, мы разберёмся."
	noUsername          = "(без username)"
)

// Catalog — тексты, зависящие от цен тарифов.
type Catalog struct {
	AnnualPrice  int
	MonthlyPrice int
}

// New создаёт каталог с ценами в копейках.
func New(annualPrice, monthlyPrice int) Catalog {
	return Catalog{AnnualPrice: annualPrice, MonthlyPrice: monthlyPrice}
}

// Welcome — приветствие на /start.
func (c Catalog) Welcome() string {
	return "Привет! 👋\n\n" +
		"Закажи вечные очки всего за " + FormatRub(c.MonthlyPrice) + " в месяц в рамках годовой подписки.\n\n" +
		"Что ты получишь:\n" +
		"• До 5 бесплатных обслуживаний в год: чистка, выправка, замена носоупоров 🧼🔧\n" +
		"• Надоели очки или сломались — заменим на новые по специальной цене 🔄\n\n" +
		"Важно:\n" +
		"• Подписка должна быть активна для получения всех преимуществ 🔔\n\n" +
		"Как оформить:\n" +
		"• Оформи подписку на год: первый платёж " + FormatRub(c.AnnualPrice) +
		", затем " + FormatRub(c.MonthlyPrice) + " в месяц 💳\n" +
		"• Нажми «💳 Оформить подписку» ниже\n\n" +
		"Хотите оформить подписку сейчас? ✅"
}

// MonthlySoon — напоминание о скором окончании оплаченного месяца.
func (c Catalog) MonthlySoon(days int) string {
	return "⏰ Через " + Days(days) + " заканчивается оплаченный месяц вашей подписки.\n" +
		"Чтобы сохранить обслуживание за " + FormatRub(c.MonthlyPrice) + " в месяц, оплатите следующий месяц."
}

func (c Catalog) MonthlyExpired() string {
	return "⚠️ Срок вашей месячной оплаты истёк.\n" +
		"Оплатите " + FormatRub(c.MonthlyPrice) + ", чтобы продолжить обслуживание в рамках годовой подписки."
}

// AnnualSoon — напоминание о скором окончании года.
func (c Catalog) AnnualSoon(days int) string {
	return "⏰ Через " + Days(days) + " заканчивается ваша годовая подписка на вечные очки.\n" +
		"Продлите её, чтобы сохранить все преимущества."
}

func (c Catalog) AnnualExpired() string {
	return "⚠️ Ваша годовая подписка закончилась.\n" +
		"Чтобы продолжить пользоваться сервисом, оформите новый год за " + FormatRub(c.AnnualPrice) + "."
}

// Activated — подтверждение оплаты года.
func (c Catalog) Activated(yearEnd, monthEnd time.Time) string {
	return "✅ Подписка активирована на 1 год.\n" +
		"📅 Годовая активна до: " + FormatDate(yearEnd) + "\n" +
		"📆 Месяц оплачен до: " + FormatDate(monthEnd)
}

// MonthlyPaid — подтверждение оплаты месяца.
func (c Catalog) MonthlyPaid(monthEnd time.Time) string {
	return "✅ Месячная оплата обновлена.\n" +
		"📆 Месяц оплачен до: " + FormatDate(monthEnd)
}

// NeedAnnual — отказ в оплате месяца без действующего года.
func (c Catalog) NeedAnnual() string {
	return "⚠️ Сначала нужно оформить годовую подписку за " + FormatRub(c.AnnualPrice) + "."
}

// MonthlyRequiresAnnual — отказ выставить счёт на месяц.
func (c Catalog) MonthlyRequiresAnnual() string {
	return "⚠️ Месячная оплата " + FormatRub(c.MonthlyPrice) +
		" доступна только при активной годовой подписке за " + FormatRub(c.AnnualPrice) + ".\n" +
		"Сначала оформите годовую подписку."
}

// Status — текст «Моя подписка».
func (c Catalog) Status(s models.Subscriber) string {
	var sb strings.Builder

	yearEnd, _ := s.Annual.End()
	if s.Annual.IsActive() {
		sb.WriteString("📅 Ваша годовая подписка активна до: " + FormatDate(yearEnd) + "\n")
	} else {
		sb.WriteString("ℹ️ У вас нет активной годовой подписки.\n")
	}

	switch {
	case !s.Annual.IsActive():
		sb.WriteString("\nДля использования сервиса сначала оформите годовую подписку за " + FormatRub(c.AnnualPrice) + ".")
	case s.Monthly.IsActive():
		monthEnd, _ := s.Monthly.End()
		sb.WriteString("\n📆 Месячная оплата активна до: " + FormatDate(monthEnd))
	default:
		sb.WriteString("\n⚠️ Месячная оплата сейчас не активна.\n" +
			"Оплатите " + FormatRub(c.MonthlyPrice) + ", чтобы пользоваться обслуживанием в рамках года.")
	}
	return sb.String()
}

// SummaryLine — строка списка /subs.
func SummaryLine(s models.Subscriber) string {
	username := s.Username
	if strings.TrimSpace(username) == "" {
		username = noUsername
	}

	yearPretty := "—"
	if end, ok := s.Annual.End(); ok {
		yearPretty = FormatDate(end)
	}

	monthStatus := "месячная не оплачена"
	if s.Monthly.IsActive() {
		end, _ := s.Monthly.End()
		monthStatus = "месяц оплачен до: " + FormatDate(end)
	}

	return fmt.Sprintf("@%s (%s | год до: %s | %s)", username, s.Tag, yearPretty, monthStatus)
}

// BroadcastDone — отчёт администратору о рассылке.
func BroadcastDone(recipients, delivered int) string {
	return fmt.Sprintf("📨 Рассылка успешно отправлена всем пользователям.\nДоставлено: %d из %d.", delivered, recipients)
}

// AnnualInvoice возвращает заголовок, описание и подпись цены счёта на год.
func (c Catalog) AnnualInvoice() (title, description, label string) {
	return "💳 Подписка на 1 год",
		"Подписка на вечные очки: первый платёж " + FormatRub(c.AnnualPrice) +
			" за год, далее " + FormatRub(c.MonthlyPrice) + " в месяц до конца срока.",
		"Годовая подписка"
}

// MonthlyInvoice возвращает заголовок, описание и подпись цены счёта на месяц.
func (c Catalog) MonthlyInvoice() (title, description, label string) {
	return "💳 Месячная оплата " + FormatRub(c.MonthlyPrice),
		"Оплата месяца обслуживания в рамках вашей годовой подписки на вечные очки.",
		"Месячная оплата"
}

// StartMenu — главное меню.
func StartMenu() models.Keyboard {
	return models.Keyboard{
		{{Text: "📅 Моя подписка", CallbackData: CallbackMySubscription}},
		{{Text: "💳 Оформить подписку", CallbackData: CallbackBuy}},
		{{Text: "❌ Отменить подписку", CallbackData: CallbackCancel}},
	}
}

func ConfirmCancelKeyboard() models.Keyboard {
	return models.Keyboard{{
		{Text: "✅ Да", CallbackData: CallbackCancelYes},
		{Text: "↩️ Нет", CallbackData: CallbackCancelNo},
	}}
}

func BackToMenu() models.Keyboard {
	return models.Keyboard{{{Text: "⬅️ Вернуться в меню", CallbackData: CallbackBackToMenu}}}
}

func BuyYear() models.Keyboard {
	return models.Keyboard{{{Text: "💳 Оформить годовую", CallbackData: CallbackBuyYear}}}
}

func (c Catalog) BuyMonth() models.Keyboard {
	return models.Keyboard{{{Text: "💳 Оплатить месяц " + FormatRub(c.MonthlyPrice), CallbackData: CallbackBuyMonth}}}
}

// ActiveList — ответ на /subs.
func ActiveList(subs []*models.Subscriber) string {
	if len(subs) == 0 {
		return NoActiveSubscribers
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 Активные годовые подписки (%d):\n\n", len(subs)))
	for i, s := range subs {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, SummaryLine(*s)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
