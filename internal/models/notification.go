package models

// ReminderKind — вид уведомления пользователю.
type ReminderKind string

// Уведомления планировщика.
const (
	ReminderMonthlySoon    ReminderKind = "monthly_soon"
	ReminderMonthlyExpired ReminderKind = "monthly_expired"
	ReminderAnnualSoon     ReminderKind = "annual_soon"
	ReminderAnnualExpired  ReminderKind = "annual_expired"
)

// Ответы на действия пользователя.
const (
	NoticeActivated   ReminderKind = "activated"
	NoticeMonthlyPaid ReminderKind = "monthly_paid"
	NoticeNeedAnnual  ReminderKind = "need_annual"
	NoticeCancelled   ReminderKind = "cancelled"
)

// Button — inline-кнопка под сообщением.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Keyboard — inline-клавиатура: ряды кнопок.
type Keyboard [][]Button

// Notification — текстовое сообщение одному пользователю.
type Notification struct {
	ID       string       `json:"id"`
	ChatID   int64        `json:"chat_id"`
	Kind     ReminderKind `json:"kind"`
	Text     string       `json:"text"`
	Keyboard Keyboard     `json:"keyboard,omitempty"`
}
