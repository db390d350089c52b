package telegram

import (
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// IsPermanent сообщает, что повтор запроса не поможет:
// пользователь заблокировал бота, чат удалён или запрос некорректен.
func IsPermanent(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusForbidden:
		return true
	default:
		return false
	}
}
