// Package models содержит доменные структуры бота подписок:
// подписчика с двумя уровнями прав, тарифы, уведомления и медиа рассылок.
package models

import (
	"fmt"
	"time"
)

// DefaultTag — метка, которую получает новый подписчик.
const DefaultTag = "basic"

// Subscriber — пользователь бота и состояние его подписки.
type Subscriber struct {
	ChatID    int64       `json:"chat_id"`
	Username  string      `json:"username"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Tag       string      `json:"tag"`
	IsAdmin   bool        `json:"is_admin"`
	Annual    Entitlement `json:"annual"`
	Monthly   Entitlement `json:"monthly"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Plan — оплачиваемый тариф.
type Plan string

const (
	// PlanAnnual — годовая подписка.
	PlanAnnual Plan = "subscribe_year_1"
	// PlanMonthly — ежемесячная оплата внутри года.
	PlanMonthly Plan = "subscribe_month_1"
)

// ParsePlan разбирает payload счёта.
func ParsePlan(payload string) (Plan, error) {
	switch p := Plan(payload); p {
	case PlanAnnual, PlanMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("models.ParsePlan: unknown payload %q", payload)
	}
}
