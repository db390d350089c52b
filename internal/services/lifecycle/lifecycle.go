// Package lifecycle реализует правила смены состояний двухуровневой подписки:
// годовой доступ и вложенная в него ежемесячная оплата.
//
// Все операции чистые: принимают снимок подписчика и текущий день
// и возвращают новый снимок. Сохранение и уведомления — забота вызывающего.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/month"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// ErrNoActiveAnnual возвращается при попытке оплатить месяц без действующего года.
var ErrNoActiveAnnual = errors.New("no active annual subscription")

// Terms задаёт длительность уровней в календарных месяцах.
type Terms struct {
	AnnualMonths  int
	MonthlyMonths int
}

// DefaultTerms — год и месяц.
func DefaultTerms() Terms {
	return Terms{AnnualMonths: 12, MonthlyMonths: 1}
}

// Engine применяет переходы состояний.
type Engine struct {
	terms Terms
}

// New создаёт движок. Нулевые значения сроков заменяются значениями по умолчанию.
func New(terms Terms) *Engine {
	def := DefaultTerms()
	if terms.AnnualMonths <= 0 {
		terms.AnnualMonths = def.AnnualMonths
	}
	if terms.MonthlyMonths <= 0 {
		terms.MonthlyMonths = def.MonthlyMonths
	}
	return &Engine{terms: terms}
}

// Terms возвращает действующие сроки.
func (e *Engine) Terms() Terms {
	return e.terms
}

// ActivateAnnual оформляет год с сегодняшнего дня и первый оплаченный месяц.
func (e *Engine) ActivateAnnual(s models.Subscriber, today time.Time) models.Subscriber {
	yearEnd := month.AddMonths(today, e.terms.AnnualMonths)
	monthEnd := month.Min(month.AddMonths(today, e.terms.MonthlyMonths), yearEnd)

	s.Annual = models.ActiveUntil(yearEnd)
	s.Monthly = models.ActiveUntil(monthEnd)
	return s
}

// ExtendMonthly продлевает оплаченный месяц.
// Если текущий месяц ещё не закончился, продление считается от его конца,
// иначе от сегодняшнего дня. Конец месяца не выходит за конец года.
func (e *Engine) ExtendMonthly(s models.Subscriber, today time.Time) (models.Subscriber, error) {
	const op = "lifecycle.ExtendMonthly"

	yearEnd, ok := s.Annual.End()
	if !ok || !s.Annual.IsActive() || yearEnd.Before(today) {
		return s, fmt.Errorf("%s: %w", op, ErrNoActiveAnnual)
	}

	base := today
	if monthEnd, ok := s.Monthly.End(); ok && !monthEnd.Before(today) {
		base = monthEnd
	}

	s.Monthly = models.ActiveUntil(month.Min(month.AddMonths(base, e.terms.MonthlyMonths), yearEnd))
	return s, nil
}

// Cancel отключает оба уровня с сегодняшней датой окончания.
func (e *Engine) Cancel(s models.Subscriber, today time.Time) models.Subscriber {
	s.Annual = models.LapsedOn(today)
	s.Monthly = models.LapsedOn(today)
	return s
}

// ExpireMonthly снимает месячную оплату, если её срок наступил.
// Годовой уровень не меняется. Во всех остальных случаях снимок возвращается как есть.
func (e *Engine) ExpireMonthly(s models.Subscriber, today time.Time) (models.Subscriber, bool) {
	if !s.Monthly.ReachedBy(today) {
		return s, false
	}
	s.Monthly = s.Monthly.Lapse()
	return s, true
}

// ExpireAnnual закрывает подписку, если срок года наступил. Эквивалентно Cancel.
func (e *Engine) ExpireAnnual(s models.Subscriber, today time.Time) (models.Subscriber, bool) {
	if !s.Annual.ReachedBy(today) {
		return s, false
	}
	return e.Cancel(s, today), true
}

// CheckInvariants проверяет согласованность уровней:
// активный месяц возможен только внутри активного года.
func CheckInvariants(s models.Subscriber) error {
	const op = "lifecycle.CheckInvariants"

	if !s.Monthly.IsActive() {
		return nil
	}
	if !s.Annual.IsActive() {
		return fmt.Errorf("%s: monthly active while annual is %s", op, s.Annual.State())
	}
	monthEnd, _ := s.Monthly.End()
	yearEnd, _ := s.Annual.End()
	if monthEnd.After(yearEnd) {
		return fmt.Errorf("%s: monthly end %s after annual end %s", op,
			monthEnd.Format(time.DateOnly), yearEnd.Format(time.DateOnly))
	}
	return nil
}
