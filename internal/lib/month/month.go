// Package month содержит календарную арифметику для сроков подписки.
//
// Все даты в пакете — календарные дни без времени: полночь в UTC.
// Перевод момента времени в день выполняется в часовом поясе сервиса.
package month

import "time"

// Date возвращает календарную дату момента t в часовом поясе loc.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day собирает календарную дату из года, месяца и дня.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddMonths сдвигает дату на n календарных месяцев.
// Если в целевом месяце нет такого числа, берётся последний день месяца:
// 31 января + 1 месяц = 29 февраля в високосный год.
func AddMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysIn(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// AddDays сдвигает дату на n дней.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysIn возвращает количество дней в месяце даты d.
func DaysIn(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Min возвращает более раннюю из двух дат.
func Min(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
