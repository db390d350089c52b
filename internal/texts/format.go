package texts

import (
	"strconv"
	"strings"
	"time"
)

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDate печатает дату как «1 февраля 2024».
func FormatDate(d time.Time) string {
	return strconv.Itoa(d.Day()) + " " + monthsGenitive[d.Month()-1] + " " + strconv.Itoa(d.Year())
}

// FormatRub печатает сумму в копейках как «2 900 ₽» или «199,50 ₽».
func FormatRub(kopeks int) string {
	rub, kop := kopeks/100, kopeks%100

	digits := strconv.Itoa(rub)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if kop != 0 {
		b.WriteString(",")
		if kop < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.Itoa(kop))
	}
	b.WriteString(" ₽")
	return b.String()
}

// Days печатает количество дней с согласованным словом: «1 день», «3 дня», «5 дней».
func Days(n int) string {
	word := "дней"
	switch mod100 := n % 100; {
	case mod100 >= 11 && mod100 <= 14:
	case n%10 == 1:
		word = "день"
	case n%10 >= 2 && n%10 <= 4:
		word = "дня"
	}
	return strconv.Itoa(n) + " " + word
}
