package month

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{"обычный сдвиг", Day(2024, time.January, 1), 1, Day(2024, time.February, 1)},
		{"год", Day(2024, time.January, 1), 12, Day(2025, time.January, 1)},
		{"конец января в високосный год", Day(2024, time.January, 31), 1, Day(2024, time.February, 29)},
		{"конец января в обычный год", Day(2023, time.January, 31), 1, Day(2023, time.February, 28)},
		{"29 февраля плюс год", Day(2024, time.February, 29), 12, Day(2025, time.February, 28)},
		{"переход через год", Day(2024, time.December, 15), 1, Day(2025, time.January, 15)},
		{"31 марта плюс месяц", Day(2024, time.March, 31), 1, Day(2024, time.April, 30)},
		{"ноль", Day(2024, time.May, 5), 0, Day(2024, time.May, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.from, tt.n))
		})
	}
}

func TestDate_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 21:30 UTC 31 декабря — это уже 1 января в UTC+5.
	instant := time.Date(2023, time.December, 31, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, Day(2024, time.January, 1), Date(instant, loc))
	assert.Equal(t, Day(2023, time.December, 31), Date(instant, nil))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, Day(2024, time.March, 1), AddDays(Day(2024, time.February, 27), 3))
	assert.Equal(t, Day(2024, time.January, 29), AddDays(Day(2024, time.February, 1), -3))
}

func TestMin(t *testing.T) {
	a := Day(2024, time.January, 1)
	b := Day(2024, time.February, 1)

	assert.Equal(t, a, Min(a, b))
	assert.Equal(t, a, Min(b, a))
	assert.Equal(t, a, Min(a, a))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(Day(2024, time.February, 10)))
	assert.Equal(t, 28, DaysIn(Day(2023, time.February, 10)))
	assert.Equal(t, 31, DaysIn(Day(2023, time.December, 1)))
}
