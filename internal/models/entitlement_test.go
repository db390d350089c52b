package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEntitlement_States(t *testing.T) {
	end := day(2024, time.February, 1)

	none := NoEntitlement()
	_, ok := none.End()
	assert.False(t, ok)
	assert.False(t, none.IsActive())
	assert.Equal(t, EntitlementNone, none.Lapse().State())

	active := ActiveUntil(end)
	got, ok := active.End()
	require.True(t, ok)
	assert.Equal(t, end, got)
	assert.True(t, active.IsActive())
	assert.True(t, active.EndsOn(end))
	assert.False(t, active.EndsOn(end.AddDate(0, 0, 1)))

	lapsed := active.Lapse()
	assert.Equal(t, EntitlementLapsed, lapsed.State())
	got, _ = lapsed.End()
	assert.Equal(t, end, got)
	assert.False(t, lapsed.EndsOn(end))
}

func TestEntitlement_ReachedBy(t *testing.T) {
	e := ActiveUntil(day(2024, time.February, 1))

	assert.False(t, e.ReachedBy(day(2024, time.January, 31)))
	assert.True(t, e.ReachedBy(day(2024, time.February, 1)))
	assert.True(t, e.ReachedBy(day(2024, time.February, 5)))
	assert.False(t, e.Lapse().ReachedBy(day(2024, time.February, 5)))
}

func TestEntitlementFromColumns(t *testing.T) {
	end := day(2024, time.March, 3)

	tests := []struct {
		name    string
		active  bool
		end     *time.Time
		want    Entitlement
		wantErr bool
	}{
		{name: "не оформлялась", want: NoEntitlement()},
		{name: "активна", active: true, end: &end, want: ActiveUntil(end)},
		{name: "закончилась", end: &end, want: LapsedOn(end)},
		{name: "активна без даты", active: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EntitlementFromColumns(tt.active, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			active, gotEnd := got.Columns()
			assert.Equal(t, tt.active, active)
			assert.Equal(t, tt.end, gotEnd)
		})
	}
}

func TestSubscriber_JSONKeepsEntitlements(t *testing.T) {
	s := Subscriber{
		ChatID:  10,
		Tag:     DefaultTag,
		Annual:  ActiveUntil(day(2025, time.January, 1)),
		Monthly: LapsedOn(day(2024, time.February, 1)),
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"annual":{"state":"active","end":"2025-01-01"}`)

	var back Subscriber
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s.Annual, back.Annual)
	assert.Equal(t, s.Monthly, back.Monthly)
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan("subscribe_year_1")
	require.NoError(t, err)
	assert.Equal(t, PlanAnnual, p)

	p, err = ParsePlan("subscribe_month_1")
	require.NoError(t, err)
	assert.Equal(t, PlanMonthly, p)

	_, err = ParsePlan("subscribe_week_1")
	assert.Error(t, err)
}
