package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntitlementState описывает состояние одного уровня подписки.
type EntitlementState uint8

const (
	// EntitlementNone — уровень никогда не оформлялся.
	EntitlementNone EntitlementState = iota
	// EntitlementActive — уровень действует до даты окончания включительно.
	EntitlementActive
	// EntitlementLapsed — уровень закончился или отменён, дата окончания сохранена.
	EntitlementLapsed
)

const dateLayout = "2006-01-02"

func (s EntitlementState) String() string {
	switch s {
	case EntitlementActive:
		return "active"
	case EntitlementLapsed:
		return "lapsed"
	default:
		return "none"
	}
}

// Entitlement — право пользователя на один уровень подписки (год или месяц).
// Активное право всегда имеет дату окончания, поэтому комбинация
// «активна, но без даты» непредставима.
type Entitlement struct {
	state EntitlementState
	end   time.Time
}

// NoEntitlement возвращает право, которое никогда не оформлялось.
func NoEntitlement() Entitlement {
	return Entitlement{}
}

// ActiveUntil возвращает действующее право с датой окончания end.
func ActiveUntil(end time.Time) Entitlement {
	return Entitlement{state: EntitlementActive, end: end}
}

// LapsedOn возвращает закончившееся право с датой окончания end.
func LapsedOn(end time.Time) Entitlement {
	return Entitlement{state: EntitlementLapsed, end: end}
}

// State возвращает состояние права.
func (e Entitlement) State() EntitlementState {
	return e.state
}

// IsActive сообщает, действует ли право.
func (e Entitlement) IsActive() bool {
	return e.state == EntitlementActive
}

// End возвращает дату окончания; false, если право не оформлялось.
func (e Entitlement) End() (time.Time, bool) {
	if e.state == EntitlementNone {
		return time.Time{}, false
	}
	return e.end, true
}

// EndsOn сообщает, что право активно и заканчивается ровно в день d.
func (e Entitlement) EndsOn(d time.Time) bool {
	return e.state == EntitlementActive && e.end.Equal(d)
}

// ReachedBy сообщает, что право активно и его дата окончания не позже d.
func (e Entitlement) ReachedBy(d time.Time) bool {
	return e.state == EntitlementActive && !e.end.After(d)
}

// Lapse переводит активное право в закончившееся, сохраняя дату окончания.
func (e Entitlement) Lapse() Entitlement {
	if e.state != EntitlementActive {
		return e
	}
	return LapsedOn(e.end)
}

// Columns раскладывает право в пару колонок хранилища.
func (e Entitlement) Columns() (bool, *time.Time) {
	if e.state == EntitlementNone {
		return false, nil
	}
	end := e.end
	return e.state == EntitlementActive, &end
}

// EntitlementFromColumns собирает право из пары колонок хранилища.
// Активный флаг без даты считается повреждённой записью.
func EntitlementFromColumns(active bool, end *time.Time) (Entitlement, error) {
	switch {
	case end == nil && active:
		return Entitlement{}, fmt.Errorf("models.EntitlementFromColumns: active entitlement without end date")
	case end == nil:
		return NoEntitlement(), nil
	case active:
		return ActiveUntil(end.UTC()), nil
	default:
		return LapsedOn(end.UTC()), nil
	}
}

type entitlementJSON struct {
	State string `json:"state"`
	End   string `json:"end,omitempty"`
}

// MarshalJSON реализует json.Marshaler.
func (e Entitlement) MarshalJSON() ([]byte, error) {
	v := entitlementJSON{State: e.state.String()}
	if e.state != EntitlementNone {
		v.End = e.end.Format(dateLayout)
	}
	return json.Marshal(v)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (e *Entitlement) UnmarshalJSON(data []byte) error {
	var v entitlementJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.State == "none" || v.State == "" {
		*e = NoEntitlement()
		return nil
	}
	end, err := time.Parse(dateLayout, v.End)
	if err != nil {
		return fmt.Errorf("models.Entitlement: %w", err)
	}
	switch v.State {
	case "active":
		*e = ActiveUntil(end)
	case "lapsed":
		*e = LapsedOn(end)
	default:
		return fmt.Errorf("models.Entitlement: unknown state %q", v.State)
	}
	return nil
}
