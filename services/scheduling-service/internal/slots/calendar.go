// Package slots holds the calendar arithmetic for bookable slots. Everything
// here is pure and operates on the canonical UTC clock.
package slots

import (
	"errors"
	"fmt"
	"time"
)

// Calendar describes which instants are bookable. It is fixed for the
// lifetime of the process.
type Calendar struct {
	Interval           time.Duration
	OpenHour           int
	CloseHour          int
	ModificationWindow time.Duration
	HorizonDays        int
}

// DefaultCalendar is 30-minute slots from 09:00 to 17:00 UTC, a 2h
// modification window and a 30-day search horizon.
func DefaultCalendar() Calendar {
	return Calendar{
		Interval:           30 * time.Minute,
		OpenHour:           9,
		CloseHour:          17,
		ModificationWindow: 2 * time.Hour,
		HorizonDays:        30,
	}
}

// Validate reports every misconfigured field at once.
func (c Calendar) Validate() error {
	var errs []error
	if c.Interval <= 0 || c.Interval%time.Minute != 0 || c.Interval > time.Hour || time.Hour%c.Interval != 0 {
		errs = append(errs, fmt.Errorf("slot interval %s must be a whole number of minutes dividing an hour", c.Interval))
	}
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		errs = append(errs, fmt.Errorf("business hours [%d, %d) are not a valid window", c.OpenHour, c.CloseHour))
	}
	if c.ModificationWindow < 0 {
		errs = append(errs, fmt.Errorf("modification window %s must not be negative", c.ModificationWindow))
	}
	if c.HorizonDays <= 0 {
		errs = append(errs, fmt.Errorf("search horizon %d days must be positive", c.HorizonDays))
	}
	return errors.Join(errs...)
}

// Normalize drops seconds and sub-seconds and moves t onto UTC. It is idempotent.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// IsValidBusinessSlot reports whether slot starts on the interval grid within
// business hours. The closing hour itself is not bookable.
func (c Calendar) IsValidBusinessSlot(slot time.Time) bool {
	slot = slot.UTC()
	if slot.Hour() < c.OpenHour || slot.Hour() >= c.CloseHour {
		return false
	}
	step := int(c.Interval / time.Minute)
	return step > 0 && slot.Minute()%step == 0
}

// IsPast reports whether slot is strictly before now.
func IsPast(slot, now time.Time) bool {
	return slot.Before(now)
}

// IsSameCalendarDay compares UTC calendar dates.
func IsSameCalendarDay(slot, now time.Time) bool {
	sy, sm, sd := slot.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return sy == ny && sm == nm && sd == nd
}

// Verdict is the outcome of classifying a requested slot.
type Verdict int

const (
	Bookable Verdict = iota
	Past
	SameDay
	OutsideBusinessHours
)

func (v Verdict) String() string {
	switch v {
	case Bookable:
		return "bookable"
	case Past:
		return "past"
	case SameDay:
		return "same_day"
	case OutsideBusinessHours:
		return "outside_business_hours"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Classify checks an already normalized slot. Past wins over same-day, which
// wins over business-hour violations.
func (c Calendar) Classify(slot, now time.Time) Verdict {
	switch {
	case IsPast(slot, now):
		return Past
	case IsSameCalendarDay(slot, now):
		return SameDay
	case !c.IsValidBusinessSlot(slot):
		return OutsideBusinessHours
	default:
		return Bookable
	}
}

// SearchOrigin is opening time on the UTC day after now.
func (c Calendar) SearchOrigin(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, c.OpenHour, 0, 0, 0, time.UTC)
}

// DaySlots lists the bookable slots on the UTC date of day, in chronological order.
func (c Calendar) DaySlots(day time.Time) []time.Time {
	y, m, d := day.UTC().Date()
	step := int(c.Interval / time.Minute)
	if step <= 0 {
		return nil
	}
	out := make([]time.Time, 0, (c.CloseHour-c.OpenHour)*(60/step))
	for hour := c.OpenHour; hour < c.CloseHour; hour++ {
		for minute := 0; minute < 60; minute += step {
			out = append(out, time.Date(y, m, d, hour, minute, 0, 0, time.UTC))
		}
	}
	return out
}

// SearchDays returns the horizon's days starting at SearchOrigin(now).
func (c Calendar) SearchDays(now time.Time) []time.Time {
	origin := c.SearchOrigin(now)
	days := make([]time.Time, c.HorizonDays)
	for i := range days {
		days[i] = origin.AddDate(0, 0, i)
	}
	return days
}

// WithinModificationWindow reports whether a booking created at createdAt may
// still be changed at now. The boundary itself is inside the window.
func (c Calendar) WithinModificationWindow(createdAt, now time.Time) bool {
	return now.Sub(createdAt) <= c.ModificationWindow
}
