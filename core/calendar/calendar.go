// Package calendar implements working-hour time arithmetic for a single fixed
// daily window [open, close). Durations only accumulate inside the window and
// roll over to the next day's opening when the current day is exhausted.
package calendar

import (
	"fmt"
	"time"
)

// Calendar converts start timestamps and durations into end timestamps that
// honor the daily working window. The zero value is not usable; use New.
type Calendar struct {
	open  time.Duration // offset from midnight
	close time.Duration // offset from midnight, exclusive
}

// New returns a calendar whose window opens at startHour and closes at
// endHour local time.
func New(startHour, endHour int) (Calendar, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Calendar{}, fmt.Errorf("invalid working window %02d:00-%02d:00", startHour, endHour)
	}
	return Calendar{
		open:  time.Duration(startHour) * time.Hour,
		close: time.Duration(endHour) * time.Hour,
	}, nil
}

// MustNew is like New but panics on an invalid window.
func MustNew(startHour, endHour int) Calendar {
	c, err := New(startHour, endHour)
	if err != nil {
		panic(err)
	}
	return c
}

// Length returns the length of one working day.
func (c Calendar) Length() time.Duration { return c.close - c.open }

// OpenOn returns the window opening on the day of t, in t's location.
func (c Calendar) OpenOn(t time.Time) time.Time { return at(t, 0, c.open) }

// CloseOn returns the window closing on the day of t, in t's location.
func (c Calendar) CloseOn(t time.Time) time.Time { return at(t, 0, c.close) }

func at(t time.Time, dayOffset int, offset time.Duration) time.Time {
	y, m, d := t.Date()
	h := int(offset / time.Hour)
	mins := int((offset % time.Hour) / time.Minute)
	return time.Date(y, m, d+dayOffset, h, mins, 0, 0, t.Location())
}

// Snap moves t into the working window: before opening it moves forward to
// the same day's opening, at or after closing to the next day's opening.
func (c Calendar) Snap(t time.Time) time.Time {
	open := c.OpenOn(t)
	if t.Before(open) {
		return open
	}
	if !t.Before(c.CloseOn(t)) {
		return at(t, 1, c.open)
	}
	return t
}

// InWindow reports whether t lies inside the working window.
func (c Calendar) InWindow(t time.Time) bool { return c.Snap(t).Equal(t) }

// EndTime returns the timestamp at which a job of duration d started at
// start completes, counting only in-window time. A zero duration returns the
// snapped start.
func (c Calendar) EndTime(start time.Time, d time.Duration) time.Time {
	cur := c.Snap(start)
	remaining := d
	for remaining > 0 {
		left := c.CloseOn(cur).Sub(cur)
		if remaining <= left {
			return cur.Add(remaining)
		}
		remaining -= left
		cur = at(cur, 1, c.open)
	}
	return cur
}

// WorkingBetween returns the in-window time elapsed between a and b.
func (c Calendar) WorkingBetween(a, b time.Time) time.Duration {
	if !b.After(a) {
		return 0
	}
	var total time.Duration
	cur := c.Snap(a)
	for cur.Before(b) {
		closing := c.CloseOn(cur)
		if !b.Before(closing) {
			total += closing.Sub(cur)
			cur = at(cur, 1, c.open)
			continue
		}
		total += b.Sub(cur)
		break
	}
	return total
}
