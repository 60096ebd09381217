package usecase

import (
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const maxWindowSearchDays = 400

// SendWindow restricts slots to working hours in one timezone, optionally
// skipping weekends and holidays. The zero value is always open.
type SendWindow struct {
	Location     *time.Location
	StartHour    int
	EndHour      int
	SkipWeekends bool
	Holidays     map[string]bool // YYYY-MM-DD in Location
}

func (w SendWindow) alwaysOpen() bool {
	return w.StartHour == 0 && w.EndHour == 0 && !w.SkipWeekends && len(w.Holidays) == 0
}

func (w SendWindow) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w SendWindow) endHour() int {
	if w.EndHour <= 0 || w.EndHour > 24 {
		return 24
	}
	return w.EndHour
}

func (w SendWindow) openDay(day time.Time) bool {
	if w.SkipWeekends {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	return !w.Holidays[day.Format("2006-01-02")]
}

// Next returns the earliest instant at or after t inside the window, in UTC.
func (w SendWindow) Next(t time.Time) time.Time {
	if w.alwaysOpen() {
		return t.UTC()
	}
	loc := w.location()
	local := t.In(loc)

	for i := 0; i < maxWindowSearchDays; i++ {
		y, m, d := local.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		if w.openDay(day) {
			open := time.Date(y, m, d, w.StartHour, 0, 0, 0, loc)
			closeAt := time.Date(y, m, d, w.endHour(), 0, 0, 0, loc)
			if local.Before(open) {
				return open.UTC()
			}
			if local.Before(closeAt) {
				return local.UTC()
			}
		}
		local = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	// misconfigured calendar (every day a holiday); fall back to t
	return t.UTC()
}

// NextDay returns local midnight of the day after t.
func (w SendWindow) NextDay(t time.Time) time.Time {
	y, m, d := t.In(w.location()).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, w.location()).UTC()
}

func (w SendWindow) SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(w.location()).Date()
	by, bm, bd := b.In(w.location()).Date()
	return ay == by && am == bm && ad == bd
}

// slotPlanner hands out per-account slots. Each slot is at least delay after
// the previous one and never earlier than now; the window and daily cap only
// push slots later, so spacing holds.
type slotPlanner struct {
	window     SendWindow
	delay      time.Duration
	dailyLimit int
	last       time.Time
	dayCount   int
}

func newSlotPlanner(window SendWindow, delay time.Duration, dailyLimit int, wm entity.Watermark) *slotPlanner {
	return &slotPlanner{
		window:     window,
		delay:      delay,
		dailyLimit: dailyLimit,
		last:       wm.LastSlot,
		dayCount:   wm.DayCount,
	}
}

func (p *slotPlanner) next(now time.Time) time.Time {
	candidate := now
	if !p.last.IsZero() {
		if min := p.last.Add(p.delay); min.After(candidate) {
			candidate = min
		}
	}

	slot := p.window.Next(candidate)
	for p.dailyLimit > 0 && p.window.SameDay(slot, p.last) && p.dayCount >= p.dailyLimit {
		slot = p.window.Next(p.window.NextDay(slot))
	}

	if p.window.SameDay(slot, p.last) {
		p.dayCount++
	} else {
		p.dayCount = 1
	}
	p.last = slot
	return slot
}

func (p *slotPlanner) watermark() entity.Watermark {
	return entity.Watermark{LastSlot: p.last, DayCount: p.dayCount}
}
