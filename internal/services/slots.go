package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/arda-n/TherapyDeskBack/internal/models"
)

const minutesPerDay = 24 * 60

// minuteWindow is a half-open [start, end) interval in minutes from
// midnight.
type minuteWindow struct {
	start int
	end   int
}

func (w minuteWindow) overlaps(other minuteWindow) bool {
	return w.start < other.end && w.end > other.start
}

// buildSlots expands the day's availability rules into fixed-duration
// candidate slots and flags each one. A candidate is unavailable when it
// overlaps a busy window or, on the current day, when it has already
// started (nowMinute >= 0; pass -1 for other dates). Overlapping rules can
// emit identical candidates, so the result is deduplicated by window and
// sorted by start time.
func buildSlots(
	rules []models.AvailabilityRule,
	busy []minuteWindow,
	slotMinutes int,
	nowMinute int,
) []models.Slot {
	seen := make(map[minuteWindow]struct{})
	candidates := make([]minuteWindow, 0)

	for _, rule := range rules {
		for cur := rule.StartMinute; cur+slotMinutes <= rule.EndMinute; cur += slotMinutes {
			window := minuteWindow{start: cur, end: cur + slotMinutes}
			if _, dup := seen[window]; dup {
				continue
			}
			seen[window] = struct{}{}
			candidates = append(candidates, window)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		return candidates[i].end < candidates[j].end
	})

	slots := make([]models.Slot, 0, len(candidates))
	for _, window := range candidates {
		available := true
		if nowMinute >= 0 && window.start <= nowMinute {
			available = false
		}
		for _, b := range busy {
			if window.overlaps(b) {
				available = false
				break
			}
		}
		slots = append(slots, models.Slot{
			Start:     FormatClock(window.start),
			End:       FormatClock(window.end),
			Available: available,
		})
	}

	return slots
}

// busyWindows converts booked sessions into minute windows measured from
// the start of the viewed day. Measuring from dayStart keeps an end at
// midnight as 1440 instead of wrapping to 0 on the next day.
func busyWindows(sessions []models.Session, dayStart time.Time) []minuteWindow {
	busy := make([]minuteWindow, 0, len(sessions))
	for _, session := range sessions {
		busy = append(busy, minuteWindow{
			start: int(session.StartsAt.Sub(dayStart) / time.Minute),
			end:   int(session.EndsAt.Sub(dayStart) / time.Minute),
		})
	}
	return busy
}

// windowWithinRules reports whether [startMinute, endMinute) is fully
// contained in one of the given rules. Rules are not merged: a window that
// spans two adjacent rules does not count as covered.
func windowWithinRules(rules []models.AvailabilityRule, startMinute, endMinute int) bool {
	for _, rule := range rules {
		if startMinute >= rule.StartMinute && endMinute <= rule.EndMinute {
			return true
		}
	}
	return false
}

func rulesForWeekday(rules []models.AvailabilityRule, weekday time.Weekday) []models.AvailabilityRule {
	filtered := make([]models.AvailabilityRule, 0, len(rules))
	for _, rule := range rules {
		if rule.DayOfWeek == int(weekday) {
			filtered = append(filtered, rule)
		}
	}
	return filtered
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseClock parses an HH:MM wall-clock string into minutes from midnight.
func ParseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// atMinute pins a minutes-from-midnight offset onto a calendar date in the
// date's location.
func atMinute(date time.Time, minute int) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		minute/60, minute%60, 0, 0,
		date.Location(),
	)
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
