package services

import (
	"testing"
	"time"

	"github.com/arda-n/TherapyDeskBack/internal/models"
)

func TestBuildSlotsExpandsRules(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}

	slots := buildSlots(rules, nil, 60, -1)

	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	expected := []string{"09:00", "10:00", "11:00"}
	for i, slot := range slots {
		if slot.Start != expected[i] {
			t.Fatalf("slot %d: expected start %s, got %s", i, expected[i], slot.Start)
		}
		if !slot.Available {
			t.Fatalf("slot %d: expected available", i)
		}
	}
}

func TestBuildSlotsSkipsRuleShorterThanSlot(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 9*60 + 30},
	}

	if slots := buildSlots(rules, nil, 60, -1); len(slots) != 0 {
		t.Fatalf("expected no slots from a 30 minute rule, got %d", len(slots))
	}
}

func TestBuildSlotsDeduplicatesOverlappingRules(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 11 * 60},
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}

	slots := buildSlots(rules, nil, 60, -1)

	if len(slots) != 3 {
		t.Fatalf("expected 3 deduplicated slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Start <= slots[i-1].Start {
			t.Fatalf("slots not sorted: %+v", slots)
		}
	}
}

func TestBuildSlotsFlagsBusyWindows(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}
	busy := []minuteWindow{
		{start: 10 * 60, end: 11 * 60},
	}

	slots := buildSlots(rules, busy, 60, -1)

	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Available || slots[1].Available || !slots[2].Available {
		t.Fatalf("expected only 10:00 busy, got %+v", slots)
	}
}

func TestBuildSlotsFlagsPartialOverlapAsBusy(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 11 * 60},
	}
	busy := []minuteWindow{
		{start: 9*60 + 30, end: 10*60 + 30},
	}

	slots := buildSlots(rules, busy, 60, -1)

	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Available || slots[1].Available {
		t.Fatalf("expected both slots busy, got %+v", slots)
	}
}

func TestBuildSlotsFlagsStartedSlotsOnCurrentDay(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}

	slots := buildSlots(rules, nil, 60, 10*60+15)

	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[0].Available || slots[1].Available {
		t.Fatalf("expected started slots unavailable, got %+v", slots)
	}
	if !slots[2].Available {
		t.Fatalf("expected 11:00 available, got %+v", slots)
	}
}

func TestBusyWindowsKeepsMidnightEndAs1440(t *testing.T) {
	dayStart := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		{
			StartsAt: dayStart.Add(23 * time.Hour),
			EndsAt:   dayStart.AddDate(0, 0, 1),
		},
	}

	busy := busyWindows(sessions, dayStart)

	if len(busy) != 1 {
		t.Fatalf("expected 1 busy window, got %d", len(busy))
	}
	if busy[0].start != 23*60 || busy[0].end != minutesPerDay {
		t.Fatalf("expected [1380, 1440), got [%d, %d)", busy[0].start, busy[0].end)
	}
}

func TestBuildSlotsFlagsSessionEndingAtMidnight(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 22 * 60, EndMinute: minutesPerDay},
	}
	dayStart := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	busy := busyWindows([]models.Session{
		{
			StartsAt: dayStart.Add(23 * time.Hour),
			EndsAt:   dayStart.AddDate(0, 0, 1),
		},
	}, dayStart)

	slots := buildSlots(rules, busy, 60, -1)

	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Available {
		t.Fatalf("expected 22:00 available, got %+v", slots)
	}
	if slots[1].Available {
		t.Fatalf("expected 23:00 busy, got %+v", slots)
	}
}

func TestWindowWithinRules(t *testing.T) {
	rules := []models.AvailabilityRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
		{DayOfWeek: 1, StartMinute: 12 * 60, EndMinute: 14 * 60},
	}

	if !windowWithinRules(rules, 9*60, 10*60) {
		t.Fatal("expected window inside first rule to be covered")
	}
	if !windowWithinRules(rules, 12*60, 14*60) {
		t.Fatal("expected window matching second rule exactly to be covered")
	}
	if windowWithinRules(rules, 11*60, 13*60) {
		t.Fatal("window spanning two adjacent rules must not be covered")
	}
	if windowWithinRules(rules, 8*60, 9*60) {
		t.Fatal("window outside all rules must not be covered")
	}
}

func TestParseClockRoundTrips(t *testing.T) {
	cases := []struct {
		value  string
		minute int
	}{
		{"00:00", 0},
		{"09:05", 9*60 + 5},
		{"23:59", 23*60 + 59},
	}

	for _, tc := range cases {
		minute, err := ParseClock(tc.value)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.value, err)
		}
		if minute != tc.minute {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.value, minute, tc.minute)
		}
		if got := FormatClock(minute); got != tc.value {
			t.Fatalf("FormatClock(%d) = %q, want %q", minute, got, tc.value)
		}
	}

	if _, err := ParseClock("9am"); err == nil {
		t.Fatal("expected error for non HH:MM input")
	}
}
