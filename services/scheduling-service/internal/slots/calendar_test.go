package slots

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return ts
}

func TestNormalizeTruncatesAndIsIdempotent(t *testing.T) {
	raw := mustTime(t, "2024-01-02T10:30:45.123456789+02:00")
	got := Normalize(raw)
	want := mustTime(t, "2024-01-02T08:30:00Z")
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if again := Normalize(got); !again.Equal(got) {
		t.Fatalf("normalize not idempotent: %s vs %s", again, got)
	}
}

func TestIsValidBusinessSlot(t *testing.T) {
	cal := DefaultCalendar()
	cases := []struct {
		slot string
		want bool
	}{
		{"2024-01-02T09:00:00Z", true},
		{"2024-01-02T16:30:00Z", true},
		{"2024-01-02T17:00:00Z", false},
		{"2024-01-02T08:30:00Z", false},
		{"2024-01-02T10:15:00Z", false},
		{"2024-01-02T12:00:00+01:00", true}, // 11:00 UTC
	}
	for _, tc := range cases {
		if got := cal.IsValidBusinessSlot(mustTime(t, tc.slot)); got != tc.want {
			t.Errorf("IsValidBusinessSlot(%s) = %v, want %v", tc.slot, got, tc.want)
		}
	}
}

func TestClassifyOrder(t *testing.T) {
	cal := DefaultCalendar()
	now := mustTime(t, "2024-01-01T10:00:00Z")

	cases := []struct {
		slot string
		want Verdict
	}{
		{"2024-01-01T08:00:00Z", Past},           // also outside hours, past wins
		{"2024-01-01T09:30:00Z", Past},           // same day too, past wins
		{"2024-01-01T11:00:00Z", SameDay},        // future, same day
		{"2024-01-01T20:15:00Z", SameDay},        // same day wins over invalid hours
		{"2024-01-02T08:00:00Z", OutsideBusinessHours},
		{"2024-01-02T09:10:00Z", OutsideBusinessHours},
		{"2024-01-02T09:00:00Z", Bookable},
	}
	for _, tc := range cases {
		if got := cal.Classify(mustTime(t, tc.slot), now); got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.slot, got, tc.want)
		}
	}
}

func TestSearchOriginAndDaySlots(t *testing.T) {
	cal := DefaultCalendar()
	now := mustTime(t, "2024-01-31T23:59:00Z")
	if got, want := cal.SearchOrigin(now), mustTime(t, "2024-02-01T09:00:00Z"); !got.Equal(want) {
		t.Fatalf("origin: expected %s, got %s", want, got)
	}

	day := cal.DaySlots(cal.SearchOrigin(now))
	if len(day) != 16 {
		t.Fatalf("expected 16 slots per day, got %d", len(day))
	}
	if !day[0].Equal(mustTime(t, "2024-02-01T09:00:00Z")) || !day[15].Equal(mustTime(t, "2024-02-01T16:30:00Z")) {
		t.Fatalf("unexpected day bounds %s .. %s", day[0], day[15])
	}
	for i := 1; i < len(day); i++ {
		if !day[i].After(day[i-1]) {
			t.Fatalf("slots not ascending at %d", i)
		}
	}

	days := cal.SearchDays(now)
	if len(days) != 30 || !days[29].Equal(mustTime(t, "2024-03-01T09:00:00Z")) {
		t.Fatalf("unexpected horizon: %d days ending %s", len(days), days[len(days)-1])
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultCalendar().Validate(); err != nil {
		t.Fatalf("default calendar invalid: %v", err)
	}
	bad := DefaultCalendar()
	bad.Interval = 7 * time.Minute
	bad.OpenHour, bad.CloseHour = 17, 9
	bad.HorizonDays = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWithinModificationWindow(t *testing.T) {
	cal := DefaultCalendar()
	created := mustTime(t, "2024-01-01T10:00:00Z")
	if !cal.WithinModificationWindow(created, created.Add(2*time.Hour)) {
		t.Fatal("boundary should be inside the window")
	}
	if cal.WithinModificationWindow(created, created.Add(2*time.Hour+time.Second)) {
		t.Fatal("just past the boundary should be outside the window")
	}
}

func TestDefaultCalendarAndDayHelpers(t *testing.T) {
	cal := DefaultCalendar()
	if err := cal.Validate(); err != nil {
		t.Fatalf("default calendar must validate: %v", err)
	}

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !IsPast(now.Add(-time.Minute), now) || IsPast(now, now) {
		t.Fatal("IsPast must be strict")
	}
	local := time.FixedZone("UTC-5", -5*60*60)
	if !IsSameCalendarDay(time.Date(2024, 1, 1, 18, 0, 0, 0, local), now) {
		t.Fatal("18:00 at UTC-5 is 23:00 UTC on the same day")
	}
	if IsSameCalendarDay(time.Date(2024, 1, 1, 20, 0, 0, 0, local), now) {
		t.Fatal("20:00 at UTC-5 is the next UTC day")
	}
}
