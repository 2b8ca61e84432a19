package campaigns

import (
	"errors"
	"testing"
	"time"
)

func at(hh, mm int) time.Time {
	return time.Date(2025, 3, 10, hh, mm, 0, 0, time.UTC)
}

func TestCheckWindow_DailyBoundaries(t *testing.T) {
	c := Campaign{TimeStart: "09:00", TimeEnd: "18:00"}
	cases := []struct {
		now  time.Time
		want bool
	}{
		{at(8, 59), false},
		{at(9, 0), true},
		{at(12, 30), true},
		{at(18, 0), true},
		{at(18, 1), false},
	}
	for _, tc := range cases {
		err := CheckWindow(c, tc.now, time.UTC)
		if tc.want && err != nil {
			t.Fatalf("%s: expected inside window, got %v", tc.now.Format("15:04"), err)
		}
		if !tc.want && !errors.Is(err, ErrOutOfWindow) {
			t.Fatalf("%s: expected ErrOutOfWindow, got %v", tc.now.Format("15:04"), err)
		}
	}
}

func TestCheckWindow_ReportsBounds(t *testing.T) {
	c := Campaign{TimeStart: "09:00", TimeEnd: "18:00"}
	err := CheckWindow(c, at(20, 0), time.UTC)
	var werr *WindowError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WindowError, got %T", err)
	}
	if werr.TimeStart != "09:00" || werr.TimeEnd != "18:00" {
		t.Fatalf("expected violating bounds in error, got %+v", werr)
	}
}

func TestCheckWindow_DateRange(t *testing.T) {
	c := Campaign{StartDate: "2025-03-10", EndDate: "2025-03-12"}
	if err := CheckWindow(c, at(0, 0), time.UTC); err != nil {
		t.Fatalf("first day should be inside: %v", err)
	}
	if err := CheckWindow(c, time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC), time.UTC); err != nil {
		t.Fatalf("last day should be inside: %v", err)
	}
	if err := CheckWindow(c, time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC), time.UTC); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected not-started rejection, got %v", err)
	}
	if err := CheckWindow(c, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), time.UTC); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected ended rejection, got %v", err)
	}
}

func TestCheckWindow_UsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	c := Campaign{TimeStart: "09:00", TimeEnd: "18:00"}
	// 04:00 UTC is 09:30 IST.
	if err := CheckWindow(c, at(4, 0), ist); err != nil {
		t.Fatalf("expected inside window in IST, got %v", err)
	}
	if err := CheckWindow(c, at(4, 0), time.UTC); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected rejection in UTC, got %v", err)
	}
}

func TestCheckWindow_OvernightAndOpen(t *testing.T) {
	night := Campaign{TimeStart: "22:00", TimeEnd: "02:00"}
	if err := CheckWindow(night, at(23, 30), time.UTC); err != nil {
		t.Fatalf("expected 23:30 inside overnight window: %v", err)
	}
	if err := CheckWindow(night, at(1, 0), time.UTC); err != nil {
		t.Fatalf("expected 01:00 inside overnight window: %v", err)
	}
	if err := CheckWindow(night, at(12, 0), time.UTC); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected noon outside overnight window, got %v", err)
	}
	if err := CheckWindow(Campaign{}, at(3, 0), time.UTC); err != nil {
		t.Fatalf("campaign without window should always start: %v", err)
	}
}

func TestCheckWindow_InvalidClock(t *testing.T) {
	err := CheckWindow(Campaign{TimeStart: "25:00"}, at(9, 0), time.UTC)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := CheckWindow(Campaign{TimeStart: "09:00:00", TimeEnd: "18:00:00"}, at(9, 0), time.UTC); err != nil {
		t.Fatalf("HH:MM:SS should parse: %v", err)
	}
}
