package common

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"monday maps to itself", time.Date(2026, 1, 12, 15, 30, 0, 0, time.UTC), "2026-01-12"},
		{"wednesday maps back to monday", time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC), "2026-01-12"},
		{"saturday maps back to monday", time.Date(2026, 1, 17, 23, 59, 0, 0, time.UTC), "2026-01-12"},
		{"sunday belongs to the previous monday", time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), "2026-01-12"},
		{"next monday starts a new week", time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), "2026-01-19"},
		{"crosses month boundary", time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), "2026-01-26"},
		{"crosses year boundary", time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC), "2026-12-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.in)
			if got.Format(DateFormat) != tt.want {
				t.Errorf("WeekStart(%v) = %s, want %s", tt.in, got.Format(DateFormat), tt.want)
			}
			if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
				t.Errorf("WeekStart(%v) is not midnight: %v", tt.in, got)
			}
		})
	}
}

func TestWeekStartNormalizesTimezone(t *testing.T) {
	// 23:00 Sunday in UTC-5 is already Monday 04:00 UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	in := time.Date(2026, 1, 18, 23, 0, 0, 0, loc)

	got := WeekStart(in)
	if got.Format(DateFormat) != "2026-01-19" {
		t.Errorf("WeekStart(%v) = %s, want 2026-01-19", in, got.Format(DateFormat))
	}
}

func TestWeekEnd(t *testing.T) {
	tests := []struct {
		weekStart string
		want      string
	}{
		{"2026-01-12", "2026-01-16"},
		{"2026-01-26", "2026-01-30"},
		{"2026-12-28", "2027-01-01"},
		{"garbage", "garbage"},
	}

	for _, tt := range tests {
		if got := WeekEnd(tt.weekStart); got != tt.want {
			t.Errorf("WeekEnd(%q) = %q, want %q", tt.weekStart, got, tt.want)
		}
	}
}
