package common

import "time"

// DateFormat is the canonical YYYY-MM-DD layout used for week
// boundaries and news date ranges.
const DateFormat = "2006-01-02"

// WeekStart returns the Monday (start of day, UTC) of the calendar week
// containing t. A Sunday belongs to the week that started the previous
// Monday.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := int(t.Weekday())
	diff := day - 1
	if day == 0 { // Sunday
		diff = 6
	}
	monday := t.AddDate(0, 0, -diff)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekEnd returns the Friday of a Monday-start week as YYYY-MM-DD.
// Always weekStart + 4 calendar days, independent of holidays.
func WeekEnd(weekStart string) string {
	t, err := time.Parse(DateFormat, weekStart)
	if err != nil {
		return weekStart
	}
	return t.AddDate(0, 0, 4).Format(DateFormat)
}
