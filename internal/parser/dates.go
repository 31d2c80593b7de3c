package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRegex   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDateRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	clockRegex     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	agoRegex       = regexp.MustCompile(`^(\d+)\s*(m|min|mins|minutes?|h|hours?|d|days?)\s+ago$`)
)

// ParseDay parses a calendar day and returns its midnight in now's location.
// Supported formats:
// - today, yesterday, tomorrow
// - yyyy-mm-dd (e.g., "2026-03-02")
// - dd/mm/yyyy (e.g., "02/03/2026")
// - X days ago (e.g., "3 days ago")
func ParseDay(input string, now time.Time) (time.Time, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	today := midnight(now)

	switch input {
	case "":
		return time.Time{}, fmt.Errorf("empty date")
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	if m := isoDateRegex.FindStringSubmatch(input); m != nil {
		return buildDate(m[1], m[2], m[3], now.Location())
	}
	if m := slashDateRegex.FindStringSubmatch(input); m != nil {
		return buildDate(m[3], m[2], m[1], now.Location())
	}
	if m := agoRegex.FindStringSubmatch(input); m != nil && strings.HasPrefix(m[2], "d") {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n), nil
	}

	return time.Time{}, fmt.Errorf("invalid date %q. Use: today, yesterday, yyyy-mm-dd, dd/mm/yyyy or X days ago", input)
}

// ParseTime parses an instant.
// Supported formats:
// - HH:MM (today)
// - yyyy-mm-dd HH:MM, dd/mm/yyyy HH:MM
// - RFC 3339 (e.g., "2026-03-02T09:00:00Z")
// - X minutes/hours ago (e.g., "90m ago", "2 hours ago")
// - now
func ParseTime(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)

	if lower == "now" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	if m := clockRegex.FindStringSubmatch(lower); m != nil {
		return atClock(midnight(now), m[1], m[2])
	}
	if m := agoRegex.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2][0] {
		case 'm':
			return now.Add(-time.Duration(n) * time.Minute), nil
		case 'h':
			return now.Add(-time.Duration(n) * time.Hour), nil
		default:
			return now.AddDate(0, 0, -n), nil
		}
	}

	// "<day> HH:MM"
	if i := strings.LastIndex(lower, " "); i > 0 {
		if m := clockRegex.FindStringSubmatch(lower[i+1:]); m != nil {
			day, err := ParseDay(lower[:i], now)
			if err != nil {
				return time.Time{}, err
			}
			return atClock(day, m[1], m[2])
		}
	}

	return time.Time{}, fmt.Errorf("invalid time %q. Use: HH:MM, yyyy-mm-dd HH:MM, RFC 3339 or X minutes/hours ago", input)
}

// ParseRange turns a named period or "from..to" into a half-open [start, end) range.
// Supported formats:
// - today, yesterday
// - week / this-week, last-week (weeks start on Monday)
// - month / this-month, last-month
// - <day>..<day> with both days included (e.g., "2026-03-02..2026-03-06")
// - a single <day>
func ParseRange(input string, now time.Time) (time.Time, time.Time, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	today := midnight(now)

	switch input {
	case "today":
		return today, today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), today, nil
	case "week", "this-week":
		start := WeekStart(now)
		return start, start.AddDate(0, 0, 7), nil
	case "last-week":
		start := WeekStart(now).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7), nil
	case "month", "this-month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case "last-month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, 0), nil
	}

	if from, to, ok := strings.Cut(input, ".."); ok {
		start, err := ParseDay(from, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		last, err := ParseDay(to, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if last.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("range %q ends before it starts", input)
		}
		return start, last.AddDate(0, 0, 1), nil
	}

	day, err := ParseDay(input, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid range %q. Use: today, week, last-week, month, last-month or from..to", input)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// WeekStart returns midnight of the Monday of t's week
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return midnight(t).AddDate(0, 0, -offset)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func buildDate(y, m, d string, loc *time.Location) (time.Time, error) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month must be between 1 and 12")
	}
	if year < 2000 || year > 2100 {
		return time.Time{}, fmt.Errorf("year must be between 2000 and 2100")
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)

	// Check if date is valid (handles leap years, etc.)
	if date.Day() != day || date.Month() != time.Month(month) || date.Year() != year {
		return time.Time{}, fmt.Errorf("invalid date %s-%s-%s", y, m, d)
	}
	return date, nil
}

func atClock(day time.Time, h, m string) (time.Time, error) {
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid clock time %s:%s", h, m)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
}

// FormatDuration renders d as "2h05m", or "45m" / "30s" when shorter
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
