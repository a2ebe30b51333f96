package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay bounds every minute-of-day value to [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// DateLayout is the calendar-day format used for booking dates.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidInterval is returned when a time range is empty, inverted or outside a single day.
	ErrInvalidInterval = errors.New("scheduler: invalid interval")
	// ErrInvalidClock is returned when a wall-clock value cannot be parsed.
	ErrInvalidClock = errors.New("scheduler: invalid clock value")
	// ErrInvalidDate is returned when a calendar day cannot be parsed.
	ErrInvalidDate = errors.New("scheduler: invalid date")
)

// Interval is a half-open [Start, End) range expressed in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// NewInterval validates the bounds and returns the interval.
func NewInterval(start, end int) (Interval, error) {
	if start < 0 || start >= MinutesPerDay || end < 0 || end >= MinutesPerDay {
		return Interval{}, fmt.Errorf("%w: bounds must be within [00:00, 24:00)", ErrInvalidInterval)
	}
	if start >= end {
		return Interval{}, fmt.Errorf("%w: start must be before end", ErrInvalidInterval)
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval parses both wall-clock bounds and validates the resulting interval.
func ParseInterval(start, end string) (Interval, error) {
	startMinute, err := ParseClock(start)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start: %v", ErrInvalidInterval, err)
	}
	endMinute, err := ParseClock(end)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end: %v", ErrInvalidInterval, err)
	}
	return NewInterval(startMinute, endMinute)
}

// Overlaps reports whether the intervals share at least one minute.
// Intervals that only touch at a boundary do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// DurationHours returns the interval length in hours.
func (i Interval) DurationHours() float64 {
	return float64(i.End-i.Start) / 60
}

// StartClock renders the start bound as HH:MM.
func (i Interval) StartClock() string {
	return FormatClock(i.Start)
}

// EndClock renders the end bound as HH:MM.
func (i Interval) EndClock() string {
	return FormatClock(i.End)
}

func (i Interval) String() string {
	return "[" + i.StartClock() + "," + i.EndClock() + ")"
}

// ParseClock converts HH:MM (or HH:MM:00) into minutes since midnight.
func ParseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("%w: %q has non-zero seconds", ErrInvalidClock, value)
	}
	if len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDate validates a YYYY-MM-DD calendar day and returns it in canonical form.
func ParseDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed.Format(DateLayout), nil
}
