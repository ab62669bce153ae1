package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time in the configured zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var timeRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// ParseTimeOfDay parses "H:MM" or "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return TimeOfDay{Hour: h, Minute: mm}, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Weekdays is a set of weekdays stored as a bitmask, bit 0 = Monday.
type Weekdays uint8

const allWeekdays Weekdays = 1<<7 - 1

// MondayIndex maps time.Weekday onto 0..6 with Monday=0.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// NewWeekdaySet builds a set from Monday-based indexes.
func NewWeekdaySet(days ...int) (Weekdays, error) {
	var s Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("weekday index %d out of range", d)
		}
		s |= 1 << d
	}
	return s, nil
}

func (s Weekdays) Empty() bool { return s&allWeekdays == 0 }

func (s Weekdays) Contains(d time.Weekday) bool {
	return s&(1<<MondayIndex(d)) != 0
}

// Days returns the members in ascending order, Monday first.
func (s Weekdays) Days() []int {
	days := make([]int, 0, 7)
	for d := 0; d < 7; d++ {
		if s&(1<<d) != 0 {
			days = append(days, d)
		}
	}
	return days
}

var shortNames = [7]string{"пн", "вт", "ср", "чт", "пт", "сб", "вс"}

// ShortName returns the Russian two-letter name of d.
func ShortName(d time.Weekday) string {
	return shortNames[MondayIndex(d)]
}

// String renders the set with Russian short names, e.g. "пн,ср,пт".
func (s Weekdays) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = shortNames[d]
	}
	return strings.Join(names, ",")
}

// Encode renders the set for storage as "0,2,4".
func (s Weekdays) Encode() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// DecodeWeekdays parses the storage form written by Encode.
func DecodeWeekdays(s string) (Weekdays, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("invalid stored weekday %q: %w", part, err)
		}
		days = append(days, d)
	}
	return NewWeekdaySet(days...)
}

var dayTokens = map[string]int{
	"пн": 0, "вт": 1, "ср": 2, "чт": 3, "пт": 4, "сб": 5, "вс": 6,
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

// UnknownWeekdayError reports a token that is not a weekday name.
type UnknownWeekdayError struct {
	Token string
}

func (e *UnknownWeekdayError) Error() string {
	return fmt.Sprintf("unknown weekday %q", e.Token)
}

// ParseWeekdays parses a comma separated list such as "пн, Ср,ПТ" or
// "mon,fri". Duplicates collapse; order does not matter.
func ParseWeekdays(s string) (Weekdays, error) {
	var set Weekdays
	for _, raw := range strings.Split(s, ",") {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if tok == "" {
			continue
		}
		d, ok := dayTokens[tok]
		if !ok {
			return 0, &UnknownWeekdayError{Token: tok}
		}
		set |= 1 << d
	}
	if set.Empty() {
		return 0, ErrNoWeekdays
	}
	return set, nil
}
