package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleDays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

var byDayTokens = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// recurrence builds the RRULE for a recurring trigger anchored at local
// midnight of ref's day. Anchoring at midnight instead of at the fire time
// keeps BYHOUR/BYMINUTE explicit, so a fire time that falls into a DST gap on
// the anchor day does not shift every later occurrence.
func (t Trigger) recurrence(ref time.Time, loc *time.Location) (*rrule.RRule, error) {
	local := ref.In(loc)
	opt := rrule.ROption{
		Freq:     rrule.DAILY,
		Dtstart:  time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
		Byhour:   []int{t.At.Hour},
		Byminute: []int{t.At.Minute},
		Bysecond: []int{0},
	}
	if t.Kind == WeekdaySet {
		opt.Freq = rrule.WEEKLY
		for _, d := range t.Days.Days() {
			opt.Byweekday = append(opt.Byweekday, rruleDays[d])
		}
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence: %w", err)
	}
	return rule, nil
}

func (t Trigger) occurrence(ref time.Time, loc *time.Location, inclusive bool) (time.Time, error) {
	rule, err := t.recurrence(ref, loc)
	if err != nil {
		return time.Time{}, err
	}
	next := rule.After(ref, inclusive)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no occurrence after %s", ref.Format(time.RFC3339))
	}
	return next, nil
}

// RRule renders the trigger as an RFC 5545 rule body, e.g.
// "FREQ=WEEKLY;BYDAY=MO,FR;BYHOUR=7;BYMINUTE=0". Once triggers render as an
// empty string.
func (t Trigger) RRule() string {
	var parts []string
	switch t.Kind {
	case Daily:
		parts = append(parts, "FREQ=DAILY")
	case WeekdaySet:
		parts = append(parts, "FREQ=WEEKLY")
		days := make([]string, 0, 7)
		for _, d := range t.Days.Days() {
			days = append(days, byDayTokens[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	default:
		return ""
	}
	parts = append(parts, fmt.Sprintf("BYHOUR=%d", t.At.Hour), fmt.Sprintf("BYMINUTE=%d", t.At.Minute))
	return strings.Join(parts, ";")
}

// Describe returns a short Russian description for chat output.
func (t Trigger) Describe() string {
	switch t.Kind {
	case Once:
		return fmt.Sprintf("Разовое, %s в %s", t.Day.Format("02.01"), t.At)
	case Daily:
		return "Ежедневно в " + t.At.String()
	case WeekdaySet:
		return fmt.Sprintf("По дням: %s в %s", t.Days, t.At)
	default:
		return t.At.String()
	}
}
