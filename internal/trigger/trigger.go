// Package trigger computes fire instants for reminder rules.
//
// A trigger is one of three kinds: Once (a single instant on the day the rule
// was created), Daily, or WeekdaySet. All arithmetic is wall-clock arithmetic
// in a single configured *time.Location, so a 07:00 reminder stays at 07:00
// across daylight-saving transitions.
package trigger

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of trigger kinds.
type Kind int

const (
	Once Kind = iota + 1
	Daily
	WeekdaySet
)

// String returns the storage token of the kind.
func (k Kind) String() string {
	switch k {
	case Once:
		return "once"
	case Daily:
		return "everyday"
	case WeekdaySet:
		return "days"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "once":
		return Once, nil
	case "everyday":
		return Daily, nil
	case "days":
		return WeekdaySet, nil
	default:
		return 0, fmt.Errorf("unknown trigger kind %q", s)
	}
}

// Recurring reports whether the kind re-arms after firing.
func (k Kind) Recurring() bool {
	return k == Daily || k == WeekdaySet
}

var (
	ErrAlreadyPassed = errors.New("time has already passed today")
	ErrInvalidTime   = errors.New("time must be HH:MM in 24-hour format")
	ErrNoWeekdays    = errors.New("no weekdays given")
)

// Trigger describes when a rule fires. Only the fields relevant to Kind are
// populated: Days for WeekdaySet, Day for Once.
type Trigger struct {
	Kind Kind
	At   TimeOfDay
	Days Weekdays
	// Day is the calendar day a Once trigger belongs to.
	Day time.Time
}

// NewOnce returns a one-shot trigger on the local calendar day of day.
func NewOnce(at TimeOfDay, day time.Time, loc *time.Location) Trigger {
	d := day.In(loc)
	return Trigger{
		Kind: Once,
		At:   at,
		Day:  time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc),
	}
}

func NewDaily(at TimeOfDay) Trigger {
	return Trigger{Kind: Daily, At: at}
}

func NewWeekdays(at TimeOfDay, days Weekdays) (Trigger, error) {
	if days.Empty() {
		return Trigger{}, ErrNoWeekdays
	}
	return Trigger{Kind: WeekdaySet, At: at, Days: days}, nil
}

// Validate checks the per-kind invariants.
func (t Trigger) Validate() error {
	if !t.At.Valid() {
		return ErrInvalidTime
	}
	switch t.Kind {
	case Once:
		if t.Day.IsZero() {
			return errors.New("once trigger without a day")
		}
	case Daily:
	case WeekdaySet:
		if t.Days.Empty() {
			return ErrNoWeekdays
		}
	default:
		return fmt.Errorf("unknown trigger kind %d", int(t.Kind))
	}
	return nil
}

// Next returns the first fire instant at or after now. A Once trigger whose
// instant is not strictly in the future yields ErrAlreadyPassed.
func (t Trigger) Next(now time.Time, loc *time.Location) (time.Time, error) {
	if err := t.Validate(); err != nil {
		return time.Time{}, err
	}
	switch t.Kind {
	case Once:
		d := t.Day.In(loc)
		fire := time.Date(d.Year(), d.Month(), d.Day(), t.At.Hour, t.At.Minute, 0, 0, loc)
		if !fire.After(now) {
			return time.Time{}, ErrAlreadyPassed
		}
		return fire, nil
	case Daily, WeekdaySet:
		return t.occurrence(now, loc, true)
	}
	return time.Time{}, fmt.Errorf("unknown trigger kind %d", int(t.Kind))
}

// After returns the first fire instant strictly after t0. It reports false
// for Once triggers, which never re-arm.
func (t Trigger) After(t0 time.Time, loc *time.Location) (time.Time, bool) {
	if !t.Kind.Recurring() || t.Validate() != nil {
		return time.Time{}, false
	}
	next, err := t.occurrence(t0, loc, false)
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}
