package trigger

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestOnceNext(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Asia/Almaty")
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, loc)
	tr := NewOnce(TimeOfDay{Hour: 18, Minute: 30}, day, loc)

	tests := []struct {
		name    string
		now     time.Time
		want    time.Time
		wantErr error
	}{
		{"future", time.Date(2026, 10, 17, 9, 0, 0, 0, loc), time.Date(2026, 10, 17, 18, 30, 0, 0, loc), nil},
		{"exactly now", time.Date(2026, 10, 17, 18, 30, 0, 0, loc), time.Time{}, ErrAlreadyPassed},
		{"past", time.Date(2026, 10, 17, 19, 0, 0, 0, loc), time.Time{}, ErrAlreadyPassed},
		{"next day", time.Date(2026, 10, 18, 9, 0, 0, 0, loc), time.Time{}, ErrAlreadyPassed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tr.Next(tc.now, loc)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("next = %v, want %v", got, tc.want)
			}
		})
	}
	if _, ok := tr.After(day, loc); ok {
		t.Fatal("once trigger must not re-arm")
	}
}

func TestDailyNextInclusive(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Asia/Almaty")
	tr := NewDaily(TimeOfDay{Hour: 7})

	now := time.Date(2026, 10, 17, 7, 0, 0, 0, loc)
	got, err := tr.Next(now, loc)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !got.Equal(now) {
		t.Fatalf("exactly now should be due, got %v", got)
	}

	got, err = tr.Next(now.Add(time.Minute), loc)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2026, 10, 18, 7, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("next = %v, want %v", got, want)
	}
}

func TestDailyAfterKeepsWallClock(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Europe/Berlin")
	tr := NewDaily(TimeOfDay{Hour: 7})

	tests := []struct {
		name    string
		from    time.Time
		elapsed time.Duration
	}{
		{"plain day", time.Date(2026, 10, 10, 7, 0, 0, 0, loc), 24 * time.Hour},
		{"spring forward", time.Date(2026, 3, 28, 7, 0, 0, 0, loc), 23 * time.Hour},
		{"fall back", time.Date(2026, 10, 24, 7, 0, 0, 0, loc), 25 * time.Hour},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			next, ok := tr.After(tc.from, loc)
			if !ok {
				t.Fatal("daily trigger must re-arm")
			}
			local := next.In(loc)
			if local.Hour() != 7 || local.Minute() != 0 {
				t.Fatalf("wall clock drifted: %v", local)
			}
			if d := next.Sub(tc.from); d != tc.elapsed {
				t.Fatalf("elapsed = %v, want %v", d, tc.elapsed)
			}
		})
	}
}

func TestDailySeveralFirings(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Asia/Almaty")
	tr := NewDaily(TimeOfDay{Hour: 21, Minute: 15})

	cur, err := tr.Next(time.Date(2026, 10, 17, 12, 0, 0, 0, loc), loc)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	for i := 0; i < 5; i++ {
		want := time.Date(2026, 10, 17+i, 21, 15, 0, 0, loc)
		if !cur.Equal(want) {
			t.Fatalf("firing %d = %v, want %v", i, cur, want)
		}
		var ok bool
		cur, ok = tr.After(cur, loc)
		if !ok {
			t.Fatal("daily trigger must re-arm")
		}
	}
}

func TestWeekdaySetFiresOnMembersOnly(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Asia/Almaty")
	days, err := ParseWeekdays("пн,ср")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, err := NewWeekdays(TimeOfDay{Hour: 7}, days)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Sunday 2026-10-18 through the following Saturday.
	start := time.Date(2026, 10, 18, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 7)
	var fired []time.Time
	next, err := tr.Next(start, loc)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	for next.Before(end) {
		fired = append(fired, next)
		var ok bool
		next, ok = tr.After(next, loc)
		if !ok {
			t.Fatal("weekday trigger must re-arm")
		}
	}

	want := []time.Time{
		time.Date(2026, 10, 19, 7, 0, 0, 0, loc),
		time.Date(2026, 10, 21, 7, 0, 0, 0, loc),
	}
	if len(fired) != len(want) {
		t.Fatalf("fired %d times (%v), want %d", len(fired), fired, len(want))
	}
	for i := range want {
		if !fired[i].Equal(want[i]) {
			t.Fatalf("firing %d = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestWeekdaySetHourlySimulation(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Asia/Almaty")
	days, _ := NewWeekdaySet(0, 2)
	tr, _ := NewWeekdays(TimeOfDay{Hour: 7}, days)

	start := time.Date(2026, 10, 18, 0, 0, 0, 0, loc)
	armed, _ := tr.Next(start, loc)
	count := 0
	for now := start; now.Before(start.AddDate(0, 0, 7)); now = now.Add(time.Hour) {
		if !armed.After(now) {
			count++
			if wd := armed.In(loc).Weekday(); wd != time.Monday && wd != time.Wednesday {
				t.Fatalf("fired on %v", wd)
			}
			armed, _ = tr.After(now, loc)
		}
	}
	if count != 2 {
		t.Fatalf("fired %d times, want 2", count)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if _, err := NewWeekdays(TimeOfDay{Hour: 7}, 0); !errors.Is(err, ErrNoWeekdays) {
		t.Fatalf("empty set: err = %v", err)
	}
	bad := NewDaily(TimeOfDay{Hour: 24})
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("bad time: err = %v", err)
	}
	if err := (Trigger{Kind: Once, At: TimeOfDay{Hour: 1}}).Validate(); err == nil {
		t.Fatal("once without day must be invalid")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"07:00", TimeOfDay{7, 0}, false},
		{"7:05", TimeOfDay{7, 5}, false},
		{" 23:59 ", TimeOfDay{23, 59}, false},
		{"00:00", TimeOfDay{0, 0}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"12.30", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}
	for _, tc := range tests {
		got, err := ParseTimeOfDay(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err = %v", tc.in, err)
		}
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidTime) {
				t.Fatalf("%q: err = %v, want ErrInvalidTime", tc.in, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("%q = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		encoded string
		wantErr bool
	}{
		{"пн,ср,пт", "пн,ср,пт", "0,2,4", false},
		{"ПТ, пн ,пн", "пн,пт", "0,4", false},
		{"mon,Sun", "пн,вс", "0,6", false},
		{"пн,xx", "", "", true},
		{" , ", "", "", true},
	}
	for _, tc := range tests {
		got, err := ParseWeekdays(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err = %v", tc.in, err)
		}
		if tc.wantErr {
			continue
		}
		if got.String() != tc.want {
			t.Fatalf("%q renders %q, want %q", tc.in, got.String(), tc.want)
		}
		if got.Encode() != tc.encoded {
			t.Fatalf("%q encodes %q, want %q", tc.in, got.Encode(), tc.encoded)
		}
		back, err := DecodeWeekdays(got.Encode())
		if err != nil || back != got {
			t.Fatalf("decode %q = %v, %v", got.Encode(), back, err)
		}
	}

	var unknown *UnknownWeekdayError
	if _, err := ParseWeekdays("пн,funday"); !errors.As(err, &unknown) || unknown.Token != "funday" {
		t.Fatalf("unknown token: err = %v", err)
	}
}

func TestWeekdaysContains(t *testing.T) {
	t.Parallel()
	set, _ := NewWeekdaySet(0, 6)
	if !set.Contains(time.Monday) || !set.Contains(time.Sunday) || set.Contains(time.Tuesday) {
		t.Fatalf("contains mismatch for %v", set)
	}
	if _, err := NewWeekdaySet(7); err == nil {
		t.Fatal("index 7 must be rejected")
	}
}

func TestRRuleAndDescribe(t *testing.T) {
	t.Parallel()
	loc := mustLoad(t, "Asia/Almaty")
	days, _ := NewWeekdaySet(0, 4)
	wk, _ := NewWeekdays(TimeOfDay{Hour: 7}, days)
	if got, want := wk.RRule(), "FREQ=WEEKLY;BYDAY=MO,FR;BYHOUR=7;BYMINUTE=0"; got != want {
		t.Fatalf("rrule = %q, want %q", got, want)
	}
	if got, want := wk.Describe(), "По дням: пн,пт в 07:00"; got != want {
		t.Fatalf("describe = %q, want %q", got, want)
	}
	if got, want := NewDaily(TimeOfDay{Hour: 6, Minute: 30}).Describe(), "Ежедневно в 06:30"; got != want {
		t.Fatalf("describe = %q, want %q", got, want)
	}
	once := NewOnce(TimeOfDay{Hour: 18}, time.Date(2026, 10, 17, 12, 0, 0, 0, loc), loc)
	if once.RRule() != "" {
		t.Fatalf("once rrule = %q", once.RRule())
	}
	if got, want := once.Describe(), "Разовое, 17.10 в 18:00"; got != want {
		t.Fatalf("describe = %q, want %q", got, want)
	}
}

func TestKindRoundTrip(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{Once, Daily, WeekdaySet} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("weekly"); err == nil {
		t.Fatal("unknown kind must fail")
	}
}
