package models

import (
	"fmt"
	"math"
	"time"
)

// WeeklySummary is the immutable planned-vs-done total of one finalized week.
// WeekEnd is the following Monday 00:00 and is exclusive.
type WeeklySummary struct {
	SummaryID    int64     `json:"summary_id"`
	UserID       int64     `json:"user_id"`
	WeekStart    time.Time `json:"week_start"`
	WeekEnd      time.Time `json:"week_end"`
	DoneTotal    int       `json:"done_total"`
	PlannedTotal int       `json:"planned_total"`
	CreatedAt    time.Time `json:"created_at"`
}

// Percent is round(100*done/planned), or 0 when nothing was planned.
func (s *WeeklySummary) Percent() int {
	if s.PlannedTotal <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.DoneTotal) / float64(s.PlannedTotal)))
}

// Label renders the week as "dd.mm–dd.mm.yyyy" (Monday to Sunday) in loc.
func (s *WeeklySummary) Label(loc *time.Location) string {
	start := s.WeekStart.In(loc)
	last := s.WeekEnd.In(loc).AddDate(0, 0, -1)
	return fmt.Sprintf("%s–%s", start.Format("02.01"), last.Format("02.01.2006"))
}
