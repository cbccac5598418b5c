package service

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

// Occurrences lists the dated instances of a recurring training.
type Occurrences struct {
	Count int         `json:"count"`
	Dates []time.Time `json:"dates"`
}

// CountOccurrences returns every date in [start, until] reached by stepping
// from the previous occurrence by one day, week or calendar month. Only the
// calendar dates of start and until matter. A monthly step clamps to the last
// day of a shorter month and continues from the clamped date.
func CountOccurrences(until time.Time, frequency models.RepeatFrequency, start time.Time) Occurrences {
	first := dateOf(start)
	last := dateOf(until)
	if last.Before(first) {
		return Occurrences{Dates: []time.Time{}}
	}

	var step func(time.Time) time.Time
	switch frequency {
	case models.RepeatDaily:
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case models.RepeatWeekly:
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case models.RepeatMonthly:
		step = func(t time.Time) time.Time { return addMonthsClamped(t, 1) }
	default:
		return Occurrences{Count: 1, Dates: []time.Time{first}}
	}

	var dates []time.Time
	for next := first; !next.After(last); next = step(next) {
		dates = append(dates, next)
	}
	return Occurrences{Count: len(dates), Dates: dates}
}

// ExpandRecurrence drafts one clone per occurrence after the base date. Clones
// keep court, product, instructor, customers and the local start time, start
// in waiting_approve_reserve and never repeat themselves.
func ExpandRecurrence(base *models.TrainingSession, loc *time.Location) []*models.TrainingSession {
	if !base.Repeats() {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	localBegin := base.TimeBegin.In(loc)
	duration := base.Duration()
	untilLocal := time.Date(base.RepeatUntil.Year(), base.RepeatUntil.Month(), base.RepeatUntil.Day(), 0, 0, 0, 0, loc)

	occurrences := CountOccurrences(untilLocal, base.RepeatFrequency, localBegin)
	clones := make([]*models.TrainingSession, 0, occurrences.Count)
	for _, day := range occurrences.Dates[min(1, len(occurrences.Dates)):] {
		begin := time.Date(day.Year(), day.Month(), day.Day(), localBegin.Hour(), localBegin.Minute(), 0, 0, loc).UTC()
		clone := base.Clone()
		clone.ID = ""
		clone.Status = models.StatusWaitingApproveReserve
		clone.RepeatFrequency = models.RepeatOneTime
		clone.RepeatUntil = nil
		clone.RecurrenceExpanded = true
		clone.Snapshot = nil
		clone.CustomerIDs = append(pq.StringArray(nil), base.CustomerIDs...)
		clone.TimeBegin = begin
		clone.TimeFinish = begin.Add(duration)
		clones = append(clones, clone)
	}
	return clones
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, t.Location())
}
