package service

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

func TestCountOccurrencesWeekly(t *testing.T) {
	start := time.Date(2024, 2, 20, 15, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	got := CountOccurrences(until, models.RepeatWeekly, start)

	require.Equal(t, 3, got.Count)
	require.Equal(t, []time.Time{
		time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}, got.Dates)
}

func TestCountOccurrencesDailyAndEmpty(t *testing.T) {
	start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 4, CountOccurrences(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC), models.RepeatDaily, start).Count)

	empty := CountOccurrences(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), models.RepeatDaily, start)
	require.Equal(t, 0, empty.Count)
	require.Empty(t, empty.Dates)

	require.Equal(t, 1, CountOccurrences(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), models.RepeatOneTime, start).Count)
}

func TestCountOccurrencesMonthlyStepsFromClampedDate(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)

	got := CountOccurrences(until, models.RepeatMonthly, start)

	require.Equal(t, []time.Time{
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC),
	}, got.Dates)
}

func TestExpandRecurrenceKeepsLocalStartAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	until := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	base := &models.TrainingSession{
		ID:              "base",
		Kind:            models.SessionReal,
		Status:          models.StatusWaitingApproveReserve,
		CustomerIDs:     pq.StringArray{"c-1"},
		TimeBegin:       time.Date(2024, 3, 26, 9, 0, 0, 0, time.UTC), // 10:00 CET
		TimeFinish:      time.Date(2024, 3, 26, 10, 0, 0, 0, time.UTC),
		RepeatFrequency: models.RepeatWeekly,
		RepeatUntil:     &until,
		Snapshot:        &models.FixedSnapshot{Name: "base"},
	}

	clones := ExpandRecurrence(base, loc)

	require.Len(t, clones, 1)
	clone := clones[0]
	require.Equal(t, time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC), clone.TimeBegin) // 10:00 CEST
	require.Equal(t, time.Hour, clone.Duration())
	require.Empty(t, clone.ID)
	require.Equal(t, models.StatusWaitingApproveReserve, clone.Status)
	require.Equal(t, models.RepeatOneTime, clone.RepeatFrequency)
	require.Nil(t, clone.RepeatUntil)
	require.Nil(t, clone.Snapshot)
	require.True(t, clone.RecurrenceExpanded)

	clone.CustomerIDs[0] = "changed"
	require.Equal(t, "c-1", base.CustomerIDs[0])
}

func TestExpandRecurrenceOneTime(t *testing.T) {
	base := &models.TrainingSession{RepeatFrequency: models.RepeatOneTime}
	require.Nil(t, ExpandRecurrence(base, time.UTC))
}
