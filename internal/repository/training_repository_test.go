package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

var trainingRowColumns = []string{"id", "name", "kind", "status", "center_id", "court_id", "product_id", "instructor_id", "customer_ids",
	"time_begin", "time_finish", "price_per_hour_total", "payment_to_instructor_per_hour", "repeat_until", "repeat_frequency",
	"recurrence_expanded", "snapshot", "created_by", "created_at", "updated_at"}

func TestTrainingRepositoryListCourtWindow(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	begin := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	finish := begin.Add(time.Hour)
	rows := sqlmock.NewRows(trainingRowColumns).
		AddRow("t-1", "free slot", "free_slot", "new", "center-1", "court-1", "product-1", "employee-25", []byte("{}"),
			begin, finish, 0.0, 0.0, nil, "one_time", false, nil, nil, begin, begin).
		AddRow("t-2", "Anna", "real", "reserved", "center-1", "court-1", "product-2", "employee-1", []byte("{cust-1}"),
			begin, finish, 1000.0, 300.0, nil, "one_time", false, []byte(`{"customer_count":1,"price_per_hour_total":1000}`), "user-1", begin, begin)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE court_id = $1 AND status <> 'cancelled' AND time_begin < $3 AND time_finish > $2")).
		WithArgs("court-1", begin, finish).
		WillReturnRows(rows)

	trainings, err := repo.ListCourtWindow(context.Background(), nil, "court-1", begin, finish)
	require.NoError(t, err)
	require.Len(t, trainings, 2)
	assert.True(t, trainings[0].IsPlaceholder())
	assert.Nil(t, trainings[0].Snapshot)
	require.NotNil(t, trainings[1].Snapshot)
	assert.Equal(t, 1, trainings[1].Snapshot.CustomerCount)
	assert.Equal(t, []string{"cust-1"}, []string(trainings[1].CustomerIDs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryCreateDefaults(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trainings")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	training := &models.TrainingSession{
		Name:       models.NonWorkingName,
		Kind:       models.SessionNonWorking,
		Status:     models.StatusUnavailable,
		CenterID:   "center-1",
		CourtID:    "court-1",
		TimeBegin:  time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		TimeFinish: time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), nil, training))
	assert.NotEmpty(t, training.ID)
	assert.Equal(t, models.RepeatOneTime, training.RepeatFrequency)
	assert.NotNil(t, training.CustomerIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryDeleteByIDs(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trainings WHERE id::text = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByIDs(context.Background(), nil, []string{"t-1", "t-2"}))
	require.NoError(t, repo.DeleteByIDs(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryCountPlaceholders(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	begin := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	finish := begin.AddDate(0, 0, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trainings")).
		WithArgs("court-1", begin, finish).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountPlaceholders(context.Background(), "court-1", begin, finish)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryListFiltersAndPaginates(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trainings WHERE court_id = $1 AND status = ANY($2) AND time_finish > $3 AND time_begin < $4")).
		WithArgs("court-1", sqlmock.AnyArg(), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY time_begin ASC LIMIT $5 OFFSET $6")).
		WithArgs("court-1", sqlmock.AnyArg(), from, to, 20, 20).
		WillReturnRows(sqlmock.NewRows(trainingRowColumns))

	trainings, total, err := repo.List(context.Background(), models.TrainingFilter{
		CourtID:  "court-1",
		Statuses: []models.TrainingStatus{models.StatusReserved},
		From:     &from,
		To:       &to,
		Page:     2,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Empty(t, trainings)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryListCustomerOverlapsIncludesRecurringRows(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	begin := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)
	finish := begin.Add(time.Hour)
	until := begin.AddDate(0, 1, 0)
	rows := sqlmock.NewRows(trainingRowColumns).
		AddRow("t-1", "Weekly drill", "real", "reserved", "center-1", "court-2", "product-1", "employee-2", []byte("{c-1}"),
			begin, finish, 40.0, 20.0, until, "weekly", true, nil, "user-1", begin, begin)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE customer_ids && $1 AND kind = 'real' AND status <> 'cancelled' AND time_begin < $3 AND time_finish > $2")).
		WithArgs(sqlmock.AnyArg(), begin, finish).
		WillReturnRows(rows)

	trainings, err := repo.ListCustomerOverlaps(context.Background(), nil, []string{"c-1"}, begin, finish)
	require.NoError(t, err)
	require.Len(t, trainings, 1)
	assert.Equal(t, models.RepeatWeekly, trainings[0].RepeatFrequency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryListCustomerOverlapsWithoutCustomers(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTrainingRepository(db)

	trainings, err := repo.ListCustomerOverlaps(context.Background(), nil, nil, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, trainings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
