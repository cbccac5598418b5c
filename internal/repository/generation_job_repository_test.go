package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

func TestGenerationJobRepositoryCreatePending(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGenerationJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (name) WHERE state = 'pending' DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (name) WHERE state = 'pending' DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first := &models.GenerationJob{Name: "Generate slots for court-1 (2024-03-04 - 2024-03-05)", CourtID: "court-1", UserID: "user-1"}
	inserted, err := repo.CreatePending(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, models.JobStatePending, first.State)

	second := &models.GenerationJob{Name: first.Name, CourtID: "court-1", UserID: "user-2"}
	inserted, err = repo.CreatePending(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGenerationJobRepository(db)

	state := models.JobStateFailed
	message := "boom"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE generation_jobs SET state = $1, error_message = $2 WHERE id = $3")).
		WithArgs(state, message, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateGenerationJobParams{State: &state, ErrorMessage: &message}))
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateGenerationJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
