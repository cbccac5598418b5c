package models

import (
	"time"

	"github.com/lib/pq"
)

// GenerationJobState captures slot generation job lifecycle states.
type GenerationJobState string

const (
	JobStatePending GenerationJobState = "pending"
	JobStateRunning GenerationJobState = "running"
	JobStateDone    GenerationJobState = "done"
	JobStateFailed  GenerationJobState = "failed"
)

// GenerationJob is a queued request to materialize slots for one court.
type GenerationJob struct {
	ID           string             `db:"id" json:"id"`
	Name         string             `db:"name" json:"name"`
	UserID       string             `db:"user_id" json:"user_id"`
	CourtID      string             `db:"court_id" json:"court_id"`
	Dates        pq.StringArray     `db:"dates" json:"dates"`
	State        GenerationJobState `db:"state" json:"state"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	StartedAt    *time.Time         `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time         `db:"finished_at" json:"finished_at,omitempty"`
}
