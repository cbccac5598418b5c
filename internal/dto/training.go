package dto

import (
	"time"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

// CreateTrainingRequest books a court for one or more customers.
type CreateTrainingRequest struct {
	CourtID           string     `json:"courtId" validate:"required"`
	ProductID         string     `json:"productId" validate:"required"`
	InstructorID      string     `json:"instructorId" validate:"required"`
	CustomerIDs       []string   `json:"customerIds" validate:"required,min=1,dive,required"`
	TimeBegin         time.Time  `json:"timeBegin" validate:"required"`
	TimeFinish        time.Time  `json:"timeFinish" validate:"required,gtfield=TimeBegin"`
	Name              string     `json:"name" validate:"omitempty,max=255"`
	PricePerHourTotal *float64   `json:"pricePerHourTotal" validate:"omitempty,gte=0"`
	RepeatFrequency   string     `json:"repeatFrequency"`
	RepeatUntil       *time.Time `json:"repeatUntil"`
}

// UpdateTrainingRequest is a partial edit. Nil fields are left unchanged; a
// patch without Status re-opens approval for editable sessions.
type UpdateTrainingRequest struct {
	Name              *string    `json:"name" validate:"omitempty,max=255"`
	ProductID         *string    `json:"productId"`
	InstructorID      *string    `json:"instructorId"`
	CustomerIDs       *[]string  `json:"customerIds" validate:"omitempty,dive,required"`
	TimeBegin         *time.Time `json:"timeBegin"`
	TimeFinish        *time.Time `json:"timeFinish"`
	PricePerHourTotal *float64   `json:"pricePerHourTotal" validate:"omitempty,gte=0"`
	RepeatFrequency   *string    `json:"repeatFrequency"`
	RepeatUntil       *time.Time `json:"repeatUntil"`
	Status            *string    `json:"status"`
}

// BulkUpdateTrainingRequest applies one patch to several trainings atomically.
type BulkUpdateTrainingRequest struct {
	IDs   []string              `json:"ids" validate:"required,min=1,dive,required"`
	Patch UpdateTrainingRequest `json:"patch"`
}

// ChangeStatusRequest moves a training along the booking graph.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TrainingListQuery filters the training listing.
type TrainingListQuery struct {
	CenterID string     `form:"centerId"`
	CourtID  string     `form:"courtId"`
	Statuses []string   `form:"status"`
	Kinds    []string   `form:"kind"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page"`
	PageSize int        `form:"pageSize"`
}

// TrainingWriteResponse reports every row touched by a booking write.
type TrainingWriteResponse struct {
	Trainings        []models.TrainingSession `json:"trainings"`
	Clones           []models.TrainingSession `json:"clones,omitempty"`
	RemovedFreeSlots []string                 `json:"removedFreeSlots,omitempty"`
	Ledger           []models.LedgerEntry     `json:"ledger,omitempty"`
}

// CustomerBalanceResponse exposes spendable and held funds.
type CustomerBalanceResponse struct {
	CustomerID string  `json:"customerId"`
	Name       string  `json:"name"`
	Balance    float64 `json:"balance"`
	Frozen     float64 `json:"frozen"`
	Total      float64 `json:"total"`
}
