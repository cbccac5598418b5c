package service

import (
	"fmt"

	"github.com/noah-isme/tennis-club-api/internal/models"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
)

// allowedTransitions is the complete booking graph. Statuses without an entry
// are terminal.
var allowedTransitions = map[models.TrainingStatus][]models.TrainingStatus{
	models.StatusNew:                   {models.StatusWaitingApproveReserve},
	models.StatusWaitingApproveReserve: {models.StatusReserved, models.StatusCancelled},
	models.StatusReserved:              {models.StatusDone, models.StatusWaitingApproveCancel},
	models.StatusDone:                  {models.StatusWaitingApproveCancel},
	models.StatusWaitingApproveCancel:  {models.StatusCancelled, models.StatusDone},
}

// CanTransition reports whether from -> to is an edge of the booking graph.
func CanTransition(from, to models.TrainingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition rejects any status change outside the booking graph.
func ValidateTransition(from, to models.TrainingStatus) error {
	if !to.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("unknown status %q", to))
	}
	if !CanTransition(from, to) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move training from %s to %s", from, to))
	}
	return nil
}

// reopensApproval reports whether an edit without an explicit status sends a
// session in status back to waiting_approve_reserve. Done sessions are
// excluded because their held funds were already consumed.
func reopensApproval(status models.TrainingStatus) bool {
	switch status {
	case models.StatusUnavailable, models.StatusCancelled, models.StatusDone, models.StatusWaitingApproveReserve:
		return false
	}
	return true
}

// BalanceMovement returns the per-customer spendable and frozen deltas of a
// realized status change moving amount.
func BalanceMovement(from, to models.TrainingStatus, amount float64) (balanceDelta, frozenDelta float64) {
	switch {
	case from == models.StatusNew && to == models.StatusWaitingApproveReserve:
		return -amount, amount
	case to == models.StatusCancelled && (from == models.StatusWaitingApproveReserve || from == models.StatusWaitingApproveCancel):
		return amount, -amount
	case from == models.StatusDone && to == models.StatusWaitingApproveCancel:
		return 0, amount
	case to == models.StatusDone && (from == models.StatusReserved || from == models.StatusWaitingApproveCancel):
		return 0, -amount
	}
	return 0, 0
}

// notifiable lists statuses customers are told about.
func notifiable(status models.TrainingStatus) bool {
	return status == models.StatusReserved || status == models.StatusDone || status == models.StatusCancelled
}
