package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tennis-club-api/internal/dto"
	"github.com/noah-isme/tennis-club-api/internal/models"
)

type sweepTrainingReader interface {
	ListFinishedBefore(ctx context.Context, cutoff time.Time, statuses []models.TrainingStatus, limit int) ([]models.TrainingSession, error)
	ListStartingBetween(ctx context.Context, from, to time.Time, statuses []models.TrainingStatus) ([]models.TrainingSession, error)
}

type trainingFinalizer interface {
	ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest) (*dto.TrainingWriteResponse, error)
	Delete(ctx context.Context, id string) error
}

type customerReader interface {
	FindByID(ctx context.Context, id string) (*models.Customer, error)
}

// MaintenanceConfig controls the periodic sweeps.
type MaintenanceConfig struct {
	FinalizeEvery  time.Duration
	ReminderEvery  time.Duration
	ReminderLead   time.Duration
	ReminderWindow time.Duration
	BatchSize      int
}

// SweepResult summarises one sweep run.
type SweepResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// MaintenanceService finalizes elapsed trainings and reminds customers of
// upcoming ones. Each training is handled on its own; one failure never
// stops a sweep.
type MaintenanceService struct {
	trainings sweepTrainingReader
	bookings  trainingFinalizer
	customers customerReader
	notifier  Notifier
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       MaintenanceConfig
	now       func() time.Time
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(trainings sweepTrainingReader, bookings trainingFinalizer, customers customerReader, notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg MaintenanceConfig) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FinalizeEvery <= 0 {
		cfg.FinalizeEvery = 15 * time.Minute
	}
	if cfg.ReminderEvery <= 0 {
		cfg.ReminderEvery = time.Hour
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = time.Hour
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &MaintenanceService{
		trainings: trainings,
		bookings:  bookings,
		customers: customers,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

var finalizeTargets = map[models.TrainingStatus]models.TrainingStatus{
	models.StatusReserved:              models.StatusDone,
	models.StatusWaitingApproveCancel:  models.StatusDone,
	models.StatusWaitingApproveReserve: models.StatusCancelled,
}

// FinalizeElapsed closes every training that finished by now: reserved and
// cancel-pending ones become done, unapproved ones are cancelled and untouched
// placeholders are deleted.
func (s *MaintenanceService) FinalizeElapsed(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	statuses := []models.TrainingStatus{
		models.StatusReserved,
		models.StatusWaitingApproveCancel,
		models.StatusWaitingApproveReserve,
		models.StatusNew,
		models.StatusUnavailable,
	}
	elapsed, err := s.trainings.ListFinishedBefore(ctx, s.now().UTC(), statuses, s.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	for i := range elapsed {
		training := &elapsed[i]
		var itemErr error
		if target, ok := finalizeTargets[training.Status]; ok {
			_, itemErr = s.bookings.ChangeStatus(ctx, training.ID, dto.ChangeStatusRequest{Status: string(target)})
		} else {
			itemErr = s.bookings.Delete(ctx, training.ID)
		}
		if itemErr != nil {
			result.Failed++
			s.metrics.RecordSweepItem("finalize", "failed")
			s.logger.Warn("failed to finalize training",
				zap.String("training_id", training.ID),
				zap.String("status", string(training.Status)),
				zap.Error(itemErr),
			)
			continue
		}
		result.Processed++
		s.metrics.RecordSweepItem("finalize", "ok")
	}
	if len(elapsed) > 0 {
		s.logger.Info("finalized elapsed trainings", zap.Int("processed", result.Processed), zap.Int("failed", result.Failed))
	}
	return result, nil
}

// NotifyUpcoming reminds customers of trainings starting within
// [now+lead, now+lead+window].
func (s *MaintenanceService) NotifyUpcoming(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	from := s.now().UTC().Add(s.cfg.ReminderLead)
	to := from.Add(s.cfg.ReminderWindow)
	upcoming, err := s.trainings.ListStartingBetween(ctx, from, to, []models.TrainingStatus{models.StatusReserved, models.StatusWaitingApproveCancel})
	if err != nil {
		return result, err
	}
	if s.notifier == nil {
		return result, nil
	}

	for i := range upcoming {
		training := &upcoming[i]
		for _, customerID := range training.CustomerIDs {
			customer, err := s.customers.FindByID(ctx, customerID)
			if err != nil {
				result.Failed++
				s.metrics.RecordSweepItem("remind", "failed")
				s.logger.Warn("failed to load customer for reminder", zap.String("training_id", training.ID), zap.String("customer_id", customerID), zap.Error(err))
				continue
			}
			if !customer.NotifyOptIn {
				continue
			}
			s.notifier.Notify(ctx, *customer, TrainingReminderMessage(training, *customer))
			result.Processed++
			s.metrics.RecordSweepItem("remind", "ok")
		}
	}
	return result, nil
}

// Start runs both sweeps on their tickers until ctx is cancelled.
func (s *MaintenanceService) Start(ctx context.Context) {
	go s.loop(ctx, "finalize", s.cfg.FinalizeEvery, func(ctx context.Context) error {
		_, err := s.FinalizeElapsed(ctx)
		return err
	})
	go s.loop(ctx, "remind", s.cfg.ReminderEvery, func(ctx context.Context) error {
		_, err := s.NotifyUpcoming(ctx)
		return err
	})
}

func (s *MaintenanceService) loop(ctx context.Context, name string, every time.Duration, run func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := run(ctx); err != nil {
				s.logger.Sugar().Warnw("maintenance sweep failed", "sweep", name, "error", err)
			}
		}
	}
}
