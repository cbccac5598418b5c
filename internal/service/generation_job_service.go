package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tennis-club-api/internal/dto"
	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/repository"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
	"github.com/noah-isme/tennis-club-api/pkg/jobs"
)

// SlotGenerationJobType tags queue jobs produced by GenerationJobService.
const SlotGenerationJobType = "slot_generation"

const dateLayout = "2006-01-02"

type generationJobStore interface {
	CreatePending(ctx context.Context, job *models.GenerationJob) (bool, error)
	HasPending(ctx context.Context, name string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	ListPending(ctx context.Context, limit int) ([]models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateGenerationJobParams) error
}

type placeholderCounter interface {
	CountPlaceholders(ctx context.Context, courtID string, begin, finish time.Time) (int, error)
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

type courtResolver interface {
	ResolveCenter(ctx context.Context, userID string) (*models.CourtList, error)
}

type courtSlotGenerator interface {
	GenerateForCourts(ctx context.Context, center *models.Center, courts []models.Center, dates []time.Time) (*SlotStats, error)
}

// JobName is the dedup key of a generation job for a court and date range.
func JobName(courtID string, first, last time.Time) string {
	return fmt.Sprintf("Generate slots for %s (%s - %s)", courtID, first.Format(dateLayout), last.Format(dateLayout))
}

// GenerationJobService accepts slot generation requests and queues one job per court.
type GenerationJobService struct {
	repo         generationJobStore
	placeholders placeholderCounter
	courts       courtResolver
	queue        jobEnqueuer
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewGenerationJobService constructs the service.
func NewGenerationJobService(repo generationJobStore, placeholders placeholderCounter, courts courtResolver, queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationJobService{
		repo:         repo,
		placeholders: placeholders,
		courts:       courts,
		queue:        queue,
		metrics:      metrics,
		logger:       logger,
	}
}

// RequestSlots resolves the acting user's center and submits a job per court.
// Unparseable dates are skipped with a warning.
func (s *GenerationJobService) RequestSlots(ctx context.Context, userID string, rawDates []string) (*dto.SlotRequestResponse, error) {
	list, err := s.courts.ResolveCenter(ctx, userID)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(rawDates))
	for _, raw := range rawDates {
		date, err := time.Parse(dateLayout, strings.TrimSpace(raw))
		if err != nil {
			s.logger.Sugar().Warnw("skip invalid slot date", "date", raw, "user_id", userID)
			continue
		}
		dates = append(dates, date)
	}

	resp := &dto.SlotRequestResponse{Status: "ok", Center: list.Center, Courts: list.Courts, Jobs: []string{}}
	if len(dates) == 0 {
		return resp, nil
	}
	for _, court := range list.Courts {
		id, err := s.Submit(ctx, court, dates, userID)
		if err != nil {
			resp.Status = "partial"
			s.logger.Sugar().Warnw("failed to submit slot generation", "court_id", court.ID, "error", err)
			continue
		}
		if id != nil {
			resp.Jobs = append(resp.Jobs, *id)
		}
	}
	return resp, nil
}

// Submit queues generation for one court. It returns nil when an equivalent
// job is already pending or placeholders already cover the range.
func (s *GenerationJobService) Submit(ctx context.Context, court models.Center, dates []time.Time, userID string) (*string, error) {
	days := distinctDays(dates)
	if len(days) == 0 {
		return nil, nil
	}
	first, last := days[0], days[len(days)-1]
	name := JobName(court.ID, first, last)

	pending, err := s.repo.HasPending(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending jobs")
	}
	if pending {
		s.logger.Sugar().Debugw("generation job already pending", "name", name)
		return nil, nil
	}
	existing, err := s.placeholders.CountPlaceholders(ctx, court.ID, first, last.Add(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing slots")
	}
	if existing > 0 {
		s.logger.Sugar().Debugw("slots already generated", "name", name, "rows", existing)
		return nil, nil
	}

	formatted := make(pq.StringArray, 0, len(days))
	for _, day := range days {
		formatted = append(formatted, day.Format(dateLayout))
	}
	job := &models.GenerationJob{Name: name, UserID: userID, CourtID: court.ID, Dates: formatted}
	created, err := s.repo.CreatePending(ctx, job)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation job")
	}
	if !created {
		return nil, nil
	}

	if err := s.queue.Enqueue(ctx, jobs.Job{ID: job.ID, Type: SlotGenerationJobType}); err != nil {
		failed := models.JobStateFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{
			State:        &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}
	s.logger.Sugar().Infow("generation job queued", "job_id", job.ID, "name", name)
	return &job.ID, nil
}

// Get returns a job by id.
func (s *GenerationJobService) Get(ctx context.Context, id string) (*models.GenerationJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	return job, nil
}

// RecoverPending re-queues jobs left pending by a previous process.
func (s *GenerationJobService) RecoverPending(ctx context.Context) {
	pending, err := s.repo.ListPending(ctx, 100)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover pending generation jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(ctx, jobs.Job{ID: job.ID, Type: SlotGenerationJobType}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue generation job", "job_id", job.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Sugar().Infow("recovered pending generation jobs", "count", len(pending))
	}
}

// GenerationWorker runs queued generation jobs.
type GenerationWorker struct {
	repo      generationJobStore
	centers   centerReader
	generator courtSlotGenerator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewGenerationWorker constructs a worker.
func NewGenerationWorker(repo generationJobStore, centers centerReader, generator courtSlotGenerator, metrics *MetricsService, logger *zap.Logger) *GenerationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationWorker{
		repo:      repo,
		centers:   centers,
		generator: generator,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes a queue job. Failures are stored on the job row.
func (w *GenerationWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.State != models.JobStatePending {
		w.logger.Sugar().Debugw("skip generation job", "job_id", job.ID, "state", record.State)
		return nil
	}

	started := w.now().UTC()
	running := models.JobStateRunning
	if err := w.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{State: &running, StartedAt: &started}); err != nil {
		return err
	}

	stats, runErr := w.run(ctx, record)
	finished := w.now().UTC()
	state := models.JobStateDone
	params := repository.UpdateGenerationJobParams{State: &state, FinishedAt: &finished}
	if runErr != nil {
		state = models.JobStateFailed
		msg := runErr.Error()
		params.ErrorMessage = &msg
	}
	if err := w.repo.Update(ctx, job.ID, params); err != nil {
		w.logger.Sugar().Warnw("failed to finish generation job", "job_id", job.ID, "error", err)
	}
	w.metrics.RecordJob(state, finished.Sub(started))

	if runErr != nil {
		return runErr
	}
	w.logger.Sugar().Infow("generation job done", "job_id", job.ID, "free_slots_created", stats.FreeSlotsCreated, "blocks_created", stats.BlocksCreated)
	return nil
}

func (w *GenerationWorker) run(ctx context.Context, job *models.GenerationJob) (*SlotStats, error) {
	court, err := w.centers.FindByID(ctx, job.CourtID)
	if err != nil {
		return nil, fmt.Errorf("load court %s: %w", job.CourtID, err)
	}
	if !court.IsCourt() {
		return nil, fmt.Errorf("center %s is not a court", court.ID)
	}
	center, err := w.centers.FindByID(ctx, *court.ParentCenterID)
	if err != nil {
		return nil, fmt.Errorf("load center %s: %w", *court.ParentCenterID, err)
	}

	dates := make([]time.Time, 0, len(job.Dates))
	for _, raw := range job.Dates {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			w.logger.Sugar().Warnw("skip invalid job date", "job_id", job.ID, "date", raw)
			continue
		}
		dates = append(dates, date)
	}
	return w.generator.GenerateForCourts(ctx, center, []models.Center{*court}, dates)
}

func distinctDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
