package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/repository"
	"github.com/noah-isme/tennis-club-api/pkg/jobs"
)

type memoryJobs struct {
	mu   sync.Mutex
	seq  int
	jobs map[string]*models.GenerationJob
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: map[string]*models.GenerationJob{}}
}

func (m *memoryJobs) CreatePending(ctx context.Context, job *models.GenerationJob) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.jobs {
		if existing.Name == job.Name && existing.State == models.JobStatePending {
			return false, nil
		}
	}
	m.seq++
	job.ID = fmt.Sprintf("job-%d", m.seq)
	job.State = models.JobStatePending
	copied := *job
	m.jobs[job.ID] = &copied
	return true, nil
}

func (m *memoryJobs) HasPending(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Name == name && job.State == models.JobStatePending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryJobs) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, errNoJob
	}
	copied := *job
	return &copied, nil
}

func (m *memoryJobs) ListPending(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GenerationJob
	for _, job := range m.jobs {
		if job.State == models.JobStatePending {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryJobs) Update(ctx context.Context, id string, params repository.UpdateGenerationJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return errNoJob
	}
	if params.State != nil {
		job.State = *params.State
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *memoryJobs) byName(name string) *models.GenerationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Name == name {
			copied := *job
			return &copied
		}
	}
	return nil
}

var errNoJob = errors.New("job not found")

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(ctx context.Context, job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

type courtResolverStub struct {
	list *models.CourtList
}

func (c courtResolverStub) ResolveCenter(ctx context.Context, userID string) (*models.CourtList, error) {
	return c.list, nil
}

type courtGeneratorStub struct {
	center *models.Center
	courts []models.Center
	dates  []time.Time
	err    error
}

func (g *courtGeneratorStub) GenerateForCourts(ctx context.Context, center *models.Center, courts []models.Center, dates []time.Time) (*SlotStats, error) {
	g.center, g.courts, g.dates = center, courts, dates
	if g.err != nil {
		return nil, g.err
	}
	return &SlotStats{FreeSlotsCreated: 12}, nil
}

func newJobServiceFixture(placeholders ...*models.TrainingSession) (*GenerationJobService, *memoryJobs, *enqueuerStub) {
	repo := newMemoryJobs()
	queue := &enqueuerStub{}
	list := &models.CourtList{
		Center: fixtureCenter(),
		Courts: []models.Center{*fixtureCourt("court-1"), *fixtureCourt("court-2")},
	}
	svc := NewGenerationJobService(repo, newMemoryTrainings(placeholders...), courtResolverStub{list: list}, queue, NewMetricsService(), nil)
	return svc, repo, queue
}

func TestRequestSlotsQueuesOneJobPerCourt(t *testing.T) {
	svc, repo, queue := newJobServiceFixture()

	resp, err := svc.RequestSlots(context.Background(), "u-1", []string{"2030-01-08", "not-a-date", "2030-01-07", "2030-01-07"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Jobs, 2)
	require.Len(t, resp.Courts, 2)
	require.Len(t, queue.jobs, 2)
	require.Equal(t, SlotGenerationJobType, queue.jobs[0].Type)

	name := JobName("court-1", at(7, 0), at(8, 0))
	require.Equal(t, "Generate slots for court-1 (2030-01-07 - 2030-01-08)", name)
	job := repo.byName(name)
	require.NotNil(t, job)
	require.Equal(t, []string{"2030-01-07", "2030-01-08"}, []string(job.Dates))
	require.Equal(t, "u-1", job.UserID)
	require.Equal(t, models.JobStatePending, job.State)
}

func TestRequestSlotsDeduplicatesPendingJobs(t *testing.T) {
	svc, _, queue := newJobServiceFixture()
	dates := []string{"2030-01-07"}

	_, err := svc.RequestSlots(context.Background(), "u-1", dates)
	require.NoError(t, err)
	resp, err := svc.RequestSlots(context.Background(), "u-1", dates)
	require.NoError(t, err)

	require.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Jobs)
	require.Empty(t, resp.Jobs)
	require.Len(t, queue.jobs, 2)
}

func TestRequestSlotsSkipsGeneratedRange(t *testing.T) {
	existing := &models.TrainingSession{
		ID: "free-1", Kind: models.SessionFreeSlot, Status: models.StatusNew, CourtID: "court-1",
		TimeBegin: at(7, 9), TimeFinish: at(7, 10),
	}
	svc, _, queue := newJobServiceFixture(existing)

	resp, err := svc.RequestSlots(context.Background(), "u-1", []string{"2030-01-07"})
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	require.Len(t, queue.jobs, 1)
}

func TestRequestSlotsWithoutValidDates(t *testing.T) {
	svc, _, queue := newJobServiceFixture()

	resp, err := svc.RequestSlots(context.Background(), "u-1", []string{"07.01.2030"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)
	require.Empty(t, resp.Jobs)
	require.Empty(t, queue.jobs)
}

func TestRequestSlotsEnqueueFailureMarksJobFailed(t *testing.T) {
	svc, repo, queue := newJobServiceFixture()
	queue.err = jobs.ErrNotStarted

	resp, err := svc.RequestSlots(context.Background(), "u-1", []string{"2030-01-07"})
	require.NoError(t, err)
	require.Equal(t, "partial", resp.Status)
	require.Empty(t, resp.Jobs)

	job := repo.byName(JobName("court-1", at(7, 0), at(7, 0)))
	require.NotNil(t, job)
	require.Equal(t, models.JobStateFailed, job.State)
	require.NotNil(t, job.FinishedAt)
}

func TestRecoverPendingRequeues(t *testing.T) {
	svc, _, queue := newJobServiceFixture()
	_, err := svc.RequestSlots(context.Background(), "u-1", []string{"2030-01-07"})
	require.NoError(t, err)
	queue.jobs = nil

	svc.RecoverPending(context.Background())

	require.Len(t, queue.jobs, 2)
}

func newWorkerFixture(t *testing.T, generator *courtGeneratorStub) (*GenerationWorker, *memoryJobs, *MetricsService, string) {
	t.Helper()
	repo := newMemoryJobs()
	job := &models.GenerationJob{Name: "Generate slots for court-1", CourtID: "court-1", Dates: []string{"2030-01-07", "garbage", "2030-01-08"}}
	created, err := repo.CreatePending(context.Background(), job)
	require.NoError(t, err)
	require.True(t, created)

	metrics := NewMetricsService()
	worker := NewGenerationWorker(repo, newCenterMapStub(fixtureCenter(), fixtureCourt("court-1")), generator, metrics, nil)
	worker.now = func() time.Time { return fixtureNow }
	return worker, repo, metrics, job.ID
}

func TestGenerationWorkerRunsJob(t *testing.T) {
	generator := &courtGeneratorStub{}
	worker, repo, metrics, id := newWorkerFixture(t, generator)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: id, Type: SlotGenerationJobType}))

	job, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.JobStateDone, job.State)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.FinishedAt)
	require.Equal(t, "center-1", generator.center.ID)
	require.Len(t, generator.courts, 1)
	require.Equal(t, "court-1", generator.courts[0].ID)
	require.Equal(t, []time.Time{at(7, 0), at(8, 0)}, generator.dates)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.jobsFinished.WithLabelValues("done")))

	// a finished job is not run twice
	generator.center = nil
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: id, Type: SlotGenerationJobType}))
	require.Nil(t, generator.center)
}

func TestGenerationWorkerRecordsFailure(t *testing.T) {
	generator := &courtGeneratorStub{err: errors.New("court locked")}
	worker, repo, metrics, id := newWorkerFixture(t, generator)

	err := worker.Handle(context.Background(), jobs.Job{ID: id, Type: SlotGenerationJobType})
	require.Error(t, err)

	job, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.JobStateFailed, job.State)
	require.NotNil(t, job.ErrorMessage)
	require.Contains(t, *job.ErrorMessage, "court locked")
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.jobsFinished.WithLabelValues("failed")))
}
