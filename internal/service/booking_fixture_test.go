package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/workhours"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryTrainings keeps training rows in memory and mirrors the repository
// query semantics.
type memoryTrainings struct {
	mu      sync.Mutex
	seq     int
	rows    map[string]*models.TrainingSession
	created []string
	deleted []string
	updates int
}

func newMemoryTrainings(rows ...*models.TrainingSession) *memoryTrainings {
	m := &memoryTrainings{rows: map[string]*models.TrainingSession{}}
	for _, row := range rows {
		m.rows[row.ID] = row.Clone()
	}
	return m
}

func (m *memoryTrainings) get(id string) *models.TrainingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	return row.Clone()
}

func (m *memoryTrainings) all() []models.TrainingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TrainingSession, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, *row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeBegin.Before(out[j].TimeBegin) })
	return out
}

func (m *memoryTrainings) ofKind(kind models.SessionKind) []models.TrainingSession {
	var out []models.TrainingSession
	for _, row := range m.all() {
		if row.Kind == kind {
			out = append(out, row)
		}
	}
	return out
}

func (m *memoryTrainings) selectRows(match func(*models.TrainingSession) bool) []models.TrainingSession {
	var out []models.TrainingSession
	for _, row := range m.all() {
		row := row
		if match(&row) {
			out = append(out, row)
		}
	}
	return out
}

func (m *memoryTrainings) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TrainingSession, error) {
	row := m.get(id)
	if row == nil {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (m *memoryTrainings) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.TrainingSession, error) {
	var out []models.TrainingSession
	for _, id := range ids {
		if row := m.get(id); row != nil {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memoryTrainings) Create(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if training.ID == "" {
		m.seq++
		training.ID = fmt.Sprintf("row-%d", m.seq)
	}
	m.rows[training.ID] = training.Clone()
	m.created = append(m.created, training.ID)
	return nil
}

func (m *memoryTrainings) Update(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[training.ID]; !ok {
		return sql.ErrNoRows
	}
	m.rows[training.ID] = training.Clone()
	m.updates++
	return nil
}

func (m *memoryTrainings) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.rows, id)
		m.deleted = append(m.deleted, id)
	}
	return nil
}

func (m *memoryTrainings) ListCourtWindow(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	return m.selectRows(func(t *models.TrainingSession) bool {
		return t.CourtID == courtID && t.Status != models.StatusCancelled && t.Overlaps(begin, finish)
	}), nil
}

func (m *memoryTrainings) ListCourtRange(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	return m.selectRows(func(t *models.TrainingSession) bool {
		return t.CourtID == courtID && t.Status != models.StatusCancelled && !t.TimeBegin.After(finish) && !t.TimeFinish.Before(begin)
	}), nil
}

func (m *memoryTrainings) ListInstructorOverlaps(ctx context.Context, exec sqlx.ExtContext, instructorID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	return m.selectRows(func(t *models.TrainingSession) bool {
		return t.InstructorID == instructorID && t.Kind == models.SessionReal && t.Status != models.StatusCancelled && t.Overlaps(begin, finish)
	}), nil
}

func (m *memoryTrainings) ListCustomerOverlaps(ctx context.Context, exec sqlx.ExtContext, customerIDs []string, begin, finish time.Time) ([]models.TrainingSession, error) {
	return m.selectRows(func(t *models.TrainingSession) bool {
		return sharesCustomer(t.CustomerIDs, customerIDs) && t.Kind == models.SessionReal && t.Status != models.StatusCancelled && t.Overlaps(begin, finish)
	}), nil
}

func (m *memoryTrainings) List(ctx context.Context, filter models.TrainingFilter) ([]models.TrainingSession, int, error) {
	rows := m.selectRows(func(t *models.TrainingSession) bool {
		return filter.CourtID == "" || t.CourtID == filter.CourtID
	})
	return rows, len(rows), nil
}

func (m *memoryTrainings) CountPlaceholders(ctx context.Context, courtID string, begin, finish time.Time) (int, error) {
	return len(m.selectRows(func(t *models.TrainingSession) bool {
		return t.CourtID == courtID && t.IsPlaceholder() && t.Overlaps(begin, finish)
	})), nil
}

func (m *memoryTrainings) ListFinishedBefore(ctx context.Context, cutoff time.Time, statuses []models.TrainingStatus, limit int) ([]models.TrainingSession, error) {
	rows := m.selectRows(func(t *models.TrainingSession) bool {
		return hasStatus(statuses, t.Status) && !t.TimeFinish.After(cutoff)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memoryTrainings) ListStartingBetween(ctx context.Context, from, to time.Time, statuses []models.TrainingStatus) ([]models.TrainingSession, error) {
	return m.selectRows(func(t *models.TrainingSession) bool {
		return t.Kind == models.SessionReal && hasStatus(statuses, t.Status) && !t.TimeBegin.Before(from) && !t.TimeBegin.After(to)
	}), nil
}

func hasStatus(statuses []models.TrainingStatus, status models.TrainingStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// racingTrainings fails court reads with a serialization failure until
// failures is used up.
type racingTrainings struct {
	*memoryTrainings
	failures int
	reads    int
}

func (r *racingTrainings) race() error {
	r.reads++
	if r.failures == 0 {
		return nil
	}
	r.failures--
	return fmt.Errorf("list court trainings: %w", &pq.Error{Code: "40001", Message: "could not serialize access"})
}

func (r *racingTrainings) ListCourtWindow(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	if err := r.race(); err != nil {
		return nil, err
	}
	return r.memoryTrainings.ListCourtWindow(ctx, exec, courtID, begin, finish)
}

func (r *racingTrainings) ListCourtRange(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	if err := r.race(); err != nil {
		return nil, err
	}
	return r.memoryTrainings.ListCourtRange(ctx, exec, courtID, begin, finish)
}

type memoryCustomers struct {
	mu      sync.Mutex
	rows    map[string]*models.Customer
	applied [][]models.LedgerEntry
}

func newMemoryCustomers(customers ...models.Customer) *memoryCustomers {
	m := &memoryCustomers{rows: map[string]*models.Customer{}}
	for i := range customers {
		c := customers[i]
		m.rows[c.ID] = &c
	}
	return m
}

func (m *memoryCustomers) balance(id string) (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.rows[id]
	return c.BalanceCard, c.FrozenBalanceCard
}

func (m *memoryCustomers) FindByID(ctx context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *memoryCustomers) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Customer
	for _, id := range ids {
		if c, ok := m.rows[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memoryCustomers) ApplyLedger(ctx context.Context, exec sqlx.ExtContext, entries []models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range entries {
		c, ok := m.rows[entry.CustomerID]
		if !ok {
			return sql.ErrNoRows
		}
		c.BalanceCard += entry.BalanceDelta
		c.FrozenBalanceCard += entry.FrozenDelta
	}
	m.applied = append(m.applied, entries)
	return nil
}

type centerMapStub struct {
	centers map[string]*models.Center
}

func newCenterMapStub(centers ...*models.Center) *centerMapStub {
	s := &centerMapStub{centers: map[string]*models.Center{}}
	for _, c := range centers {
		s.centers[c.ID] = c
	}
	return s
}

func (s *centerMapStub) FindByID(ctx context.Context, id string) (*models.Center, error) {
	c, ok := s.centers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (s *centerMapStub) ListCourts(ctx context.Context, centerID string) ([]models.Center, error) {
	var courts []models.Center
	for _, c := range s.centers {
		if c.IsCourt() && *c.ParentCenterID == centerID {
			courts = append(courts, *c)
		}
	}
	sort.Slice(courts, func(i, j int) bool { return courts[i].ID < courts[j].ID })
	return courts, nil
}

type productMapStub map[string]*models.Product

func (s productMapStub) FindByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

type employeeMapStub map[string]*models.Employee

func (s employeeMapStub) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	e, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (s employeeMapStub) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	for _, e := range s {
		if e.UserID == userID {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (n *recordingNotifier) Notify(ctx context.Context, customer models.Customer, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = map[string][]string{}
	}
	n.messages[customer.ID] = append(n.messages[customer.ID], message)
}

func (n *recordingNotifier) count(customerID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages[customerID])
}

// Reference clock: Monday 2030-01-07 is the first bookable day.
var fixtureNow = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

func fixtureHours() workhours.WeeklyHours {
	hours := workhours.WeeklyHours{}
	for wd := 1; wd <= 7; wd++ {
		hours[wd] = []workhours.Interval{{Start: 8 * 60, End: 20 * 60}}
	}
	return hours
}

func fixtureCenter() *models.Center {
	return &models.Center{ID: "center-1", Name: "North", IsCenter: true, Timezone: "UTC", WorkingHoursUTC: fixtureHours()}
}

func fixtureCourt(id string) *models.Center {
	parent := "center-1"
	return &models.Center{ID: id, Name: "Court " + id, ParentCenterID: &parent, Timezone: "UTC", WorkingHoursUTC: fixtureHours()}
}

func at(day, hour int) time.Time {
	return time.Date(2030, 1, day, hour, 0, 0, 0, time.UTC)
}
