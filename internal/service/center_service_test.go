package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/dto"
	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/workhours"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
)

type centerStoreStub struct {
	*centerMapStub
	courtLists int
	created    []*models.Center
}

func (s *centerStoreStub) ListCenters(ctx context.Context) ([]models.Center, error) {
	var out []models.Center
	for _, c := range s.centers {
		if c.IsCenter {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *centerStoreStub) ListCourts(ctx context.Context, centerID string) ([]models.Center, error) {
	s.courtLists++
	return s.centerMapStub.ListCourts(ctx, centerID)
}

func (s *centerStoreStub) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	for _, c := range s.centers {
		if c.IsCenter && c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *centerStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, center *models.Center) error {
	center.ID = "new-" + center.Name
	copied := *center
	s.centers[center.ID] = &copied
	s.created = append(s.created, center)
	return nil
}

func (s *centerStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, center *models.Center) error {
	if _, ok := s.centers[center.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *center
	s.centers[center.ID] = &copied
	return nil
}

type productSeederStub struct {
	seeded []models.Product
}

func (p *productSeederStub) ListByCenter(ctx context.Context, centerID string) ([]models.Product, error) {
	var out []models.Product
	for _, product := range p.seeded {
		if product.CenterID == centerID {
			out = append(out, product)
		}
	}
	return out, nil
}

func (p *productSeederStub) CreateBatch(ctx context.Context, exec sqlx.ExtContext, products []models.Product) error {
	p.seeded = append(p.seeded, products...)
	return nil
}

type placeholderPurgerStub struct {
	purged []string
}

func (p *placeholderPurgerStub) DeletePlaceholdersByCenter(ctx context.Context, exec sqlx.ExtContext, centerID string) (int64, error) {
	p.purged = append(p.purged, centerID)
	return 3, nil
}

type courtCacheStub struct {
	entries     map[string][]byte
	invalidated []string
}

func (c *courtCacheStub) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *courtCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, _ := json.Marshal(value)
	c.entries[key] = raw
}

func (c *courtCacheStub) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		delete(c.entries, key)
		c.invalidated = append(c.invalidated, key)
	}
}

type centerFixture struct {
	svc      *CenterService
	store    *centerStoreStub
	products *productSeederStub
	purger   *placeholderPurgerStub
	cache    *courtCacheStub
	mock     sqlmock.Sqlmock
}

func newCenterFixture(t *testing.T) *centerFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	fx := &centerFixture{
		store:    &centerStoreStub{centerMapStub: newCenterMapStub(fixtureCenter(), fixtureCourt("court-1"))},
		products: &productSeederStub{},
		purger:   &placeholderPurgerStub{},
		cache:    &courtCacheStub{entries: map[string][]byte{}},
		mock:     mock,
	}
	fx.svc = NewCenterService(fx.store, fx.products, fx.purger, tx, fx.cache, nil, nil)
	fx.svc.now = func() time.Time { return fixtureNow }
	return fx
}

func (fx *centerFixture) expectCommit() {
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
}

func TestCenterCreateConvertsLocalHoursAndSeedsProducts(t *testing.T) {
	fx := newCenterFixture(t)
	fx.expectCommit()

	center, err := fx.svc.Create(context.Background(), dto.CenterRequest{
		Name:              "South",
		IsCenter:          true,
		Timezone:          "Europe/Berlin",
		WorkingHoursLocal: json.RawMessage(`{"1":["09:00-18:00"],"7":["23:00-01:00"]}`),
	})
	require.NoError(t, err)
	require.NoError(t, fx.mock.ExpectationsWereMet())

	require.Equal(t, []workhours.Interval{{Start: 8 * 60, End: 17 * 60}}, center.WorkingHoursUTC.Day(1))
	require.Equal(t, []workhours.Interval{{Start: 22 * 60, End: 24 * 60}}, center.WorkingHoursUTC.Day(7))
	// the Sunday late session spills past local midnight into Monday
	require.Equal(t, []workhours.Interval{{Start: 0, End: 60}, {Start: 9 * 60, End: 18 * 60}}, center.WorkingHoursLocal.Day(1))
	require.Equal(t, []workhours.Interval{{Start: 23 * 60, End: 24 * 60}}, center.WorkingHoursLocal.Day(7))

	require.Len(t, fx.products.seeded, len(models.TrainingTypes))
	require.Equal(t, "Personal training", fx.products.seeded[0].Name)
	require.Equal(t, 1, fx.products.seeded[0].Capacity)
	require.Equal(t, center.ID, fx.products.seeded[0].CenterID)
}

func TestCenterCreateCourtInheritsTimezone(t *testing.T) {
	fx := newCenterFixture(t)
	fx.store.centers["center-1"].Timezone = "Europe/Berlin"
	fx.cache.entries[courtsCacheKey("center-1")] = []byte(`[]`)
	fx.expectCommit()
	parent := "center-1"

	court, err := fx.svc.Create(context.Background(), dto.CenterRequest{Name: "Court 2", ParentCenterID: &parent})
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", court.Timezone)
	require.True(t, court.IsCourt())
	require.Empty(t, fx.products.seeded)
	require.Contains(t, fx.cache.invalidated, courtsCacheKey("center-1"))
	require.NotContains(t, fx.cache.entries, courtsCacheKey("center-1"))
}

func TestCenterCreateRejectsInvalidPayloads(t *testing.T) {
	parent := "center-1"
	court := "court-1"
	cases := []struct {
		name string
		req  dto.CenterRequest
		code string
	}{
		{name: "center with parent", req: dto.CenterRequest{Name: "X", IsCenter: true, ParentCenterID: &parent}, code: appErrors.ErrValidation.Code},
		{name: "neither center nor court", req: dto.CenterRequest{Name: "X"}, code: appErrors.ErrValidation.Code},
		{name: "duplicate center name", req: dto.CenterRequest{Name: "North", IsCenter: true}, code: appErrors.ErrConflict.Code},
		{name: "unknown timezone", req: dto.CenterRequest{Name: "X", IsCenter: true, Timezone: "Mars/Olympus"}, code: appErrors.ErrValidation.Code},
		{name: "court of a court", req: dto.CenterRequest{Name: "X", ParentCenterID: &court}, code: appErrors.ErrValidation.Code},
		{name: "bad hours", req: dto.CenterRequest{Name: "X", IsCenter: true, WorkingHoursUTC: json.RawMessage(`{"8":["10:00-12:00"]}`)}, code: appErrors.ErrValidation.Code},
		{name: "missing name", req: dto.CenterRequest{IsCenter: true}, code: appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newCenterFixture(t)
			_, err := fx.svc.Create(context.Background(), tc.req)
			require.True(t, appErrors.HasCode(err, tc.code), "expected %s, got %v", tc.code, err)
			require.Empty(t, fx.store.created)
		})
	}
}

func TestCenterUpdatePurgesPlaceholdersWhenHoursChange(t *testing.T) {
	fx := newCenterFixture(t)
	fx.expectCommit()
	fx.expectCommit()

	_, err := fx.svc.Update(context.Background(), "center-1", dto.CenterRequest{
		Name:            "North",
		IsCenter:        true,
		WorkingHoursUTC: json.RawMessage(`{"1":["08:00-20:00"],"2":["08:00-20:00"],"3":["08:00-20:00"],"4":["08:00-20:00"],"5":["08:00-20:00"],"6":["08:00-20:00"],"7":["08:00-20:00"]}`),
	})
	require.NoError(t, err)
	require.Empty(t, fx.purger.purged)

	updated, err := fx.svc.Update(context.Background(), "center-1", dto.CenterRequest{
		Name:            "North",
		IsCenter:        true,
		WorkingHoursUTC: json.RawMessage(`{"1":["10:00-18:00"]}`),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"center-1"}, fx.purger.purged)
	require.Empty(t, updated.WorkingHoursUTC.Day(2))
	require.Contains(t, fx.cache.invalidated, courtsCacheKey("center-1"))
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestCenterUpdateKeepsHoursWhenOmitted(t *testing.T) {
	fx := newCenterFixture(t)
	fx.expectCommit()

	updated, err := fx.svc.Update(context.Background(), "center-1", dto.CenterRequest{Name: "North Club", IsCenter: true})
	require.NoError(t, err)
	require.Equal(t, "North Club", updated.Name)
	require.True(t, updated.WorkingHoursUTC.Equal(fixtureHours()))
	require.Empty(t, fx.purger.purged)
}

func TestCenterListCourtsUsesCache(t *testing.T) {
	fx := newCenterFixture(t)

	first, err := fx.svc.ListCourts(context.Background(), "center-1")
	require.NoError(t, err)
	second, err := fx.svc.ListCourts(context.Background(), "center-1")
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, 1, fx.store.courtLists)
}

func TestCenterGetNotFound(t *testing.T) {
	fx := newCenterFixture(t)

	_, err := fx.svc.Get(context.Background(), "nope")
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
