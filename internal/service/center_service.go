package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tennis-club-api/internal/dto"
	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/workhours"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
)

type centerStore interface {
	FindByID(ctx context.Context, id string) (*models.Center, error)
	ListCenters(ctx context.Context) ([]models.Center, error)
	ListCourts(ctx context.Context, centerID string) ([]models.Center, error)
	NameTaken(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, center *models.Center) error
	Update(ctx context.Context, exec sqlx.ExtContext, center *models.Center) error
}

type productSeeder interface {
	ListByCenter(ctx context.Context, centerID string) ([]models.Product, error)
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, products []models.Product) error
}

type placeholderPurger interface {
	DeletePlaceholdersByCenter(ctx context.Context, exec sqlx.ExtContext, centerID string) (int64, error)
}

type courtCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

func courtsCacheKey(centerID string) string {
	return "courts:" + centerID
}

// CenterService manages centers, courts and their working hours.
type CenterService struct {
	centers      centerStore
	products     productSeeder
	placeholders placeholderPurger
	tx           txProvider
	cache        courtCache
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewCenterService constructs the service.
func NewCenterService(centers centerStore, products productSeeder, placeholders placeholderPurger, tx txProvider, cache courtCache, validate *validator.Validate, logger *zap.Logger) *CenterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CenterService{
		centers:      centers,
		products:     products,
		placeholders: placeholders,
		tx:           tx,
		cache:        cache,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Create stores a center (seeding its default products) or a court.
func (s *CenterService) Create(ctx context.Context, req dto.CenterRequest) (center *models.Center, err error) {
	center, err = s.build(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.centers.Create(ctx, tx, center); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create center")
	}
	if center.IsCenter {
		if err = s.products.CreateBatch(ctx, tx, defaultProducts(center.ID)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed center products")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit center")
	}

	if center.IsCourt() {
		s.invalidateCourts(ctx, *center.ParentCenterID)
	}
	s.logger.Sugar().Infow("center created", "center_id", center.ID, "is_center", center.IsCenter)
	return center, nil
}

// Update replaces a center. Changing a center's hours drops its untouched
// placeholders so the next generation run rebuilds them.
func (s *CenterService) Update(ctx context.Context, id string, req dto.CenterRequest) (center *models.Center, err error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	center, err = s.build(ctx, req, existing)
	if err != nil {
		return nil, err
	}
	hoursChanged := !existing.WorkingHoursUTC.Equal(center.WorkingHoursUTC)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.centers.Update(ctx, tx, center); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update center")
	}
	var purged int64
	if hoursChanged && center.IsCenter {
		purged, err = s.placeholders.DeletePlaceholdersByCenter(ctx, tx, center.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset center slots")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit center")
	}

	s.invalidateCourts(ctx, center.ID)
	if existing.IsCourt() {
		s.invalidateCourts(ctx, *existing.ParentCenterID)
	}
	if center.IsCourt() {
		s.invalidateCourts(ctx, *center.ParentCenterID)
	}
	s.logger.Sugar().Infow("center updated", "center_id", center.ID, "hours_changed", hoursChanged, "placeholders_removed", purged)
	return center, nil
}

// Get returns a center or court.
func (s *CenterService) Get(ctx context.Context, id string) (*models.Center, error) {
	center, err := s.centers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "center not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load center")
	}
	return center, nil
}

// ListCenters returns every top-level center.
func (s *CenterService) ListCenters(ctx context.Context) ([]models.Center, error) {
	centers, err := s.centers.ListCenters(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list centers")
	}
	if centers == nil {
		centers = []models.Center{}
	}
	return centers, nil
}

// ListCourts returns the courts of a center, served from cache when possible.
func (s *CenterService) ListCourts(ctx context.Context, centerID string) ([]models.Center, error) {
	key := courtsCacheKey(centerID)
	var courts []models.Center
	if s.cache != nil && s.cache.Get(ctx, key, &courts) {
		return courts, nil
	}
	courts, err := s.centers.ListCourts(ctx, centerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courts")
	}
	if courts == nil {
		courts = []models.Center{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, courts, 0)
	}
	return courts, nil
}

// Products returns the products offered by a center.
func (s *CenterService) Products(ctx context.Context, centerID string) ([]models.Product, error) {
	products, err := s.products.ListByCenter(ctx, centerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// build validates req and derives both views of the working hours.
func (s *CenterService) build(ctx context.Context, req dto.CenterRequest, existing *models.Center) (*models.Center, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid center payload")
	}
	name := strings.TrimSpace(req.Name)
	isCourt := req.ParentCenterID != nil && *req.ParentCenterID != ""
	if req.IsCenter == isCourt {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of isCenter and parentCenterId must be set")
	}

	center := &models.Center{Name: name, IsCenter: req.IsCenter, Timezone: strings.TrimSpace(req.Timezone)}
	if existing != nil {
		center.ID = existing.ID
		center.CreatedAt = existing.CreatedAt
	}

	if isCourt {
		if existing != nil && *req.ParentCenterID == existing.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a center cannot be its own parent")
		}
		parent, err := s.Get(ctx, *req.ParentCenterID)
		if err != nil {
			return nil, err
		}
		if !parent.IsCenter {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parentCenterId must reference a center")
		}
		parentID := parent.ID
		center.ParentCenterID = &parentID
		if center.Timezone == "" {
			center.Timezone = parent.Timezone
		}
	} else {
		taken, err := s.centers.NameTaken(ctx, name, center.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check center name")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("center %q already exists", name))
		}
	}

	if center.Timezone == "" {
		center.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(center.Timezone)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown timezone %q", center.Timezone))
	}

	cal := workhours.Calendar{Reference: s.now()}
	switch {
	case hasJSON(req.WorkingHoursLocal):
		local, err := workhours.ParseWeeklyHours(req.WorkingHoursLocal)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid local working hours")
		}
		center.WorkingHoursUTC = cal.ToUTC(local, loc)
	case hasJSON(req.WorkingHoursUTC):
		utc, err := workhours.ParseWeeklyHours(req.WorkingHoursUTC)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid UTC working hours")
		}
		center.WorkingHoursUTC = workhours.Normalize(utc)
	case existing != nil:
		center.WorkingHoursUTC = existing.WorkingHoursUTC
	default:
		center.WorkingHoursUTC = workhours.WeeklyHours{}
	}
	center.WorkingHoursLocal = cal.ToLocal(center.WorkingHoursUTC, loc)
	return center, nil
}

func (s *CenterService) invalidateCourts(ctx context.Context, centerID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, courtsCacheKey(centerID))
	}
}

func defaultProducts(centerID string) []models.Product {
	products := make([]models.Product, 0, len(models.TrainingTypes))
	for _, trainingType := range models.TrainingTypes {
		products = append(products, models.Product{
			CenterID:     centerID,
			Name:         strings.ToUpper(string(trainingType[:1])) + string(trainingType[1:]) + " training",
			TrainingType: trainingType,
			Capacity:     models.DefaultCapacities[trainingType],
		})
	}
	return products
}

func hasJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
