package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tennis-club-api/internal/dto"
	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/workhours"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
)

type trainingStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TrainingSession, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.TrainingSession, error)
	Create(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error
	Update(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error
	ListCourtWindow(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error)
	ListInstructorOverlaps(ctx context.Context, exec sqlx.ExtContext, instructorID string, begin, finish time.Time) ([]models.TrainingSession, error)
	ListCustomerOverlaps(ctx context.Context, exec sqlx.ExtContext, customerIDs []string, begin, finish time.Time) ([]models.TrainingSession, error)
	List(ctx context.Context, filter models.TrainingFilter) ([]models.TrainingSession, int, error)
}

type centerReader interface {
	FindByID(ctx context.Context, id string) (*models.Center, error)
}

type productReader interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
}

type employeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type customerLedger interface {
	FindByID(ctx context.Context, id string) (*models.Customer, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Customer, error)
	ApplyLedger(ctx context.Context, exec sqlx.ExtContext, entries []models.LedgerEntry) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// balanceEpsilon absorbs float rounding when comparing money.
const balanceEpsilon = 1e-9

// TrainingService drives bookings through the status graph, keeping court,
// instructor and customer schedules consistent and customer balances balanced.
type TrainingService struct {
	trainings trainingStore
	centers   centerReader
	products  productReader
	employees employeeReader
	customers customerLedger
	tx        txProvider
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTrainingService wires booking dependencies.
func NewTrainingService(
	trainings trainingStore,
	centers centerReader,
	products productReader,
	employees employeeReader,
	customers customerLedger,
	tx txProvider,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TrainingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{
		trainings: trainings,
		centers:   centers,
		products:  products,
		employees: employees,
		customers: customers,
		tx:        tx,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// trainingChange is one session moving through a write.
type trainingChange struct {
	before            *models.TrainingSession
	after             *models.TrainingSession
	created           bool
	scheduleChanged   bool
	assignmentChanged bool
	financialChanged  bool
	clone             bool
}

func (c *trainingChange) from() models.TrainingStatus {
	if c.before == nil {
		return models.StatusNew
	}
	return c.before.Status
}

func (c *trainingChange) statusChanged() bool {
	return c.from() != c.after.Status
}

func (c *trainingChange) leavingNew() bool {
	return c.from() == models.StatusNew && c.after.Status != models.StatusNew
}

// trainingPatch is the parsed form of an update request.
type trainingPatch struct {
	name         *string
	productID    *string
	instructorID *string
	customerIDs  *[]string
	timeBegin    *time.Time
	timeFinish   *time.Time
	price        *float64
	frequency    *models.RepeatFrequency
	repeatUntil  *time.Time
	status       *models.TrainingStatus
}

// Create books a new real training and realizes new -> waiting_approve_reserve.
func (s *TrainingService) Create(ctx context.Context, req dto.CreateTrainingRequest, actingUserID string) (*dto.TrainingWriteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}
	frequency, err := models.ParseRepeatFrequency(req.RepeatFrequency)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if frequency != models.RepeatOneTime && req.RepeatUntil == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "repeatUntil is required for repeating trainings")
	}

	court, err := s.centers.FindByID(ctx, req.CourtID)
	if err != nil {
		return nil, s.lookupError(err, "court")
	}
	if !court.IsCourt() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courtId must reference a court")
	}

	draft := &models.TrainingSession{
		Name:            strings.TrimSpace(req.Name),
		Kind:            models.SessionReal,
		Status:          models.StatusNew,
		CenterID:        *court.ParentCenterID,
		CourtID:         court.ID,
		ProductID:       req.ProductID,
		InstructorID:    req.InstructorID,
		CustomerIDs:     pq.StringArray(uniqueStrings(req.CustomerIDs)),
		TimeBegin:       req.TimeBegin.UTC(),
		TimeFinish:      req.TimeFinish.UTC(),
		RepeatFrequency: frequency,
		RepeatUntil:     req.RepeatUntil,
	}
	if req.PricePerHourTotal != nil {
		draft.PricePerHourTotal = *req.PricePerHourTotal
	}
	if actingUserID != "" {
		draft.CreatedBy = &actingUserID
	}

	return s.write(ctx, func(ctx context.Context, tx *sqlx.Tx, lk *writeLookups) ([]*trainingChange, error) {
		product, err := lk.product(ctx, draft.ProductID)
		if err != nil {
			return nil, err
		}
		if req.PricePerHourTotal == nil {
			draft.PricePerHourTotal = product.ListPrice
		}
		after := draft.Clone()
		after.Status = models.StatusWaitingApproveReserve
		return []*trainingChange{{after: after, created: true, scheduleChanged: true, assignmentChanged: true, financialChanged: true}}, nil
	})
}

// Update applies a patch to one training.
func (s *TrainingService) Update(ctx context.Context, id string, req dto.UpdateTrainingRequest) (*dto.TrainingWriteResponse, error) {
	return s.UpdateMany(ctx, []string{id}, req)
}

// UpdateMany applies the same patch to every listed training in one transaction.
func (s *TrainingService) UpdateMany(ctx context.Context, ids []string, req dto.UpdateTrainingRequest) (*dto.TrainingWriteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training patch")
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one training id is required")
	}
	patch, err := parsePatch(req)
	if err != nil {
		return nil, err
	}

	return s.write(ctx, func(ctx context.Context, tx *sqlx.Tx, lk *writeLookups) ([]*trainingChange, error) {
		existing, err := s.trainings.FindByIDs(ctx, tx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainings")
		}
		if len(existing) != len(ids) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		changes := make([]*trainingChange, 0, len(existing))
		for i := range existing {
			change, err := s.applyPatch(ctx, lk, &existing[i], patch)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)
		}
		return changes, nil
	})
}

// ChangeStatus moves one training to status.
func (s *TrainingService) ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest) (*dto.TrainingWriteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status := req.Status
	return s.UpdateMany(ctx, []string{id}, dto.UpdateTrainingRequest{Status: &status})
}

// Delete removes a training that never left new or unavailable.
func (s *TrainingService) Delete(ctx context.Context, id string) error {
	training, err := s.trainings.FindByID(ctx, nil, id)
	if err != nil {
		return s.lookupError(err, "training")
	}
	if training.Status != models.StatusNew && training.Status != models.StatusUnavailable {
		s.metrics.RecordValidationFailure(appErrors.ErrDeleteForbidden.Code)
		return appErrors.Clone(appErrors.ErrDeleteForbidden, fmt.Sprintf("training in status %s cannot be deleted", training.Status))
	}
	if err := s.trainings.DeleteByIDs(ctx, nil, []string{id}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete training")
	}
	return nil
}

// Get returns a training.
func (s *TrainingService) Get(ctx context.Context, id string) (*models.TrainingSession, error) {
	training, err := s.trainings.FindByID(ctx, nil, id)
	if err != nil {
		return nil, s.lookupError(err, "training")
	}
	return training, nil
}

// List returns trainings matching the query.
func (s *TrainingService) List(ctx context.Context, query dto.TrainingListQuery) ([]models.TrainingSession, *models.Pagination, error) {
	filter := models.TrainingFilter{
		CenterID: query.CenterID,
		CourtID:  query.CourtID,
		From:     query.From,
		To:       query.To,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	for _, raw := range query.Statuses {
		status := models.TrainingStatus(raw)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range query.Kinds {
		kind := models.SessionKind(raw)
		if kind != models.SessionReal && kind != models.SessionFreeSlot && kind != models.SessionNonWorking {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown kind %q", raw))
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 100
	}

	trainings, total, err := s.trainings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainings")
	}
	return trainings, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Balance returns a customer's spendable and held funds.
func (s *TrainingService) Balance(ctx context.Context, customerID string) (*dto.CustomerBalanceResponse, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, s.lookupError(err, "customer")
	}
	return &dto.CustomerBalanceResponse{
		CustomerID: customer.ID,
		Name:       customer.Name,
		Balance:    customer.BalanceCard,
		Frozen:     customer.FrozenBalanceCard,
		Total:      customer.Total(),
	}, nil
}

func parsePatch(req dto.UpdateTrainingRequest) (trainingPatch, error) {
	patch := trainingPatch{
		name:         req.Name,
		productID:    req.ProductID,
		instructorID: req.InstructorID,
		timeBegin:    req.TimeBegin,
		timeFinish:   req.TimeFinish,
		price:        req.PricePerHourTotal,
		repeatUntil:  req.RepeatUntil,
	}
	if req.CustomerIDs != nil {
		ids := uniqueStrings(*req.CustomerIDs)
		patch.customerIDs = &ids
	}
	if req.RepeatFrequency != nil {
		frequency, err := models.ParseRepeatFrequency(*req.RepeatFrequency)
		if err != nil {
			return patch, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		patch.frequency = &frequency
	}
	if req.Status != nil {
		status := models.TrainingStatus(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return patch, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("unknown status %q", *req.Status))
		}
		patch.status = &status
	}
	return patch, nil
}

// applyPatch produces the change for one loaded training.
func (s *TrainingService) applyPatch(ctx context.Context, lk *writeLookups, before *models.TrainingSession, patch trainingPatch) (*trainingChange, error) {
	after := before.Clone()
	change := &trainingChange{before: before, after: after}

	if patch.name != nil {
		after.Name = strings.TrimSpace(*patch.name)
	}
	if patch.productID != nil && *patch.productID != after.ProductID {
		after.ProductID = *patch.productID
		change.assignmentChanged = true
	}
	if patch.instructorID != nil && *patch.instructorID != after.InstructorID {
		after.InstructorID = *patch.instructorID
		change.assignmentChanged = true
	}
	if patch.customerIDs != nil && !sameStringSet(*patch.customerIDs, after.CustomerIDs) {
		after.CustomerIDs = pq.StringArray(append([]string(nil), *patch.customerIDs...))
		change.assignmentChanged = true
		change.financialChanged = true
	}
	if patch.timeBegin != nil {
		after.TimeBegin = patch.timeBegin.UTC()
	}
	if patch.timeFinish != nil {
		after.TimeFinish = patch.timeFinish.UTC()
	}
	if !after.TimeBegin.Equal(before.TimeBegin) || !after.TimeFinish.Equal(before.TimeFinish) {
		change.scheduleChanged = true
		if after.Duration() != before.Duration() {
			change.financialChanged = true
		}
	}
	if patch.price != nil && *patch.price != after.PricePerHourTotal {
		after.PricePerHourTotal = *patch.price
		change.financialChanged = true
	}
	if patch.frequency != nil {
		after.RepeatFrequency = *patch.frequency
	}
	if patch.repeatUntil != nil {
		until := *patch.repeatUntil
		after.RepeatUntil = &until
	}

	if after.Kind == models.SessionFreeSlot && change.assignmentChanged {
		after.Kind = models.SessionReal
		if after.Name == models.FreeSlotName {
			after.Name = ""
		}
		if patch.price == nil && after.ProductID != "" {
			product, err := lk.product(ctx, after.ProductID)
			if err != nil {
				return nil, err
			}
			after.PricePerHourTotal = product.ListPrice
		}
	}

	switch {
	case patch.status != nil:
		if after.IsPlaceholder() {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s rows do not change status", after.Kind))
		}
		if err := ValidateTransition(before.Status, *patch.status); err != nil {
			return nil, err
		}
		after.Status = *patch.status
	case after.Kind == models.SessionReal && reopensApproval(before.Status):
		after.Status = models.StatusWaitingApproveReserve
	}

	if change.financialChanged && before.Status == models.StatusDone {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "financial fields of a done training are frozen")
	}
	return change, nil
}

type writeBuilder func(ctx context.Context, tx *sqlx.Tx, lk *writeLookups) ([]*trainingChange, error)

type writeResult struct {
	changes []*trainingChange
	clones  []*trainingChange
	removed []string
	ledger  []models.LedgerEntry
}

// write runs build and every booking rule inside one serializable
// transaction, rerunning it when it loses a race with another writer.
func (s *TrainingService) write(ctx context.Context, build writeBuilder) (*dto.TrainingWriteResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := s.writeOnce(ctx, build)
		if err == nil || !isSerializationFailure(err) {
			return resp, err
		}
		if attempt == maxSerializableAttempts {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "training changed concurrently, retry the request")
		}
		s.logger.Warn("retrying training write after serialization failure", zap.Int("attempt", attempt), zap.Error(err))
	}
}

func (s *TrainingService) writeOnce(ctx context.Context, build writeBuilder) (resp *dto.TrainingWriteResponse, err error) {
	tx, err := s.tx.BeginTxx(ctx, serializableTx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lk := newWriteLookups(s)
	changes, err := build(ctx, tx, lk)
	if err != nil {
		return nil, s.recordFailure(err)
	}
	result, err := s.realize(ctx, tx, lk, changes)
	if err != nil {
		return nil, s.recordFailure(err)
	}
	if err = s.persist(ctx, tx, result); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit training changes")
	}

	s.afterCommit(ctx, lk, result)
	return toWriteResponse(result), nil
}

// realize resolves status effects: snapshots, recurrence, ledger and rules.
func (s *TrainingService) realize(ctx context.Context, tx *sqlx.Tx, lk *writeLookups, changes []*trainingChange) (*writeResult, error) {
	result := &writeResult{changes: changes}
	ledger := models.NewLedger()

	for _, change := range changes {
		if err := s.settle(ctx, lk, change, ledger); err != nil {
			return nil, err
		}
		clones, err := s.expand(ctx, lk, change, ledger)
		if err != nil {
			return nil, err
		}
		result.clones = append(result.clones, clones...)
	}

	batch := append(append([]*trainingChange(nil), result.changes...), result.clones...)
	removed := map[string]struct{}{}
	for _, change := range batch {
		freeSlots, err := s.validate(ctx, tx, lk, change, batch)
		if err != nil {
			return nil, err
		}
		for _, id := range freeSlots {
			if _, seen := removed[id]; !seen {
				removed[id] = struct{}{}
				result.removed = append(result.removed, id)
			}
		}
	}
	if err := checkBatchOverlaps(batch); err != nil {
		return nil, err
	}

	result.ledger = ledger.Entries()
	if err := s.checkBalances(ctx, tx, lk, result.ledger); err != nil {
		return nil, err
	}
	return result, nil
}

// settle fixes the snapshot of a change and records its balance movement.
func (s *TrainingService) settle(ctx context.Context, lk *writeLookups, change *trainingChange, ledger *models.Ledger) error {
	after := change.after
	if after.Kind == models.SessionReal && (change.created || change.assignmentChanged || change.leavingNew()) {
		if err := s.fillDerived(ctx, lk, after); err != nil {
			return err
		}
	}

	if after.Status.Trivial() {
		movementSource := after
		if change.before != nil && change.before.Snapshot != nil {
			movementSource = change.before
		}
		s.recordMovement(ledger, change.from(), after.Status, movementSource)
		after.Snapshot = nil
		return nil
	}

	held := change.before != nil && change.before.Snapshot != nil
	if held && change.financialChanged {
		// Release the old hold and re-hold under the edited terms.
		before := change.before
		amount := before.Movement()
		for _, id := range before.CustomerIDs {
			ledger.Add(id, amount, -amount)
		}
		after.Snapshot = nil
		snapshot, err := s.captureSnapshot(ctx, lk, after)
		if err != nil {
			return err
		}
		after.Snapshot = snapshot
		amount = after.Movement()
		for _, id := range after.CustomerIDs {
			ledger.Add(id, -amount, amount)
		}
		s.recordMovement(ledger, change.from(), after.Status, after)
		return nil
	}

	if after.Snapshot == nil {
		snapshot, err := s.captureSnapshot(ctx, lk, after)
		if err != nil {
			return err
		}
		after.Snapshot = snapshot
	}
	movementSource := after
	if held {
		movementSource = change.before
	}
	s.recordMovement(ledger, change.from(), after.Status, movementSource)
	return nil
}

func (s *TrainingService) recordMovement(ledger *models.Ledger, from, to models.TrainingStatus, source *models.TrainingSession) {
	if from == to {
		return
	}
	amount := source.Movement()
	balanceDelta, frozenDelta := BalanceMovement(from, to, amount)
	for _, id := range source.CustomerIDs {
		ledger.Add(id, balanceDelta, frozenDelta)
	}
}

// expand materializes recurrence clones on the first move away from new.
func (s *TrainingService) expand(ctx context.Context, lk *writeLookups, change *trainingChange, ledger *models.Ledger) ([]*trainingChange, error) {
	after := change.after
	if !change.leavingNew() || after.Status == models.StatusCancelled || !after.Repeats() || after.RecurrenceExpanded {
		return nil, nil
	}
	center, err := lk.center(ctx, after.CenterID)
	if err != nil {
		return nil, err
	}
	loc, err := center.Location()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid center timezone")
	}

	after.RecurrenceExpanded = true
	drafts := ExpandRecurrence(after, loc)
	clones := make([]*trainingChange, 0, len(drafts))
	for _, draft := range drafts {
		snapshot, err := s.captureSnapshot(ctx, lk, draft)
		if err != nil {
			return nil, err
		}
		draft.Snapshot = snapshot
		s.recordMovement(ledger, models.StatusNew, draft.Status, draft)
		clones = append(clones, &trainingChange{after: draft, created: true, scheduleChanged: true, clone: true})
	}
	return clones, nil
}

// fillDerived sets the name and instructor payment of a real booking.
func (s *TrainingService) fillDerived(ctx context.Context, lk *writeLookups, t *models.TrainingSession) error {
	if t.Name == "" {
		names, err := lk.customerNames(ctx, t.CustomerIDs)
		if err != nil {
			return err
		}
		t.Name = strings.Join(names, ", ")
	}
	product, err := lk.product(ctx, t.ProductID)
	if err != nil {
		return err
	}
	instructor, err := lk.employee(ctx, t.InstructorID)
	if err != nil {
		return err
	}
	if !instructor.IsInstructor {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("employee %s is not an instructor", instructor.ID))
	}
	t.PaymentToInstructorPerHour = instructor.RateFor(product.TrainingType)
	return nil
}

func (s *TrainingService) captureSnapshot(ctx context.Context, lk *writeLookups, t *models.TrainingSession) (*models.FixedSnapshot, error) {
	snapshot := &models.FixedSnapshot{
		Name:                       t.Name,
		DurationHours:              t.Duration().Hours(),
		TimeBegin:                  t.TimeBegin,
		TimeFinish:                 t.TimeFinish,
		PricePerHourTotal:          t.PricePerHourTotal,
		CustomerCount:              len(t.CustomerIDs),
		PaymentToInstructorPerHour: t.PaymentToInstructorPerHour,
		CapturedAt:                 s.now().UTC(),
	}
	snapshot.PaymentToInstructor = snapshot.PaymentToInstructorPerHour * snapshot.DurationHours
	snapshot.TotalMoney = snapshot.PricePerHourTotal * snapshot.DurationHours

	if center, err := lk.center(ctx, t.CenterID); err == nil {
		snapshot.CenterName = center.Name
	} else if !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
		return nil, err
	}
	if court, err := lk.center(ctx, t.CourtID); err == nil {
		snapshot.CourtName = court.Name
	} else if !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
		return nil, err
	}
	if t.Kind != models.SessionReal {
		return snapshot, nil
	}

	product, err := lk.product(ctx, t.ProductID)
	if err != nil {
		return nil, err
	}
	snapshot.ProductName = product.Name
	snapshot.Capacity = product.Capacity
	instructor, err := lk.employee(ctx, t.InstructorID)
	if err != nil {
		return nil, err
	}
	snapshot.InstructorName = instructor.Name
	names, err := lk.customerNames(ctx, t.CustomerIDs)
	if err != nil {
		return nil, err
	}
	snapshot.CustomerNames = names
	return snapshot, nil
}

// validate enforces the booking rules for one change and returns free slots
// that the change displaces.
func (s *TrainingService) validate(ctx context.Context, tx *sqlx.Tx, lk *writeLookups, change *trainingChange, batch []*trainingChange) ([]string, error) {
	t := change.after
	if t.Kind != models.SessionReal || t.Status == models.StatusCancelled {
		return nil, nil
	}
	if !change.created && !change.scheduleChanged && !change.assignmentChanged && !change.leavingNew() {
		return nil, nil
	}

	if len(t.CustomerIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "training needs at least one customer")
	}
	product, err := lk.product(ctx, t.ProductID)
	if err != nil {
		return nil, err
	}
	if len(t.CustomerIDs) > product.Capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("%d customers exceed capacity %d of %s", len(t.CustomerIDs), product.Capacity, product.Name))
	}
	if t.Status != models.StatusUnavailable {
		duration := t.Duration()
		if duration <= 0 || duration%time.Hour != 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidDuration, fmt.Sprintf("duration %s is not a whole number of hours", duration))
		}
	}
	if change.created || change.scheduleChanged || change.leavingNew() {
		if t.TimeBegin.Before(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrScheduleInPast, fmt.Sprintf("training starts at %s which is in the past", t.TimeBegin.Format(time.RFC3339)))
		}
		center, err := lk.center(ctx, t.CenterID)
		if err != nil {
			return nil, err
		}
		if !workhours.Covers(center.WorkingHoursUTC, t.TimeBegin, t.TimeFinish, time.UTC) {
			return nil, appErrors.Clone(appErrors.ErrOutsideWorkingHours, fmt.Sprintf("training %s - %s is outside working hours of %s", t.TimeBegin.Format(time.RFC3339), t.TimeFinish.Format(time.RFC3339), center.Name))
		}
	}

	inBatch := batchIDs(batch)

	instructorRows, err := s.trainings.ListInstructorOverlaps(ctx, tx, t.InstructorID, t.TimeBegin, t.TimeFinish)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor schedule")
	}
	for _, other := range instructorRows {
		if _, ok := inBatch[other.ID]; ok {
			continue
		}
		return nil, appErrors.Clone(appErrors.ErrInstructorConflict, fmt.Sprintf("instructor already runs %q at %s", other.Name, other.TimeBegin.Format(time.RFC3339)))
	}

	// A repeating base is exempt; each of its one-time occurrences is checked.
	if !t.Repeats() {
		customerRows, err := s.trainings.ListCustomerOverlaps(ctx, tx, t.CustomerIDs, t.TimeBegin, t.TimeFinish)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check customer schedule")
		}
		for _, other := range customerRows {
			if _, ok := inBatch[other.ID]; ok {
				continue
			}
			return nil, appErrors.Clone(appErrors.ErrCustomerConflict, fmt.Sprintf("customer already attends %q at %s", other.Name, other.TimeBegin.Format(time.RFC3339)))
		}
	}

	courtRows, err := s.trainings.ListCourtWindow(ctx, tx, t.CourtID, t.TimeBegin, t.TimeFinish)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check court schedule")
	}
	var freeSlots []string
	for _, other := range courtRows {
		if _, ok := inBatch[other.ID]; ok {
			continue
		}
		if other.Kind == models.SessionFreeSlot {
			freeSlots = append(freeSlots, other.ID)
			continue
		}
		return nil, appErrors.Clone(appErrors.ErrCourtConflict, fmt.Sprintf("court is taken by %q at %s", other.Name, other.TimeBegin.Format(time.RFC3339)))
	}
	return freeSlots, nil
}

// checkBatchOverlaps enforces the overlap rules among sessions of one write.
func checkBatchOverlaps(batch []*trainingChange) error {
	for i, a := range batch {
		if a.after.Kind != models.SessionReal || a.after.Status == models.StatusCancelled {
			continue
		}
		for _, b := range batch[i+1:] {
			if b.after.Kind != models.SessionReal || b.after.Status == models.StatusCancelled {
				continue
			}
			if !a.after.Overlaps(b.after.TimeBegin, b.after.TimeFinish) {
				continue
			}
			switch {
			case a.after.CourtID == b.after.CourtID:
				return appErrors.Clone(appErrors.ErrCourtConflict, fmt.Sprintf("trainings in this request overlap on court at %s", b.after.TimeBegin.Format(time.RFC3339)))
			case a.after.InstructorID == b.after.InstructorID:
				return appErrors.Clone(appErrors.ErrInstructorConflict, fmt.Sprintf("trainings in this request share an instructor at %s", b.after.TimeBegin.Format(time.RFC3339)))
			case (!a.after.Repeats() || !b.after.Repeats()) && sharesCustomer(a.after.CustomerIDs, b.after.CustomerIDs):
				return appErrors.Clone(appErrors.ErrCustomerConflict, fmt.Sprintf("trainings in this request share a customer at %s", b.after.TimeBegin.Format(time.RFC3339)))
			}
		}
	}
	return nil
}

// checkBalances rejects a ledger that would drive a spendable balance below zero.
func (s *TrainingService) checkBalances(ctx context.Context, tx *sqlx.Tx, lk *writeLookups, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.CustomerID)
	}
	customers, err := s.customers.FindByIDs(ctx, tx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load customer balances")
	}
	for i := range customers {
		lk.customers[customers[i].ID] = &customers[i]
	}
	for _, entry := range entries {
		customer, ok := lk.customers[entry.CustomerID]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("customer %s not found", entry.CustomerID))
		}
		if entry.BalanceDelta < 0 && customer.BalanceCard+entry.BalanceDelta < -balanceEpsilon {
			return appErrors.Clone(appErrors.ErrInsufficientBalance, fmt.Sprintf("customer %s has %.2f, needs %.2f", customer.Name, customer.BalanceCard, math.Abs(entry.BalanceDelta)))
		}
	}
	return nil
}

func (s *TrainingService) persist(ctx context.Context, tx *sqlx.Tx, result *writeResult) error {
	if err := s.trainings.DeleteByIDs(ctx, tx, result.removed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove displaced free slots")
	}
	for _, change := range result.changes {
		var err error
		if change.created {
			err = s.trainings.Create(ctx, tx, change.after)
		} else {
			err = s.trainings.Update(ctx, tx, change.after)
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save training")
		}
	}
	for _, clone := range result.clones {
		if err := s.trainings.Create(ctx, tx, clone.after); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save recurring training")
		}
	}
	if len(result.ledger) > 0 {
		if err := s.customers.ApplyLedger(ctx, tx, result.ledger); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply balance changes")
		}
	}
	return nil
}

func (s *TrainingService) afterCommit(ctx context.Context, lk *writeLookups, result *writeResult) {
	for _, change := range append(append([]*trainingChange(nil), result.changes...), result.clones...) {
		if !change.statusChanged() {
			continue
		}
		s.metrics.RecordTransition(change.from(), change.after.Status)
		s.logger.Info("training status changed",
			zap.String("training_id", change.after.ID),
			zap.String("from", string(change.from())),
			zap.String("to", string(change.after.Status)),
			zap.Bool("recurrence_clone", change.clone),
		)
		if s.notifier == nil || !notifiable(change.after.Status) {
			continue
		}
		for _, id := range change.after.CustomerIDs {
			customer, ok := lk.customers[id]
			if !ok {
				loaded, err := s.customers.FindByID(ctx, id)
				if err != nil {
					s.logger.Warn("skip notification for unknown customer", zap.String("customer_id", id), zap.Error(err))
					continue
				}
				customer = loaded
			}
			s.notifier.Notify(ctx, *customer, TrainingStatusMessage(change.after, *customer))
		}
	}
}

func (s *TrainingService) recordFailure(err error) error {
	if appErrors.IsValidation(err) {
		s.metrics.RecordValidationFailure(appErrors.FromError(err).Code)
	}
	return err
}

func (s *TrainingService) lookupError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+what)
}

func toWriteResponse(result *writeResult) *dto.TrainingWriteResponse {
	resp := &dto.TrainingWriteResponse{
		Trainings:        make([]models.TrainingSession, 0, len(result.changes)),
		RemovedFreeSlots: result.removed,
		Ledger:           result.ledger,
	}
	for _, change := range result.changes {
		resp.Trainings = append(resp.Trainings, *change.after)
	}
	for _, clone := range result.clones {
		resp.Clones = append(resp.Clones, *clone.after)
	}
	return resp
}

// writeLookups memoizes reference data read during one write.
type writeLookups struct {
	svc       *TrainingService
	centers   map[string]*models.Center
	products  map[string]*models.Product
	employees map[string]*models.Employee
	customers map[string]*models.Customer
}

func newWriteLookups(svc *TrainingService) *writeLookups {
	return &writeLookups{
		svc:       svc,
		centers:   map[string]*models.Center{},
		products:  map[string]*models.Product{},
		employees: map[string]*models.Employee{},
		customers: map[string]*models.Customer{},
	}
}

func (lk *writeLookups) center(ctx context.Context, id string) (*models.Center, error) {
	if center, ok := lk.centers[id]; ok {
		return center, nil
	}
	center, err := lk.svc.centers.FindByID(ctx, id)
	if err != nil {
		return nil, lk.svc.lookupError(err, "center")
	}
	lk.centers[id] = center
	return center, nil
}

func (lk *writeLookups) product(ctx context.Context, id string) (*models.Product, error) {
	if product, ok := lk.products[id]; ok {
		return product, nil
	}
	product, err := lk.svc.products.FindByID(ctx, id)
	if err != nil {
		return nil, lk.svc.lookupError(err, "product")
	}
	lk.products[id] = product
	return product, nil
}

func (lk *writeLookups) employee(ctx context.Context, id string) (*models.Employee, error) {
	if employee, ok := lk.employees[id]; ok {
		return employee, nil
	}
	employee, err := lk.svc.employees.FindByID(ctx, id)
	if err != nil {
		return nil, lk.svc.lookupError(err, "instructor")
	}
	lk.employees[id] = employee
	return employee, nil
}

// loadCustomers reads missing customers through exec so balances reflect the
// transaction's view.
func (lk *writeLookups) loadCustomers(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := lk.customers[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	customers, err := lk.svc.customers.FindByIDs(ctx, exec, missing)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load customers")
	}
	for i := range customers {
		lk.customers[customers[i].ID] = &customers[i]
	}
	for _, id := range missing {
		if _, ok := lk.customers[id]; !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("customer %s not found", id))
		}
	}
	return nil
}

func (lk *writeLookups) customerNames(ctx context.Context, ids []string) ([]string, error) {
	if err := lk.loadCustomers(ctx, nil, ids); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, lk.customers[id].Name)
	}
	return names, nil
}

func batchIDs(batch []*trainingChange) map[string]struct{} {
	ids := make(map[string]struct{}, len(batch))
	for _, change := range batch {
		if change.after.ID != "" {
			ids[change.after.ID] = struct{}{}
		}
	}
	return ids
}

func sharesCustomer(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
