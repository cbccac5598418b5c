package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/workhours"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
)

type slotTrainingStore interface {
	ListCourtRange(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error)
	Create(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error
	Update(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error
}

type slotCenterStore interface {
	FindByID(ctx context.Context, id string) (*models.Center, error)
	ListCourts(ctx context.Context, centerID string) ([]models.Center, error)
}

type employeeByUserReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Employee, error)
}

// SlotGeneratorConfig names the product and instructor written on placeholder rows.
type SlotGeneratorConfig struct {
	PlaceholderProductID    string
	PlaceholderInstructorID string
}

// SlotStats counts rows touched by a generation run.
type SlotStats struct {
	BlocksCreated    int `json:"blocks_created"`
	BlocksMerged     int `json:"blocks_merged"`
	BlocksDeleted    int `json:"blocks_deleted"`
	FreeSlotsCreated int `json:"free_slots_created"`
	FreeSlotsDeleted int `json:"free_slots_deleted"`
}

func (s *SlotStats) add(other SlotStats) {
	s.BlocksCreated += other.BlocksCreated
	s.BlocksMerged += other.BlocksMerged
	s.BlocksDeleted += other.BlocksDeleted
	s.FreeSlotsCreated += other.FreeSlotsCreated
	s.FreeSlotsDeleted += other.FreeSlotsDeleted
}

// SlotGenerator materializes non-working blocks and free hourly slots per court.
type SlotGenerator struct {
	trainings slotTrainingStore
	centers   slotCenterStore
	employees employeeByUserReader
	tx        txProvider
	cfg       SlotGeneratorConfig
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSlotGenerator constructs the generator.
func NewSlotGenerator(
	trainings slotTrainingStore,
	centers slotCenterStore,
	employees employeeByUserReader,
	tx txProvider,
	cfg SlotGeneratorConfig,
	metrics *MetricsService,
	logger *zap.Logger,
) *SlotGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotGenerator{
		trainings: trainings,
		centers:   centers,
		employees: employees,
		tx:        tx,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ResolveCenter returns the working center of the acting employee and its courts.
func (g *SlotGenerator) ResolveCenter(ctx context.Context, userID string) (*models.CourtList, error) {
	employee, err := g.employees.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if employee.WorkingCenterID == nil || *employee.WorkingCenterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee has no working center")
	}
	center, err := g.centers.FindByID(ctx, *employee.WorkingCenterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "center not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load center")
	}
	courts, err := g.centers.ListCourts(ctx, center.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courts")
	}
	if courts == nil {
		courts = []models.Center{}
	}
	return &models.CourtList{Center: center, Courts: courts}, nil
}

// GenerateAll regenerates placeholders for every court of the acting user's center.
func (g *SlotGenerator) GenerateAll(ctx context.Context, dates []time.Time, userID string) (*SlotStats, error) {
	list, err := g.ResolveCenter(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.GenerateForCourts(ctx, list.Center, list.Courts, dates)
}

// GenerateForCourts runs non-working then free-slot generation for each court,
// one transaction per court. Dates before today are ignored.
func (g *SlotGenerator) GenerateForCourts(ctx context.Context, center *models.Center, courts []models.Center, dates []time.Time) (*SlotStats, error) {
	days := g.upcomingDays(dates)
	total := &SlotStats{}
	if len(days) == 0 {
		return total, nil
	}
	for i := range courts {
		stats, err := g.generateCourtWithRetry(ctx, center, &courts[i], days)
		if err != nil {
			return total, err
		}
		total.add(stats)
	}

	g.metrics.RecordSlotRows(models.SessionNonWorking, "created", total.BlocksCreated)
	g.metrics.RecordSlotRows(models.SessionNonWorking, "merged", total.BlocksMerged)
	g.metrics.RecordSlotRows(models.SessionNonWorking, "deleted", total.BlocksDeleted)
	g.metrics.RecordSlotRows(models.SessionFreeSlot, "created", total.FreeSlotsCreated)
	g.metrics.RecordSlotRows(models.SessionFreeSlot, "deleted", total.FreeSlotsDeleted)
	g.logger.Info("slots generated",
		zap.String("center_id", center.ID),
		zap.Int("courts", len(courts)),
		zap.Int("days", len(days)),
		zap.Int("blocks_created", total.BlocksCreated),
		zap.Int("free_slots_created", total.FreeSlotsCreated),
		zap.Int("free_slots_deleted", total.FreeSlotsDeleted),
	)
	return total, nil
}

// generateCourtWithRetry reruns a court whose transaction collided with a
// concurrent job or booking on the same days.
func (g *SlotGenerator) generateCourtWithRetry(ctx context.Context, center *models.Center, court *models.Center, days []time.Time) (SlotStats, error) {
	for attempt := 1; ; attempt++ {
		stats, err := g.generateCourt(ctx, center, court, days)
		if err == nil || !isSerializationFailure(err) || attempt == maxSerializableAttempts {
			return stats, err
		}
		g.logger.Warn("retrying slot generation after serialization failure",
			zap.String("court_id", court.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

func (g *SlotGenerator) generateCourt(ctx context.Context, center *models.Center, court *models.Center, days []time.Time) (stats SlotStats, err error) {
	tx, err := g.tx.BeginTxx(ctx, serializableTx)
	if err != nil {
		return stats, fmt.Errorf("begin slot generation for court %s: %w", court.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, day := range days {
		dayStats, genErr := g.generateDay(ctx, tx, center, court, day)
		if genErr != nil {
			err = fmt.Errorf("generate slots for court %s on %s: %w", court.ID, day.Format("2006-01-02"), genErr)
			return stats, err
		}
		stats.add(dayStats)
	}
	if err = tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit slot generation for court %s: %w", court.ID, err)
	}
	return stats, nil
}

func (g *SlotGenerator) generateDay(ctx context.Context, tx *sqlx.Tx, center, court *models.Center, day time.Time) (SlotStats, error) {
	var stats SlotStats
	dayEnd := day.Add(24 * time.Hour)
	rows, err := g.trainings.ListCourtRange(ctx, tx, court.ID, day, dayEnd)
	if err != nil {
		return stats, err
	}
	sheet := newCourtSheet(rows)

	windows := nonWorkingWindows(center.WorkingHoursUTC, day)
	if err := g.generateNonWorking(ctx, tx, center, court, sheet, windows, &stats); err != nil {
		return stats, err
	}
	if err := g.generateFreeSlots(ctx, tx, center, court, sheet, windows, day, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

type window struct {
	begin, end time.Time
}

func (w window) overlaps(begin, end time.Time) bool {
	return w.begin.Before(end) && begin.Before(w.end)
}

func (w window) touches(begin, end time.Time) bool {
	return !w.begin.After(end) && !begin.After(w.end)
}

// nonWorkingWindows converts the complement of a weekday's UTC hours into
// absolute instants on day.
func nonWorkingWindows(hours workhours.WeeklyHours, day time.Time) []window {
	closed := workhours.Complement(workhours.Merge(hours.Day(workhours.ISOWeekday(day))))
	out := make([]window, 0, len(closed))
	for _, iv := range closed {
		out = append(out, window{
			begin: day.Add(time.Duration(iv.Start) * time.Minute),
			end:   day.Add(time.Duration(iv.End) * time.Minute),
		})
	}
	return out
}

// courtSheet tracks a court's rows while one day is being rewritten.
type courtSheet struct {
	rows []*models.TrainingSession
}

func newCourtSheet(rows []models.TrainingSession) *courtSheet {
	sheet := &courtSheet{rows: make([]*models.TrainingSession, 0, len(rows))}
	for i := range rows {
		sheet.rows = append(sheet.rows, &rows[i])
	}
	return sheet
}

func (c *courtSheet) ofKind(kind models.SessionKind) []*models.TrainingSession {
	var out []*models.TrainingSession
	for _, row := range c.rows {
		if row.Kind == kind {
			out = append(out, row)
		}
	}
	return out
}

func (c *courtSheet) remove(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := c.rows[:0]
	for _, row := range c.rows {
		if _, ok := drop[row.ID]; !ok {
			kept = append(kept, row)
		}
	}
	c.rows = kept
}

func (g *SlotGenerator) generateNonWorking(ctx context.Context, tx *sqlx.Tx, center, court *models.Center, sheet *courtSheet, windows []window, stats *SlotStats) error {
	for _, w := range windows {
		if booked := firstOverlapping(sheet.ofKind(models.SessionReal), w); booked != nil {
			g.logger.Debug("keep booking inside non-working window",
				zap.String("court_id", court.ID),
				zap.String("training_id", booked.ID),
				zap.Time("window_begin", w.begin),
			)
			continue
		}

		var staleSlots []string
		for _, slot := range sheet.ofKind(models.SessionFreeSlot) {
			if w.overlaps(slot.TimeBegin, slot.TimeFinish) {
				staleSlots = append(staleSlots, slot.ID)
			}
		}
		if err := g.trainings.DeleteByIDs(ctx, tx, staleSlots); err != nil {
			return err
		}
		sheet.remove(staleSlots)
		stats.FreeSlotsDeleted += len(staleSlots)

		var blocks []*models.TrainingSession
		for _, block := range sheet.ofKind(models.SessionNonWorking) {
			if w.touches(block.TimeBegin, block.TimeFinish) {
				blocks = append(blocks, block)
			}
		}
		if len(blocks) == 0 {
			block := g.placeholder(center, court, models.SessionNonWorking, w.begin, w.end)
			if err := g.trainings.Create(ctx, tx, block); err != nil {
				return err
			}
			sheet.rows = append(sheet.rows, block)
			stats.BlocksCreated++
			continue
		}

		union := w
		for _, block := range blocks {
			if block.TimeBegin.Before(union.begin) {
				union.begin = block.TimeBegin
			}
			if block.TimeFinish.After(union.end) {
				union.end = block.TimeFinish
			}
		}
		keep := blocks[0]
		if !keep.TimeBegin.Equal(union.begin) || !keep.TimeFinish.Equal(union.end) {
			keep.TimeBegin, keep.TimeFinish = union.begin, union.end
			if err := g.trainings.Update(ctx, tx, keep); err != nil {
				return err
			}
			stats.BlocksMerged++
		}
		absorbed := make([]string, 0, len(blocks)-1)
		for _, block := range blocks[1:] {
			absorbed = append(absorbed, block.ID)
		}
		if err := g.trainings.DeleteByIDs(ctx, tx, absorbed); err != nil {
			return err
		}
		sheet.remove(absorbed)
		stats.BlocksDeleted += len(absorbed)
	}
	return nil
}

func (g *SlotGenerator) generateFreeSlots(ctx context.Context, tx *sqlx.Tx, center, court *models.Center, sheet *courtSheet, windows []window, day time.Time, stats *SlotStats) error {
	dayEnd := day.Add(24 * time.Hour)
	var blocked []window
	for _, row := range sheet.rows {
		if row.Kind != models.SessionFreeSlot {
			blocked = append(blocked, window{begin: row.TimeBegin, end: row.TimeFinish})
		}
	}
	blocked = append(blocked, windows...)

	var stale []string
	busy := make([]workhours.Interval, 0, len(sheet.rows)+len(windows))
	for _, slot := range sheet.ofKind(models.SessionFreeSlot) {
		if overlapsAny(blocked, slot.TimeBegin, slot.TimeFinish) {
			stale = append(stale, slot.ID)
			continue
		}
		if iv, ok := clipToDay(day, dayEnd, slot.TimeBegin, slot.TimeFinish); ok {
			busy = append(busy, iv)
		}
	}
	if err := g.trainings.DeleteByIDs(ctx, tx, stale); err != nil {
		return err
	}
	sheet.remove(stale)
	stats.FreeSlotsDeleted += len(stale)

	for _, w := range blocked {
		if iv, ok := clipToDay(day, dayEnd, w.begin, w.end); ok {
			busy = append(busy, iv)
		}
	}
	busy = workhours.Merge(busy)

	now := g.now().UTC()
	cursor := 0
	fill := func(limit int) error {
		for ; cursor+60 <= limit; cursor += 60 {
			begin := day.Add(time.Duration(cursor) * time.Minute)
			if begin.Before(now) {
				continue
			}
			slot := g.placeholder(center, court, models.SessionFreeSlot, begin, begin.Add(time.Hour))
			if err := g.trainings.Create(ctx, tx, slot); err != nil {
				return err
			}
			sheet.rows = append(sheet.rows, slot)
			stats.FreeSlotsCreated++
		}
		return nil
	}
	for _, iv := range busy {
		if err := fill(iv.Start); err != nil {
			return err
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	return fill(workhours.MinutesPerDay)
}

func (g *SlotGenerator) placeholder(center, court *models.Center, kind models.SessionKind, begin, end time.Time) *models.TrainingSession {
	row := &models.TrainingSession{
		Kind:            kind,
		CenterID:        center.ID,
		CourtID:         court.ID,
		ProductID:       g.cfg.PlaceholderProductID,
		InstructorID:    g.cfg.PlaceholderInstructorID,
		CustomerIDs:     pq.StringArray{},
		TimeBegin:       begin,
		TimeFinish:      end,
		RepeatFrequency: models.RepeatOneTime,
	}
	if kind == models.SessionNonWorking {
		row.Name = models.NonWorkingName
		row.Status = models.StatusUnavailable
	} else {
		row.Name = models.FreeSlotName
		row.Status = models.StatusNew
	}
	return row
}

// upcomingDays normalizes dates to distinct UTC midnights not before today.
func (g *SlotGenerator) upcomingDays(dates []time.Time) []time.Time {
	now := g.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := distinctDays(dates)
	for len(days) > 0 && days[0].Before(today) {
		days = days[1:]
	}
	return days
}

func firstOverlapping(rows []*models.TrainingSession, w window) *models.TrainingSession {
	for _, row := range rows {
		if w.overlaps(row.TimeBegin, row.TimeFinish) {
			return row
		}
	}
	return nil
}

func overlapsAny(windows []window, begin, end time.Time) bool {
	for _, w := range windows {
		if w.overlaps(begin, end) {
			return true
		}
	}
	return false
}

func clipToDay(day, dayEnd, begin, end time.Time) (workhours.Interval, bool) {
	if !begin.Before(dayEnd) || !end.After(day) {
		return workhours.Interval{}, false
	}
	if begin.Before(day) {
		begin = day
	}
	if end.After(dayEnd) {
		end = dayEnd
	}
	iv := workhours.Interval{Start: int(begin.Sub(day) / time.Minute), End: int(end.Sub(day) / time.Minute)}
	return iv, iv.End > iv.Start
}
