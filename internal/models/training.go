package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// TrainingStatus is the booking lifecycle state of a session.
type TrainingStatus string

const (
	StatusNew                   TrainingStatus = "new"
	StatusWaitingApproveReserve TrainingStatus = "waiting_approve_reserve"
	StatusReserved              TrainingStatus = "reserved"
	StatusDone                  TrainingStatus = "done"
	StatusWaitingApproveCancel  TrainingStatus = "waiting_approve_cancel"
	StatusCancelled             TrainingStatus = "cancelled"
	StatusUnavailable           TrainingStatus = "unavailable"
)

// TrainingStatuses lists every status.
var TrainingStatuses = []TrainingStatus{
	StatusNew,
	StatusWaitingApproveReserve,
	StatusReserved,
	StatusDone,
	StatusWaitingApproveCancel,
	StatusCancelled,
	StatusUnavailable,
}

// Valid reports whether s is a known status.
func (s TrainingStatus) Valid() bool {
	for _, known := range TrainingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Trivial reports statuses that carry no fixed snapshot.
func (s TrainingStatus) Trivial() bool {
	return s == StatusNew || s == StatusUnavailable || s == StatusCancelled
}

// SessionKind tags what a training row represents.
type SessionKind string

const (
	SessionReal       SessionKind = "real"
	SessionFreeSlot   SessionKind = "free_slot"
	SessionNonWorking SessionKind = "non_working"
)

// Display names written for placeholder rows.
const (
	FreeSlotName   = "free slot"
	NonWorkingName = "non-working hours"
)

// RepeatFrequency controls recurrence expansion.
type RepeatFrequency string

const (
	RepeatOneTime RepeatFrequency = "one_time"
	RepeatDaily   RepeatFrequency = "daily"
	RepeatWeekly  RepeatFrequency = "weekly"
	RepeatMonthly RepeatFrequency = "monthly"
)

// ParseRepeatFrequency accepts canonical names and the every_* aliases.
func ParseRepeatFrequency(raw string) (RepeatFrequency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "one_time", "once":
		return RepeatOneTime, nil
	case "daily", "every_day":
		return RepeatDaily, nil
	case "weekly", "every_week":
		return RepeatWeekly, nil
	case "monthly", "every_month":
		return RepeatMonthly, nil
	}
	return "", fmt.Errorf("unknown repeat frequency %q", raw)
}

// TrainingSession is the schedulable unit: a real booking, a free slot or a
// non-working block on one court.
type TrainingSession struct {
	ID                         string          `db:"id" json:"id"`
	Name                       string          `db:"name" json:"name"`
	Kind                       SessionKind     `db:"kind" json:"kind"`
	Status                     TrainingStatus  `db:"status" json:"status"`
	CenterID                   string          `db:"center_id" json:"center_id"`
	CourtID                    string          `db:"court_id" json:"court_id"`
	ProductID                  string          `db:"product_id" json:"product_id"`
	InstructorID               string          `db:"instructor_id" json:"instructor_id"`
	CustomerIDs                pq.StringArray  `db:"customer_ids" json:"customer_ids"`
	TimeBegin                  time.Time       `db:"time_begin" json:"time_begin"`
	TimeFinish                 time.Time       `db:"time_finish" json:"time_finish"`
	PricePerHourTotal          float64         `db:"price_per_hour_total" json:"price_per_hour_total"`
	PaymentToInstructorPerHour float64         `db:"payment_to_instructor_per_hour" json:"payment_to_instructor_per_hour"`
	RepeatUntil                *time.Time      `db:"repeat_until" json:"repeat_until,omitempty"`
	RepeatFrequency            RepeatFrequency `db:"repeat_frequency" json:"repeat_frequency"`
	RecurrenceExpanded         bool            `db:"recurrence_expanded" json:"recurrence_expanded"`
	Snapshot                   *FixedSnapshot  `db:"snapshot" json:"snapshot,omitempty"`
	CreatedBy                  *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt                  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time       `db:"updated_at" json:"updated_at"`
}

// IsPlaceholder reports whether the row is a free slot or non-working block.
func (t *TrainingSession) IsPlaceholder() bool {
	return t.Kind == SessionFreeSlot || t.Kind == SessionNonWorking
}

// Duration returns the session length.
func (t *TrainingSession) Duration() time.Duration {
	return t.TimeFinish.Sub(t.TimeBegin)
}

// DurationHours returns the session length in hours, using the frozen value
// once a snapshot exists.
func (t *TrainingSession) DurationHours() float64 {
	if t.Snapshot != nil && t.Snapshot.DurationHours > 0 {
		return t.Snapshot.DurationHours
	}
	return t.Duration().Hours()
}

// Overlaps reports whether the sessions share any instant.
func (t *TrainingSession) Overlaps(begin, finish time.Time) bool {
	return t.TimeBegin.Before(finish) && begin.Before(t.TimeFinish)
}

// PricePerHourFromPerson is the hourly price charged to each customer.
func (t *TrainingSession) PricePerHourFromPerson() float64 {
	price, count := t.PricePerHourTotal, len(t.CustomerIDs)
	if t.Snapshot != nil {
		price, count = t.Snapshot.PricePerHourTotal, t.Snapshot.CustomerCount
	}
	if count == 0 {
		return 0
	}
	return price / float64(count)
}

// Movement is the amount moved per customer by a balance transfer.
func (t *TrainingSession) Movement() float64 {
	return t.DurationHours() * t.PricePerHourFromPerson()
}

// Repeats reports whether the session asks for recurrence expansion.
func (t *TrainingSession) Repeats() bool {
	return t.RepeatFrequency != "" && t.RepeatFrequency != RepeatOneTime && t.RepeatUntil != nil
}

// Clone returns a deep copy.
func (t *TrainingSession) Clone() *TrainingSession {
	c := *t
	c.CustomerIDs = append(pq.StringArray(nil), t.CustomerIDs...)
	if t.RepeatUntil != nil {
		until := *t.RepeatUntil
		c.RepeatUntil = &until
	}
	if t.Snapshot != nil {
		snap := *t.Snapshot
		snap.CustomerNames = append([]string(nil), t.Snapshot.CustomerNames...)
		c.Snapshot = &snap
	}
	return &c
}

// FixedSnapshot freezes descriptive and financial fields of a session once it
// leaves the trivial statuses.
type FixedSnapshot struct {
	Name                       string    `json:"name"`
	CenterName                 string    `json:"center_name"`
	CourtName                  string    `json:"court_name"`
	ProductName                string    `json:"product_name"`
	InstructorName             string    `json:"instructor_name"`
	CustomerNames              []string  `json:"customer_names"`
	DurationHours              float64   `json:"duration_hours"`
	TimeBegin                  time.Time `json:"time_begin"`
	TimeFinish                 time.Time `json:"time_finish"`
	PricePerHourTotal          float64   `json:"price_per_hour_total"`
	Capacity                   int       `json:"capacity"`
	CustomerCount              int       `json:"customer_count"`
	PaymentToInstructorPerHour float64   `json:"payment_to_instructor_per_hour"`
	PaymentToInstructor        float64   `json:"payment_to_instructor"`
	TotalMoney                 float64   `json:"total_money"`
	CapturedAt                 time.Time `json:"captured_at"`
}

// Value marshals the snapshot for a jsonb column.
func (s FixedSnapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal training snapshot: %w", err)
	}
	return data, nil
}

// Scan unmarshals a jsonb snapshot.
func (s *FixedSnapshot) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = FixedSnapshot{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for FixedSnapshot", value)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal training snapshot: %w", err)
	}
	return nil
}

// TrainingFilter narrows training listings. Zero values are ignored; From and
// To select rows overlapping the window.
type TrainingFilter struct {
	CenterID string
	CourtID  string
	Statuses []TrainingStatus
	Kinds    []SessionKind
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
