package models

import "time"

// TrainingType classifies products by group size.
type TrainingType string

const (
	TrainingTypePersonal TrainingType = "personal"
	TrainingTypeSplit    TrainingType = "split"
	TrainingTypeGroup    TrainingType = "group"
	TrainingTypeOther    TrainingType = "other"
)

// DefaultCapacities is the customer capacity seeded for each training type.
var DefaultCapacities = map[TrainingType]int{
	TrainingTypePersonal: 1,
	TrainingTypeSplit:    2,
	TrainingTypeGroup:    5,
	TrainingTypeOther:    1,
}

// TrainingTypes lists training types in display order.
var TrainingTypes = []TrainingType{TrainingTypePersonal, TrainingTypeSplit, TrainingTypeGroup, TrainingTypeOther}

// Product is a bookable training type offered by a center.
type Product struct {
	ID           string       `db:"id" json:"id"`
	CenterID     string       `db:"center_id" json:"center_id"`
	Name         string       `db:"name" json:"name"`
	TrainingType TrainingType `db:"training_type" json:"training_type"`
	Capacity     int          `db:"capacity" json:"capacity"`
	ListPrice    float64      `db:"list_price" json:"list_price"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
