package models

// Employee is club staff. Instructors run trainings; every employee may act
// as the user driving slot generation for their working center.
type Employee struct {
	ID              string  `db:"id" json:"id"`
	UserID          string  `db:"user_id" json:"user_id"`
	Name            string  `db:"name" json:"name"`
	WorkingCenterID *string `db:"working_center_id" json:"working_center_id,omitempty"`
	IsInstructor    bool    `db:"is_instructor" json:"is_instructor"`
	RatePersonal    float64 `db:"rate_personal" json:"rate_personal"`
	RateSplit       float64 `db:"rate_split" json:"rate_split"`
	RateGroup       float64 `db:"rate_group" json:"rate_group"`
	RateOther       float64 `db:"rate_other" json:"rate_other"`
}

// RateFor returns the hourly instructor payment for a training type.
func (e *Employee) RateFor(t TrainingType) float64 {
	switch t {
	case TrainingTypePersonal:
		return e.RatePersonal
	case TrainingTypeSplit:
		return e.RateSplit
	case TrainingTypeGroup:
		return e.RateGroup
	default:
		return e.RateOther
	}
}
