package models

import (
	"fmt"
	"time"

	"github.com/noah-isme/tennis-club-api/internal/workhours"
)

// Center is either a club center or, when ParentCenterID is set, one of its courts.
type Center struct {
	ID                string                `db:"id" json:"id"`
	Name              string                `db:"name" json:"name"`
	IsCenter          bool                  `db:"is_center" json:"is_center"`
	ParentCenterID    *string               `db:"parent_center_id" json:"parent_center_id,omitempty"`
	Timezone          string                `db:"timezone" json:"timezone"`
	WorkingHoursUTC   workhours.WeeklyHours `db:"working_hours_utc" json:"working_hours_utc"`
	WorkingHoursLocal workhours.WeeklyHours `db:"working_hours_local" json:"working_hours_local"`
	CreatedAt         time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time             `db:"updated_at" json:"updated_at"`
}

// IsCourt reports whether the record is a court of another center.
func (c *Center) IsCourt() bool {
	return c.ParentCenterID != nil && *c.ParentCenterID != ""
}

// Location resolves the center time zone, defaulting to UTC.
func (c *Center) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("center %s timezone %q: %w", c.ID, c.Timezone, err)
	}
	return loc, nil
}

// CourtList is the answer to a slot request: the center and its courts.
type CourtList struct {
	Center *Center  `json:"center"`
	Courts []Center `json:"courts"`
}
