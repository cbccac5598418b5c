package dto

import "encoding/json"

// CenterRequest creates or replaces a center or court. Exactly one of
// IsCenter and ParentCenterID must be set. Working hours may be given in
// either local or UTC form; when both are present local wins.
type CenterRequest struct {
	Name              string          `json:"name" validate:"required,max=255"`
	IsCenter          bool            `json:"isCenter"`
	ParentCenterID    *string         `json:"parentCenterId"`
	Timezone          string          `json:"timezone"`
	WorkingHoursLocal json.RawMessage `json:"workingHoursLocal" swaggertype:"object"`
	WorkingHoursUTC   json.RawMessage `json:"workingHoursUtc" swaggertype:"object"`
}
