package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ActingUser identifies the caller on whose behalf a request runs.
type ActingUser struct {
	UserID string `json:"user_id"`
}
