package dto

import "github.com/noah-isme/tennis-club-api/internal/models"

// SlotRequest asks for slot generation on the given calendar dates (YYYY-MM-DD).
type SlotRequest struct {
	Dates []string `json:"dates"`
}

// SlotRequestResponse describes the center, its courts and the queued job ids.
type SlotRequestResponse struct {
	Status string          `json:"status"`
	Center *models.Center  `json:"center"`
	Courts []models.Center `json:"courts"`
	Jobs   []string        `json:"jobs"`
}
