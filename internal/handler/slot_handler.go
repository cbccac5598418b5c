package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tennis-club-api/internal/dto"
	"github.com/noah-isme/tennis-club-api/internal/models"
	"github.com/noah-isme/tennis-club-api/internal/service"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
	"github.com/noah-isme/tennis-club-api/pkg/response"
)

type slotRequester interface {
	RequestSlots(ctx context.Context, userID string, rawDates []string) (*dto.SlotRequestResponse, error)
	Get(ctx context.Context, id string) (*models.GenerationJob, error)
}

// SlotHandler exposes slot generation triggers.
type SlotHandler struct {
	service slotRequester
}

// NewSlotHandler constructs the handler.
func NewSlotHandler(svc *service.GenerationJobService) *SlotHandler {
	return &SlotHandler{service: svc}
}

// Request godoc
// @Summary Request slot generation
// @Description Queues one generation job per court of the caller's center. Invalid dates are skipped.
// @Tags Slots
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Acting user"
// @Param payload body dto.SlotRequest true "Dates (YYYY-MM-DD)"
// @Success 202 {object} response.Envelope
// @Router /slots/request [post]
func (h *SlotHandler) Request(c *gin.Context) {
	var req dto.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot request"))
		return
	}
	userID := actingUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.RequestSlots(c.Request.Context(), userID, req.Dates)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Job godoc
// @Summary Get slot generation job
// @Tags Slots
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /slots/jobs/{id} [get]
func (h *SlotHandler) Job(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
