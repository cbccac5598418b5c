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

type trainingBooker interface {
	Create(ctx context.Context, req dto.CreateTrainingRequest, actingUserID string) (*dto.TrainingWriteResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateTrainingRequest) (*dto.TrainingWriteResponse, error)
	UpdateMany(ctx context.Context, ids []string, req dto.UpdateTrainingRequest) (*dto.TrainingWriteResponse, error)
	ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest) (*dto.TrainingWriteResponse, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.TrainingSession, error)
	List(ctx context.Context, query dto.TrainingListQuery) ([]models.TrainingSession, *models.Pagination, error)
	Balance(ctx context.Context, customerID string) (*dto.CustomerBalanceResponse, error)
}

// TrainingHandler exposes booking endpoints.
type TrainingHandler struct {
	service trainingBooker
}

// NewTrainingHandler constructs the handler.
func NewTrainingHandler(svc *service.TrainingService) *TrainingHandler {
	return &TrainingHandler{service: svc}
}

// List godoc
// @Summary List trainings
// @Tags Trainings
// @Produce json
// @Param centerId query string false "Center ID"
// @Param courtId query string false "Court ID"
// @Param status query []string false "Statuses"
// @Param kind query []string false "Kinds (real, free_slot, non_working)"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /trainings [get]
func (h *TrainingHandler) List(c *gin.Context) {
	var query dto.TrainingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	trainings, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainings, pagination)
}

// Get godoc
// @Summary Get training
// @Tags Trainings
// @Produce json
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	training, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Create godoc
// @Summary Book a training
// @Description Creates a booking and holds customer funds while it waits for approval.
// @Tags Trainings
// @Accept json
// @Produce json
// @Param payload body dto.CreateTrainingRequest true "Training payload"
// @Success 201 {object} response.Envelope
// @Router /trainings [post]
func (h *TrainingHandler) Create(c *gin.Context) {
	var req dto.CreateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid training payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, actingUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Edit a training
// @Description Edits without a status re-open approval for editable trainings.
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body dto.UpdateTrainingRequest true "Training patch"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [patch]
func (h *TrainingHandler) Update(c *gin.Context) {
	var req dto.UpdateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid training patch"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkUpdate godoc
// @Summary Edit several trainings atomically
// @Tags Trainings
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateTrainingRequest true "Bulk patch"
// @Success 200 {object} response.Envelope
// @Router /trainings [patch]
func (h *TrainingHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk patch"))
		return
	}
	result, err := h.service.UpdateMany(c.Request.Context(), req.IDs, req.Patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ChangeStatus godoc
// @Summary Move a training to another status
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body dto.ChangeStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/status [post]
func (h *TrainingHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	result, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a training
// @Description Only trainings in new or unavailable can be deleted.
// @Tags Trainings
// @Param id path string true "Training ID"
// @Success 204 {string} string ""
// @Router /trainings/{id} [delete]
func (h *TrainingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Balance godoc
// @Summary Customer balance
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Envelope
// @Router /customers/{id}/balance [get]
func (h *TrainingHandler) Balance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}
