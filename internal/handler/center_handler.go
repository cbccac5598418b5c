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

type centerManager interface {
	Create(ctx context.Context, req dto.CenterRequest) (*models.Center, error)
	Update(ctx context.Context, id string, req dto.CenterRequest) (*models.Center, error)
	Get(ctx context.Context, id string) (*models.Center, error)
	ListCenters(ctx context.Context) ([]models.Center, error)
	ListCourts(ctx context.Context, centerID string) ([]models.Center, error)
	Products(ctx context.Context, centerID string) ([]models.Product, error)
}

// CenterHandler exposes center and court endpoints.
type CenterHandler struct {
	service centerManager
}

// NewCenterHandler constructs the handler.
func NewCenterHandler(svc *service.CenterService) *CenterHandler {
	return &CenterHandler{service: svc}
}

// List godoc
// @Summary List centers
// @Tags Centers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /centers [get]
func (h *CenterHandler) List(c *gin.Context) {
	centers, err := h.service.ListCenters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, centers, nil)
}

// Get godoc
// @Summary Get center or court
// @Tags Centers
// @Produce json
// @Param id path string true "Center ID"
// @Success 200 {object} response.Envelope
// @Router /centers/{id} [get]
func (h *CenterHandler) Get(c *gin.Context) {
	center, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, center, nil)
}

// Create godoc
// @Summary Create center or court
// @Description Working hours may be given in local or UTC form; the other view is derived.
// @Tags Centers
// @Accept json
// @Produce json
// @Param payload body dto.CenterRequest true "Center payload"
// @Success 201 {object} response.Envelope
// @Router /centers [post]
func (h *CenterHandler) Create(c *gin.Context) {
	var req dto.CenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid center payload"))
		return
	}
	center, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, center)
}

// Update godoc
// @Summary Update center or court
// @Tags Centers
// @Accept json
// @Produce json
// @Param id path string true "Center ID"
// @Param payload body dto.CenterRequest true "Center payload"
// @Success 200 {object} response.Envelope
// @Router /centers/{id} [patch]
func (h *CenterHandler) Update(c *gin.Context) {
	var req dto.CenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid center payload"))
		return
	}
	center, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, center, nil)
}

// Courts godoc
// @Summary List courts of a center
// @Tags Centers
// @Produce json
// @Param id path string true "Center ID"
// @Success 200 {object} response.Envelope
// @Router /centers/{id}/courts [get]
func (h *CenterHandler) Courts(c *gin.Context) {
	courts, err := h.service.ListCourts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courts, nil)
}

// Products godoc
// @Summary List products of a center
// @Tags Centers
// @Produce json
// @Param id path string true "Center ID"
// @Success 200 {object} response.Envelope
// @Router /centers/{id}/products [get]
func (h *CenterHandler) Products(c *gin.Context) {
	products, err := h.service.Products(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, products, nil)
}
