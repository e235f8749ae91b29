package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timetab-app/timetab-api/internal/service"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/response"
)

// DemandHandler manages lesson demand endpoints.
type DemandHandler struct {
	service *service.DemandService
}

// NewDemandHandler constructs handler.
func NewDemandHandler(svc *service.DemandService) *DemandHandler {
	return &DemandHandler{service: svc}
}

// List godoc
// @Summary List lesson demands
// @Tags Demands
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/demands [get]
func (h *DemandHandler) List(c *gin.Context) {
	demands, err := h.service.List(c.Request.Context(), institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demands, nil)
}

// Get godoc
// @Summary Fetch one demand
// @Tags Demands
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Demand ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/demands/{id} [get]
func (h *DemandHandler) Get(c *gin.Context) {
	demand, err := h.service.Get(c.Request.Context(), institutionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demand, nil)
}

// Create godoc
// @Summary Create a demand
// @Tags Demands
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.DemandInput true "Demand payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/demands [post]
func (h *DemandHandler) Create(c *gin.Context) {
	var input service.DemandInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid demand payload"))
		return
	}
	demand, err := h.service.Create(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, demand)
}

// Update godoc
// @Summary Update a demand
// @Tags Demands
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Demand ID"
// @Param payload body service.DemandInput true "Demand payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/demands/{id} [put]
func (h *DemandHandler) Update(c *gin.Context) {
	var input service.DemandInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid demand payload"))
		return
	}
	demand, err := h.service.Update(c.Request.Context(), institutionID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demand, nil)
}

// Delete godoc
// @Summary Delete a demand
// @Tags Demands
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Demand ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/demands/{id} [delete]
func (h *DemandHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
