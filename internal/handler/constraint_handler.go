package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timetab-app/timetab-api/internal/service"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/response"
)

// ConstraintHandler manages scheduling constraint endpoints.
type ConstraintHandler struct {
	service *service.ConstraintService
}

// NewConstraintHandler constructs handler.
func NewConstraintHandler(svc *service.ConstraintService) *ConstraintHandler {
	return &ConstraintHandler{service: svc}
}

// List godoc
// @Summary List constraints
// @Tags Constraints
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/constraints [get]
func (h *ConstraintHandler) List(c *gin.Context) {
	constraints, err := h.service.List(c.Request.Context(), institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, constraints, nil)
}

// Get godoc
// @Summary Fetch one constraint
// @Tags Constraints
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Constraint ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/constraints/{id} [get]
func (h *ConstraintHandler) Get(c *gin.Context) {
	constraint, err := h.service.Get(c.Request.Context(), institutionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, constraint, nil)
}

// Create godoc
// @Summary Create a constraint
// @Tags Constraints
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.ConstraintInput true "Constraint payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/constraints [post]
func (h *ConstraintHandler) Create(c *gin.Context) {
	var input service.ConstraintInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid constraint payload"))
		return
	}
	constraint, err := h.service.Create(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, constraint)
}

// Update godoc
// @Summary Update a constraint
// @Tags Constraints
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Constraint ID"
// @Param payload body service.ConstraintInput true "Constraint payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/constraints/{id} [put]
func (h *ConstraintHandler) Update(c *gin.Context) {
	var input service.ConstraintInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid constraint payload"))
		return
	}
	constraint, err := h.service.Update(c.Request.Context(), institutionID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, constraint, nil)
}

// Delete godoc
// @Summary Delete a constraint
// @Tags Constraints
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Constraint ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/constraints/{id} [delete]
func (h *ConstraintHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
