package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timetab-app/timetab-api/internal/service"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/response"
)

// InstitutionHandler manages institution endpoints.
type InstitutionHandler struct {
	service *service.InstitutionService
}

// NewInstitutionHandler constructs handler.
func NewInstitutionHandler(svc *service.InstitutionService) *InstitutionHandler {
	return &InstitutionHandler{service: svc}
}

// List godoc
// @Summary List institutions owned by the current user
// @Tags Institutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /institutions [get]
func (h *InstitutionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institutions, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutions, nil)
}

// Get godoc
// @Summary Fetch one institution
// @Tags Institutions
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID} [get]
func (h *InstitutionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institution, err := h.service.Get(c.Request.Context(), claims.UserID, institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// Create godoc
// @Summary Create an institution
// @Tags Institutions
// @Accept json
// @Produce json
// @Param payload body service.InstitutionInput true "Institution payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions [post]
func (h *InstitutionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input service.InstitutionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid institution payload"))
		return
	}
	institution, err := h.service.Create(c.Request.Context(), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, institution)
}

// Update godoc
// @Summary Update an institution
// @Tags Institutions
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.InstitutionInput true "Institution payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID} [put]
func (h *InstitutionHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input service.InstitutionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid institution payload"))
		return
	}
	institution, err := h.service.Update(c.Request.Context(), claims.UserID, institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// Delete godoc
// @Summary Delete an institution
// @Tags Institutions
// @Param institutionID path string true "Institution ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID} [delete]
func (h *InstitutionHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims.UserID, institutionID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
