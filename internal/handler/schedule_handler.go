package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timetab-app/timetab-api/internal/dto"
	"github.com/timetab-app/timetab-api/internal/service"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/response"
)

// ScheduleHandler manages schedule endpoints, including generation and
// export.
type ScheduleHandler struct {
	service   *service.ScheduleService
	generator *service.GeneratorService
	exports   *service.ExportService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc *service.ScheduleService, generator *service.GeneratorService, exports *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{service: svc, generator: generator, exports: exports}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	schedules, err := h.service.List(c.Request.Context(), institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Get godoc
// @Summary Fetch one schedule with its entries
// @Tags Schedules
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), institutionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Create godoc
// @Summary Create a draft schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.ScheduleInput true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var input service.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update a schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Schedule ID"
// @Param payload body service.ScheduleInput true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var input service.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), institutionID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete a schedule
// @Tags Schedules
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Schedule ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Generate godoc
// @Summary Generate a timetable for a schedule
// @Description Runs the constraint solver. Infeasible and timed-out runs are
// 200 responses with success=false; a concurrent run yields 409.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Schedule ID"
// @Param payload body dto.GenerateRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules/{id}/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
			return
		}
	}
	var timeout *time.Duration
	if req.Timeout != nil {
		if *req.Timeout < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "timeout must not be negative"))
			return
		}
		d := time.Duration(*req.Timeout) * time.Second
		timeout = &d
	}

	result, err := h.generator.Generate(c.Request.Context(), institutionID(c), c.Param("id"), timeout)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GenerateResponse{
		Success:      result.Success,
		Message:      result.Message,
		EntriesCount: result.EntriesCount,
		Warnings:     result.Warnings,
	}, nil)
}

// Export godoc
// @Summary Enqueue a schedule export
// @Tags Schedules
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Schedule ID"
// @Param payload body dto.ExportRequest true "Export options"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/schedules/{id}/export [post]
func (h *ScheduleHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	job, err := h.exports.CreateJob(c.Request.Context(), institutionID(c), c.Param("id"), req.Format, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dto.NewExportJobResponse(job), nil)
}

// ExportStatus godoc
// @Summary Poll an export job
// @Tags Schedules
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param jobID path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/exports/{jobID} [get]
func (h *ScheduleHandler) ExportStatus(c *gin.Context) {
	job, err := h.exports.GetStatus(c.Request.Context(), institutionID(c), c.Param("jobID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewExportJobResponse(job), nil)
}
