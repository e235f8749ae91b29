package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timetab-app/timetab-api/internal/dto"
	"github.com/timetab-app/timetab-api/internal/service"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/response"
)

// GroupHandler manages the grouping hierarchy endpoints: class groups,
// streams, study groups, and students.
type GroupHandler struct {
	service *service.GroupService
}

// NewGroupHandler constructs handler.
func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// ListClassGroups godoc
// @Summary List class groups
// @Tags Groups
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/class-groups [get]
func (h *GroupHandler) ListClassGroups(c *gin.Context) {
	groups, err := h.service.ListClassGroups(c.Request.Context(), institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// GetClassGroup godoc
// @Summary Fetch one class group
// @Tags Groups
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Class group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/class-groups/{id} [get]
func (h *GroupHandler) GetClassGroup(c *gin.Context) {
	group, err := h.service.GetClassGroup(c.Request.Context(), institutionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// CreateClassGroup godoc
// @Summary Create a class group
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.ClassGroupInput true "Class group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/class-groups [post]
func (h *GroupHandler) CreateClassGroup(c *gin.Context) {
	var input service.ClassGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class group payload"))
		return
	}
	group, err := h.service.CreateClassGroup(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// UpdateClassGroup godoc
// @Summary Update a class group
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Class group ID"
// @Param payload body service.ClassGroupInput true "Class group payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/class-groups/{id} [put]
func (h *GroupHandler) UpdateClassGroup(c *gin.Context) {
	var input service.ClassGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class group payload"))
		return
	}
	group, err := h.service.UpdateClassGroup(c.Request.Context(), institutionID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// DeleteClassGroup godoc
// @Summary Delete a class group
// @Tags Groups
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Class group ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/class-groups/{id} [delete]
func (h *GroupHandler) DeleteClassGroup(c *gin.Context) {
	if err := h.service.DeleteClassGroup(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListStreams godoc
// @Summary List streams
// @Tags Groups
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/streams [get]
func (h *GroupHandler) ListStreams(c *gin.Context) {
	streams, err := h.service.ListStreams(c.Request.Context(), institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, streams, nil)
}

// CreateStream godoc
// @Summary Create a stream
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.StreamInput true "Stream payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/streams [post]
func (h *GroupHandler) CreateStream(c *gin.Context) {
	var input service.StreamInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid stream payload"))
		return
	}
	stream, err := h.service.CreateStream(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stream)
}

// SetStreamClassGroups godoc
// @Summary Replace the class groups attached to a stream
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Stream ID"
// @Param payload body dto.ClassGroupIDsRequest true "Class group ids"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/streams/{id}/class-groups [put]
func (h *GroupHandler) SetStreamClassGroups(c *gin.Context) {
	var req dto.ClassGroupIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class group ids payload"))
		return
	}
	if err := h.service.SetStreamClassGroups(c.Request.Context(), institutionID(c), c.Param("id"), req.ClassGroupIDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteStream godoc
// @Summary Delete a stream
// @Tags Groups
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Stream ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/streams/{id} [delete]
func (h *GroupHandler) DeleteStream(c *gin.Context) {
	if err := h.service.DeleteStream(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListStudyGroups godoc
// @Summary List study groups
// @Tags Groups
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/study-groups [get]
func (h *GroupHandler) ListStudyGroups(c *gin.Context) {
	groups, err := h.service.ListStudyGroups(c.Request.Context(), institutionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// CreateStudyGroup godoc
// @Summary Create a study group
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.StudyGroupInput true "Study group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/study-groups [post]
func (h *GroupHandler) CreateStudyGroup(c *gin.Context) {
	var input service.StudyGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid study group payload"))
		return
	}
	group, err := h.service.CreateStudyGroup(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// SetStudyGroupMembers godoc
// @Summary Replace a study group's roster
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Study group ID"
// @Param payload body dto.StudentIDsRequest true "Student ids"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/study-groups/{id}/members [put]
func (h *GroupHandler) SetStudyGroupMembers(c *gin.Context) {
	var req dto.StudentIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}
	if err := h.service.SetStudyGroupMembers(c.Request.Context(), institutionID(c), c.Param("id"), req.StudentIDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteStudyGroup godoc
// @Summary Delete a study group
// @Tags Groups
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Study group ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/study-groups/{id} [delete]
func (h *GroupHandler) DeleteStudyGroup(c *gin.Context) {
	if err := h.service.DeleteStudyGroup(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListStudents godoc
// @Summary List students of a class group
// @Tags Groups
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Class group ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionID}/class-groups/{id}/students [get]
func (h *GroupHandler) ListStudents(c *gin.Context) {
	students, err := h.service.ListStudents(c.Request.Context(), institutionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// CreateStudent godoc
// @Summary Create a student
// @Tags Groups
// @Accept json
// @Produce json
// @Param institutionID path string true "Institution ID"
// @Param payload body service.StudentInput true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutions/{institutionID}/students [post]
func (h *GroupHandler) CreateStudent(c *gin.Context) {
	var input service.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.service.CreateStudent(c.Request.Context(), institutionID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// DeleteStudent godoc
// @Summary Delete a student
// @Tags Groups
// @Param institutionID path string true "Institution ID"
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{institutionID}/students/{id} [delete]
func (h *GroupHandler) DeleteStudent(c *gin.Context) {
	if err := h.service.DeleteStudent(c.Request.Context(), institutionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
