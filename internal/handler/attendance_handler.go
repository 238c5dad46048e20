package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulago/aula-api/internal/service"
	appErrors "github.com/aulago/aula-api/pkg/errors"
	"github.com/aulago/aula-api/pkg/response"
)

// AttendanceHandler exposes attendance capture endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Record godoc
// @Summary Record a group's attendance for a calendar day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.RecordAttendanceRequest true "Session payload"
// @Success 201 {object} models.AttendanceSession
// @Router /groups/{id}/attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.service.Record(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// GetByDate godoc
// @Summary Fetch a group's session for a calendar day
// @Tags Attendance
// @Produce json
// @Param id path string true "Group ID"
// @Param date query string true "Date YYYY-MM-DD"
// @Param timezone query string false "IANA timezone"
// @Success 200 {object} models.AttendanceSession
// @Router /groups/{id}/attendance [get]
func (h *AttendanceHandler) GetByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	session, err := h.service.GetByDate(c.Request.Context(), c.Param("id"), date, c.Query("timezone"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}
