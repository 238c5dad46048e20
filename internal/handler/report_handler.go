package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aulago/aula-api/internal/service"
	appErrors "github.com/aulago/aula-api/pkg/errors"
	"github.com/aulago/aula-api/pkg/response"
)

// ReportHandler dispatches report queries to the matching aggregator.
type ReportHandler struct {
	attendance  *service.AttendanceReportService
	tasks       *service.TaskReportService
	performance *service.PerformanceReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(attendance *service.AttendanceReportService, tasks *service.TaskReportService, performance *service.PerformanceReportService) *ReportHandler {
	return &ReportHandler{attendance: attendance, tasks: tasks, performance: performance}
}

// Attendance godoc
// @Summary Attendance report
// @Tags Reports
// @Produce json
// @Param group_id query string true "Group ID"
// @Param student_id query string false "Student ID (detail mode)"
// @Param start_date query string false "Start date YYYY-MM-DD"
// @Param end_date query string false "End date YYYY-MM-DD"
// @Param timezone query string false "IANA timezone"
// @Success 200 {array} models.AttendanceStudentSummary
// @Router /reports/attendance [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	req := service.AttendanceReportRequest{
		GroupID:   c.Query("group_id"),
		StudentID: c.Query("student_id"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Timezone:  c.Query("timezone"),
	}

	if req.StudentID != "" {
		detail, err := h.attendance.StudentDetail(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, detail)
		return
	}

	summaries, err := h.attendance.GroupSummary(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summaries)
}

// Tasks godoc
// @Summary Task/submission report
// @Tags Reports
// @Produce json
// @Param group_id query string true "Group ID"
// @Param task_id query string false "Task ID"
// @Param student_id query string false "Student ID (detail mode)"
// @Param title query string false "Title substring filter"
// @Param start_date query string false "Due-date range start YYYY-MM-DD"
// @Param end_date query string false "Due-date range end YYYY-MM-DD"
// @Param timezone query string false "IANA timezone"
// @Success 200 {array} models.TaskStudentSummary
// @Router /reports/tasks [get]
func (h *ReportHandler) Tasks(c *gin.Context) {
	req := service.TaskReportRequest{
		GroupID:   c.Query("group_id"),
		TaskID:    c.Query("task_id"),
		StudentID: c.Query("student_id"),
		Title:     c.Query("title"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Timezone:  c.Query("timezone"),
	}

	if req.StudentID != "" {
		rows, err := h.tasks.StudentDetail(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, rows)
		return
	}

	summaries, err := h.tasks.GroupSummary(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summaries)
}

// Performance godoc
// @Summary Cross-group performance report
// @Tags Reports
// @Produce json
// @Param group_id query string false "Limit to one group"
// @Param start_date query string true "Start date YYYY-MM-DD"
// @Param end_date query string true "End date YYYY-MM-DD"
// @Param timezone query string false "IANA timezone"
// @Success 200 {object} models.PerformanceReport
// @Router /reports/performance [get]
func (h *ReportHandler) Performance(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.PerformanceReportRequest{
		TeacherID: claims.UserID,
		GroupID:   c.Query("group_id"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Timezone:  c.Query("timezone"),
	}

	if req.GroupID != "" {
		record, err := h.performance.GroupReport(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, record)
		return
	}

	report, err := h.performance.Overview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
