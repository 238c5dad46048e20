package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/internal/service"
	appErrors "github.com/aulago/aula-api/pkg/errors"
	"github.com/aulago/aula-api/pkg/response"
)

// TaskHandler exposes task lifecycle and submission endpoints.
type TaskHandler struct {
	service *service.TaskService
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// List godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param group_id query string false "Group ID"
// @Param title query string false "Title substring filter"
// @Success 200 {array} models.Task
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter := models.TaskFilter{
		GroupID: c.Query("group_id"),
		TaskID:  c.Query("task_id"),
		Title:   c.Query("title"),
	}
	tasks, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tasks)
}

// Get godoc
// @Summary Get task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.Task
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}

// Submit godoc
// @Summary Submit or replace a delivery
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body service.SubmitTaskRequest true "Submission payload"
// @Success 201 {object} models.Submission
// @Router /tasks/{id}/submissions [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Review godoc
// @Summary Grade a delivered submission
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.ReviewSubmissionRequest true "Grade payload"
// @Success 200 {object} models.Submission
// @Router /tasks/{id}/submissions/{studentId}/review [post]
func (h *TaskHandler) Review(c *gin.Context) {
	var req service.ReviewSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Review(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submission)
}

// ExtendDueDate godoc
// @Summary Move a task's due instant
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body service.ExtendDueDateRequest true "New due instant"
// @Success 200 {object} models.Task
// @Router /tasks/{id}/due-date [patch]
func (h *TaskHandler) ExtendDueDate(c *gin.Context) {
	var req service.ExtendDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.service.ExtendDueDate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}

// CloseExpired godoc
// @Summary Close every open task past its due instant
// @Tags Tasks
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /tasks/close-expired [post]
func (h *TaskHandler) CloseExpired(c *gin.Context) {
	closed, err := h.service.CloseExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"closed": closed})
}
