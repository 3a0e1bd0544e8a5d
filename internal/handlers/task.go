package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
)

type CreateTaskRequest struct {
	ProjectID   uint     `json:"projectId" binding:"required"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    *string  `json:"priority"`
	AssigneeID  *uint    `json:"assignee_id"`
	StartDate   *string  `json:"start_date"`
	DueDate     *string  `json:"due_date"`
	Labels      []string `json:"labels"`
}

type UpdateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	StartDate   *string   `json:"start_date"`
	DueDate     *string   `json:"due_date"`
	Labels      *[]string `json:"labels"`
}

type UpdateStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	AssigneeID *uint  `json:"assignee_id"`
}

// A null or missing assigneeId unassigns the task.
type AssignTaskRequest struct {
	AssigneeID *uint `json:"assigneeId"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type TaskHandler struct {
	tasks    *services.Tasks
	comments *services.Comments
	log      *logger.Logger
}

func NewTaskHandler(tasks *services.Tasks, comments *services.Comments, log *logger.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, comments: comments, log: log.Named("tasks")}
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}

	raw := strings.TrimSpace(*value)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	return nil, apperr.Validation(fmt.Sprintf("Invalid %s", field))
}

// blank reports an explicitly sent empty value, which clears the field on
// update.
func blank(value *string) bool {
	return value != nil && strings.TrimSpace(*value) == ""
}

func (h *TaskHandler) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var body CreateTaskRequest

	if !bindJSON(ctx, &body) {
		return
	}

	startDate, err := parseDate("start_date", body.StartDate)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	dueDate, err := parseDate("due_date", body.DueDate)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	task, err := h.tasks.Create(ctx.Request.Context(), actor, services.CreateTaskInput{
		ProjectID:   body.ProjectID,
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		AssigneeID:  body.AssigneeID,
		StartDate:   startDate,
		DueDate:     dueDate,
		Labels:      body.Labels,
	})

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) Details(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	details, err := h.tasks.Details(ctx.Request.Context(), actor.ID, taskID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, details)
}

func (h *TaskHandler) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body UpdateTaskRequest

	if !bindJSON(ctx, &body) {
		return
	}

	startDate, err := parseDate("start_date", body.StartDate)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	dueDate, err := parseDate("due_date", body.DueDate)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	task, err := h.tasks.Update(ctx.Request.Context(), actor, taskID, services.UpdateTaskInput{
		Title:          body.Title,
		Description:    body.Description,
		Priority:       body.Priority,
		StartDate:      startDate,
		DueDate:        dueDate,
		ClearStartDate: blank(body.StartDate),
		ClearDueDate:   blank(body.DueDate),
		Labels:         body.Labels,
	})

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateStatus(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body UpdateStatusRequest

	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.tasks.UpdateStatus(ctx.Request.Context(), actor, taskID, body.Status, body.AssigneeID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Assign(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body AssignTaskRequest

	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.tasks.Assign(ctx.Request.Context(), actor, taskID, body.AssigneeID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := h.tasks.Delete(ctx.Request.Context(), actor, taskID); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *TaskHandler) Comment(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body CreateCommentRequest

	if !bindJSON(ctx, &body) {
		return
	}

	comment, err := h.comments.Create(ctx.Request.Context(), actor, taskID, body.Content)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, comment)
}
