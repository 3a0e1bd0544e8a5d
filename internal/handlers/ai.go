package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
)

type GenerateTasksRequest struct {
	ProjectID uint   `json:"projectId" binding:"required"`
	Goal      string `json:"goal"`
}

type CopilotRequest struct {
	ProjectID uint   `json:"projectId" binding:"required"`
	Message   string `json:"message"`
}

type AIHandler struct {
	assistant *services.Assistant
	log       *logger.Logger
}

func NewAIHandler(assistant *services.Assistant, log *logger.Logger) *AIHandler {
	return &AIHandler{assistant: assistant, log: log.Named("ai")}
}

// GenerateTasks returns suggested titles only; nothing is persisted.
func (h *AIHandler) GenerateTasks(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var body GenerateTasksRequest

	if !bindJSON(ctx, &body) {
		return
	}

	titles, err := h.assistant.GenerateTasks(ctx.Request.Context(), actor.ID, body.ProjectID, body.Goal)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"suggestedTasks": titles})
}

func (h *AIHandler) Copilot(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var body CopilotRequest

	if !bindJSON(ctx, &body) {
		return
	}

	reply, err := h.assistant.Copilot(ctx.Request.Context(), actor.ID, body.ProjectID, body.Message)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"reply": reply})
}
