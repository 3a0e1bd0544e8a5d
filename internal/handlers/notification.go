package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
)

type NotificationHandler struct {
	notifications *services.Notifications
	log           *logger.Logger
}

func NewNotificationHandler(notifications *services.Notifications, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log.Named("notifications")}
}

func (h *NotificationHandler) List(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	notifications, err := h.notifications.List(ctx.Request.Context(), actor.ID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkAllRead(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(ctx.Request.Context(), actor.ID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}
