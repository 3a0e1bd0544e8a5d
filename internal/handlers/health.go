package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/scheduler"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db        *gorm.DB
	hub       *realtime.Hub
	scheduler *scheduler.Scheduler
}

func NewHealthHandler(db *gorm.DB, hub *realtime.Hub, jobs *scheduler.Scheduler) *HealthHandler {
	return &HealthHandler{db: db, hub: hub, scheduler: jobs}
}

func (h *HealthHandler) Check(ctx *gin.Context) {
	status, code, database := "ok", http.StatusOK, "ok"

	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthTimeout)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(pingCtx)
	}
	if err != nil {
		status, code, database = "degraded", http.StatusServiceUnavailable, "unreachable"
	}

	body := gin.H{
		"status":    status,
		"message":   "Taskboard is running",
		"database":  database,
		"clients":   h.hub.ClientCount(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.scheduler != nil {
		body["jobs"] = h.scheduler.Status()
	}

	ctx.JSON(code, body)
}
