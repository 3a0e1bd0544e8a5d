package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/utils"
)

type WSHandler struct {
	hub      *realtime.Hub
	gate     *access.Gate
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewWSHandler accepts upgrades only from allowedOrigins. Requests without
// an Origin header (non-browser clients) are allowed.
func NewWSHandler(hub *realtime.Hub, gate *access.Gate, allowedOrigins []string, log *logger.Logger) *WSHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}

	return &WSHandler{
		hub:  hub,
		gate: gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		log: log.Named("ws"),
	}
}

// Serve upgrades an authenticated request. The client starts on its user
// channel and joins project channels with join_project messages.
func (h *WSHandler) Serve(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	log := h.log.WithUser(userID)
	log.Debug("websocket connected")

	session := realtime.NewSession(h.hub, realtime.NewClient(userID), conn, h.gate.IsMember, log)
	session.Serve(ctx.Request.Context())

	log.Debug("websocket closed")
}
