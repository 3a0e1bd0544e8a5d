// Package handlers adapts HTTP requests to the services layer.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
	"github.com/taskboard-dev/taskboard/internal/utils"
)

func currentActor(ctx *gin.Context) (services.Actor, bool) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return services.Actor{}, false
	}

	return services.Actor{ID: user.ID, Username: user.Username, Email: user.Email}, true
}

func idParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := utils.GetIDParam(ctx, name)

	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}

	return id, true
}

func bindJSON(ctx *gin.Context, body interface{}) bool {
	if err := ctx.ShouldBindJSON(body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	return true
}

// respondError logs server-side failures before writing the client-safe
// message.
func respondError(ctx *gin.Context, log *logger.Logger, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", ctx.Request.Method,
			"route", ctx.FullPath(),
			"error", err,
		)
	}

	utils.RespondError(ctx, err)
}
