package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/services"
)

type InvitationHandler struct {
	invitations *services.Invitations
	log         *logger.Logger
}

func NewInvitationHandler(invitations *services.Invitations, log *logger.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, log: log.Named("invitations")}
}

func (h *InvitationHandler) ListPending(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	invitations, err := h.invitations.ListPending(ctx.Request.Context(), actor)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, invitations)
}

func (h *InvitationHandler) Accept(ctx *gin.Context) {
	h.respond(ctx, h.invitations.Accept)
}

func (h *InvitationHandler) Decline(ctx *gin.Context) {
	h.respond(ctx, h.invitations.Decline)
}

type answerFunc func(ctx context.Context, actor services.Actor, invitationID uint) (*models.Invitation, error)

func (h *InvitationHandler) respond(ctx *gin.Context, answer answerFunc) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	invitationID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	invitation, err := answer(ctx.Request.Context(), actor, invitationID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, invitation)
}
