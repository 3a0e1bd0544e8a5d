package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
)

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	DiscordWebhook *string `json:"discord_webhook"`
	SlackWebhook   *string `json:"slack_webhook"`
}

type InviteRequest struct {
	Email string `json:"email" binding:"required"`
}

type ProjectHandler struct {
	projects    *services.Projects
	tasks       *services.Tasks
	invitations *services.Invitations
	log         *logger.Logger
}

func NewProjectHandler(projects *services.Projects, tasks *services.Tasks, invitations *services.Invitations, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		tasks:       tasks,
		invitations: invitations,
		log:         log.Named("projects"),
	}
}

func (h *ProjectHandler) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var body CreateProjectRequest

	if !bindJSON(ctx, &body) {
		return
	}

	project, err := h.projects.Create(ctx.Request.Context(), actor, services.ProjectInput{
		Name:        body.Name,
		Description: body.Description,
	})

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) List(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projects, err := h.projects.ListForUser(ctx.Request.Context(), actor.ID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) Get(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projectID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	project, err := h.projects.Get(ctx.Request.Context(), actor.ID, projectID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projectID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body UpdateProjectRequest

	if !bindJSON(ctx, &body) {
		return
	}

	project, err := h.projects.Update(ctx.Request.Context(), actor.ID, projectID, services.ProjectUpdate{
		Name:           body.Name,
		Description:    body.Description,
		DiscordWebhook: body.DiscordWebhook,
		SlackWebhook:   body.SlackWebhook,
	})

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projectID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := h.projects.Delete(ctx.Request.Context(), actor.ID, projectID); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ProjectHandler) Members(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projectID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	members, err := h.projects.Members(ctx.Request.Context(), actor.ID, projectID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, members)
}

func (h *ProjectHandler) Tasks(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projectID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	tasks, err := h.tasks.ListByProject(ctx.Request.Context(), actor.ID, projectID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, tasks)
}

func (h *ProjectHandler) Invite(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	projectID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body InviteRequest

	if !bindJSON(ctx, &body) {
		return
	}

	invitation, err := h.invitations.Create(ctx.Request.Context(), actor, projectID, body.Email)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, invitation)
}
