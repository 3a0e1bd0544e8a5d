package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/integrations/github"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
)

// Installer builds the App installation link. An empty URL means the
// integration is not configured.
type Installer interface {
	InstallURL(state string) string
}

type LinkPullRequestRequest struct {
	URL string `json:"url" binding:"required"`
}

type GitHubHandler struct {
	links         *services.GitHubLinks
	installer     Installer
	states        *auth.StateSigner
	webhookSecret []byte
	clientURL     string
	log           *logger.Logger
}

func NewGitHubHandler(links *services.GitHubLinks, installer Installer, states *auth.StateSigner, webhookSecret, clientURL string, log *logger.Logger) *GitHubHandler {
	return &GitHubHandler{
		links:         links,
		installer:     installer,
		states:        states,
		webhookSecret: []byte(webhookSecret),
		clientURL:     strings.TrimRight(clientURL, "/"),
		log:           log.Named("github"),
	}
}

// Webhook applies pull_request deliveries. Other event types are
// acknowledged and ignored so GitHub does not retry them.
func (h *GitHubHandler) Webhook(ctx *gin.Context) {
	if len(h.webhookSecret) == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "GitHub integration is not configured"})
		return
	}

	event, err := github.ParseWebhook(ctx.Request, h.webhookSecret)

	if errors.Is(err, github.ErrIgnoredEvent) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err != nil {
		h.log.Warn("rejected github webhook", "error", err)
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook"})
		return
	}

	updated, err := h.links.HandlePullRequest(ctx.Request.Context(), event)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "processed", "updated": updated})
}

// Install redirects the signed-in user to the App installation page. The
// state carries the user id back to Callback.
func (h *GitHubHandler) Install(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	state, err := h.states.Sign(auth.PurposeGitHubInstall, actor.ID)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	installURL := h.installer.InstallURL(state)

	if installURL == "" {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "GitHub integration is not configured"})
		return
	}

	ctx.Redirect(http.StatusTemporaryRedirect, installURL)
}

func (h *GitHubHandler) Callback(ctx *gin.Context) {
	userID, err := h.states.Verify(ctx.Query("state"), auth.PurposeGitHubInstall)

	if err != nil || userID == 0 {
		h.log.Warn("rejected github install callback", "error", err)
		h.redirectToClient(ctx, url.Values{"github": {"error"}})
		return
	}

	installationID, err := strconv.ParseInt(ctx.Query("installation_id"), 10, 64)

	if err != nil {
		h.redirectToClient(ctx, url.Values{"github": {"error"}})
		return
	}

	if err := h.links.SaveInstallation(ctx.Request.Context(), userID, installationID); err != nil {
		h.log.Error("failed to save github installation", "user_id", userID, "error", err)
		h.redirectToClient(ctx, url.Values{"github": {"error"}})
		return
	}

	h.redirectToClient(ctx, url.Values{"github": {"connected"}})
}

func (h *GitHubHandler) Link(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body LinkPullRequestRequest

	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.links.Link(ctx.Request.Context(), actor, taskID, body.URL)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, task)
}

func (h *GitHubHandler) redirectToClient(ctx *gin.Context, query url.Values) {
	ctx.Redirect(http.StatusTemporaryRedirect, h.clientURL+"/settings?"+query.Encode())
}
