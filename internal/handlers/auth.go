package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/utils"
)

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  types.UserResponse `json:"user"`
}

type UserHandler struct {
	users     *services.Users
	oauth     auth.OAuthProvider
	states    *auth.StateSigner
	clientURL string
	log       *logger.Logger
}

func NewUserHandler(users *services.Users, oauth auth.OAuthProvider, states *auth.StateSigner, clientURL string, log *logger.Logger) *UserHandler {
	return &UserHandler{
		users:     users,
		oauth:     oauth,
		states:    states,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log.Named("users"),
	}
}

func (h *UserHandler) Register(ctx *gin.Context) {
	var body CreateUserRequest

	if !bindJSON(ctx, &body) {
		return
	}

	user, err := h.users.Register(ctx.Request.Context(), services.RegisterInput{
		Username: body.Username,
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, types.NewUserResponse(*user))
}

func (h *UserHandler) Login(ctx *gin.Context) {
	var body LoginUserRequest

	if !bindJSON(ctx, &body) {
		return
	}

	token, user, err := h.users.Login(ctx.Request.Context(), body.Email, body.Password)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: types.NewUserResponse(*user)})
}

func (h *UserHandler) Me(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx.JSON(http.StatusOK, types.UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
	})
}

// GoogleLogin starts the OAuth round trip. The state parameter is signed so
// the callback needs no server-side session.
func (h *UserHandler) GoogleLogin(ctx *gin.Context) {
	state, err := h.states.Sign(auth.PurposeGoogleLogin, 0)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	redirect := h.oauth.AuthCodeURL(state)

	if redirect == "" {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Google login is not configured"})
		return
	}

	ctx.Redirect(http.StatusTemporaryRedirect, redirect)
}

// GoogleCallback finishes the round trip and hands the session token to the
// client app through the redirect URL.
func (h *UserHandler) GoogleCallback(ctx *gin.Context) {
	if _, err := h.states.Verify(ctx.Query("state"), auth.PurposeGoogleLogin); err != nil {
		h.log.Warn("rejected oauth callback", "error", err)
		h.redirectToClient(ctx, "/login", url.Values{"error": {"invalid_state"}})
		return
	}

	profile, err := h.oauth.Exchange(ctx.Request.Context(), ctx.Query("code"))

	if err != nil {
		h.log.Warn("oauth exchange failed", "error", err)
		h.redirectToClient(ctx, "/login", url.Values{"error": {"oauth_failed"}})
		return
	}

	token, user, err := h.users.LoginExternal(ctx.Request.Context(), *profile)

	if err != nil {
		h.log.Error("external login failed", "provider", profile.Provider, "error", err)
		h.redirectToClient(ctx, "/login", url.Values{"error": {"oauth_failed"}})
		return
	}

	h.log.Info("user logged in with oauth", "user_id", user.ID, "provider", profile.Provider)
	h.redirectToClient(ctx, "/auth/callback", url.Values{"token": {token}})
}

func (h *UserHandler) redirectToClient(ctx *gin.Context, path string, query url.Values) {
	ctx.Redirect(http.StatusTemporaryRedirect, h.clientURL+path+"?"+query.Encode())
}
