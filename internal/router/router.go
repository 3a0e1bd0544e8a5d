package router

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/handlers"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/ratelimit"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/scheduler"
	"github.com/taskboard-dev/taskboard/internal/services"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"gorm.io/gorm"
)

// Deps is everything the HTTP surface needs. Limiter and Scheduler may be
// nil.
type Deps struct {
	DB             *gorm.DB
	Log            *logger.Logger
	AllowedOrigins []string
	ClientURL      string

	Tokens        *auth.TokenManager
	States        *auth.StateSigner
	OAuth         auth.OAuthProvider
	GitHubApp     handlers.Installer
	WebhookSecret string

	Hub       *realtime.Hub
	Gate      *access.Gate
	Scheduler *scheduler.Scheduler

	Limiter        ratelimit.Limiter
	AIRequestLimit int

	Users         *services.Users
	Projects      *services.Projects
	Tasks         *services.Tasks
	Invitations   *services.Invitations
	Comments      *services.Comments
	Attachments   *services.Attachments
	Notifications *services.Notifications
	Assistant     *services.Assistant
	GitHubLinks   *services.GitHubLinks
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Log.Named("http")))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	requireAuth := middleware.Auth(deps.Tokens, deps.DB)

	health := handlers.NewHealthHandler(deps.DB, deps.Hub, deps.Scheduler)
	users := handlers.NewUserHandler(deps.Users, deps.OAuth, deps.States, deps.ClientURL, deps.Log)
	projects := handlers.NewProjectHandler(deps.Projects, deps.Tasks, deps.Invitations, deps.Log)
	tasks := handlers.NewTaskHandler(deps.Tasks, deps.Comments, deps.Log)
	attachments := handlers.NewAttachmentHandler(deps.Attachments, deps.Log)
	invitations := handlers.NewInvitationHandler(deps.Invitations, deps.Log)
	notifications := handlers.NewNotificationHandler(deps.Notifications, deps.Log)
	assistant := handlers.NewAIHandler(deps.Assistant, deps.Log)
	github := handlers.NewGitHubHandler(deps.GitHubLinks, deps.GitHubApp, deps.States, deps.WebhookSecret, deps.ClientURL, deps.Log)
	ws := handlers.NewWSHandler(deps.Hub, deps.Gate, deps.AllowedOrigins, deps.Log)

	api := r.Group("/api")
	{
		api.GET("/health", health.Check)
		api.GET("/ws", requireAuth, ws.Serve)

		userRoutes := api.Group("/users")
		{
			userRoutes.POST("/register", users.Register)
			userRoutes.POST("/login", users.Login)
			userRoutes.GET("/me", requireAuth, users.Me)
			userRoutes.GET("/oauth/google", users.GoogleLogin)
			userRoutes.GET("/oauth/google/callback", users.GoogleCallback)
		}

		projectRoutes := api.Group("/projects", requireAuth)
		{
			projectRoutes.POST("", projects.Create)
			projectRoutes.GET("", projects.List)
			projectRoutes.GET("/:id", projects.Get)
			projectRoutes.PATCH("/:id", projects.Update)
			projectRoutes.DELETE("/:id", projects.Delete)
			projectRoutes.GET("/:id/members", projects.Members)
			projectRoutes.GET("/:id/tasks", projects.Tasks)
			projectRoutes.POST("/:id/invitations", projects.Invite)
		}

		taskRoutes := api.Group("/tasks", requireAuth)
		{
			taskRoutes.POST("", tasks.Create)
			taskRoutes.GET("/:id/details", tasks.Details)
			taskRoutes.PUT("/:id", tasks.Update)
			taskRoutes.PATCH("/:id/status", tasks.UpdateStatus)
			taskRoutes.PATCH("/:id/assign", tasks.Assign)
			taskRoutes.DELETE("/:id", tasks.Delete)
			taskRoutes.POST("/:id/comments", tasks.Comment)
			taskRoutes.POST("/:id/attachments/upload-url", attachments.UploadURL)
			taskRoutes.POST("/:id/attachments", attachments.Confirm)
		}

		api.DELETE("/attachments/:id", requireAuth, attachments.Delete)

		invitationRoutes := api.Group("/invitations", requireAuth)
		{
			invitationRoutes.GET("", invitations.ListPending)
			invitationRoutes.POST("/:id/accept", invitations.Accept)
			invitationRoutes.POST("/:id/decline", invitations.Decline)
		}

		notificationRoutes := api.Group("/notifications", requireAuth)
		{
			notificationRoutes.GET("", notifications.List)
			notificationRoutes.PUT("/read", notifications.MarkAllRead)
		}

		aiRoutes := api.Group("/ai", requireAuth)
		if deps.Limiter != nil {
			aiRoutes.Use(ratelimit.Middleware(deps.Limiter, deps.AIRequestLimit, userKey, deps.Log.Named("ratelimit")))
		}
		{
			aiRoutes.POST("/generate-tasks", assistant.GenerateTasks)
			aiRoutes.POST("/copilot", assistant.Copilot)
		}

		integrationRoutes := api.Group("/integrations")
		{
			integrationRoutes.POST("/github/webhook", github.Webhook)
			integrationRoutes.GET("/github/auth", requireAuth, github.Install)
			integrationRoutes.GET("/github/callback", github.Callback)
			integrationRoutes.POST("/tasks/:id/link-github", requireAuth, github.Link)
		}
	}

	return r
}

func userKey(ctx *gin.Context) (string, bool) {
	userID, err := utils.GetCurrentUserID(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("ai:user:%d", userID), true
}
