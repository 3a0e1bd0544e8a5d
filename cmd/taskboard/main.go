package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/config"
	"github.com/taskboard-dev/taskboard/internal/handlers"
	"github.com/taskboard-dev/taskboard/internal/integrations/ai"
	"github.com/taskboard-dev/taskboard/internal/integrations/github"
	"github.com/taskboard-dev/taskboard/internal/integrations/storage"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/ratelimit"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/router"
	"github.com/taskboard-dev/taskboard/internal/scheduler"
	"github.com/taskboard-dev/taskboard/internal/services"
	"github.com/taskboard-dev/taskboard/internal/types"
)

type githubApp interface {
	github.StatusChecker
	handlers.Installer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("taskboard", "").Fatal("invalid configuration", "error", err)
	}

	log := logger.New("taskboard", cfg.Env)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}
	log.Info("database ready")

	var (
		redisClient *redis.Client
		relay       realtime.Relay
		limiter     ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", "error", err)
		}
		redisClient = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("failed to connect to redis", "error", err)
		}

		relay = realtime.NewRedisRelay(redisClient)
		limiter = ratelimit.NewSlidingWindow(redisClient, ratelimit.Config{
			RequestsPerWindow: cfg.AI.RateLimitPerMinute,
			WindowSize:        time.Minute,
		}, "taskboard:ratelimit:")
		log.Info("redis connected, cross-instance fan-out and rate limiting enabled")
	} else {
		log.Warn("REDIS_URL not set, realtime events stay on this instance and AI routes are not rate limited")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := realtime.NewHub(log, relay)
	go hub.Run(hubCtx)

	var completer ai.Completer = ai.DisabledCompleter{}
	if cfg.AI.APIKey != "" {
		completer = ai.NewOpenAICompleter(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
	} else {
		log.Warn("AI_API_KEY not set, assistant endpoints are disabled")
	}

	var app githubApp = github.Disabled{}
	if cfg.GitHub.Enabled() {
		client, err := github.NewAppClient(cfg.GitHub.AppID, cfg.GitHub.AppSlug, cfg.GitHub.PrivateKey, log)
		if err != nil {
			log.Fatal("invalid github app configuration", "error", err)
		}
		app = client
	} else {
		log.Warn("GitHub App not configured, pull request links are disabled")
	}

	var store storage.BlobStore = storage.Disabled{}
	if cfg.Storage.Enabled() {
		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			log.Fatal("failed to configure blob storage", "error", err)
		}
		store = s3Store
	} else {
		log.Warn("STORAGE_BUCKET not set, attachments are disabled")
	}

	var oauth auth.OAuthProvider = auth.DisabledOAuth{}
	if cfg.Google.Enabled() {
		oauth = auth.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	gate := access.NewGate(database)
	recorder := notify.NewRecorder(database, hub, log)

	githubLinks := services.NewGitHubLinks(database, gate, app, hub, log)
	tasks := services.NewTasks(database, gate, hub, recorder, services.NewChatNotifier(log), log)
	reminders := services.NewReminders(database, recorder, log)

	jobs := scheduler.NewScheduler(log)
	jobs.AddJob("due-reminders", cfg.ReminderInterval, func(ctx context.Context) error {
		_, err := reminders.SendDueReminders(ctx)
		return err
	})
	if cfg.GitHub.Enabled() {
		jobs.AddJob("github-sync", cfg.GitHubSyncInterval, githubLinks.SyncOpen)
	}
	jobs.Start()

	allowedOrigins := types.AllowedOrigins(cfg.ClientURL, cfg.AllowedOrigins)

	r := router.NewRouter(router.Deps{
		DB:             database,
		Log:            log,
		AllowedOrigins: allowedOrigins,
		ClientURL:      cfg.ClientURL,
		Tokens:         tokens,
		States:         auth.NewStateSigner(cfg.JWTSecret),
		OAuth:          oauth,
		GitHubApp:      app,
		WebhookSecret:  cfg.GitHub.WebhookSecret,
		Hub:            hub,
		Gate:           gate,
		Scheduler:      jobs,
		Limiter:        limiter,
		AIRequestLimit: cfg.AI.RateLimitPerMinute,
		Users:          services.NewUsers(database, tokens, log),
		Projects:       services.NewProjects(database, gate, log),
		Tasks:          tasks,
		Invitations:    services.NewInvitations(database, gate, hub, recorder, log),
		Comments:       services.NewComments(database, gate, hub, recorder, log),
		Attachments:    services.NewAttachments(database, gate, store, hub, log),
		Notifications:  services.NewNotifications(database),
		Assistant:      services.NewAssistant(database, gate, ai.NewAssistant(completer), log),
		GitHubLinks:    githubLinks,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	// Teardown order matters, so it runs as a single operation.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"taskboard": func(ctx context.Context) error {
				var errs []error

				if err := server.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}

				jobs.Stop()
				tasks.Wait()
				stopHub()
				hub.Wait()

				if redisClient != nil {
					if err := redisClient.Close(); err != nil {
						errs = append(errs, err)
					}
				}

				if sqlDB, err := database.DB(); err == nil {
					if err := sqlDB.Close(); err != nil {
						errs = append(errs, err)
					}
				}

				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	log.Info("shutdown complete", "exit_code", exitCode)
	_ = log.Sync()
	os.Exit(exitCode)
}
