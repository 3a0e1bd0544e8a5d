package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	Port            string
	DatabaseURL     string
	JWTSecret       string
	TokenTTL        time.Duration
	ClientURL       string
	AllowedOrigins  string
	RedisURL        string
	ShutdownTimeout time.Duration

	AI      AIConfig
	GitHub  GitHubConfig
	Storage StorageConfig
	Google  GoogleConfig

	ReminderInterval   time.Duration
	GitHubSyncInterval time.Duration
}

type AIConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	RateLimitPerMinute int
}

type GitHubConfig struct {
	AppID         int64
	AppSlug       string
	PrivateKey    string
	WebhookSecret string
}

func (c GitHubConfig) Enabled() bool {
	return c.AppID != 0 && c.PrivateKey != ""
}

type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	PublicURL string
	UploadTTL time.Duration
}

func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Load reads the process environment, after merging an optional .env file.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var err error
	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ClientURL:      getEnv("CLIENT_URL", "http://localhost:3000"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AI: AIConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: os.Getenv("AI_BASE_URL"),
			Model:   getEnv("AI_MODEL", "gpt-4o-mini"),
		},
		GitHub: GitHubConfig{
			AppSlug:       os.Getenv("GITHUB_APP_SLUG"),
			PrivateKey:    strings.ReplaceAll(os.Getenv("GITHUB_APP_PRIVATE_KEY"), `\n`, "\n"),
			WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		},
		Storage: StorageConfig{
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 168*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Storage.UploadTTL, err = getDuration("STORAGE_UPLOAD_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderInterval, err = getDuration("REMINDER_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.GitHubSyncInterval, err = getDuration("GITHUB_SYNC_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	if cfg.AI.RateLimitPerMinute, err = getInt("AI_RATE_LIMIT_PER_MINUTE", 20); err != nil {
		return nil, err
	}

	if appID := os.Getenv("GITHUB_APP_ID"); appID != "" {
		if cfg.GitHub.AppID, err = strconv.ParseInt(appID, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}
