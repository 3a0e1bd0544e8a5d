package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
	usernameStrip   = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

const invalidCredentials = "Invalid email or password"

type RegisterInput struct {
	Username string
	Name     string
	Email    string
	Password string
}

type Users struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	log    *logger.Logger
}

func NewUsers(db *gorm.DB, tokens *auth.TokenManager, log *logger.Logger) *Users {
	return &Users{db: db, tokens: tokens, log: log.Named("users")}
}

func (s *Users) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	if !usernamePattern.MatchString(username) {
		return nil, apperr.Validation("Username must be 3-32 letters, digits, dots, dashes or underscores")
	}
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}
	if len(input.Password) < 8 {
		return nil, apperr.Validation("Password must be at least 8 characters")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ? OR email = ?", strings.ToLower(username), email).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflict("Username or email already exists")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = username
	}

	user := models.User{
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Username or email already exists")
		}
		return nil, err
	}

	s.log.Info("user registered", "user_id", user.ID)
	return &user, nil
}

// Login returns a session token. Unknown emails, wrong passwords and
// OAuth-only accounts are indistinguishable to the caller.
func (s *Users) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User

	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperr.Validation(invalidCredentials)
		}
		return "", nil, err
	}

	if !user.HasPassword() || !auth.CheckPassword(*user.PasswordHash, password) {
		return "", nil, apperr.Validation(invalidCredentials)
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", nil, err
	}

	return token, &user, nil
}

// LoginExternal signs in an OAuth identity. The account is matched by
// provider id first, then by email (linking the provider), and created
// otherwise.
func (s *Users) LoginExternal(ctx context.Context, profile auth.ExternalProfile) (string, *models.User, error) {
	email := normalizeEmail(profile.Email)
	if profile.ProviderID == "" || email == "" {
		return "", nil, apperr.Validation("OAuth profile is missing an id or email")
	}

	var user models.User
	db := s.db.WithContext(ctx)

	err := db.Where("provider = ? AND provider_id = ?", profile.Provider, profile.ProviderID).First(&user).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = db.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			updates := map[string]interface{}{"provider": profile.Provider, "provider_id": profile.ProviderID}
			if err := db.Model(&user).Updates(updates).Error; err != nil {
				return "", nil, err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, err := s.createExternal(ctx, profile, email)
			if err != nil {
				return "", nil, err
			}
			user = *created
		default:
			return "", nil, err
		}
	default:
		return "", nil, err
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", nil, err
	}

	return token, &user, nil
}

func (s *Users) createExternal(ctx context.Context, profile auth.ExternalProfile, email string) (*models.User, error) {
	username, err := s.availableUsername(ctx, email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = username
	}

	provider := profile.Provider
	providerID := profile.ProviderID
	user := models.User{
		Username:   username,
		Name:       name,
		Email:      email,
		Provider:   &provider,
		ProviderID: &providerID,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, translate(err, "User not found")
	}

	s.log.Info("user registered via oauth", "user_id", user.ID, "provider", provider)
	return &user, nil
}

// availableUsername derives a mention-friendly username from the email local
// part, appending a counter until it is free.
func (s *Users) availableUsername(ctx context.Context, email string) (string, error) {
	base := usernameStrip.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "")
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base) > 24 {
		base = base[:24]
	}

	candidate := base
	for i := 1; i <= 20; i++ {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("LOWER(username) = ?", strings.ToLower(candidate)).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	return base + "-" + uuid.NewString()[:6], nil
}

func (s *Users) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, translate(err, "User not found")
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
