package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateTTL = 10 * time.Minute

const (
	PurposeGoogleLogin   = "google_login"
	PurposeGitHubInstall = "github_install"
)

type stateClaims struct {
	Purpose string `json:"purpose"`
	UserID  uint   `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner produces the opaque state parameter for redirect round trips
// (OAuth login, GitHub App installation) without server-side storage.
type StateSigner struct {
	secret []byte
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte("state:" + secret)}
}

func (s *StateSigner) Sign(purpose string, userID uint) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Purpose: purpose,
		UserID:  userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature, expiry and purpose and returns the embedded
// user id (zero for anonymous flows).
func (s *StateSigner) Verify(state, purpose string) (uint, error) {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid state: %w", ErrInvalidToken)
	}

	claims, ok := token.Claims.(*stateClaims)
	if !ok || claims.Purpose != purpose {
		return 0, fmt.Errorf("state purpose mismatch: %w", ErrInvalidToken)
	}

	return claims.UserID, nil
}
