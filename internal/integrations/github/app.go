package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v66/github"
	"github.com/taskboard-dev/taskboard/internal/logger"
)

const requestTimeout = 15 * time.Second

// StatusChecker resolves the current state of a linked pull request. It
// never fails: lookup problems degrade to StatusError.
type StatusChecker interface {
	PullRequestStatus(ctx context.Context, installationID int64, prURL string) PRStatus
}

type AppClient struct {
	appID      int64
	slug       string
	key        *rsa.PrivateKey
	httpClient *http.Client
	baseURL    *url.URL
	log        *logger.Logger
}

func NewAppClient(appID int64, slug, privateKeyPEM string, log *logger.Logger) (*AppClient, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("invalid github app id %d", appID)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("invalid github app private key: %w", err)
	}

	return &AppClient{
		appID:      appID,
		slug:       slug,
		key:        key,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.Named("github"),
	}, nil
}

// WithBaseURL points the client at a different API root (GitHub Enterprise
// or a test server). The URL must end with a slash.
func (c *AppClient) WithBaseURL(base *url.URL) *AppClient {
	c.baseURL = base
	return c
}

// InstallURL is where users are sent to install the App on their account.
func (c *AppClient) InstallURL(state string) string {
	return fmt.Sprintf("https://github.com/apps/%s/installations/new?state=%s", c.slug, url.QueryEscape(state))
}

func (c *AppClient) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(c.appID, 10),
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
}

func (c *AppClient) client(token string) *gh.Client {
	client := gh.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return client
}

func (c *AppClient) installationClient(ctx context.Context, installationID int64) (*gh.Client, error) {
	appToken, err := c.appJWT()
	if err != nil {
		return nil, fmt.Errorf("sign app jwt: %w", err)
	}

	token, _, err := c.client(appToken).Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("create installation token: %w", err)
	}

	return c.client(token.GetToken()), nil
}

func (c *AppClient) PullRequestStatus(ctx context.Context, installationID int64, prURL string) PRStatus {
	ref, err := ParsePullRequestURL(prURL)
	if err != nil {
		c.log.Warn("cannot parse linked pull request url", "url", prURL, "error", err)
		return StatusError
	}

	client, err := c.installationClient(ctx, installationID)
	if err != nil {
		c.log.Error("github installation auth failed", "installation_id", installationID, "error", err)
		return StatusError
	}

	pr, _, err := client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		c.log.Error("failed to fetch pull request", "url", prURL, "error", err)
		return StatusError
	}

	return StatusFromPullRequest(pr)
}

// Disabled stands in when no App credentials are configured.
type Disabled struct{}

func (Disabled) PullRequestStatus(context.Context, int64, string) PRStatus {
	return StatusError
}

func (Disabled) InstallURL(string) string {
	return ""
}
