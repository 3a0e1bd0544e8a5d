package github

import (
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v66/github"
)

var ErrIgnoredEvent = errors.New("ignored webhook event")

// PullRequestEvent is the subset of a pull_request delivery the board acts
// on.
type PullRequestEvent struct {
	Action         string
	URL            string
	Status         PRStatus
	InstallationID int64
}

// ParseWebhook verifies the signature with secret and decodes a
// pull_request delivery. Other event types return ErrIgnoredEvent.
func ParseWebhook(r *http.Request, secret []byte) (*PullRequestEvent, error) {
	payload, err := gh.ValidatePayload(r, secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	event, err := gh.ParseWebHook(gh.WebHookType(r), payload)
	if err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}

	prEvent, ok := event.(*gh.PullRequestEvent)
	if !ok {
		return nil, ErrIgnoredEvent
	}

	pr := prEvent.GetPullRequest()
	ref, err := ParsePullRequestURL(pr.GetHTMLURL())
	if err != nil {
		return nil, fmt.Errorf("webhook pull request url: %w", err)
	}

	return &PullRequestEvent{
		Action:         prEvent.GetAction(),
		URL:            ref.CanonicalURL(),
		Status:         StatusFromPullRequest(pr),
		InstallationID: prEvent.GetInstallation().GetID(),
	}, nil
}
