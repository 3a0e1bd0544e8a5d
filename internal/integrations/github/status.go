// Package github talks to the source host on behalf of an App installation:
// pull request status lookups and webhook verification.
package github

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v66/github"
)

type PRStatus string

const (
	StatusOpen   PRStatus = "Open"
	StatusMerged PRStatus = "Merged"
	StatusClosed PRStatus = "Closed"
	StatusError  PRStatus = "Error"
)

type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int
}

// ParsePullRequestURL accepts https://github.com/<owner>/<repo>/pull/<n>,
// ignoring any trailing path such as /files.
func ParsePullRequestURL(raw string) (PullRequestRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return PullRequestRef{}, fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return PullRequestRef{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !strings.EqualFold(u.Host, "github.com") && !strings.EqualFold(u.Host, "www.github.com") {
		return PullRequestRef{}, fmt.Errorf("not a github url: %s", u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" {
		return PullRequestRef{}, fmt.Errorf("not a pull request url: %s", u.Path)
	}

	number, err := strconv.Atoi(parts[3])
	if err != nil || number <= 0 {
		return PullRequestRef{}, fmt.Errorf("invalid pull request number %q", parts[3])
	}

	return PullRequestRef{Owner: parts[0], Repo: parts[1], Number: number}, nil
}

// CanonicalURL is the form stored on tasks and matched against webhook
// payloads.
func (r PullRequestRef) CanonicalURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", r.Owner, r.Repo, r.Number)
}

func StatusFromPullRequest(pr *gh.PullRequest) PRStatus {
	if pr == nil {
		return StatusError
	}
	if pr.GetMerged() || pr.MergedAt != nil {
		return StatusMerged
	}
	switch pr.GetState() {
	case "open":
		return StatusOpen
	case "closed":
		return StatusClosed
	default:
		return StatusError
	}
}
