package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/integrations/github"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/testutil"
	"github.com/taskboard-dev/taskboard/internal/types"
)

const prURL = "https://github.com/acme/site/pull/42"

func TestGitHubLinks_LinkRequiresInstallation(t *testing.T) {
	f := newFixture(t)
	links := f.githubLinks()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	project := testutil.CreateProject(t, f.db, alice, "Launch")
	task := testutil.CreateTask(t, f.db, project, alice, "Ship landing page", types.StatusInProgress)

	_, err := links.Link(ctx, actorOf(alice), task.ID, prURL)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = links.Link(ctx, actorOf(alice), task.ID, "https://gitlab.com/acme/site/-/merge_requests/1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, links.SaveInstallation(ctx, alice.ID, 77))
	assert.ErrorIs(t, links.SaveInstallation(ctx, alice.ID+100, 77), apperr.ErrNotFound)
	assert.ErrorIs(t, links.SaveInstallation(ctx, alice.ID, 0), apperr.ErrValidation)

	linked, err := links.Link(ctx, actorOf(alice), task.ID, prURL+"/files")
	require.NoError(t, err)
	require.NotNil(t, linked.GitHubPRURL)
	assert.Equal(t, prURL, *linked.GitHubPRURL)
	require.NotNil(t, linked.GitHubPRStatus)
	assert.Equal(t, string(github.StatusOpen), *linked.GitHubPRStatus)
	require.NotNil(t, linked.GitHubInstallationID)
	assert.Equal(t, int64(77), *linked.GitHubInstallationID)
	assert.Len(t, f.emitter.Named(types.EventTaskUpdated), 1)
}

func TestGitHubLinks_MergedWebhookCompletesTask(t *testing.T) {
	f := newFixture(t)
	links := f.githubLinks()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	project := testutil.CreateProject(t, f.db, alice, "Launch")
	task := testutil.CreateTask(t, f.db, project, alice, "Ship landing page", types.StatusInProgress)
	other := testutil.CreateTask(t, f.db, project, alice, "Unrelated", types.StatusTodo)

	require.NoError(t, links.SaveInstallation(ctx, alice.ID, 77))
	_, err := links.Link(ctx, actorOf(alice), task.ID, prURL)
	require.NoError(t, err)

	updated, err := links.HandlePullRequest(ctx, &github.PullRequestEvent{Action: "closed", URL: prURL, Status: github.StatusMerged})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	var stored models.Task
	require.NoError(t, f.db.First(&stored, task.ID).Error)
	assert.Equal(t, types.StatusDone, stored.Status)
	assert.Equal(t, string(github.StatusMerged), *stored.GitHubPRStatus)

	require.NoError(t, f.db.First(&stored, other.ID).Error)
	assert.Equal(t, types.StatusTodo, stored.Status)

	// Redelivery changes nothing.
	updated, err = links.HandlePullRequest(ctx, &github.PullRequestEvent{Action: "closed", URL: prURL, Status: github.StatusMerged})
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestGitHubLinks_SyncOpen(t *testing.T) {
	f := newFixture(t)
	links := f.githubLinks()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	project := testutil.CreateProject(t, f.db, alice, "Launch")
	task := testutil.CreateTask(t, f.db, project, alice, "Ship landing page", types.StatusInProgress)

	require.NoError(t, links.SaveInstallation(ctx, alice.ID, 77))
	_, err := links.Link(ctx, actorOf(alice), task.ID, prURL)
	require.NoError(t, err)

	f.checker.status = github.StatusError
	require.NoError(t, links.SyncOpen(ctx))

	var stored models.Task
	require.NoError(t, f.db.First(&stored, task.ID).Error)
	assert.Equal(t, string(github.StatusOpen), *stored.GitHubPRStatus)

	f.checker.status = github.StatusMerged
	require.NoError(t, links.SyncOpen(ctx))

	require.NoError(t, f.db.First(&stored, task.ID).Error)
	assert.Equal(t, types.StatusDone, stored.Status)
	assert.Equal(t, string(github.StatusMerged), *stored.GitHubPRStatus)

	// Merged pull requests are no longer polled.
	calls := f.checker.calls
	require.NoError(t, links.SyncOpen(ctx))
	assert.Equal(t, calls, f.checker.calls)
}
