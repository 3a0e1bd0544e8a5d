package services

import (
	"context"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/integrations/github"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

const syncBatchSize = 100

// GitHubLinks keeps tasks in step with the pull requests linked to them.
type GitHubLinks struct {
	db      *gorm.DB
	gate    *access.Gate
	checker github.StatusChecker
	emitter realtime.Emitter
	log     *logger.Logger
}

func NewGitHubLinks(db *gorm.DB, gate *access.Gate, checker github.StatusChecker, emitter realtime.Emitter, log *logger.Logger) *GitHubLinks {
	return &GitHubLinks{
		db:      db,
		gate:    gate,
		checker: checker,
		emitter: emitter,
		log:     log.Named("github_links"),
	}
}

// SaveInstallation records the App installation a user completed.
func (s *GitHubLinks) SaveInstallation(ctx context.Context, userID uint, installationID int64) error {
	if installationID <= 0 {
		return apperr.Validation("Invalid installation id")
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("github_installation_id", installationID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("User not found")
	}

	s.log.Info("github installation linked", "user_id", userID, "installation_id", installationID)
	return nil
}

func (s *GitHubLinks) Link(ctx context.Context, actor Actor, taskID uint, prURL string) (*models.Task, error) {
	ref, err := github.ParsePullRequestURL(prURL)
	if err != nil {
		return nil, apperr.Validation("URL must point to a GitHub pull request")
	}

	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.ID).Error; err != nil {
		return nil, translate(err, "User not found")
	}
	if user.GitHubInstallationID == nil {
		return nil, apperr.Validation("Connect your GitHub account before linking pull requests")
	}

	status := s.checker.PullRequestStatus(ctx, *user.GitHubInstallationID, ref.CanonicalURL())

	updates := map[string]interface{}{
		"github_pr_url":          ref.CanonicalURL(),
		"github_pr_status":       string(status),
		"github_installation_id": *user.GitHubInstallationID,
	}
	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.reloadAndEmit(ctx, task.ID)
}

// HandlePullRequest applies a webhook delivery to every task linked to the
// pull request. A merged pull request completes the task.
func (s *GitHubLinks) HandlePullRequest(ctx context.Context, event *github.PullRequestEvent) (int, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).Where("github_pr_url = ?", event.URL).Find(&tasks).Error; err != nil {
		return 0, err
	}

	updated := 0
	for _, task := range tasks {
		changed, err := s.apply(ctx, task, event.Status)
		if err != nil {
			s.log.Error("failed to apply pull request update", "task_id", task.ID, "error", err)
			continue
		}
		if changed {
			updated++
		}
	}

	s.log.Info("processed pull request webhook", "url", event.URL, "action", event.Action, "tasks", updated)
	return updated, nil
}

// SyncOpen polls every task whose pull request is still open or unknown.
// Webhooks are the primary path; this catches missed deliveries.
func (s *GitHubLinks) SyncOpen(ctx context.Context) error {
	var tasks []models.Task

	err := s.db.WithContext(ctx).
		Where("github_pr_url IS NOT NULL AND github_installation_id IS NOT NULL").
		Where("github_pr_status IS NULL OR github_pr_status IN ?", []string{string(github.StatusOpen), string(github.StatusError)}).
		Limit(syncBatchSize).
		Find(&tasks).Error
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status := s.checker.PullRequestStatus(ctx, *task.GitHubInstallationID, *task.GitHubPRURL)
		if status == github.StatusError {
			continue
		}

		if _, err := s.apply(ctx, task, status); err != nil {
			s.log.Error("failed to sync pull request status", "task_id", task.ID, "error", err)
		}
	}

	return nil
}

func (s *GitHubLinks) apply(ctx context.Context, task models.Task, status github.PRStatus) (bool, error) {
	updates := map[string]interface{}{}

	if task.GitHubPRStatus == nil || *task.GitHubPRStatus != string(status) {
		updates["github_pr_status"] = string(status)
	}
	if status == github.StatusMerged && task.Status != types.StatusDone {
		updates["status"] = types.StatusDone
	}
	if len(updates) == 0 {
		return false, nil
	}

	if err := s.db.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		return false, err
	}

	if _, err := s.reloadAndEmit(ctx, task.ID); err != nil {
		return true, err
	}

	return true, nil
}

func (s *GitHubLinks) reloadAndEmit(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("Assignee").First(&task, taskID).Error; err != nil {
		return nil, translate(err, "Task not found")
	}

	s.emitter.Emit(realtime.ProjectChannel(task.ProjectID), types.EventTaskUpdated, task)
	return &task, nil
}
