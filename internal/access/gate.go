// Package access holds the ownership and membership predicates that guard
// every project and task mutation.
package access

import (
	"context"
	"errors"

	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

type Gate struct {
	db *gorm.DB
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

func (g *Gate) Project(ctx context.Context, projectID uint) (*models.Project, error) {
	var project models.Project

	if err := g.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found")
		}
		return nil, err
	}

	return &project, nil
}

func (g *Gate) Task(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task

	if err := g.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Task not found")
		}
		return nil, err
	}

	return &task, nil
}

// RequireOwner compares against the project's owner reference, not the
// membership role.
func (g *Gate) RequireOwner(ctx context.Context, userID, projectID uint) (*models.Project, error) {
	project, err := g.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.OwnerID != userID {
		return nil, apperr.Forbidden("Only the project owner can perform this action")
	}

	return project, nil
}

func (g *Gate) RequireMember(ctx context.Context, userID, projectID uint) (*models.Project, error) {
	project, err := g.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	member, err := g.IsMember(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if !member {
		return nil, apperr.Forbidden("You are not a member of this project")
	}

	return project, nil
}

// RequireTaskMember resolves the task before checking membership of its
// project.
func (g *Gate) RequireTaskMember(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	task, err := g.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if _, err := g.RequireMember(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}

	return task, nil
}

func (g *Gate) IsMember(ctx context.Context, userID, projectID uint) (bool, error) {
	var count int64

	err := g.db.WithContext(ctx).
		Model(&models.ProjectMembership{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}
