package services

import (
	"context"
	"strings"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

type ProjectInput struct {
	Name        string
	Description string
}

// ProjectUpdate changes only the non-nil fields.
type ProjectUpdate struct {
	Name           *string
	Description    *string
	DiscordWebhook *string
	SlackWebhook   *string
}

type Projects struct {
	db   *gorm.DB
	gate *access.Gate
	log  *logger.Logger
}

func NewProjects(db *gorm.DB, gate *access.Gate, log *logger.Logger) *Projects {
	return &Projects{db: db, gate: gate, log: log.Named("projects")}
}

// Create inserts the project and the owner's membership together.
func (s *Projects) Create(ctx context.Context, actor Actor, input ProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("Project name is required")
	}

	project := models.Project{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     actor.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		return tx.Create(&models.ProjectMembership{
			ProjectID: project.ID,
			UserID:    actor.ID,
			Role:      models.RoleOwner,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("project created", "project_id", project.ID, "owner_id", actor.ID)
	return &project, nil
}

func (s *Projects) ListForUser(ctx context.Context, userID uint) ([]models.Project, error) {
	projects := []models.Project{}

	err := s.db.WithContext(ctx).
		Joins("JOIN project_memberships ON project_memberships.project_id = projects.id").
		Where("project_memberships.user_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&projects).Error

	return projects, err
}

func (s *Projects) Get(ctx context.Context, actorID, projectID uint) (*models.Project, error) {
	return s.gate.RequireMember(ctx, actorID, projectID)
}

func (s *Projects) Members(ctx context.Context, actorID, projectID uint) ([]types.MemberResponse, error) {
	if _, err := s.gate.RequireMember(ctx, actorID, projectID); err != nil {
		return nil, err
	}

	var memberships []models.ProjectMembership
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	members := make([]types.MemberResponse, 0, len(memberships))
	for _, m := range memberships {
		if m.User == nil {
			continue
		}
		members = append(members, types.MemberResponse{
			UserResponse: types.NewUserResponse(*m.User),
			Role:         m.Role,
		})
	}

	return members, nil
}

func (s *Projects) Update(ctx context.Context, actorID, projectID uint, input ProjectUpdate) (*models.Project, error) {
	project, err := s.gate.RequireOwner(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperr.Validation("Project name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.DiscordWebhook != nil {
		updates["discord_webhook"] = strings.TrimSpace(*input.DiscordWebhook)
	}
	if input.SlackWebhook != nil {
		updates["slack_webhook"] = strings.TrimSpace(*input.SlackWebhook)
	}

	if len(updates) == 0 {
		return nil, apperr.Validation("No valid fields to update")
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.gate.Project(ctx, projectID)
}

// Delete removes the project. Tasks, memberships, invitations and their
// dependents go with it through foreign key cascades.
func (s *Projects) Delete(ctx context.Context, actorID, projectID uint) error {
	if _, err := s.gate.RequireOwner(ctx, actorID, projectID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Project{}, projectID).Error; err != nil {
		return err
	}

	s.log.Info("project deleted", "project_id", projectID, "actor_id", actorID)
	return nil
}
