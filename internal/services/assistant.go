package services

import (
	"context"
	"strings"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/integrations/ai"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

const (
	maxPromptLength  = 2000
	maxContextTasks  = 200
	contextDateStamp = "2006-01-02"
)

type Assistant struct {
	db        *gorm.DB
	gate      *access.Gate
	assistant *ai.Assistant
	log       *logger.Logger
}

func NewAssistant(db *gorm.DB, gate *access.Gate, assistant *ai.Assistant, log *logger.Logger) *Assistant {
	return &Assistant{db: db, gate: gate, assistant: assistant, log: log.Named("assistant")}
}

func (s *Assistant) GenerateTasks(ctx context.Context, actorID, projectID uint, goal string) ([]string, error) {
	goal, err := cleanPrompt(goal, "Goal")
	if err != nil {
		return nil, err
	}

	pc, err := s.projectContext(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}

	titles, err := s.assistant.SuggestTasks(ctx, goal, *pc)
	if err != nil {
		s.log.Error("task suggestion failed", "project_id", projectID, "error", err)
		return nil, err
	}

	return titles, nil
}

func (s *Assistant) Copilot(ctx context.Context, actorID, projectID uint, message string) (string, error) {
	message, err := cleanPrompt(message, "Message")
	if err != nil {
		return "", err
	}

	pc, err := s.projectContext(ctx, actorID, projectID)
	if err != nil {
		return "", err
	}

	reply, err := s.assistant.Answer(ctx, message, *pc)
	if err != nil {
		s.log.Error("copilot answer failed", "project_id", projectID, "error", err)
		return "", err
	}

	return reply, nil
}

func cleanPrompt(text, field string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.Validation(field + " is required")
	}
	if len(text) > maxPromptLength {
		return "", apperr.Validation(field + " is too long")
	}
	return text, nil
}

// projectContext serializes the members and tasks the model may reason
// about. Membership is checked first.
func (s *Assistant) projectContext(ctx context.Context, actorID, projectID uint) (*ai.ProjectContext, error) {
	project, err := s.gate.RequireMember(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var memberships []models.ProjectMembership
	if err := db.Preload("User").Where("project_id = ?", projectID).Order("id ASC").Find(&memberships).Error; err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := db.Preload("Assignee").Where("project_id = ?", projectID).Order("created_at ASC").Limit(maxContextTasks).Find(&tasks).Error; err != nil {
		return nil, err
	}

	pc := ai.ProjectContext{
		Name:        project.Name,
		Description: project.Description,
		Members:     make([]string, 0, len(memberships)),
		Tasks:       make([]ai.TaskSummary, 0, len(tasks)),
	}

	for _, m := range memberships {
		if m.User != nil {
			pc.Members = append(pc.Members, m.User.Username)
		}
	}

	for _, t := range tasks {
		summary := ai.TaskSummary{Title: t.Title, Status: t.Status}
		if t.Assignee != nil {
			summary.Assignee = t.Assignee.Username
		}
		if t.DueDate != nil {
			summary.DueDate = t.DueDate.Format(contextDateStamp)
		}
		pc.Tasks = append(pc.Tasks, summary)
	}

	return &pc, nil
}
