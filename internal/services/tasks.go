package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

const maxLabels = 20

type CreateTaskInput struct {
	ProjectID   uint
	Title       string
	Description string
	Status      string
	Priority    *string
	AssigneeID  *uint
	StartDate   *time.Time
	DueDate     *time.Time
	Labels      []string
}

// UpdateTaskInput changes only the non-nil fields. An empty Priority clears
// it; the Clear flags take precedence over the matching date.
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Priority       *string
	StartDate      *time.Time
	DueDate        *time.Time
	ClearStartDate bool
	ClearDueDate   bool
	Labels         *[]string
}

// TaskDetails is a task together with its discussion and files.
type TaskDetails struct {
	models.Task
	Labels      []string            `json:"labels"`
	Comments    []models.Comment    `json:"comments"`
	Attachments []models.Attachment `json:"attachments"`
}

type Tasks struct {
	db       *gorm.DB
	gate     *access.Gate
	emitter  realtime.Emitter
	recorder *notify.Recorder
	hooks    ChatHooks
	log      *logger.Logger

	pending sync.WaitGroup
}

func NewTasks(db *gorm.DB, gate *access.Gate, emitter realtime.Emitter, recorder *notify.Recorder, hooks ChatHooks, log *logger.Logger) *Tasks {
	return &Tasks{
		db:       db,
		gate:     gate,
		emitter:  emitter,
		recorder: recorder,
		hooks:    hooks,
		log:      log.Named("tasks"),
	}
}

// checkAssignee is the single place the assignee rule is enforced: an
// assignee must be a member of the task's project.
func (s *Tasks) checkAssignee(ctx context.Context, projectID uint, assigneeID *uint) error {
	if assigneeID == nil {
		return nil
	}

	member, err := s.gate.IsMember(ctx, *assigneeID, projectID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Validation("Assignee must be a member of the project")
	}

	return nil
}

func validateStatus(status string) error {
	if !types.IsValidTaskStatus(status) {
		return apperr.Validation(fmt.Sprintf("Status must be one of: %s", strings.Join(types.TaskStatuses, ", ")))
	}
	return nil
}

func normalizePriority(priority *string) (*string, error) {
	if priority == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*priority)
	if trimmed == "" {
		return nil, nil
	}
	if !types.IsValidPriority(trimmed) {
		return nil, apperr.Validation("Priority must be one of: Low, Medium, High")
	}
	return &trimmed, nil
}

func validateDates(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return apperr.Validation("Due date cannot be before start date")
	}
	return nil
}

func cleanLabels(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if len(out) > maxLabels {
		return nil, apperr.Validation(fmt.Sprintf("A task can have at most %d labels", maxLabels))
	}
	return out, nil
}

// Create always emits task_created on the project channel.
func (s *Tasks) Create(ctx context.Context, actor Actor, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	if err := validateStatus(input.Status); err != nil {
		return nil, err
	}
	priority, err := normalizePriority(input.Priority)
	if err != nil {
		return nil, err
	}
	if err := validateDates(input.StartDate, input.DueDate); err != nil {
		return nil, err
	}
	labels, err := cleanLabels(input.Labels)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.RequireMember(ctx, actor.ID, input.ProjectID); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, input.ProjectID, input.AssigneeID); err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:   input.ProjectID,
		CreatorID:   actor.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      input.Status,
		Priority:    priority,
		AssigneeID:  input.AssigneeID,
		StartDate:   input.StartDate,
		DueDate:     input.DueDate,
		Labels:      models.EncodeLabels(labels),
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}

	created, err := s.load(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(realtime.ProjectChannel(created.ProjectID), types.EventTaskCreated, created)
	s.notifyAssignee(ctx, actor, created, nil)

	return created, nil
}

func (s *Tasks) ListByProject(ctx context.Context, actorID, projectID uint) ([]models.Task, error) {
	if _, err := s.gate.RequireMember(ctx, actorID, projectID); err != nil {
		return nil, err
	}

	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Preload("Assignee").
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error

	return tasks, err
}

func (s *Tasks) Details(ctx context.Context, actorID, taskID uint) (*TaskDetails, error) {
	if _, err := s.gate.RequireTaskMember(ctx, actorID, taskID); err != nil {
		return nil, err
	}

	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	details := TaskDetails{
		Task:        *task,
		Labels:      task.LabelList(),
		Comments:    []models.Comment{},
		Attachments: []models.Attachment{},
	}

	db := s.db.WithContext(ctx)
	if err := db.Preload("Author").Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&details.Comments).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Uploader").Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&details.Attachments).Error; err != nil {
		return nil, err
	}

	return &details, nil
}

// UpdateStatus moves a task to another column and, when assigneeID is
// given, reassigns it in the same write.
func (s *Tasks) UpdateStatus(ctx context.Context, actor Actor, taskID uint, status string, assigneeID *uint) (*models.Task, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}

	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": status}
	if assigneeID != nil {
		if err := s.checkAssignee(ctx, task.ProjectID, assigneeID); err != nil {
			return nil, err
		}
		updates["assignee_id"] = *assigneeID
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(realtime.ProjectChannel(updated.ProjectID), types.EventTaskUpdated, updated)
	s.notifyAssignee(ctx, actor, updated, task.AssigneeID)

	if task.Status != types.StatusDone && updated.Status == types.StatusDone {
		s.announceCompletion(ctx, actor, *updated)
	}

	return updated, nil
}

// Assign sets or clears the assignee. The status is left untouched.
func (s *Tasks) Assign(ctx context.Context, actor Actor, taskID uint, assigneeID *uint) (*models.Task, error) {
	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.checkAssignee(ctx, task.ProjectID, assigneeID); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(task).Update("assignee_id", assigneeID).Error; err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(realtime.ProjectChannel(updated.ProjectID), types.EventTaskUpdated, updated)
	s.notifyAssignee(ctx, actor, updated, task.AssigneeID)

	return updated, nil
}

func (s *Tasks) Update(ctx context.Context, actor Actor, taskID uint, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperr.Validation("Title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		priority, err := normalizePriority(input.Priority)
		if err != nil {
			return nil, err
		}
		updates["priority"] = priority
	}

	start, due := task.StartDate, task.DueDate
	switch {
	case input.ClearStartDate:
		start = nil
		updates["start_date"] = nil
	case input.StartDate != nil:
		start = input.StartDate
		updates["start_date"] = input.StartDate
	}
	switch {
	case input.ClearDueDate:
		due = nil
		updates["due_date"] = nil
		updates["reminder_sent_at"] = nil
	case input.DueDate != nil:
		due = input.DueDate
		updates["due_date"] = input.DueDate
		updates["reminder_sent_at"] = nil
	}
	if err := validateDates(start, due); err != nil {
		return nil, err
	}

	if input.Labels != nil {
		labels, err := cleanLabels(*input.Labels)
		if err != nil {
			return nil, err
		}
		updates["labels"] = models.EncodeLabels(labels)
	}

	if len(updates) == 0 {
		return nil, apperr.Validation("No valid fields to update")
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(realtime.ProjectChannel(updated.ProjectID), types.EventTaskUpdated, updated)
	return updated, nil
}

func (s *Tasks) Delete(ctx context.Context, actor Actor, taskID uint) error {
	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Task{}, task.ID).Error; err != nil {
		return err
	}

	s.emitter.Emit(realtime.ProjectChannel(task.ProjectID), types.EventTaskDeleted, types.TaskDeletedPayload{
		ID:        task.ID,
		ProjectID: task.ProjectID,
	})

	return nil
}

func (s *Tasks) load(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("Assignee").First(&task, taskID).Error; err != nil {
		return nil, translate(err, "Task not found")
	}
	return &task, nil
}

// notifyAssignee records a task_assigned notification when the assignee
// changed to someone other than the actor.
func (s *Tasks) notifyAssignee(ctx context.Context, actor Actor, task *models.Task, previous *uint) {
	if task.AssigneeID == nil || *task.AssigneeID == actor.ID {
		return
	}
	if previous != nil && *previous == *task.AssigneeID {
		return
	}

	s.recorder.Record(ctx, notify.Entry{
		RecipientID: *task.AssigneeID,
		SenderID:    uintPtr(actor.ID),
		Type:        models.NotificationTaskAssigned,
		Content:     fmt.Sprintf("%s assigned you to \"%s\"", actor.Username, task.Title),
		ProjectID:   uintPtr(task.ProjectID),
		TaskID:      uintPtr(task.ID),
	})
}

func (s *Tasks) announceCompletion(ctx context.Context, actor Actor, task models.Task) {
	if s.hooks == nil {
		return
	}

	project, err := s.gate.Project(ctx, task.ProjectID)
	if err != nil {
		s.log.Warn("cannot load project for chat hooks", "project_id", task.ProjectID, "error", err)
		return
	}
	if project.DiscordWebhook == "" && project.SlackWebhook == "" {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*hookTimeout)
		defer cancel()

		if err := s.hooks.TaskCompleted(ctx, *project, task, actor.Username); err != nil {
			s.log.Warn("chat hook delivery failed", "project_id", project.ID, "task_id", task.ID, "error", err)
		}
	}()
}

// Wait blocks until in-flight chat hook deliveries have finished.
func (s *Tasks) Wait() {
	s.pending.Wait()
}
