package services

import (
	"context"
	"fmt"
	"time"

	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

const reminderWindow = 24 * time.Hour

// Reminders notifies assignees of open tasks that fall due soon, once per
// due date.
type Reminders struct {
	db       *gorm.DB
	recorder *notify.Recorder
	log      *logger.Logger
	now      func() time.Time
}

func NewReminders(db *gorm.DB, recorder *notify.Recorder, log *logger.Logger) *Reminders {
	return &Reminders{db: db, recorder: recorder, log: log.Named("reminders"), now: time.Now}
}

func (s *Reminders) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now()

	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("assignee_id IS NOT NULL AND reminder_sent_at IS NULL AND status <> ?", types.StatusDone).
		Where("due_date >= ? AND due_date <= ?", now, now.Add(reminderWindow)).
		Find(&tasks).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, task := range tasks {
		// Claim the reminder first so concurrent instances do not both send.
		result := s.db.WithContext(ctx).
			Model(&models.Task{}).
			Where("id = ? AND reminder_sent_at IS NULL", task.ID).
			Update("reminder_sent_at", now)
		if result.Error != nil {
			s.log.Error("failed to claim reminder", "task_id", task.ID, "error", result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}

		s.recorder.Record(ctx, notify.Entry{
			RecipientID: *task.AssigneeID,
			Type:        models.NotificationDueSoon,
			Content:     fmt.Sprintf("\"%s\" is due %s", task.Title, task.DueDate.Format("Jan 2 15:04 MST")),
			ProjectID:   uintPtr(task.ProjectID),
			TaskID:      uintPtr(task.ID),
		})
		sent++
	}

	if sent > 0 {
		s.log.Info("sent due date reminders", "count", sent)
	}

	return sent, nil
}
