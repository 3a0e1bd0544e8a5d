// Package notify persists user-addressed notifications and pushes them to the
// recipient's user channel.
package notify

import (
	"context"

	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

type Entry struct {
	RecipientID uint
	SenderID    *uint
	Type        string
	Content     string
	ProjectID   *uint
	TaskID      *uint
}

type Recorder struct {
	db      *gorm.DB
	emitter realtime.Emitter
	log     *logger.Logger
}

func NewRecorder(db *gorm.DB, emitter realtime.Emitter, log *logger.Logger) *Recorder {
	return &Recorder{db: db, emitter: emitter, log: log.Named("notify")}
}

// Record never fails the caller. A persist failure is logged and yields nil.
func (r *Recorder) Record(ctx context.Context, entry Entry) *models.Notification {
	notification := models.Notification{
		RecipientID: entry.RecipientID,
		SenderID:    entry.SenderID,
		Type:        entry.Type,
		Content:     entry.Content,
		ProjectID:   entry.ProjectID,
		TaskID:      entry.TaskID,
	}

	if err := r.db.WithContext(ctx).Create(&notification).Error; err != nil {
		r.log.Error("failed to persist notification",
			"recipient_id", entry.RecipientID,
			"type", entry.Type,
			"error", err,
		)
		return nil
	}

	r.emitter.Emit(realtime.UserChannel(entry.RecipientID), types.EventNewNotification, notification)

	return &notification
}
