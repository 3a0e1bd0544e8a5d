package services

import (
	"context"

	"github.com/taskboard-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

const notificationPageSize = 100

type Notifications struct {
	db *gorm.DB
}

func NewNotifications(db *gorm.DB) *Notifications {
	return &Notifications{db: db}
}

// List returns the most recent notifications for userID, newest first.
func (s *Notifications) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	notifications := []models.Notification{}

	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("recipient_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(notificationPageSize).
		Find(&notifications).Error

	return notifications, err
}

func (s *Notifications) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)

	return result.RowsAffected, result.Error
}
