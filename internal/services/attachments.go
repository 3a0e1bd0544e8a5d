package services

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/integrations/storage"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

const (
	maxFileNameLength = 100
	maxFileSize       = 50 << 20
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type ConfirmUploadInput struct {
	FileName string
	FilePath string
	FileType string
	FileSize int64
}

type Attachments struct {
	db      *gorm.DB
	gate    *access.Gate
	store   storage.BlobStore
	emitter realtime.Emitter
	log     *logger.Logger
	now     func() time.Time
}

func NewAttachments(db *gorm.DB, gate *access.Gate, store storage.BlobStore, emitter realtime.Emitter, log *logger.Logger) *Attachments {
	return &Attachments{
		db:      db,
		gate:    gate,
		store:   store,
		emitter: emitter,
		log:     log.Named("attachments"),
		now:     time.Now,
	}
}

// SanitizeFileName keeps a file name safe to embed in an object key.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > maxFileNameLength {
		name = name[len(name)-maxFileNameLength:]
	}
	if name == "" {
		return "file"
	}
	return name
}

func uploadPrefix(userID, taskID uint) string {
	return fmt.Sprintf("%d/%d/", userID, taskID)
}

// RequestUpload signs an upload slot under <user>/<task>/<millis>-<name>.
// Nothing is written to the store until Confirm.
func (s *Attachments) RequestUpload(ctx context.Context, actor Actor, taskID uint, fileName, fileType string) (*storage.UploadSlot, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, apperr.Validation("File name is required")
	}

	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%d-%s", uploadPrefix(actor.ID, task.ID), s.now().UnixMilli(), SanitizeFileName(fileName))

	return s.store.PresignUpload(ctx, key, fileType)
}

func (s *Attachments) Confirm(ctx context.Context, actor Actor, taskID uint, input ConfirmUploadInput) (*models.Attachment, error) {
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, apperr.Validation("File name is required")
	}
	if input.FileSize < 0 || input.FileSize > maxFileSize {
		return nil, apperr.Validation("Invalid file size")
	}

	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	prefix := uploadPrefix(actor.ID, task.ID)
	if !strings.HasPrefix(input.FilePath, prefix) || strings.Contains(input.FilePath, "..") || len(input.FilePath) == len(prefix) {
		return nil, apperr.Validation("File path does not belong to this upload")
	}

	attachment := models.Attachment{
		TaskID:     task.ID,
		UploaderID: actor.ID,
		FileName:   fileName,
		FilePath:   input.FilePath,
		FileURL:    s.store.PublicURL(input.FilePath),
		FileType:   strings.TrimSpace(input.FileType),
		FileSize:   input.FileSize,
	}

	db := s.db.WithContext(ctx)
	if err := db.Create(&attachment).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Uploader").First(&attachment, attachment.ID).Error; err != nil {
		return nil, err
	}

	s.emitter.Emit(realtime.ProjectChannel(task.ProjectID), types.EventAttachmentAdded, attachment)
	return &attachment, nil
}

// Delete is allowed for the uploader only. The blob is removed first on a
// best-effort basis; a storage failure is logged and the row still goes.
func (s *Attachments) Delete(ctx context.Context, actor Actor, attachmentID uint) error {
	var attachment models.Attachment
	if err := s.db.WithContext(ctx).First(&attachment, attachmentID).Error; err != nil {
		return translate(err, "Attachment not found")
	}

	if attachment.UploaderID != actor.ID {
		return apperr.Forbidden("Only the uploader can delete this attachment")
	}

	task, err := s.gate.Task(ctx, attachment.TaskID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, attachment.FilePath); err != nil {
		s.log.Warn("failed to delete attachment blob", "attachment_id", attachment.ID, "path", attachment.FilePath, "error", err)
	}

	if err := s.db.WithContext(ctx).Delete(&models.Attachment{}, attachment.ID).Error; err != nil {
		return err
	}

	s.emitter.Emit(realtime.ProjectChannel(task.ProjectID), types.EventAttachmentDeleted, types.AttachmentDeletedPayload{
		ID:     attachment.ID,
		TaskID: attachment.TaskID,
	})

	return nil
}
