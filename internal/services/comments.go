package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

const maxCommentLength = 5000

// A mention is an @ that does not follow a word character, so email
// addresses in comment text are not treated as mentions.
var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])@([A-Za-z0-9_.-]+)`)

// ExtractMentions returns the distinct lower-cased usernames mentioned in
// text, in order of first appearance.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))

	for _, match := range matches {
		name := strings.ToLower(strings.TrimRight(match[1], ".-"))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

type Comments struct {
	db       *gorm.DB
	gate     *access.Gate
	emitter  realtime.Emitter
	recorder *notify.Recorder
	log      *logger.Logger
}

func NewComments(db *gorm.DB, gate *access.Gate, emitter realtime.Emitter, recorder *notify.Recorder, log *logger.Logger) *Comments {
	return &Comments{
		db:       db,
		gate:     gate,
		emitter:  emitter,
		recorder: recorder,
		log:      log.Named("comments"),
	}
}

func (s *Comments) Create(ctx context.Context, actor Actor, taskID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("Comment cannot be empty")
	}
	if len(content) > maxCommentLength {
		return nil, apperr.Validation(fmt.Sprintf("Comment cannot exceed %d characters", maxCommentLength))
	}

	task, err := s.gate.RequireTaskMember(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		TaskID:   task.ID,
		AuthorID: actor.ID,
		Content:  content,
	}

	db := s.db.WithContext(ctx)
	if err := db.Create(&comment).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		return nil, err
	}

	s.emitter.Emit(realtime.ProjectChannel(task.ProjectID), types.EventNewComment, comment)
	s.notifyMentions(ctx, actor, task, content)

	return &comment, nil
}

// notifyMentions raises one notification per distinct mentioned project
// member other than the author. Mentions of non-members are ignored.
func (s *Comments) notifyMentions(ctx context.Context, actor Actor, task *models.Task, content string) {
	names := ExtractMentions(content)
	if len(names) == 0 {
		return
	}

	var recipients []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN project_memberships ON project_memberships.user_id = users.id AND project_memberships.project_id = ?", task.ProjectID).
		Where("LOWER(users.username) IN ?", names).
		Where("users.id <> ?", actor.ID).
		Find(&recipients).Error
	if err != nil {
		s.log.Error("failed to resolve mentions", "task_id", task.ID, "error", err)
		return
	}

	for _, recipient := range recipients {
		s.recorder.Record(ctx, notify.Entry{
			RecipientID: recipient.ID,
			SenderID:    uintPtr(actor.ID),
			Type:        models.NotificationMention,
			Content:     fmt.Sprintf("%s mentioned you on \"%s\"", actor.Username, task.Title),
			ProjectID:   uintPtr(task.ProjectID),
			TaskID:      uintPtr(task.ID),
		})
	}
}
