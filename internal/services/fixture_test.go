package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/integrations/github"
	"github.com/taskboard-dev/taskboard/internal/integrations/storage"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	emitter  *testutil.Emitter
	gate     *access.Gate
	recorder *notify.Recorder
	hooks    *fakeHooks
	store    *fakeStore
	checker  *fakeChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	emitter := &testutil.Emitter{}

	return &fixture{
		db:       db,
		emitter:  emitter,
		gate:     access.NewGate(db),
		recorder: notify.NewRecorder(db, emitter, logger.NewNop()),
		hooks:    &fakeHooks{calls: make(chan string, 4)},
		store:    &fakeStore{},
		checker:  &fakeChecker{status: github.StatusOpen},
	}
}

func (f *fixture) users() *Users {
	return NewUsers(f.db, auth.NewTokenManager("test-secret", time.Hour), logger.NewNop())
}

func (f *fixture) projects() *Projects {
	return NewProjects(f.db, f.gate, logger.NewNop())
}

func (f *fixture) tasks() *Tasks {
	return NewTasks(f.db, f.gate, f.emitter, f.recorder, f.hooks, logger.NewNop())
}

func (f *fixture) invitations() *Invitations {
	return NewInvitations(f.db, f.gate, f.emitter, f.recorder, logger.NewNop())
}

func (f *fixture) comments() *Comments {
	return NewComments(f.db, f.gate, f.emitter, f.recorder, logger.NewNop())
}

func (f *fixture) attachments() *Attachments {
	return NewAttachments(f.db, f.gate, f.store, f.emitter, logger.NewNop())
}

func (f *fixture) githubLinks() *GitHubLinks {
	return NewGitHubLinks(f.db, f.gate, f.checker, f.emitter, logger.NewNop())
}

func (f *fixture) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	if err := f.db.Where("recipient_id = ?", userID).Order("id ASC").Find(&out).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	return out
}

func actorOf(user models.User) Actor {
	return Actor{ID: user.ID, Username: user.Username, Email: user.Email}
}

type fakeHooks struct {
	calls chan string
	err   error
}

func (h *fakeHooks) TaskCompleted(_ context.Context, _ models.Project, task models.Task, _ string) error {
	h.calls <- task.Title
	return h.err
}

type fakeStore struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr error
}

func (s *fakeStore) PresignUpload(_ context.Context, key, _ string) (*storage.UploadSlot, error) {
	return &storage.UploadSlot{URL: "https://blob.test/" + key + "?sig=1", Key: key, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (s *fakeStore) PublicURL(key string) string {
	return "https://blob.test/" + key
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return s.deleteErr
}

type fakeChecker struct {
	mu     sync.Mutex
	status github.PRStatus
	calls  int
}

func (c *fakeChecker) PullRequestStatus(context.Context, int64, string) github.PRStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.status
}
