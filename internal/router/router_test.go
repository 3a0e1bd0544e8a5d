package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/integrations/ai"
	"github.com/taskboard-dev/taskboard/internal/integrations/github"
	"github.com/taskboard-dev/taskboard/internal/integrations/storage"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/ratelimit"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/services"
	"github.com/taskboard-dev/taskboard/internal/testutil"
	"github.com/taskboard-dev/taskboard/internal/types"
)

type stubCompleter struct{}

func (stubCompleter) Complete(context.Context, string, string) (string, error) {
	return `["Book venue", "Send invites"]`, nil
}

type countingLimiter struct {
	limit int
	seen  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	l.seen[key]++
	if l.seen[key] > l.limit {
		return &ratelimit.Result{Allowed: false, RetryAfter: 30 * time.Second, ResetAt: time.Now().Add(30 * time.Second)}, nil
	}
	return &ratelimit.Result{Allowed: true, Remaining: l.limit - l.seen[key], ResetAt: time.Now().Add(time.Minute)}, nil
}

type testServer struct {
	t   *testing.T
	url string
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	log := logger.NewNop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := realtime.NewHub(log, nil)
	go hub.Run(hubCtx)

	tokens := auth.NewTokenManager("router-test-secret", time.Hour)
	gate := access.NewGate(db)
	recorder := notify.NewRecorder(db, hub, log)

	engine := NewRouter(Deps{
		DB:             db,
		Log:            log,
		AllowedOrigins: types.AllowedOrigins("http://localhost:3000", ""),
		ClientURL:      "http://localhost:3000",
		Tokens:         tokens,
		States:         auth.NewStateSigner("router-test-secret"),
		OAuth:          auth.DisabledOAuth{},
		GitHubApp:      github.Disabled{},
		Hub:            hub,
		Gate:           gate,
		Limiter:        &countingLimiter{limit: 3, seen: map[string]int{}},
		AIRequestLimit: 3,
		Users:          services.NewUsers(db, tokens, log),
		Projects:       services.NewProjects(db, gate, log),
		Tasks:          services.NewTasks(db, gate, hub, recorder, services.NewChatNotifier(log), log),
		Invitations:    services.NewInvitations(db, gate, hub, recorder, log),
		Comments:       services.NewComments(db, gate, hub, recorder, log),
		Attachments:    services.NewAttachments(db, gate, storage.Disabled{}, hub, log),
		Notifications:  services.NewNotifications(db),
		Assistant:      services.NewAssistant(db, gate, ai.NewAssistant(stubCompleter{}), log),
		GitHubLinks:    services.NewGitHubLinks(db, gate, github.Disabled{}, hub, log),
	})

	server := httptest.NewServer(engine)
	t.Cleanup(func() {
		stopHub()
		hub.Wait()
		server.Close()
	})

	return &testServer{t: t, url: server.URL, hub: hub}
}

func (s *testServer) call(method, path, token string, body, out interface{}) int {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

// signup registers username and returns a session token.
func (s *testServer) signup(username string) (uint, string) {
	s.t.Helper()

	var user struct {
		ID uint `json:"id"`
	}
	code := s.call(http.MethodPost, "/api/users/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	}, &user)
	require.Equal(s.t, http.StatusCreated, code)

	var login struct {
		Token string `json:"token"`
	}
	code = s.call(http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": "correct-horse",
	}, &login)
	require.Equal(s.t, http.StatusOK, code)
	require.NotEmpty(s.t, login.Token)

	return user.ID, login.Token
}

func (s *testServer) dial(token string) *websocket.Conn {
	s.t.Helper()

	before := s.hub.ClientCount()
	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(s.t, func() bool { return s.hub.ClientCount() > before }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func (s *testServer) join(conn *websocket.Conn, projectID uint) {
	s.t.Helper()

	channel := realtime.ProjectChannel(projectID)
	before := s.hub.ChannelSize(channel)
	require.NoError(s.t, conn.WriteJSON(map[string]interface{}{"type": types.MessageJoinProject, "project_id": projectID}))
	require.Eventually(s.t, func() bool { return s.hub.ChannelSize(channel) > before }, 2*time.Second, 10*time.Millisecond)
}

// expectEvent reads frames until one named event arrives.
func expectEvent(t *testing.T, conn *websocket.Conn, event string) realtime.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var envelope realtime.Envelope
		require.NoError(t, conn.ReadJSON(&envelope), "waiting for %s", event)
		if envelope.Event == event {
			return envelope
		}
	}
}

// expectSilence asserts no frame named event arrives within a short window.
func expectSilence(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	for {
		var envelope realtime.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			return
		}
		assert.NotEqual(t, event, envelope.Event, "unexpected %s on %s", event, envelope.Channel)
	}
}

func TestLaunchScenario(t *testing.T) {
	s := newTestServer(t)

	aliceID, alice := s.signup("alice")
	bobID, bob := s.signup("bob")
	_, mallory := s.signup("mallory")

	var project struct {
		ID      uint `json:"id"`
		OwnerID uint `json:"owner_id"`
	}
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/api/projects", alice, map[string]string{"name": "Launch"}, &project))
	assert.Equal(t, aliceID, project.OwnerID)

	aliceWS := s.dial(alice)
	bobWS := s.dial(bob)
	malloryWS := s.dial(mallory)
	s.join(aliceWS, project.ID)

	// A non-member's join request is ignored.
	require.NoError(t, malloryWS.WriteJSON(map[string]interface{}{"type": types.MessageJoinProject, "project_id": project.ID}))

	// Invitation reaches bob on his user channel only.
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, fmt.Sprintf("/api/projects/%d/invitations", project.ID), alice, map[string]string{"email": "bob@example.com"}, nil))
	invite := expectEvent(t, bobWS, types.EventNewInvitation)
	assert.Equal(t, realtime.UserChannel(bobID), invite.Channel)

	var pending []struct {
		ID uint `json:"id"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/api/invitations", bob, nil, &pending))
	require.Len(t, pending, 1)

	require.Equal(t, http.StatusOK, s.call(http.MethodPost, fmt.Sprintf("/api/invitations/%d/accept", pending[0].ID), bob, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodPost, fmt.Sprintf("/api/invitations/%d/decline", pending[0].ID), bob, nil, nil))
	s.join(bobWS, project.ID)

	var task struct {
		ID         uint   `json:"id"`
		Status     string `json:"status"`
		AssigneeID *uint  `json:"assignee_id"`
	}
	code := s.call(http.MethodPost, "/api/tasks", alice, map[string]interface{}{
		"title":       "Write copy",
		"projectId":   project.ID,
		"status":      types.StatusTodo,
		"assignee_id": bobID,
		"due_date":    "2030-01-15",
	}, &task)
	require.Equal(t, http.StatusCreated, code)

	created := expectEvent(t, aliceWS, types.EventTaskCreated)
	assert.Equal(t, realtime.ProjectChannel(project.ID), created.Channel)
	expectEvent(t, bobWS, types.EventTaskCreated)
	expectEvent(t, bobWS, types.EventNewNotification)
	expectSilence(t, malloryWS, types.EventTaskCreated)

	var tasks []struct {
		ID uint `json:"id"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks", project.ID), bob, nil, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	require.Equal(t, http.StatusOK, s.call(http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", task.ID), bob, map[string]string{"status": types.StatusDone}, &task))
	assert.Equal(t, types.StatusDone, task.Status)
	updated := expectEvent(t, aliceWS, types.EventTaskUpdated)
	assert.Contains(t, string(updated.Payload), types.StatusDone)

	assert.Equal(t, http.StatusBadRequest, s.call(http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", task.ID), bob, map[string]string{"status": "Blocked"}, nil))

	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, fmt.Sprintf("/api/tasks/%d/comments", task.ID), bob, map[string]string{"content": "@alice shipped"}, nil))
	expectEvent(t, aliceWS, types.EventNewComment)
	mention := expectEvent(t, aliceWS, types.EventNewNotification)
	assert.Equal(t, realtime.UserChannel(aliceID), mention.Channel)

	var notifications []struct {
		Type string `json:"type"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/api/notifications", alice, nil, &notifications))
	kinds := make([]string, 0, len(notifications))
	for _, n := range notifications {
		kinds = append(kinds, n.Type)
	}
	assert.Contains(t, kinds, "mention")
	assert.Contains(t, kinds, "invitation_accepted")

	var read struct {
		Updated int64 `json:"updated"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodPut, "/api/notifications/read", alice, nil, &read))
	assert.Equal(t, int64(len(notifications)), read.Updated)

	// Outsiders are kept out of the project.
	assert.Equal(t, http.StatusForbidden, s.call(http.MethodGet, fmt.Sprintf("/api/projects/%d", project.ID), mallory, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(http.MethodGet, fmt.Sprintf("/api/tasks/%d/details", task.ID), mallory, nil, nil))

	// Only the owner deletes.
	assert.Equal(t, http.StatusForbidden, s.call(http.MethodDelete, fmt.Sprintf("/api/projects/%d", project.ID), bob, nil, nil))
	assert.Equal(t, http.StatusNoContent, s.call(http.MethodDelete, fmt.Sprintf("/api/projects/%d", project.ID), alice, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodGet, fmt.Sprintf("/api/tasks/%d/details", task.ID), bob, nil, nil))
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodGet, "/api/projects", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodGet, "/api/users/me", "not-a-token", nil, nil))

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/api/health", "", nil, &health))
	assert.Equal(t, "ok", health.Database)

	_, token := s.signup("alice")
	var me struct {
		Username string `json:"username"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/api/users/me", token, nil, &me))
	assert.Equal(t, "alice", me.Username)

	// Query tokens are only honoured on the WebSocket upgrade.
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodGet, "/api/users/me?token="+token, "", nil, nil))
	conn := s.dial(token)
	conn.Close()

	assert.Equal(t, http.StatusBadRequest, s.call(http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "correct-horse",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, nil))
}

func TestAIRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.signup("alice")

	var project struct {
		ID uint `json:"id"`
	}
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/api/projects", alice, map[string]string{"name": "Launch"}, &project))

	var suggestions struct {
		SuggestedTasks []string `json:"suggestedTasks"`
	}
	body := map[string]interface{}{"projectId": project.ID, "goal": "Plan the launch party"}
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/api/ai/generate-tasks", alice, body, &suggestions))
	assert.Equal(t, []string{"Book venue", "Send invites"}, suggestions.SuggestedTasks)

	var reply struct {
		Reply string `json:"reply"`
	}
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/api/ai/copilot", alice, map[string]interface{}{"projectId": project.ID, "message": "Status?"}, &reply))
	assert.NotEmpty(t, reply.Reply)

	assert.Equal(t, http.StatusOK, s.call(http.MethodPost, "/api/ai/generate-tasks", alice, body, nil))
	assert.Equal(t, http.StatusTooManyRequests, s.call(http.MethodPost, "/api/ai/generate-tasks", alice, body, nil))
}

func TestDisabledIntegrations(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.signup("alice")

	assert.Equal(t, http.StatusNotFound, s.call(http.MethodGet, "/api/users/oauth/google", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodGet, "/api/integrations/github/auth", alice, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodPost, "/api/integrations/github/webhook", "", map[string]string{}, nil))
	assert.Equal(t, http.StatusTemporaryRedirect, s.call(http.MethodGet, "/api/integrations/github/callback?state=bogus&installation_id=1", "", nil, nil))
}
