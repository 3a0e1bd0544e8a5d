package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/testutil"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func TestProjects_CreateMakesOwnerAMember(t *testing.T) {
	f := newFixture(t)
	projects := f.projects()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")

	project, err := projects.Create(ctx, actorOf(alice), ProjectInput{Name: " Launch ", Description: "Q3 site"})
	require.NoError(t, err)
	assert.Equal(t, "Launch", project.Name)
	assert.Equal(t, alice.ID, project.OwnerID)

	members, err := projects.Members(ctx, alice.ID, project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, models.RoleOwner, members[0].Role)
	assert.Equal(t, "alice", members[0].Username)

	list, err := projects.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, project.ID, list[0].ID)

	_, err = projects.Create(ctx, actorOf(alice), ProjectInput{Name: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestProjects_NonOwnerCannotDelete(t *testing.T) {
	f := newFixture(t)
	projects := f.projects()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	project := testutil.CreateProject(t, f.db, alice, "Launch")
	testutil.AddMember(t, f.db, project, bob, models.RoleMember)
	task := testutil.CreateTask(t, f.db, project, alice, "Write copy", types.StatusTodo)

	err := projects.Delete(ctx, bob.ID, project.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	var count int64
	require.NoError(t, f.db.Model(&models.Project{}).Where("id = ?", project.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, f.db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProjects_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	projects := f.projects()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	project := testutil.CreateProject(t, f.db, alice, "Launch")
	task := testutil.CreateTask(t, f.db, project, alice, "Write copy", types.StatusTodo)
	require.NoError(t, f.db.Create(&models.Comment{TaskID: task.ID, AuthorID: alice.ID, Content: "hi"}).Error)

	bob := testutil.CreateUser(t, f.db, "bob")
	recorded := f.recorder.Record(ctx, notify.Entry{
		RecipientID: bob.ID,
		SenderID:    &alice.ID,
		Type:        models.NotificationTaskAssigned,
		Content:     "alice assigned you to \"Write copy\"",
		ProjectID:   &project.ID,
		TaskID:      &task.ID,
	})
	require.NotNil(t, recorded)

	require.NoError(t, projects.Delete(ctx, alice.ID, project.ID))

	for _, model := range []interface{}{&models.Project{}, &models.Task{}, &models.ProjectMembership{}, &models.Comment{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}

	history := f.notificationsFor(t, bob.ID)
	require.Len(t, history, 1)
	assert.Equal(t, recorded.ID, history[0].ID)
	assert.Nil(t, history[0].ProjectID)
	assert.Nil(t, history[0].TaskID)

	err := projects.Delete(ctx, alice.ID, project.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProjects_UpdateAndGet(t *testing.T) {
	f := newFixture(t)
	projects := f.projects()
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")
	project := testutil.CreateProject(t, f.db, alice, "Launch")
	testutil.AddMember(t, f.db, project, bob, models.RoleMember)

	name := "Launch v2"
	hook := "https://discord.test/hook"
	updated, err := projects.Update(ctx, alice.ID, project.ID, ProjectUpdate{Name: &name, DiscordWebhook: &hook})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Name)
	assert.Equal(t, hook, updated.DiscordWebhook)

	_, err = projects.Update(ctx, bob.ID, project.ID, ProjectUpdate{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = projects.Update(ctx, alice.ID, project.ID, ProjectUpdate{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := projects.Get(ctx, bob.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", got.Name)

	_, err = projects.Get(ctx, carol.ID, project.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
