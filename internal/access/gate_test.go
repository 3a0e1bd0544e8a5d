package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/testutil"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func TestGate_OwnerAndMember(t *testing.T) {
	db := testutil.NewDB(t)
	gate := NewGate(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	member := testutil.CreateUser(t, db, "member")
	stranger := testutil.CreateUser(t, db, "stranger")

	project := testutil.CreateProject(t, db, owner, "Launch")
	testutil.AddMember(t, db, project, member, models.RoleMember)

	t.Run("owner passes both checks", func(t *testing.T) {
		_, err := gate.RequireOwner(ctx, owner.ID, project.ID)
		assert.NoError(t, err)

		_, err = gate.RequireMember(ctx, owner.ID, project.ID)
		assert.NoError(t, err)
	})

	t.Run("member is not owner", func(t *testing.T) {
		_, err := gate.RequireMember(ctx, member.ID, project.ID)
		assert.NoError(t, err)

		_, err = gate.RequireOwner(ctx, member.ID, project.ID)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := gate.RequireMember(ctx, stranger.ID, project.ID)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("missing project is not found", func(t *testing.T) {
		_, err := gate.RequireMember(ctx, owner.ID, project.ID+100)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = gate.RequireOwner(ctx, owner.ID, project.ID+100)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestGate_RequireTaskMember(t *testing.T) {
	db := testutil.NewDB(t)
	gate := NewGate(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	stranger := testutil.CreateUser(t, db, "stranger")
	project := testutil.CreateProject(t, db, owner, "Launch")
	task := testutil.CreateTask(t, db, project, owner, "Write copy", types.StatusTodo)

	got, err := gate.RequireTaskMember(ctx, owner.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ProjectID)

	_, err = gate.RequireTaskMember(ctx, stranger.ID, task.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = gate.RequireTaskMember(ctx, owner.ID, task.ID+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
