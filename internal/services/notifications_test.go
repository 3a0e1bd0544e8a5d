package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/testutil"
)

func TestNotifications_ListAndMarkRead(t *testing.T) {
	f := newFixture(t)
	notifications := NewNotifications(f.db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	for _, content := range []string{"first", "second", "third"} {
		require.NotNil(t, f.recorder.Record(ctx, notify.Entry{
			RecipientID: alice.ID,
			SenderID:    &bob.ID,
			Type:        models.NotificationMention,
			Content:     content,
		}))
	}
	require.NotNil(t, f.recorder.Record(ctx, notify.Entry{RecipientID: bob.ID, Type: models.NotificationDueSoon, Content: "other"}))

	list, err := notifications.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Content)
	assert.Equal(t, "first", list[2].Content)
	require.NotNil(t, list[0].Sender)
	assert.Equal(t, "bob", list[0].Sender.Username)
	assert.False(t, list[0].IsRead)

	marked, err := notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)

	marked, err = notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, marked)

	list, err = notifications.List(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)

	empty, err := notifications.List(ctx, alice.ID+100)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
