package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/testutil"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func TestRecorder_PersistsThenEmits(t *testing.T) {
	db := testutil.NewDB(t)
	emitter := &testutil.Emitter{}
	recorder := NewRecorder(db, emitter, logger.NewNop())

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	project := testutil.CreateProject(t, db, alice, "Launch")

	notification := recorder.Record(context.Background(), Entry{
		RecipientID: bob.ID,
		SenderID:    &alice.ID,
		Type:        models.NotificationInvitation,
		Content:     "alice invited you to Launch",
		ProjectID:   &project.ID,
	})
	require.NotNil(t, notification)
	assert.NotZero(t, notification.ID)
	assert.False(t, notification.IsRead)

	var stored []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", bob.ID).Find(&stored).Error)
	assert.Len(t, stored, 1)

	events := emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.UserChannel(bob.ID), events[0].Channel)
	assert.Equal(t, types.EventNewNotification, events[0].Name)
}

func TestRecorder_SwallowsPersistFailure(t *testing.T) {
	db := testutil.NewDB(t)
	emitter := &testutil.Emitter{}
	recorder := NewRecorder(db, emitter, logger.NewNop())

	notification := recorder.Record(context.Background(), Entry{
		RecipientID: 9999,
		Type:        models.NotificationMention,
		Content:     "nobody is home",
	})

	assert.Nil(t, notification)
	assert.Empty(t, emitter.Events())
}
