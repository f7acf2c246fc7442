package service

import (
	"testing"
	"time"

	"Civic_Report/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationEmitNeverDeduplicates(t *testing.T) {
	e := newTestEnv(t)
	u := e.seedUser(t, model.RoleCitizen, 0)

	require.NoError(t, e.notifier.Emit(bg, u.ID, "same", nil))
	require.NoError(t, e.notifier.Emit(bg, u.ID, "same", strPtr("issue-1")))

	notes := e.notifications(t, u.ID)
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.False(t, n.Read)
	}
	count, err := e.notifier.UnreadCount(bg, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestNotificationListNewestFirst(t *testing.T) {
	e := newTestEnv(t)
	u := e.seedUser(t, model.RoleCitizen, 0)
	base := time.Now()
	for i, msg := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		e.notifier.now = func() time.Time { return at }
		require.NoError(t, e.notifier.Emit(bg, u.ID, msg, nil))
	}

	list, err := e.notifier.List(bg, u.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Message)
	assert.Equal(t, "second", list[1].Message)

	list, err = e.notifier.List(bg, u.ID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestNotificationMarkReadScopedToOwner(t *testing.T) {
	e := newTestEnv(t)
	owner := e.seedUser(t, model.RoleCitizen, 0)
	other := e.seedUser(t, model.RoleCitizen, 0)
	require.NoError(t, e.notifier.Emit(bg, owner.ID, "hello", nil))
	id := e.notifications(t, owner.ID)[0].ID

	ok, err := e.notifier.MarkRead(bg, other.ID, id)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.notifier.MarkRead(bg, owner.ID, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.notifier.MarkRead(bg, owner.ID, id)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := e.notifier.UnreadCount(bg, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// 已读的再标记一次
	ok, err = e.notifier.MarkRead(bg, owner.ID, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, e.notifications(t, owner.ID)[0].Read)

	_, err = e.notifier.MarkRead(bg, owner.ID, "")
	assert.Equal(t, 400, StatusCode(err))
}

func TestNotificationEmitFailureIsReported(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.Migrator().DropTable(&model.Notification{}))

	err := e.notifier.Emit(bg, "u1", "lost", nil)
	assert.Error(t, err)
}

func TestMessageTemplates(t *testing.T) {
	assert.Equal(t, "You earned 10 points for reporting an issue!", pointsMessage(ActionPostIssue, 10))
	assert.Equal(t, "You lost 15 points for an issue marked as fake.", pointsMessage(ActionIssueFake, -15))
	assert.Equal(t, `🎉 Congratulations! You earned the "Active" badge!`, badgeMessage(model.Badge{Name: "Active"}))
	assert.Equal(t, `Your issue "Pothole" status changed to In Progress`, statusMessage("Pothole", model.StatusInProgress))
	assert.Equal(t, "New issue assigned: Pothole", assignmentMessage("Pothole"))
}
