package service

import (
	"testing"
	"time"

	"Civic_Report/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStatusResolvedAwardsPointsAndAudits(t *testing.T) {
	e := newTestEnv(t)
	reporter := e.seedUser(t, model.RoleCitizen, 0)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	issue := e.seedIssue(t, reporter.ID)

	res, err := e.status.UpdateStatus(bg, StatusUpdateInput{
		AuthorityID: authority.ID,
		IssueID:     issue.ID,
		Status:      model.StatusResolved,
		Comment:     "filled",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Empty(t, res.SideEffectFailures)
	assert.Equal(t, int64(20), e.points(t, reporter.ID))

	var stored model.Issue
	require.NoError(t, e.db.Where("id = ?", issue.ID).First(&stored).Error)
	assert.Equal(t, model.StatusResolved, stored.Status)
	require.NotNil(t, stored.ActualResolutionDate)

	history, err := e.status.History(bg, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusResolved, history[0].StatusChange)
	assert.Equal(t, authority.Name, history[0].AuthorityName)
	require.NotNil(t, history[0].Comment)
	assert.Equal(t, "filled", *history[0].Comment)

	var statusNotes int
	for _, n := range e.notifications(t, reporter.ID) {
		if n.Message == statusMessage(issue.Title, model.StatusResolved) {
			statusNotes++
			require.NotNil(t, n.IssueID)
			assert.Equal(t, issue.ID, *n.IssueID)
		}
	}
	assert.Equal(t, 1, statusNotes)
	assert.Len(t, e.outboxEvents(t, model.EventStatusChanged), 1)
}

func TestBulkUpdateScenarioThreeIssues(t *testing.T) {
	e := newTestEnv(t)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	r1 := e.seedUser(t, model.RoleCitizen, 0)
	r2 := e.seedUser(t, model.RoleCitizen, 0)
	i1 := e.seedIssue(t, r1.ID)
	i2 := e.seedIssue(t, r1.ID)
	i3 := e.seedIssue(t, r2.ID)

	res, err := e.status.BulkUpdate(bg, BulkStatusInput{
		AuthorityID: authority.ID,
		IssueIDs:    []string{i1.ID, i2.ID, i3.ID, i1.ID, "missing"},
		Status:      model.StatusResolved,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Affected)
	assert.ElementsMatch(t, []string{i1.ID, i2.ID, i3.ID}, res.IssueIDs)

	var audits int64
	require.NoError(t, e.db.Model(&model.IssueUpdate{}).Count(&audits).Error)
	assert.Equal(t, int64(3), audits)

	assert.Equal(t, int64(40), e.points(t, r1.ID))
	assert.Equal(t, int64(20), e.points(t, r2.ID))
	assert.Len(t, e.outboxEvents(t, model.EventPointsAwarded), 3)

	// 每个问题的通知都关联到自己的 id
	for _, issue := range []model.Issue{i1, i2, i3} {
		var n int64
		require.NoError(t, e.db.Model(&model.Notification{}).
			Where("user_id = ? AND issue_id = ? AND message = ?", issue.PostedByUserID, issue.ID, statusMessage(issue.Title, model.StatusResolved)).
			Count(&n).Error)
		assert.Equal(t, int64(1), n, issue.ID)
	}
}

func TestBulkUpdateSkipsDeletedAndMissing(t *testing.T) {
	e := newTestEnv(t)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	reporter := e.seedUser(t, model.RoleCitizen, 10)
	issue := e.seedIssue(t, reporter.ID)
	require.NoError(t, e.db.Delete(&issue).Error)

	res, err := e.status.BulkUpdate(bg, BulkStatusInput{
		AuthorityID: authority.ID,
		IssueIDs:    []string{issue.ID, "missing"},
		Status:      model.StatusFake,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected)
	assert.Equal(t, int64(10), e.points(t, reporter.ID))

	var audits int64
	require.NoError(t, e.db.Model(&model.IssueUpdate{}).Count(&audits).Error)
	assert.Zero(t, audits)
	assert.Empty(t, e.notifications(t, reporter.ID))
}

func TestUpdateStatusFakeDeductsPoints(t *testing.T) {
	e := newTestEnv(t)
	e.seedBadges(t)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	reporter := e.seedUser(t, model.RoleCitizen, 10)
	_, err := e.reconciler.ReconcileUser(bg, reporter.ID)
	require.NoError(t, err)
	issue := e.seedIssue(t, reporter.ID)

	_, err = e.status.UpdateStatus(bg, StatusUpdateInput{AuthorityID: authority.ID, IssueID: issue.ID, Status: model.StatusFake})
	require.NoError(t, err)

	assert.Equal(t, int64(-5), e.points(t, reporter.ID))
	assert.Empty(t, e.heldBadgeIDs(t, reporter.ID))
}

func TestUpdateStatusRepeatedStillRecords(t *testing.T) {
	e := newTestEnv(t)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	reporter := e.seedUser(t, model.RoleCitizen, 0)
	issue := e.seedIssue(t, reporter.ID)

	in := StatusUpdateInput{AuthorityID: authority.ID, IssueID: issue.ID, Status: model.StatusInProgress}
	_, err := e.status.UpdateStatus(bg, in)
	require.NoError(t, err)
	_, err = e.status.UpdateStatus(bg, in)
	require.NoError(t, err)

	history, err := e.status.History(bg, issue.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Len(t, e.notifications(t, reporter.ID), 2)
	assert.Equal(t, int64(0), e.points(t, reporter.ID))
}

func TestUpdateStatusValidation(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.status.UpdateStatus(bg, StatusUpdateInput{AuthorityID: "a", IssueID: "i", Status: "closed"})
	assert.Equal(t, 400, StatusCode(err))

	_, err = e.status.UpdateStatus(bg, StatusUpdateInput{IssueID: "i", Status: model.StatusResolved})
	assert.Equal(t, 400, StatusCode(err))

	_, err = e.status.BulkUpdate(bg, BulkStatusInput{AuthorityID: "a", Status: model.StatusResolved})
	assert.Equal(t, 400, StatusCode(err))

	_, err = e.status.BulkUpdate(bg, BulkStatusInput{AuthorityID: "a", IssueIDs: []string{""}, Status: model.StatusResolved})
	assert.Equal(t, 400, StatusCode(err))
}

func TestSideEffectFailureDoesNotBlockTransition(t *testing.T) {
	e := newTestEnv(t)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	reporter := e.seedUser(t, model.RoleCitizen, 0)
	issue := e.seedIssue(t, reporter.ID)
	require.NoError(t, e.db.Migrator().DropTable(&model.Badge{}))

	res, err := e.status.UpdateStatus(bg, StatusUpdateInput{AuthorityID: authority.ID, IssueID: issue.ID, Status: model.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	require.Len(t, res.SideEffectFailures, 1)
	assert.Equal(t, SideEffectPoints, res.SideEffectFailures[0].Kind)
	assert.Equal(t, issue.ID, res.SideEffectFailures[0].IssueID)

	var stored model.Issue
	require.NoError(t, e.db.Where("id = ?", issue.ID).First(&stored).Error)
	assert.Equal(t, model.StatusResolved, stored.Status)
	assert.Equal(t, int64(0), e.points(t, reporter.ID))
	// 状态通知照常发出
	assert.Len(t, e.notifications(t, reporter.ID), 1)
}

func TestResponseMetrics(t *testing.T) {
	e := newTestEnv(t)
	authority := e.seedUser(t, model.RoleAuthority, 0)
	reporter := e.seedUser(t, model.RoleCitizen, 0)
	issue := e.seedIssue(t, reporter.ID)

	base := issue.CreatedAt
	e.status.now = func() time.Time { return base.Add(time.Hour) }
	_, err := e.status.UpdateStatus(bg, StatusUpdateInput{AuthorityID: authority.ID, IssueID: issue.ID, Status: model.StatusInProgress})
	require.NoError(t, err)
	e.status.now = func() time.Time { return base.Add(3 * time.Hour) }
	_, err = e.status.UpdateStatus(bg, StatusUpdateInput{AuthorityID: authority.ID, IssueID: issue.ID, Status: model.StatusResolved})
	require.NoError(t, err)

	m, err := e.status.ResponseMetrics(bg, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, m.UpdateCount)
	require.NotNil(t, m.HoursToFirstResponse)
	assert.InDelta(t, 1.0, *m.HoursToFirstResponse, 0.01)
	require.NotNil(t, m.HoursToResolution)
	assert.InDelta(t, 3.0, *m.HoursToResolution, 0.01)

	_, err = e.status.ResponseMetrics(bg, "missing")
	assert.Equal(t, 404, StatusCode(err))
}
