package service

import (
	"context"
	"errors"
	"time"

	"Civic_Report/internal/config"
	"Civic_Report/internal/metrics"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatusUpdateInput 单个问题的状态变更
type StatusUpdateInput struct {
	AuthorityID   string            `validate:"required"`
	IssueID       string            `validate:"required"`
	Status        model.IssueStatus `validate:"required"`
	Comment       string
	EstimatedDate *time.Time
}

// BulkStatusInput 批量状态变更
type BulkStatusInput struct {
	AuthorityID string            `validate:"required"`
	IssueIDs    []string          `validate:"required,min=1,dive,required"`
	Status      model.IssueStatus `validate:"required"`
	Comment     string
}

// TransitionResult 主操作结果；附带操作失败不影响 Affected
type TransitionResult struct {
	Affected           int                 `json:"affected"`
	IssueIDs           []string            `json:"issueIds"`
	SideEffectFailures []SideEffectFailure `json:"sideEffectFailures,omitempty"`
}

// ResponseMetrics 问题响应时效
type ResponseMetrics struct {
	IssueID              string            `json:"issueId"`
	Status               model.IssueStatus `json:"status"`
	ReportedAt           time.Time         `json:"reportedAt"`
	FirstResponseAt      *time.Time        `json:"firstResponseAt,omitempty"`
	ResolvedAt           *time.Time        `json:"resolvedAt,omitempty"`
	HoursToFirstResponse *float64          `json:"hoursToFirstResponse,omitempty"`
	HoursToResolution    *float64          `json:"hoursToResolution,omitempty"`
	UpdateCount          int               `json:"updateCount"`
}

type IssueStatusService struct {
	db       *gorm.DB
	ledger   *Ledger
	notifier *NotificationService
	points   config.PointsConfig
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

func NewIssueStatusService(db *gorm.DB, ledger *Ledger, notifier *NotificationService, points config.PointsConfig, m *metrics.Collector, logger *zap.Logger) *IssueStatusService {
	return &IssueStatusService{
		db:       db,
		ledger:   ledger,
		notifier: notifier,
		points:   points,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *IssueStatusService) UpdateStatus(ctx context.Context, in StatusUpdateInput) (TransitionResult, error) {
	if err := validateStruct(in); err != nil {
		return TransitionResult{}, err
	}
	return s.transition(ctx, in.AuthorityID, []string{in.IssueID}, in.Status, in.Comment, in.EstimatedDate)
}

// BulkUpdate 不存在或已删除的 id 直接跳过
func (s *IssueStatusService) BulkUpdate(ctx context.Context, in BulkStatusInput) (TransitionResult, error) {
	if err := validateStruct(in); err != nil {
		return TransitionResult{}, err
	}
	return s.transition(ctx, in.AuthorityID, in.IssueIDs, in.Status, in.Comment, nil)
}

// transition 状态写入与审计记录同一事务；积分和通知在提交后逐个问题执行
// 状态未变化时仍然记录审计并执行附带操作
func (s *IssueStatusService) transition(ctx context.Context, authorityID string, ids []string, status model.IssueStatus, comment string, estimated *time.Time) (TransitionResult, error) {
	if !status.Valid() {
		return TransitionResult{}, NewValidationError("invalid status: "+string(status), nil)
	}
	ids = uniqueIDs(ids)
	now := s.now()

	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}

	var issues []model.Issue
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &mysql.IssueRepository{DB: tx}
		var err error
		if issues, err = repo.LockActiveByIDs(ctx, ids); err != nil || len(issues) == 0 {
			return err
		}
		found := issueIDs(issues)
		if _, err = repo.ApplyStatus(ctx, found, mysql.StatusChange{Status: status, At: now, EstimatedDate: estimated}); err != nil {
			return err
		}

		rows := make([]model.IssueUpdate, 0, len(issues))
		for _, issue := range issues {
			rows = append(rows, model.IssueUpdate{
				ID:           uuid.NewString(),
				IssueID:      issue.ID,
				AuthorityID:  authorityID,
				Comment:      commentPtr,
				StatusChange: status,
				CreatedAt:    now,
			})
		}
		if err = (&mysql.IssueUpdateRepository{DB: tx}).CreateBatch(ctx, rows); err != nil {
			return err
		}

		outbox := &mysql.OutboxRepository{DB: tx}
		for _, issue := range issues {
			if err = outbox.Insert(ctx, model.EventStatusChanged, issue.PostedByUserID, map[string]any{
				"issue_id":     issue.ID,
				"from":         string(issue.Status),
				"to":           string(status),
				"authority_id": authorityID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("update issue status failed",
			zap.Strings("issue_ids", ids),
			zap.String("status", string(status)),
			zap.Error(err))
		return TransitionResult{}, NewInternalError("failed to update issue status", err)
	}

	res := TransitionResult{Affected: len(issues), IssueIDs: issueIDs(issues)}
	for _, issue := range issues {
		res.SideEffectFailures = append(res.SideEffectFailures, s.sideEffects(ctx, issue, status)...)
	}
	for _, f := range res.SideEffectFailures {
		s.metrics.RecordSideEffectFailure(f.Kind)
		s.logger.Warn("status side effect failed",
			zap.String("kind", f.Kind),
			zap.String("issue_id", f.IssueID),
			zap.String("user_id", f.UserID),
			zap.String("error", f.Error))
	}
	s.logger.Info("issue status updated",
		zap.String("authority_id", authorityID),
		zap.String("status", string(status)),
		zap.Int("requested", len(ids)),
		zap.Int("affected", res.Affected))
	return res, nil
}

// sideEffects 每个问题用自己的 id 和上报人结算积分并通知
func (s *IssueStatusService) sideEffects(ctx context.Context, issue model.Issue, status model.IssueStatus) []SideEffectFailure {
	var failures []SideEffectFailure
	issueID := issue.ID

	var action Action
	var delta int64
	switch status {
	case model.StatusResolved:
		action, delta = ActionIssueResolved, s.points.IssueResolved
	case model.StatusFake:
		action, delta = ActionIssueFake, s.points.IssueFake
	}
	if action != "" {
		lr, err := s.ledger.Apply(ctx, PointsAction{UserID: issue.PostedByUserID, Action: action, IssueID: &issueID, Points: delta})
		if err != nil {
			failures = append(failures, SideEffectFailure{Kind: SideEffectPoints, IssueID: issueID, UserID: issue.PostedByUserID, Error: err.Error()})
		}
		for _, f := range lr.SideEffectFailures {
			f.IssueID = issueID
			failures = append(failures, f)
		}
	}

	if err := s.notifier.Emit(ctx, issue.PostedByUserID, statusMessage(issue.Title, status), &issueID); err != nil {
		failures = append(failures, SideEffectFailure{Kind: SideEffectNotification, IssueID: issueID, UserID: issue.PostedByUserID, Error: err.Error()})
	}
	return failures
}

// History 审计记录按时间顺序返回
func (s *IssueStatusService) History(ctx context.Context, issueID string) ([]model.IssueUpdateView, error) {
	if issueID == "" {
		return nil, NewValidationError("issue id is required", nil)
	}
	list, err := (&mysql.IssueUpdateRepository{DB: s.db}).ListByIssue(ctx, issueID)
	if err != nil {
		return nil, NewInternalError("failed to load issue history", err)
	}
	return list, nil
}

func (s *IssueStatusService) ResponseMetrics(ctx context.Context, issueID string) (*ResponseMetrics, error) {
	if issueID == "" {
		return nil, NewValidationError("issue id is required", nil)
	}
	issue, err := (&mysql.IssueRepository{DB: s.db}).FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("issue not found")
		}
		return nil, NewInternalError("failed to load issue", err)
	}
	updates, err := (&mysql.IssueUpdateRepository{DB: s.db}).ListByIssue(ctx, issueID)
	if err != nil {
		return nil, NewInternalError("failed to load issue history", err)
	}

	m := &ResponseMetrics{
		IssueID:     issue.ID,
		Status:      issue.Status,
		ReportedAt:  issue.CreatedAt,
		ResolvedAt:  issue.ActualResolutionDate,
		UpdateCount: len(updates),
	}
	if len(updates) > 0 {
		first := updates[0].CreatedAt
		m.FirstResponseAt = &first
		m.HoursToFirstResponse = hoursBetween(issue.CreatedAt, first)
	}
	if issue.ActualResolutionDate != nil {
		m.HoursToResolution = hoursBetween(issue.CreatedAt, *issue.ActualResolutionDate)
	}
	return m, nil
}

func hoursBetween(from, to time.Time) *float64 {
	h := to.Sub(from).Hours()
	return &h
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func issueIDs(issues []model.Issue) []string {
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	return ids
}
