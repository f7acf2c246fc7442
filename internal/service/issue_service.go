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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReportInput 市民上报问题
type ReportInput struct {
	Title           string   `validate:"required,max=200"`
	Description     string   `validate:"required"`
	CategoryID      string   `validate:"required"`
	LocationLat     float64  `validate:"latitude"`
	LocationLng     float64  `validate:"longitude"`
	LocationAddress string   `validate:"required,max=255"`
	Photos          []string `validate:"max=10,dive,url"`
}

// ReportResult 问题已创建；积分和通知失败记录在 SideEffectFailures
type ReportResult struct {
	Issue              *model.Issue        `json:"issue"`
	PointsAwarded      int64               `json:"pointsAwarded"`
	SideEffectFailures []SideEffectFailure `json:"sideEffectFailures,omitempty"`
}

type IssueService struct {
	db       *gorm.DB
	ledger   *Ledger
	notifier *NotificationService
	points   config.PointsConfig
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

func NewIssueService(db *gorm.DB, ledger *Ledger, notifier *NotificationService, points config.PointsConfig, m *metrics.Collector, logger *zap.Logger) *IssueService {
	return &IssueService{
		db:       db,
		ledger:   ledger,
		notifier: notifier,
		points:   points,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Report 自动分配给该类别最早登记的执法人员，预计解决时间取类别默认值
func (s *IssueService) Report(ctx context.Context, reporterID string, in ReportInput) (*ReportResult, error) {
	if reporterID == "" {
		return nil, NewValidationError("reporter id is required", nil)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	category, err := (&mysql.CategoryRepository{DB: s.db}).FindByID(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("unknown category", nil)
		}
		return nil, NewInternalError("failed to load category", err)
	}

	now := s.now()
	estimated := now.Add(time.Duration(category.DefaultEstimateHours) * time.Hour)
	issue := &model.Issue{
		ID:                      uuid.NewString(),
		Title:                   in.Title,
		Description:             in.Description,
		CategoryID:              category.ID,
		LocationLat:             in.LocationLat,
		LocationLng:             in.LocationLng,
		LocationAddress:         in.LocationAddress,
		Status:                  model.StatusPending,
		PostedByUserID:          reporterID,
		EstimatedResolutionDate: &estimated,
		Photos:                  datatypes.JSONSlice[string](in.Photos),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if issue.Photos == nil {
		issue.Photos = datatypes.JSONSlice[string]{}
	}

	auth, err := (&mysql.AuthorityRepository{DB: s.db}).FirstForCategory(ctx, category.ID)
	switch {
	case err == nil:
		issue.AssignedToAuthorityID = &auth.UserID
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, NewInternalError("failed to look up authority", err)
	}

	if err = (&mysql.IssueRepository{DB: s.db}).Create(ctx, issue); err != nil {
		s.logger.Error("create issue failed", zap.String("reporter_id", reporterID), zap.Error(err))
		return nil, NewInternalError("failed to create issue", err)
	}

	res := &ReportResult{Issue: issue}
	lr, err := s.ledger.Apply(ctx, PointsAction{UserID: reporterID, Action: ActionPostIssue, IssueID: &issue.ID, Points: s.points.PostIssue})
	if err != nil {
		res.SideEffectFailures = append(res.SideEffectFailures, SideEffectFailure{Kind: SideEffectPoints, IssueID: issue.ID, UserID: reporterID, Error: err.Error()})
	} else if lr.Applied {
		res.PointsAwarded = s.points.PostIssue
	}
	res.SideEffectFailures = append(res.SideEffectFailures, lr.SideEffectFailures...)

	if issue.AssignedToAuthorityID != nil {
		if err = s.notifier.Emit(ctx, *issue.AssignedToAuthorityID, assignmentMessage(issue.Title), &issue.ID); err != nil {
			res.SideEffectFailures = append(res.SideEffectFailures, SideEffectFailure{Kind: SideEffectNotification, IssueID: issue.ID, UserID: *issue.AssignedToAuthorityID, Error: err.Error()})
		}
	}
	for _, f := range res.SideEffectFailures {
		s.metrics.RecordSideEffectFailure(f.Kind)
	}
	s.logger.Info("issue reported", zap.String("issue_id", issue.ID), zap.String("reporter_id", reporterID))
	return res, nil
}

func (s *IssueService) Get(ctx context.Context, id string) (*model.Issue, error) {
	issue, err := (&mysql.IssueRepository{DB: s.db}).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("issue not found")
		}
		return nil, NewInternalError("failed to load issue", err)
	}
	return issue, nil
}

// ListByReporter 分页，page 从 1 开始
func (s *IssueService) ListByReporter(ctx context.Context, reporterID string, page, size int) ([]model.Issue, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 50 {
		size = 20
	}
	list, err := (&mysql.IssueRepository{DB: s.db}).ListByReporter(ctx, reporterID, (page-1)*size, size)
	if err != nil {
		return nil, NewInternalError("failed to list issues", err)
	}
	return list, nil
}

// SoftDelete 幂等删除：已删除或不存在返回 nil，仅非本人时报错
func (s *IssueService) SoftDelete(ctx context.Context, reporterID, issueID string) error {
	repo := &mysql.IssueRepository{DB: s.db}
	affected, err := repo.SoftDeleteByReporter(ctx, issueID, reporterID)
	if err != nil {
		return NewInternalError("failed to delete issue", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err = repo.FindByID(ctx, issueID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return NewInternalError("failed to load issue", err)
	}
	return NewForbiddenError("only the reporter can delete this issue")
}
