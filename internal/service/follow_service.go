package service

import (
	"context"
	"errors"

	"Civic_Report/internal/config"
	"Civic_Report/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FollowService struct {
	db     *gorm.DB
	repo   *mysql.FollowRepository
	ledger *Ledger
	points config.PointsConfig
	logger *zap.Logger
}

// FollowResult 切换后的关注状态
type FollowResult struct {
	Following          bool                `json:"following"`
	SideEffectFailures []SideEffectFailure `json:"sideEffectFailures,omitempty"`
}

func NewFollowService(db *gorm.DB, ledger *Ledger, points config.PointsConfig, logger *zap.Logger) *FollowService {
	return &FollowService{
		db:     db,
		repo:   &mysql.FollowRepository{DB: db},
		ledger: ledger,
		points: points,
		logger: logger,
	}
}

// Toggle 关注/取消关注；新关注且配置了积分时记账
func (s *FollowService) Toggle(ctx context.Context, userID, issueID string) (*FollowResult, error) {
	if userID == "" || issueID == "" {
		return nil, NewValidationError("invalid id", nil)
	}
	if _, err := (&mysql.IssueRepository{DB: s.db}).FindByID(ctx, issueID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("issue not found")
		}
		return nil, NewInternalError("failed to load issue", err)
	}

	following, err := s.repo.Toggle(ctx, userID, issueID)
	if err != nil {
		s.logger.Error("toggle follow failed", zap.String("user_id", userID), zap.String("issue_id", issueID), zap.Error(err))
		return nil, NewInternalError("failed to toggle follow", err)
	}
	res := &FollowResult{Following: following}
	if !following || s.points.FollowIssue == 0 {
		return res, nil
	}

	lr, err := s.ledger.Apply(ctx, PointsAction{UserID: userID, Action: ActionFollowIssue, IssueID: &issueID, Points: s.points.FollowIssue})
	if err != nil {
		res.SideEffectFailures = append(res.SideEffectFailures, SideEffectFailure{Kind: SideEffectPoints, IssueID: issueID, UserID: userID, Error: err.Error()})
	}
	res.SideEffectFailures = append(res.SideEffectFailures, lr.SideEffectFailures...)
	return res, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, userID, issueID string) (bool, error) {
	if userID == "" || issueID == "" {
		return false, NewValidationError("invalid id", nil)
	}
	ok, err := s.repo.IsFollowing(ctx, userID, issueID)
	if err != nil {
		return false, NewInternalError("failed to check follow", err)
	}
	return ok, nil
}
