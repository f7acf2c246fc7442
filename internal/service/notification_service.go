package service

import (
	"context"
	"fmt"
	"time"

	"Civic_Report/internal/metrics"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationService 站内通知的写入和读取
type NotificationService struct {
	repo    *mysql.NotificationRepository
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

func NewNotificationService(db *gorm.DB, m *metrics.Collector, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:    &mysql.NotificationRepository{DB: db},
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Emit 每次调用都新增一条未读通知，不去重
// 写入失败只记录日志和指标，返回的错误仅供调用方汇总
func (s *NotificationService) Emit(ctx context.Context, userID, message string, issueID *string) error {
	n := &model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssueID:   issueID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.metrics.RecordNotification(false)
		s.logger.Warn("emit notification failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("emit notification: %w", err)
	}
	s.metrics.RecordNotification(true)
	return nil
}

// List 最新的在前，limit 默认 20，最大 100
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required", nil)
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	list, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, NewInternalError("failed to list notifications", err)
	}
	return list, nil
}

// MarkRead 只作用于本人的通知，找不到或不属于本人时返回 false；重复标记返回 true
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	if userID == "" || notificationID == "" {
		return false, NewValidationError("notification id is required", nil)
	}
	found, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return false, NewInternalError("failed to mark notification", err)
	}
	return found, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, NewInternalError("failed to count notifications", err)
	}
	return n, nil
}

var actionLabels = map[Action]string{
	ActionPostIssue:     "reporting an issue",
	ActionIssueResolved: "your issue being resolved",
	ActionIssueFake:     "an issue marked as fake",
	ActionFollowIssue:   "following an issue",
}

func pointsMessage(action Action, points int64) string {
	label, ok := actionLabels[action]
	if !ok {
		label = string(action)
	}
	if points < 0 {
		return fmt.Sprintf("You lost %d points for %s.", -points, label)
	}
	return fmt.Sprintf("You earned %d points for %s!", points, label)
}

func badgeMessage(b model.Badge) string {
	return fmt.Sprintf("🎉 Congratulations! You earned the %q badge!", b.Name)
}

func statusMessage(title string, status model.IssueStatus) string {
	return fmt.Sprintf("Your issue %q status changed to %s", title, status.Text())
}

func assignmentMessage(title string) string {
	return "New issue assigned: " + title
}
