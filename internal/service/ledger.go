package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Civic_Report/internal/metrics"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/cenkalti/backoff/v4"
	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Action 触发积分变动的行为
type Action string

const (
	ActionPostIssue     Action = "post_issue"
	ActionIssueResolved Action = "issue_resolved"
	ActionIssueFake     Action = "issue_fake"
	ActionFollowIssue   Action = "follow_issue"
)

const actionReset = "reset"

// MySQL 死锁与锁等待超时，整个事务可重试
const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
)

// PointsAction 一次积分变动
type PointsAction struct {
	UserID  string `validate:"required"`
	Action  Action `validate:"required,oneof=post_issue issue_resolved issue_fake follow_issue"`
	IssueID *string
	Points  int64
}

// LedgerResult Applied=false 表示用户不存在或积分为 0，未做任何修改
type LedgerResult struct {
	Applied            bool
	Points             int64
	Reconcile          ReconcileResult
	SideEffectFailures []SideEffectFailure

	role model.Role
}

// ScoreBoard 积分排行榜写入端；积分上升可增量写入，下降时缓存的前 N 名可能漏掉新进榜的人，只能整体失效
type ScoreBoard interface {
	Raise(ctx context.Context, userID string, points int64) error
	Invalidate(ctx context.Context) error
}

// Ledger 积分账本，用户积分只能经由这里修改
type Ledger struct {
	db         *gorm.DB
	reconciler *BadgeReconciler
	notifier   *NotificationService
	board      ScoreBoard
	metrics    *metrics.Collector
	logger     *zap.Logger
	maxRetries uint64
}

func NewLedger(db *gorm.DB, reconciler *BadgeReconciler, notifier *NotificationService, board ScoreBoard, m *metrics.Collector, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:         db,
		reconciler: reconciler,
		notifier:   notifier,
		board:      board,
		metrics:    m,
		logger:     logger,
		maxRetries: 3,
	}
}

// Apply 锁定用户行，原子加减积分并在同一事务内对账徽章
// 提交后再发通知、更新排行榜；这些失败只收集到 SideEffectFailures
func (l *Ledger) Apply(ctx context.Context, a PointsAction) (LedgerResult, error) {
	if err := validateStruct(a); err != nil {
		return LedgerResult{}, err
	}
	if a.Points == 0 {
		return LedgerResult{}, nil
	}

	res, err := l.mutate(ctx, a.UserID, func(ctx context.Context, users *mysql.UserRepository, user *model.User) (map[string]any, error) {
		if err := users.AddPoints(ctx, user.ID, a.Points); err != nil {
			return nil, err
		}
		user.Points += a.Points
		payload := map[string]any{"action": string(a.Action), "delta": a.Points}
		if a.IssueID != nil {
			payload["issue_id"] = *a.IssueID
		}
		return payload, nil
	})
	if err != nil {
		l.logger.Error("apply points failed",
			zap.String("user_id", a.UserID),
			zap.String("action", string(a.Action)),
			zap.Int64("points", a.Points),
			zap.Error(err))
		return LedgerResult{}, fmt.Errorf("apply points: %w", err)
	}
	if !res.Applied {
		return res, nil
	}

	l.metrics.RecordPointsApplied(string(a.Action))
	if err = l.notifier.Emit(ctx, a.UserID, pointsMessage(a.Action, a.Points), a.IssueID); err != nil {
		res.SideEffectFailures = append(res.SideEffectFailures, SideEffectFailure{Kind: SideEffectNotification, UserID: a.UserID, Error: err.Error()})
	}
	l.afterCommit(ctx, a.UserID, a.Points > 0, &res)
	return res, nil
}

// Reset 管理员清零积分并重新对账，0 分徽章会被重新发放
func (l *Ledger) Reset(ctx context.Context, userID string) (LedgerResult, error) {
	if userID == "" {
		return LedgerResult{}, NewValidationError("user id is required", nil)
	}
	res, err := l.mutate(ctx, userID, func(ctx context.Context, users *mysql.UserRepository, user *model.User) (map[string]any, error) {
		if err := users.SetPoints(ctx, user.ID, 0); err != nil {
			return nil, err
		}
		delta := -user.Points
		user.Points = 0
		return map[string]any{"action": actionReset, "delta": delta}, nil
	})
	if err != nil {
		l.logger.Error("reset points failed", zap.String("user_id", userID), zap.Error(err))
		return LedgerResult{}, NewInternalError("failed to reset points", err)
	}
	if !res.Applied {
		return res, NewNotFoundError("user not found")
	}
	l.metrics.RecordPointsApplied(actionReset)
	l.afterCommit(ctx, userID, false, &res)
	return res, nil
}

type pointsMutation func(ctx context.Context, users *mysql.UserRepository, user *model.User) (map[string]any, error)

// mutate 锁用户行 -> 修改积分 -> 对账徽章 -> 写 outbox，整体一个事务，死锁时退避重试
func (l *Ledger) mutate(ctx context.Context, userID string, change pointsMutation) (LedgerResult, error) {
	start := time.Now()
	defer func() { l.metrics.ObserveLedger(time.Since(start)) }()

	var res LedgerResult
	err := l.withRetry(ctx, func() error {
		res = LedgerResult{}
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users := &mysql.UserRepository{DB: tx}
			user, err := users.LockByID(ctx, userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}

			payload, err := change(ctx, users, user)
			if err != nil {
				return err
			}
			rec, err := l.reconciler.Reconcile(ctx, tx, user)
			if err != nil {
				return err
			}
			payload["points"] = user.Points
			if err = (&mysql.OutboxRepository{DB: tx}).Insert(ctx, model.EventPointsAwarded, user.ID, payload); err != nil {
				return err
			}
			res = LedgerResult{Applied: true, Points: user.Points, Reconcile: rec, role: user.Role}
			return nil
		})
	})
	return res, err
}

func (l *Ledger) afterCommit(ctx context.Context, userID string, raised bool, res *LedgerResult) {
	res.SideEffectFailures = append(res.SideEffectFailures, l.reconciler.afterCommit(ctx, userID, res.Reconcile)...)
	if l.board == nil || res.role != model.RoleCitizen {
		return
	}
	var err error
	if raised {
		err = l.board.Raise(ctx, userID, res.Points)
	} else {
		err = l.board.Invalidate(ctx)
	}
	if err != nil {
		l.logger.Warn("update leaderboard failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (l *Ledger) withRetry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 3 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(eb, l.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil || isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

func isRetryable(err error) bool {
	var me *mysqldriver.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDeadlock || me.Number == errLockWaitTimeout
	}
	return false
}
