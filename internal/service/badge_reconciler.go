package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Civic_Report/internal/metrics"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BadgeReconciler 按积分重算用户徽章集合
type BadgeReconciler struct {
	db       *gorm.DB
	notifier *NotificationService
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// ReconcileResult 一次对账的增删结果
type ReconcileResult struct {
	Granted  []model.Badge
	Revoked  []model.Badge
	Eligible int
}

func (r ReconcileResult) Changed() bool {
	return len(r.Granted) > 0 || len(r.Revoked) > 0
}

func NewBadgeReconciler(db *gorm.DB, notifier *NotificationService, m *metrics.Collector, logger *zap.Logger) *BadgeReconciler {
	return &BadgeReconciler{
		db:       db,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// diffBadges 计算应发放与应回收的徽章
// held 中不在 eligible 里的行、以及同一徽章的重复行（保留第一条）都进入回收
func diffBadges(points int64, catalog []model.Badge, held []model.UserBadge) (toGrant []model.Badge, toRevoke []model.UserBadge, eligible []model.Badge) {
	eligibleByID := make(map[string]bool, len(catalog))
	for _, b := range catalog {
		if b.PointsRequired <= points {
			eligible = append(eligible, b)
			eligibleByID[b.ID] = true
		}
	}

	kept := make(map[string]bool, len(held))
	for _, ub := range held {
		if !eligibleByID[ub.BadgeID] || kept[ub.BadgeID] {
			toRevoke = append(toRevoke, ub)
			continue
		}
		kept[ub.BadgeID] = true
	}

	for _, b := range eligible {
		if !kept[b.ID] {
			toGrant = append(toGrant, b)
		}
	}
	return toGrant, toRevoke, eligible
}

// Reconcile 在调用方事务内对账，user 需已加行锁且 Points 为最新值
func (r *BadgeReconciler) Reconcile(ctx context.Context, tx *gorm.DB, user *model.User) (ReconcileResult, error) {
	badgeRepo := &mysql.BadgeRepository{DB: tx}
	heldRepo := &mysql.UserBadgeRepository{DB: tx}
	outbox := &mysql.OutboxRepository{DB: tx}

	catalog, err := badgeRepo.ListAll(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load badge catalog: %w", err)
	}
	held, err := heldRepo.ListHeld(ctx, user.ID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load held badges: %w", err)
	}

	toGrant, toRevoke, eligible := diffBadges(user.Points, catalog, held)
	res := ReconcileResult{Granted: toGrant, Eligible: len(eligible)}

	if len(toRevoke) > 0 {
		byID := make(map[string]model.Badge, len(catalog))
		for _, b := range catalog {
			byID[b.ID] = b
		}
		ids := make([]string, 0, len(toRevoke))
		for _, ub := range toRevoke {
			ids = append(ids, ub.ID)
			b, ok := byID[ub.BadgeID]
			if !ok {
				b = model.Badge{ID: ub.BadgeID}
			}
			res.Revoked = append(res.Revoked, b)
		}
		if err = heldRepo.DeleteByIDs(ctx, ids); err != nil {
			return ReconcileResult{}, fmt.Errorf("revoke badges: %w", err)
		}
	}

	if len(toGrant) > 0 {
		now := r.now()
		rows := make([]model.UserBadge, 0, len(toGrant))
		for _, b := range toGrant {
			rows = append(rows, model.UserBadge{
				ID:       uuid.NewString(),
				UserID:   user.ID,
				BadgeID:  b.ID,
				EarnedAt: now,
			})
		}
		if err = heldRepo.CreateBatch(ctx, rows); err != nil {
			return ReconcileResult{}, fmt.Errorf("grant badges: %w", err)
		}
	}

	for _, b := range res.Granted {
		if err = outbox.Insert(ctx, model.EventBadgeGranted, user.ID, badgeEvent(b, user.Points)); err != nil {
			return ReconcileResult{}, fmt.Errorf("outbox badge granted: %w", err)
		}
	}
	for _, b := range res.Revoked {
		if err = outbox.Insert(ctx, model.EventBadgeRevoked, user.ID, badgeEvent(b, user.Points)); err != nil {
			return ReconcileResult{}, fmt.Errorf("outbox badge revoked: %w", err)
		}
	}
	return res, nil
}

// ReconcileUser 单独开事务对账一个用户，用户不存在时什么都不做
func (r *BadgeReconciler) ReconcileUser(ctx context.Context, userID string) (ReconcileResult, error) {
	if userID == "" {
		return ReconcileResult{}, NewValidationError("user id is required", nil)
	}
	var res ReconcileResult
	var found bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := (&mysql.UserRepository{DB: tx}).LockByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		res, err = r.Reconcile(ctx, tx, user)
		return err
	})
	if err != nil {
		r.logger.Error("reconcile badges failed", zap.String("user_id", userID), zap.Error(err))
		return ReconcileResult{}, err
	}
	if found {
		r.afterCommit(ctx, userID, res)
	}
	return res, nil
}

// afterCommit 事务提交后计数并为新徽章发祝贺通知，回收不通知
func (r *BadgeReconciler) afterCommit(ctx context.Context, userID string, res ReconcileResult) []SideEffectFailure {
	r.metrics.RecordBadgeChanges(len(res.Granted), len(res.Revoked))
	var failures []SideEffectFailure
	for _, b := range res.Granted {
		if err := r.notifier.Emit(ctx, userID, badgeMessage(b), nil); err != nil {
			failures = append(failures, SideEffectFailure{Kind: SideEffectNotification, UserID: userID, Error: err.Error()})
		}
	}
	return failures
}

func badgeEvent(b model.Badge, userPoints int64) map[string]any {
	return map[string]any{
		"badge_id":        b.ID,
		"badge_name":      b.Name,
		"icon":            b.Icon,
		"points_required": b.PointsRequired,
		"points":          userPoints,
	}
}
