package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"Civic_Report/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FollowRepository struct {
	DB *gorm.DB
}

type OutboxRepository struct {
	DB *gorm.DB
}

// Toggle 关注/取消关注切换，返回切换后的状态
func (r *FollowRepository) Toggle(ctx context.Context, userID, issueID string) (bool, error) {
	var following bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rel model.IssueFollower
		// select for update 避免竞争
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND issue_id = ?", userID, issueID).
			First(&rel).Error
		if err == nil {
			following = false
			return tx.Where("id = ?", rel.ID).Delete(&model.IssueFollower{}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		rel = model.IssueFollower{
			ID:      uuid.NewString(),
			UserID:  userID,
			IssueID: issueID,
		}
		// 并发重复关注时唯一索引兜底
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rel)
		if res.Error != nil {
			return res.Error
		}
		following = res.RowsAffected > 0
		return nil
	})
	return following, err
}

func (r *FollowRepository) IsFollowing(ctx context.Context, userID, issueID string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.IssueFollower{}).
		Where("user_id = ? AND issue_id = ?", userID, issueID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert 写 outbox 事件，调用方传入事务
func (r *OutboxRepository) Insert(ctx context.Context, event, userID string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["event_time"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["user_id"] = userID
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ob := &model.GamificationOutbox{
		EventType: event,
		UserID:    userID,
		Payload:   raw,
		Status:    model.OutboxPending,
	}
	return r.DB.WithContext(ctx).Create(ob).Error
}

// List 拉取待投递事件，失败的事件在重试上限内继续投递
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.GamificationOutbox, error) {
	var list []model.GamificationOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", model.OutboxPending, model.OutboxFailed, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate 投递失败记录重试次数
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.GamificationOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate 投递成功
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.GamificationOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
