package mysql

import (
	"context"
	"time"

	"Civic_Report/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IssueRepository struct {
	DB *gorm.DB
}

type IssueUpdateRepository struct {
	DB *gorm.DB
}

// StatusChange 一次状态变更需要写入 issues 表的字段
type StatusChange struct {
	Status        model.IssueStatus
	At            time.Time
	EstimatedDate *time.Time
}

func (r *IssueRepository) Create(ctx context.Context, issue *model.Issue) error {
	return r.DB.WithContext(ctx).Create(issue).Error
}

// FindByID 已软删除的问题视为不存在
func (r *IssueRepository) FindByID(ctx context.Context, id string) (*model.Issue, error) {
	var issue model.Issue
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&issue).Error
	return &issue, err
}

// LockActiveByIDs 锁定未删除的问题，按 id 排序避免死锁
func (r *IssueRepository) LockActiveByIDs(ctx context.Context, ids []string) ([]model.Issue, error) {
	var list []model.Issue
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// ApplyStatus 批量写入状态，resolved 时记录实际解决时间
func (r *IssueRepository) ApplyStatus(ctx context.Context, ids []string, change StatusChange) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]any{
		"status":     change.Status,
		"updated_at": change.At,
	}
	if change.Status == model.StatusResolved {
		updates["actual_resolution_date"] = change.At
	}
	if change.EstimatedDate != nil {
		updates["estimated_resolution_date"] = *change.EstimatedDate
	}
	tx := r.DB.WithContext(ctx).Model(&model.Issue{}).
		Where("id IN ?", ids).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// ListByReporter 市民自己的问题，按时间倒序
func (r *IssueRepository) ListByReporter(ctx context.Context, reporterID string, offset, limit int) ([]model.Issue, error) {
	var list []model.Issue
	err := r.DB.WithContext(ctx).
		Where("posted_by_user_id = ?", reporterID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListByCategories 未删除的问题，按上报时间先后
func (r *IssueRepository) ListByCategories(ctx context.Context, categoryIDs []string) ([]model.Issue, error) {
	var list []model.Issue
	if len(categoryIDs) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).
		Where("category_id IN ?", categoryIDs).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// SoftDeleteByReporter 幂等软删除，只有发布者本人可删
func (r *IssueRepository) SoftDeleteByReporter(ctx context.Context, id, reporterID string) (int64, error) {
	tx := r.DB.WithContext(ctx).
		Where("id = ? AND posted_by_user_id = ?", id, reporterID).
		Delete(&model.Issue{})
	return tx.RowsAffected, tx.Error
}

func (r *IssueUpdateRepository) CreateBatch(ctx context.Context, rows []model.IssueUpdate) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&rows).Error
}

// ListByIssue 审计记录按创建顺序返回
func (r *IssueUpdateRepository) ListByIssue(ctx context.Context, issueID string) ([]model.IssueUpdateView, error) {
	var list []model.IssueUpdateView
	err := r.DB.WithContext(ctx).
		Table("issue_updates iu").
		Select("iu.*, u.name AS authority_name").
		Joins("LEFT JOIN users u ON u.id = iu.authority_id").
		Where("iu.issue_id = ?", issueID).
		Order("iu.created_at ASC, iu.id ASC").
		Scan(&list).Error
	return list, err
}

// FirstUpdateTimes 每个问题最早一条审计记录的时间
func (r *IssueUpdateRepository) FirstUpdateTimes(ctx context.Context, issueIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(issueIDs))
	if len(issueIDs) == 0 {
		return out, nil
	}
	var rows []model.IssueUpdate
	err := r.DB.WithContext(ctx).
		Select("issue_id", "created_at").
		Where("issue_id IN ?", issueIDs).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, u := range rows {
		if _, ok := out[u.IssueID]; !ok {
			out[u.IssueID] = u.CreatedAt
		}
	}
	return out, nil
}
