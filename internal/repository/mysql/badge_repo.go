package mysql

import (
	"context"

	"Civic_Report/internal/model"

	"gorm.io/gorm"
)

type BadgeRepository struct {
	DB *gorm.DB
}

type UserBadgeRepository struct {
	DB *gorm.DB
}

// ListAll 全量徽章目录，按门槛升序
func (r *BadgeRepository) ListAll(ctx context.Context) ([]model.Badge, error) {
	var list []model.Badge
	err := r.DB.WithContext(ctx).Order("points_required ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *BadgeRepository) FindByID(ctx context.Context, id string) (*model.Badge, error) {
	var badge model.Badge
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&badge).Error
	return &badge, err
}

func (r *BadgeRepository) Create(ctx context.Context, badge *model.Badge) error {
	return r.DB.WithContext(ctx).Create(badge).Error
}

func (r *BadgeRepository) Update(ctx context.Context, badge *model.Badge) (int64, error) {
	tx := r.DB.WithContext(ctx).Model(&model.Badge{}).
		Where("id = ?", badge.ID).
		Updates(map[string]any{
			"name":            badge.Name,
			"description":     badge.Description,
			"points_required": badge.PointsRequired,
			"icon":            badge.Icon,
		})
	return tx.RowsAffected, tx.Error
}

// Delete 幂等删除，用户持有的记录留给对账清理
func (r *BadgeRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.Badge{}).Error
}

// ListHeld 用户当前持有的徽章记录
func (r *UserBadgeRepository) ListHeld(ctx context.Context, userID string) ([]model.UserBadge, error) {
	var list []model.UserBadge
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// DeleteByIDs 只删除指定的记录行
func (r *UserBadgeRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&model.UserBadge{}).Error
}

func (r *UserBadgeRepository) CreateBatch(ctx context.Context, rows []model.UserBadge) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&rows).Error
}

// ListEarned 用户徽章详情，按获得时间排序
func (r *UserBadgeRepository) ListEarned(ctx context.Context, userID string) ([]model.EarnedBadge, error) {
	var list []model.EarnedBadge
	err := r.DB.WithContext(ctx).
		Table("user_badges ub").
		Select("b.*, ub.earned_at").
		Joins("JOIN badges b ON b.id = ub.badge_id").
		Where("ub.user_id = ?", userID).
		Order("ub.earned_at ASC, b.points_required ASC").
		Scan(&list).Error
	return list, err
}
