package mysql

import (
	"context"

	"Civic_Report/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

// LockByID select for update，需在事务内调用，同一用户的积分与徽章变更由此串行
func (r *UserRepository) LockByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	return &user, err
}

// AddPoints 原子加减积分，不做下限截断
func (r *UserRepository) AddPoints(ctx context.Context, id string, delta int64) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("points", gorm.Expr("points + ?", delta)).Error
}

func (r *UserRepository) SetPoints(ctx context.Context, id string, points int64) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("points", points).Error
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role model.Role) (int64, error) {
	tx := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("role", role)
	return tx.RowsAffected, tx.Error
}

// ListCitizensAfter 按 id 游标批量拉取市民，供徽章对账使用
func (r *UserRepository) ListCitizensAfter(ctx context.Context, lastID string, limit int) ([]model.User, error) {
	var list []model.User
	err := r.DB.WithContext(ctx).
		Where("role = ? AND id > ?", model.RoleCitizen, lastID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *UserRepository) CountCitizens(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("role = ?", model.RoleCitizen).
		Count(&n).Error
	return n, err
}

// TopCitizens 积分排行榜
func (r *UserRepository) TopCitizens(ctx context.Context, limit int) ([]model.User, error) {
	var list []model.User
	err := r.DB.WithContext(ctx).
		Where("role = ?", model.RoleCitizen).
		Order("points DESC, id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var list []model.User
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *UserRepository) List(ctx context.Context, role model.Role, offset, limit int) ([]model.User, error) {
	var list []model.User
	q := r.DB.WithContext(ctx).Model(&model.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}
