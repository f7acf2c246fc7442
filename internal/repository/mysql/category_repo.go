package mysql

import (
	"context"

	"Civic_Report/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository struct {
	DB *gorm.DB
}

type AuthorityRepository struct {
	DB *gorm.DB
}

func (r *CategoryRepository) Create(ctx context.Context, c *model.IssueCategory) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*model.IssueCategory, error) {
	var c model.IssueCategory
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *CategoryRepository) List(ctx context.Context) ([]model.IssueCategory, error) {
	var list []model.IssueCategory
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

// Assign 幂等分配：若已存在 (user_id, category_id) 则不报错
func (r *AuthorityRepository) Assign(ctx context.Context, a *model.Authority) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category_id"}},
		DoNothing: true,
	}).Create(a).Error
}

// FirstForCategory 类别下最早登记的执法人员，用于自动分配
func (r *AuthorityRepository) FirstForCategory(ctx context.Context, categoryID string) (*model.Authority, error) {
	var a model.Authority
	err := r.DB.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("created_at ASC, id ASC").
		First(&a).Error
	return &a, err
}

// ListForAuthority 执法人员负责的类别
func (r *CategoryRepository) ListForAuthority(ctx context.Context, userID string) ([]model.IssueCategory, error) {
	var list []model.IssueCategory
	err := r.DB.WithContext(ctx).
		Joins("JOIN authorities a ON a.category_id = issue_categories.id").
		Where("a.user_id = ?", userID).
		Order("issue_categories.name ASC").
		Find(&list).Error
	return list, err
}
