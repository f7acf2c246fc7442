package service

import (
	"context"
	"errors"
	"time"

	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BadgeInput 徽章定义；门槛允许为 0
type BadgeInput struct {
	Name           string `validate:"required,max=64"`
	Description    string
	PointsRequired int64  `validate:"gte=0"`
	Icon           string `validate:"required,max=32"`
}

type CategoryInput struct {
	Name                 string `validate:"required,max=64"`
	Description          string
	Department           string `validate:"required,max=128"`
	DefaultEstimateHours int    `validate:"gte=0"`
}

// AdminService 徽章目录、问题类别与用户管理
// 修改徽章目录不会触发对账，存量数据由徽章修复任务处理
type AdminService struct {
	db          *gorm.DB
	ledger      *Ledger
	leaderboard *LeaderboardService
	logger      *zap.Logger
}

func NewAdminService(db *gorm.DB, ledger *Ledger, leaderboard *LeaderboardService, logger *zap.Logger) *AdminService {
	return &AdminService{
		db:          db,
		ledger:      ledger,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

func (s *AdminService) ListBadges(ctx context.Context) ([]model.Badge, error) {
	list, err := (&mysql.BadgeRepository{DB: s.db}).ListAll(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list badges", err)
	}
	return list, nil
}

func (s *AdminService) CreateBadge(ctx context.Context, in BadgeInput) (*model.Badge, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	b := &model.Badge{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Description:    in.Description,
		PointsRequired: in.PointsRequired,
		Icon:           in.Icon,
		CreatedAt:      time.Now(),
	}
	if err := (&mysql.BadgeRepository{DB: s.db}).Create(ctx, b); err != nil {
		return nil, NewInternalError("failed to create badge", err)
	}
	s.logger.Info("badge created", zap.String("badge_id", b.ID), zap.Int64("points_required", b.PointsRequired))
	return b, nil
}

func (s *AdminService) UpdateBadge(ctx context.Context, id string, in BadgeInput) (*model.Badge, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	repo := &mysql.BadgeRepository{DB: s.db}
	existing, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("badge not found")
		}
		return nil, NewInternalError("failed to load badge", err)
	}
	existing.Name = in.Name
	existing.Description = in.Description
	existing.PointsRequired = in.PointsRequired
	existing.Icon = in.Icon
	if _, err = repo.Update(ctx, existing); err != nil {
		return nil, NewInternalError("failed to update badge", err)
	}
	return existing, nil
}

// DeleteBadge 幂等；用户持有的记录在下一次对账时清理
func (s *AdminService) DeleteBadge(ctx context.Context, id string) error {
	if id == "" {
		return NewValidationError("badge id is required", nil)
	}
	if err := (&mysql.BadgeRepository{DB: s.db}).Delete(ctx, id); err != nil {
		return NewInternalError("failed to delete badge", err)
	}
	return nil
}

func (s *AdminService) CreateCategory(ctx context.Context, in CategoryInput) (*model.IssueCategory, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.DefaultEstimateHours == 0 {
		in.DefaultEstimateHours = 72
	}
	c := &model.IssueCategory{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		Description:          in.Description,
		Department:           in.Department,
		DefaultEstimateHours: in.DefaultEstimateHours,
		CreatedAt:            time.Now(),
	}
	if err := (&mysql.CategoryRepository{DB: s.db}).Create(ctx, c); err != nil {
		return nil, NewInternalError("failed to create category", err)
	}
	return c, nil
}

func (s *AdminService) ListCategories(ctx context.Context) ([]model.IssueCategory, error) {
	list, err := (&mysql.CategoryRepository{DB: s.db}).List(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list categories", err)
	}
	return list, nil
}

// AssignAuthority 幂等；只有 authority 角色可以分配
func (s *AdminService) AssignAuthority(ctx context.Context, userID, categoryID string) error {
	if userID == "" || categoryID == "" {
		return NewValidationError("user id and category id are required", nil)
	}
	user, err := (&mysql.UserRepository{DB: s.db}).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFoundError("user not found")
		}
		return NewInternalError("failed to load user", err)
	}
	if user.Role != model.RoleAuthority {
		return NewValidationError("user is not an authority", nil)
	}
	if _, err = (&mysql.CategoryRepository{DB: s.db}).FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFoundError("category not found")
		}
		return NewInternalError("failed to load category", err)
	}
	err = (&mysql.AuthorityRepository{DB: s.db}).Assign(ctx, &model.Authority{
		ID:         uuid.NewString(),
		UserID:     userID,
		CategoryID: categoryID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return NewInternalError("failed to assign authority", err)
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, role model.Role, page, size int) ([]model.User, error) {
	if role != "" && !role.Valid() {
		return nil, NewValidationError("invalid role", nil)
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	list, err := (&mysql.UserRepository{DB: s.db}).List(ctx, role, (page-1)*size, size)
	if err != nil {
		return nil, NewInternalError("failed to list users", err)
	}
	return list, nil
}

// ChangeRole 排行榜只统计市民，角色变化后让缓存失效
func (s *AdminService) ChangeRole(ctx context.Context, userID string, role model.Role) error {
	if userID == "" || !role.Valid() {
		return NewValidationError("invalid role", nil)
	}
	n, err := (&mysql.UserRepository{DB: s.db}).UpdateRole(ctx, userID, role)
	if err != nil {
		return NewInternalError("failed to change role", err)
	}
	if n == 0 {
		if _, err = (&mysql.UserRepository{DB: s.db}).FindByID(ctx, userID); errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFoundError("user not found")
		}
		return nil
	}
	s.leaderboard.Forget(ctx)
	s.logger.Info("user role changed", zap.String("user_id", userID), zap.String("role", string(role)))
	return nil
}

func (s *AdminService) ResetPoints(ctx context.Context, userID string) (LedgerResult, error) {
	return s.ledger.Reset(ctx, userID)
}
