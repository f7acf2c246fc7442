package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateUserInput 账号由外部认证系统或运维脚本创建
type CreateUserInput struct {
	Email    string     `validate:"required,email"`
	Name     string     `validate:"required,max=64"`
	Password string     `validate:"required,min=8"`
	Phone    string     `validate:"omitempty,max=32"`
	Role     model.Role `validate:"omitempty,oneof=citizen authority admin"`
}

// Profile 当前用户的积分、徽章与未读通知数
type Profile struct {
	User                *model.User         `json:"user"`
	Badges              []model.EarnedBadge `json:"badges"`
	UnreadNotifications int64               `json:"unreadNotifications"`
}

type UserService struct {
	db         *gorm.DB
	repo       *mysql.UserRepository
	reconciler *BadgeReconciler
	notifier   *NotificationService
	logger     *zap.Logger
}

func NewUserService(db *gorm.DB, reconciler *BadgeReconciler, notifier *NotificationService, logger *zap.Logger) *UserService {
	return &UserService{
		db:         db,
		repo:       &mysql.UserRepository{DB: db},
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
	}
}

// CreateUser 新用户创建后立即对账一次，0 分徽章随即发放
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleCitizen
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, NewConflictError("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewInternalError("failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewInternalError("failed to hash password", err)
	}
	now := time.Now()
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Password:  string(hash),
		Role:      in.Role,
		Name:      in.Name,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.repo.Create(ctx, user); err != nil {
		return nil, NewInternalError("failed to create user", err)
	}

	if _, err = s.reconciler.ReconcileUser(ctx, user.ID); err != nil {
		s.logger.Warn("initial badge reconcile failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// Profile 积分以数据库为准
func (s *UserService) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, NewInternalError("failed to load user", err)
	}
	badges, err := (&mysql.UserBadgeRepository{DB: s.db}).ListEarned(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load badges", err)
	}
	if badges == nil {
		badges = []model.EarnedBadge{}
	}
	unread, err := s.notifier.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Badges: badges, UnreadNotifications: unread}, nil
}

// FindByEmail 邮箱不区分大小写
func (s *UserService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, NewInternalError("failed to load user", err)
	}
	return user, nil
}
