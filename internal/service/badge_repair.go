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

const repairLockName = "badge-repair"

// ErrRepairInProgress 另一个实例正在修复
var ErrRepairInProgress = NewConflictError("badge repair already in progress")

// Locker 跨实例互斥
type Locker interface {
	Acquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, token string) error
}

type RepairStatus string

const (
	RepairAlreadyCorrect RepairStatus = "already_correct"
	RepairFixed          RepairStatus = "fixed"
	RepairError          RepairStatus = "error"
)

type BadgeRequirement struct {
	Name           string `json:"name"`
	PointsRequired int64  `json:"pointsRequired"`
}

type RepairSummary struct {
	TotalUsers        int                `json:"totalUsers"`
	TotalBadges       int                `json:"totalBadges"`
	FixedUsers        int                `json:"fixedUsers"`
	FailedUsers       int                `json:"failedUsers"`
	BadgeRequirements []BadgeRequirement `json:"badgeRequirements"`
}

type RepairUserResult struct {
	UserID         string       `json:"userId"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Points         int64        `json:"points"`
	BadgesRemoved  int          `json:"badgesRemoved"`
	BadgesAdded    int          `json:"badgesAdded"`
	EligibleBadges int          `json:"eligibleBadges"`
	Status         RepairStatus `json:"status"`
	Error          string       `json:"error,omitempty"`
}

// RepairReport 全量徽章修复报告
type RepairReport struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Summary RepairSummary      `json:"summary"`
	Results []RepairUserResult `json:"results"`
}

type RepairConfig struct {
	BatchSize int
	LockTTL   time.Duration
	Interval  time.Duration
}

// BadgeRepairService 全量对账所有市民的徽章，修复历史遗留的错误数据
type BadgeRepairService struct {
	db         *gorm.DB
	reconciler *BadgeReconciler
	lock       Locker
	cfg        RepairConfig
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func NewBadgeRepairService(db *gorm.DB, reconciler *BadgeReconciler, lock Locker, cfg RepairConfig, m *metrics.Collector, logger *zap.Logger) *BadgeRepairService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &BadgeRepairService{
		db:         db,
		reconciler: reconciler,
		lock:       lock,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
	}
}

// RepairAll 按 id 分页遍历市民，每个用户单独一个加锁事务
// 单个用户失败只记入报告，不中断整批
func (s *BadgeRepairService) RepairAll(ctx context.Context) (*RepairReport, error) {
	if s.lock != nil {
		token := uuid.NewString()
		got, err := s.lock.Acquire(ctx, repairLockName, token, s.cfg.LockTTL)
		if err != nil {
			return nil, NewInternalError("failed to acquire repair lock", err)
		}
		if !got {
			return nil, ErrRepairInProgress
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), repairLockName, token); err != nil {
				s.logger.Warn("release repair lock failed", zap.Error(err))
			}
		}()
	}

	catalog, err := (&mysql.BadgeRepository{DB: s.db}).ListAll(ctx)
	if err != nil {
		return nil, NewInternalError("failed to load badge catalog", err)
	}
	report := &RepairReport{
		Summary: RepairSummary{
			TotalBadges:       len(catalog),
			BadgeRequirements: make([]BadgeRequirement, 0, len(catalog)),
		},
		Results: []RepairUserResult{},
	}
	for _, b := range catalog {
		report.Summary.BadgeRequirements = append(report.Summary.BadgeRequirements, BadgeRequirement{Name: b.Name, PointsRequired: b.PointsRequired})
	}

	users := &mysql.UserRepository{DB: s.db}
	lastID := ""
	for {
		page, err := users.ListCitizensAfter(ctx, lastID, s.cfg.BatchSize)
		if err != nil {
			return nil, NewInternalError("failed to list users", err)
		}
		for _, u := range page {
			row, ok := s.repairUser(ctx, u)
			if !ok {
				continue
			}
			report.Results = append(report.Results, row)
			switch row.Status {
			case RepairFixed:
				report.Summary.FixedUsers++
			case RepairError:
				report.Summary.FailedUsers++
			}
		}
		if len(page) < s.cfg.BatchSize {
			break
		}
		lastID = page[len(page)-1].ID
	}

	report.Summary.TotalUsers = len(report.Results)
	report.Success = report.Summary.FailedUsers == 0
	report.Message = fmt.Sprintf("badge repair finished: %d of %d users fixed", report.Summary.FixedUsers, report.Summary.TotalUsers)
	if report.Summary.FailedUsers > 0 {
		report.Message += fmt.Sprintf(", %d failed", report.Summary.FailedUsers)
	}
	s.metrics.RecordRepairFixed(report.Summary.FixedUsers)
	s.logger.Info("badge repair finished",
		zap.Int("users", report.Summary.TotalUsers),
		zap.Int("fixed", report.Summary.FixedUsers),
		zap.Int("failed", report.Summary.FailedUsers))
	return report, nil
}

// repairUser 用户在遍历期间被删除时返回 ok=false
func (s *BadgeRepairService) repairUser(ctx context.Context, u model.User) (RepairUserResult, bool) {
	row := RepairUserResult{UserID: u.ID, Name: u.Name, Email: u.Email, Points: u.Points}
	var res ReconcileResult
	found := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := (&mysql.UserRepository{DB: tx}).LockByID(ctx, u.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				found = false
				return nil
			}
			return err
		}
		row.Points = user.Points
		res, err = s.reconciler.Reconcile(ctx, tx, user)
		return err
	})
	if err != nil {
		s.logger.Error("repair user badges failed", zap.String("user_id", u.ID), zap.Error(err))
		row.Status = RepairError
		row.Error = err.Error()
		return row, true
	}
	if !found {
		return row, false
	}

	s.reconciler.afterCommit(ctx, u.ID, res)
	row.BadgesAdded = len(res.Granted)
	row.BadgesRemoved = len(res.Revoked)
	row.EligibleBadges = res.Eligible
	row.Status = RepairAlreadyCorrect
	if res.Changed() {
		row.Status = RepairFixed
	}
	return row, true
}

// Run 周期性修复，Interval<=0 时不启动
func (s *BadgeRepairService) Run(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RepairAll(ctx); err != nil {
				if errors.Is(err, ErrRepairInProgress) {
					s.logger.Debug("badge repair skipped, another run holds the lock")
					continue
				}
				s.logger.Error("periodic badge repair failed", zap.Error(err))
			}
		}
	}
}
