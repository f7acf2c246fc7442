package service

import (
	"context"
	"time"

	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"
	"Civic_Report/internal/repository/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	leaderboardWarmSize = redis.LeaderboardSize
	leaderboardLockName = "leaderboard-warm"
	leaderboardLockTTL  = 5 * time.Second
)

// LeaderboardEntry 排行榜展示项
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

// LeaderboardService 市民积分榜：有序集合缓存 + MySQL 回源
type LeaderboardService struct {
	users  *mysql.UserRepository
	cache  *redis.LeaderboardRepository
	lock   Locker
	logger *zap.Logger
}

// NewLeaderboardService cache 为 nil 时始终查库
func NewLeaderboardService(db *gorm.DB, cache *redis.LeaderboardRepository, lock Locker, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{
		users:  &mysql.UserRepository{DB: db},
		cache:  cache,
		lock:   lock,
		logger: logger,
	}
}

// Top 先读缓存；未命中时抢锁回填，抢不到锁短暂退避后再读一次，仍未命中则直接查库
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > leaderboardWarmSize {
		limit = leaderboardWarmSize
	}
	if s.cache == nil {
		return s.fromDB(ctx, limit)
	}

	if list, ok, err := s.cache.Top(ctx, limit); err == nil && ok {
		return s.withNames(ctx, list)
	}

	token := uuid.NewString()
	got := false
	if s.lock != nil {
		got, _ = s.lock.Acquire(ctx, leaderboardLockName, token, leaderboardLockTTL)
	}
	if got {
		defer func() {
			if err := s.lock.Release(ctx, leaderboardLockName, token); err != nil {
				s.logger.Warn("release leaderboard lock failed", zap.Error(err))
			}
		}()
		// 第二次检查
		if list, ok, err := s.cache.Top(ctx, limit); err == nil && ok {
			return s.withNames(ctx, list)
		}
		users, err := s.users.TopCitizens(ctx, leaderboardWarmSize)
		if err != nil {
			return nil, NewInternalError("failed to load leaderboard", err)
		}
		entries := make([]redis.LeaderboardEntry, 0, len(users))
		for _, u := range users {
			entries = append(entries, redis.LeaderboardEntry{UserID: u.ID, Points: u.Points})
		}
		if err = s.cache.Warm(ctx, entries); err != nil {
			s.logger.Warn("warm leaderboard failed", zap.Error(err))
		}
		if len(users) > limit {
			users = users[:limit]
		}
		return rank(users), nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	if list, ok, err := s.cache.Top(ctx, limit); err == nil && ok {
		return s.withNames(ctx, list)
	}
	return s.fromDB(ctx, limit)
}

// Forget 角色变化等影响榜单成员时整体失效
func (s *LeaderboardService) Forget(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate leaderboard failed", zap.Error(err))
	}
}

func (s *LeaderboardService) fromDB(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	users, err := s.users.TopCitizens(ctx, limit)
	if err != nil {
		return nil, NewInternalError("failed to load leaderboard", err)
	}
	return rank(users), nil
}

// withNames 缓存只存 id 和分数，名称回库补齐；已删除的用户跳过
func (s *LeaderboardService) withNames(ctx context.Context, list []redis.LeaderboardEntry) ([]LeaderboardEntry, error) {
	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, NewInternalError("failed to load leaderboard users", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	out := make([]LeaderboardEntry, 0, len(list))
	for _, e := range list {
		name, ok := names[e.UserID]
		if !ok {
			continue
		}
		out = append(out, LeaderboardEntry{Rank: len(out) + 1, UserID: e.UserID, Name: name, Points: e.Points})
	}
	return out, nil
}

func rank(users []model.User) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		out = append(out, LeaderboardEntry{Rank: i + 1, UserID: u.ID, Name: u.Name, Points: u.Points})
	}
	return out
}
