package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"Civic_Report/internal/config"
	"Civic_Report/internal/metrics"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"
	rdsrepo "Civic_Report/internal/repository/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db      *gorm.DB
	rdb     *goredis.Client
	mr      *miniredis.Miniredis
	metrics *metrics.Collector
	reg     *prometheus.Registry

	notifier    *NotificationService
	reconciler  *BadgeReconciler
	board       *rdsrepo.LeaderboardRepository
	lock        *rdsrepo.DistLock
	ledger      *Ledger
	status      *IssueStatusService
	issues      *IssueService
	follows     *FollowService
	repair      *BadgeRepairService
	users       *UserService
	leaderboard *LeaderboardService
	admin       *AdminService
}

// newTestDB 每个测试一个独立的内存库；单连接保证事务内外看到同一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPoints(t, config.DefaultPoints())
}

func newTestEnvWithPoints(t *testing.T, points config.PointsConfig) *testEnv {
	t.Helper()
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)
	log := zap.NewNop()

	e := &testEnv{db: db, rdb: rdb, mr: mr, metrics: m, reg: reg}
	e.notifier = NewNotificationService(db, m, log)
	e.reconciler = NewBadgeReconciler(db, e.notifier, m, log)
	e.board = rdsrepo.NewLeaderboardRepository(rdb)
	e.lock = rdsrepo.NewDistLock(rdb)
	e.ledger = NewLedger(db, e.reconciler, e.notifier, e.board, m, log)
	e.status = NewIssueStatusService(db, e.ledger, e.notifier, points, m, log)
	e.issues = NewIssueService(db, e.ledger, e.notifier, points, m, log)
	e.follows = NewFollowService(db, e.ledger, points, log)
	e.repair = NewBadgeRepairService(db, e.reconciler, e.lock, RepairConfig{BatchSize: 2}, m, log)
	e.users = NewUserService(db, e.reconciler, e.notifier, log)
	e.leaderboard = NewLeaderboardService(db, e.board, e.lock, log)
	e.admin = NewAdminService(db, e.ledger, e.leaderboard, log)
	return e
}

// seedBadges Starter(0) Active(50) Champion(150)
func (e *testEnv) seedBadges(t *testing.T) (starter, active, champion model.Badge) {
	t.Helper()
	starter = e.seedBadge(t, "Starter", 0)
	active = e.seedBadge(t, "Active", 50)
	champion = e.seedBadge(t, "Champion", 150)
	return
}

func (e *testEnv) seedBadge(t *testing.T, name string, required int64) model.Badge {
	t.Helper()
	b := model.Badge{ID: uuid.NewString(), Name: name, PointsRequired: required, Icon: "*", CreatedAt: time.Now()}
	require.NoError(t, e.db.Create(&b).Error)
	return b
}

func (e *testEnv) seedUser(t *testing.T, role model.Role, points int64) model.User {
	t.Helper()
	id := uuid.NewString()
	u := model.User{
		ID:       id,
		Email:    id + "@example.com",
		Password: "x",
		Role:     role,
		Name:     "user-" + id[:8],
		Points:   points,
	}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

func (e *testEnv) seedCategory(t *testing.T) model.IssueCategory {
	t.Helper()
	c := model.IssueCategory{ID: uuid.NewString(), Name: "Roads", Department: "Public Works", DefaultEstimateHours: 48}
	require.NoError(t, e.db.Create(&c).Error)
	return c
}

func (e *testEnv) seedIssue(t *testing.T, reporterID string) model.Issue {
	t.Helper()
	c := e.seedCategory(t)
	issue := model.Issue{
		ID:              uuid.NewString(),
		Title:           "Pothole on " + reporterID[:8],
		Description:     "deep",
		CategoryID:      c.ID,
		LocationAddress: "Main St",
		Status:          model.StatusPending,
		PostedByUserID:  reporterID,
		CreatedAt:       time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, e.db.Create(&issue).Error)
	return issue
}

// grantRaw 绕过对账直接写入持有记录，用于构造历史脏数据
func (e *testEnv) grantRaw(t *testing.T, userID, badgeID string) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.UserBadge{ID: uuid.NewString(), UserID: userID, BadgeID: badgeID, EarnedAt: time.Now()}).Error)
}

func (e *testEnv) points(t *testing.T, userID string) int64 {
	t.Helper()
	var u model.User
	require.NoError(t, e.db.Where("id = ?", userID).First(&u).Error)
	return u.Points
}

func (e *testEnv) heldBadgeIDs(t *testing.T, userID string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, e.db.Model(&model.UserBadge{}).Where("user_id = ?", userID).Order("badge_id").Pluck("badge_id", &ids).Error)
	return ids
}

func (e *testEnv) notifications(t *testing.T, userID string) []model.Notification {
	t.Helper()
	var list []model.Notification
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&list).Error)
	return list
}

func (e *testEnv) outboxEvents(t *testing.T, event string) []model.GamificationOutbox {
	t.Helper()
	var list []model.GamificationOutbox
	require.NoError(t, e.db.Where("event_type = ?", event).Order("id ASC").Find(&list).Error)
	return list
}

// assertBadgeInvariant 持有集合恰好等于积分门槛内的徽章
func (e *testEnv) assertBadgeInvariant(t *testing.T, userID string) {
	t.Helper()
	var eligible []string
	require.NoError(t, e.db.Model(&model.Badge{}).
		Where("points_required <= ?", e.points(t, userID)).
		Order("id").Pluck("id", &eligible).Error)
	held := e.heldBadgeIDs(t, userID)
	if len(eligible) == 0 {
		require.Empty(t, held)
		return
	}
	require.Equal(t, eligible, held)
}

func strPtr(s string) *string { return &s }

var bg = context.Background()
