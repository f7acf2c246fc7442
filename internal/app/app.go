// Package app 组装仓储、服务与 handler，供 HTTP 服务和运维 CLI 共用。
package app

import (
	"context"
	"net/http"

	"Civic_Report/internal/config"
	"Civic_Report/internal/handler"
	"Civic_Report/internal/metrics"
	"Civic_Report/internal/pkg"
	rdsrepo "Civic_Report/internal/repository/redis"
	"Civic_Report/internal/router"
	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Tokens  *pkg.TokenManager

	Notifications *service.NotificationService
	Reconciler    *service.BadgeReconciler
	Ledger        *service.Ledger
	IssueStatus   *service.IssueStatusService
	Issues        *service.IssueService
	Follows       *service.FollowService
	Repair        *service.BadgeRepairService
	Users         *service.UserService
	Leaderboard   *service.LeaderboardService
	Admin         *service.AdminService
	Email         *service.EmailService

	db       *gorm.DB
	gatherer prometheus.Gatherer
}

// New reg 为 nil 时不注册指标
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, reg *prometheus.Registry, logger *zap.Logger) *App {
	var m *metrics.Collector
	var gatherer prometheus.Gatherer
	if reg != nil {
		m = metrics.NewCollector(reg)
		gatherer = reg
	}
	board := rdsrepo.NewLeaderboardRepository(rdb)
	lock := rdsrepo.NewDistLock(rdb)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Tokens:   pkg.NewTokenManager(cfg.JWTSecret, pkg.AccessTTL),
		db:       db,
		gatherer: gatherer,
	}
	a.Notifications = service.NewNotificationService(db, m, logger)
	a.Reconciler = service.NewBadgeReconciler(db, a.Notifications, m, logger)
	a.Ledger = service.NewLedger(db, a.Reconciler, a.Notifications, board, m, logger)
	a.IssueStatus = service.NewIssueStatusService(db, a.Ledger, a.Notifications, cfg.Points, m, logger)
	a.Issues = service.NewIssueService(db, a.Ledger, a.Notifications, cfg.Points, m, logger)
	a.Follows = service.NewFollowService(db, a.Ledger, cfg.Points, logger)
	a.Repair = service.NewBadgeRepairService(db, a.Reconciler, lock, service.RepairConfig{
		BatchSize: cfg.ReconcileBatchSize,
		LockTTL:   cfg.RepairLockTTL,
		Interval:  cfg.ReconcileInterval,
	}, m, logger)
	a.Users = service.NewUserService(db, a.Reconciler, a.Notifications, logger)
	a.Leaderboard = service.NewLeaderboardService(db, board, lock, logger)
	a.Admin = service.NewAdminService(db, a.Ledger, a.Leaderboard, logger)
	a.Email = service.NewEmailService(cfg.SMTP, db, logger)
	return a
}

// Router HTTP 路由
func (a *App) Router() *gin.Engine {
	var metricsHandler http.Handler
	if a.gatherer != nil {
		metricsHandler = metrics.Handler(a.gatherer)
	}
	return router.InitRouter(router.Handlers{
		IssueStatus:  handler.NewIssueStatusHandler(a.IssueStatus),
		Issue:        handler.NewIssueHandler(a.Issues, a.Follows),
		Notification: handler.NewNotificationHandler(a.Notifications),
		User:         handler.NewUserHandler(a.Users, a.Leaderboard),
		Admin:        handler.NewAdminHandler(a.Admin, a.Repair),
		Metrics:      metricsHandler,
	}, a.Tokens, a.Logger)
}

// Relayer outbox 投递器；配置了 Kafka 时投递到 topic，否则只打日志，配置了 SMTP 时额外发送徽章邮件
func (a *App) Relayer(publisher service.EventPublisher) *service.OutboxRelayer {
	var primary service.Sender
	if publisher != nil {
		primary = service.KafkaSender(publisher)
	} else {
		primary = service.LogSender(a.Logger)
	}
	sender := primary
	if a.Config.SMTP.Enabled() {
		sender = service.ChainSenders(primary, a.Email.Sender)
	}
	return service.NewOutboxRelayer(a.db, sender, service.RelayerConfig{
		BatchSize: a.Config.OutboxBatchSize,
		Interval:  a.Config.OutboxInterval,
		MaxRetry:  a.Config.OutboxMaxRetry,
	}, a.Metrics, a.Logger)
}

// RunBackground 启动 outbox 投递和周期修复，ctx 取消时退出
func (a *App) RunBackground(ctx context.Context, relayer *service.OutboxRelayer) {
	go relayer.Run(ctx)
	go a.Repair.Run(ctx)
}
