package router

import (
	"net/http"

	"Civic_Report/internal/handler"
	"Civic_Report/internal/middleware"
	"Civic_Report/internal/model"
	"Civic_Report/internal/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	IssueStatus  *handler.IssueStatusHandler
	Issue        *handler.IssueHandler
	Notification *handler.NotificationHandler
	User         *handler.UserHandler
	Admin        *handler.AdminHandler
	Metrics      http.Handler
}

func InitRouter(h Handlers, tm *pkg.TokenManager, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"msg": "ok"}) })
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(tm))

	// 执法人员处理问题
	authorityGroup := api.Group("/authority/issues")
	authorityGroup.Use(middleware.RequireRole(model.RoleAuthority, model.RoleAdmin))
	{
		authorityGroup.GET("", h.IssueStatus.Queue)
		authorityGroup.POST("/:id/status", h.IssueStatus.UpdateStatus)
		authorityGroup.POST("/bulk-update", h.IssueStatus.BulkUpdate)
		authorityGroup.GET("/:id/updates", h.IssueStatus.History)
		authorityGroup.GET("/:id/metrics", h.IssueStatus.Metrics)
	}

	// 市民上报
	citizenGroup := api.Group("/citizen/issues")
	citizenGroup.Use(middleware.RequireRole(model.RoleCitizen))
	{
		citizenGroup.POST("", h.Issue.Report)
		citizenGroup.GET("", h.Issue.ListMine)
		citizenGroup.DELETE("/:id", h.Issue.Delete)
	}

	api.POST("/issues/:id/follow", h.Issue.ToggleFollow)

	notificationGroup := api.Group("/notifications")
	{
		notificationGroup.GET("", h.Notification.List)
		notificationGroup.POST("/mark-read", h.Notification.MarkRead)
	}

	api.GET("/me", h.User.Me)
	api.GET("/leaderboard", h.User.Leaderboard)

	// 管理后台
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.RequireRole(model.RoleAdmin))
	{
		adminGroup.POST("/fix-badges", h.Admin.FixBadges)

		adminGroup.GET("/badges", h.Admin.ListBadges)
		adminGroup.POST("/badges", h.Admin.CreateBadge)
		adminGroup.PUT("/badges/:id", h.Admin.UpdateBadge)
		adminGroup.DELETE("/badges/:id", h.Admin.DeleteBadge)

		adminGroup.GET("/categories", h.Admin.ListCategories)
		adminGroup.POST("/categories", h.Admin.CreateCategory)
		adminGroup.POST("/categories/:id/authorities", h.Admin.AssignAuthority)

		adminGroup.GET("/users", h.Admin.ListUsers)
		adminGroup.PUT("/users/:id/role", h.Admin.ChangeRole)
		adminGroup.POST("/users/:id/reset-points", h.Admin.ResetPoints)
	}

	return r
}
