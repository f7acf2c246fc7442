package handler

import (
	"net/http"

	"Civic_Report/internal/model"
	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin  *service.AdminService
	repair *service.BadgeRepairService
}

func NewAdminHandler(admin *service.AdminService, repair *service.BadgeRepairService) *AdminHandler {
	return &AdminHandler{admin: admin, repair: repair}
}

type badgeReq struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"points_required"`
	Icon           string `json:"icon" binding:"required"`
}

func (r badgeReq) input() service.BadgeInput {
	return service.BadgeInput{
		Name:           r.Name,
		Description:    r.Description,
		PointsRequired: r.PointsRequired,
		Icon:           r.Icon,
	}
}

type categoryReq struct {
	Name                 string `json:"name" binding:"required"`
	Description          string `json:"description"`
	Department           string `json:"department" binding:"required"`
	DefaultEstimateHours int    `json:"default_estimate_hours"`
}

type assignReq struct {
	UserID string `json:"user_id" binding:"required"`
}

type roleReq struct {
	Role model.Role `json:"role" binding:"required"`
}

// FixBadges 全量徽章修复，返回修复报告
func (h *AdminHandler) FixBadges(c *gin.Context) {
	report, err := h.repair.RepairAll(c.Request.Context())
	if err != nil {
		c.JSON(service.StatusCode(err), gin.H{"success": false, "message": service.PublicMessage(err)})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) ListBadges(c *gin.Context) {
	list, err := h.admin.ListBadges(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *AdminHandler) CreateBadge(c *gin.Context) {
	var req badgeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	b, err := h.admin.CreateBadge(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *AdminHandler) UpdateBadge(c *gin.Context) {
	var req badgeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	b, err := h.admin.UpdateBadge(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *AdminHandler) DeleteBadge(c *gin.Context) {
	if err := h.admin.DeleteBadge(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

func (h *AdminHandler) ListCategories(c *gin.Context) {
	list, err := h.admin.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	cat, err := h.admin.CreateCategory(c.Request.Context(), service.CategoryInput{
		Name:                 req.Name,
		Description:          req.Description,
		Department:           req.Department,
		DefaultEstimateHours: req.DefaultEstimateHours,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// AssignAuthority 把执法人员分配到类别
func (h *AdminHandler) AssignAuthority(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	if err := h.admin.AssignAuthority(c.Request.Context(), req.UserID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "assigned"})
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.admin.ListUsers(c.Request.Context(), model.Role(c.Query("role")), queryInt(c, "page", 1), queryInt(c, "size", 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *AdminHandler) ChangeRole(c *gin.Context) {
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	if err := h.admin.ChangeRole(c.Request.Context(), c.Param("id"), req.Role); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "updated"})
}

// ResetPoints 积分清零
func (h *AdminHandler) ResetPoints(c *gin.Context) {
	res, err := h.admin.ResetPoints(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"points":         res.Points,
		"badges_removed": len(res.Reconcile.Revoked),
		"badges_added":   len(res.Reconcile.Granted),
	})
}
