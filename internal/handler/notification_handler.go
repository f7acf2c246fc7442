package handler

import (
	"net/http"

	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type markReadReq struct {
	NotificationID string `json:"notification_id" binding:"required"`
}

// List 最新的在前
func (h *NotificationHandler) List(c *gin.Context) {
	uid := userIDFromCtx(c)
	list, err := h.svc.List(c.Request.Context(), uid, queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	unread, err := h.svc.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "unread": unread})
}

// MarkRead 只能标记自己的通知，不存在时 updated=false
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	ok, err := h.svc.MarkRead(c.Request.Context(), userIDFromCtx(c), req.NotificationID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": ok})
}
