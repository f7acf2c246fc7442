package handler

import (
	"net/http"

	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users       *service.UserService
	leaderboard *service.LeaderboardService
}

func NewUserHandler(users *service.UserService, leaderboard *service.LeaderboardService) *UserHandler {
	return &UserHandler{users: users, leaderboard: leaderboard}
}

// Me 当前用户积分与徽章
func (h *UserHandler) Me(c *gin.Context) {
	p, err := h.users.Profile(c.Request.Context(), userIDFromCtx(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Leaderboard 市民积分榜
func (h *UserHandler) Leaderboard(c *gin.Context) {
	list, err := h.leaderboard.Top(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
