package handler

import (
	"net/http"

	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
)

type IssueHandler struct {
	svc     *service.IssueService
	follows *service.FollowService
}

func NewIssueHandler(svc *service.IssueService, follows *service.FollowService) *IssueHandler {
	return &IssueHandler{svc: svc, follows: follows}
}

type reportReq struct {
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description" binding:"required"`
	CategoryID      string   `json:"category_id" binding:"required"`
	LocationLat     float64  `json:"location_lat"`
	LocationLng     float64  `json:"location_lng"`
	LocationAddress string   `json:"location_address" binding:"required"`
	Photos          []string `json:"photos"`
}

// Report 市民上报问题
func (h *IssueHandler) Report(c *gin.Context) {
	var req reportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	res, err := h.svc.Report(c.Request.Context(), userIDFromCtx(c), service.ReportInput{
		Title:           req.Title,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		LocationLat:     req.LocationLat,
		LocationLng:     req.LocationLng,
		LocationAddress: req.LocationAddress,
		Photos:          req.Photos,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": res.Issue.ID, "points_awarded": res.PointsAwarded})
}

// ListMine 我上报的问题
func (h *IssueHandler) ListMine(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 20)
	list, err := h.svc.ListByReporter(c.Request.Context(), userIDFromCtx(c), page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "page": page})
}

// Delete 幂等删除
func (h *IssueHandler) Delete(c *gin.Context) {
	if err := h.svc.SoftDelete(c.Request.Context(), userIDFromCtx(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

// ToggleFollow 关注/取消关注问题
func (h *IssueHandler) ToggleFollow(c *gin.Context) {
	res, err := h.follows.Toggle(c.Request.Context(), userIDFromCtx(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": res.Following})
}
