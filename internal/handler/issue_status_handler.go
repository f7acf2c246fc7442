package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"Civic_Report/internal/model"
	"Civic_Report/internal/service"

	"github.com/gin-gonic/gin"
)

type IssueStatusHandler struct {
	svc *service.IssueStatusService
}

func NewIssueStatusHandler(svc *service.IssueStatusService) *IssueStatusHandler {
	return &IssueStatusHandler{svc: svc}
}

type updateStatusReq struct {
	Status        model.IssueStatus `json:"status" binding:"required"`
	Comment       string            `json:"comment"`
	EstimatedDate *time.Time        `json:"estimated_date"`
}

// bulkUpdateReq issue_ids 可以是数组，也可以是逗号分隔的字符串
type bulkUpdateReq struct {
	IssueIDs json.RawMessage   `json:"issue_ids" binding:"required"`
	Status   model.IssueStatus `json:"status" binding:"required"`
	Comment  string            `json:"comment"`
}

// UpdateStatus 单个问题状态变更
func (h *IssueStatusHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), service.StatusUpdateInput{
		AuthorityID:   userIDFromCtx(c),
		IssueID:       c.Param("id"),
		Status:        req.Status,
		Comment:       strings.TrimSpace(req.Comment),
		EstimatedDate: req.EstimatedDate,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"affected":             res.Affected,
		"side_effect_failures": len(res.SideEffectFailures),
	})
}

// BulkUpdate 批量状态变更
func (h *IssueStatusHandler) BulkUpdate(c *gin.Context) {
	var req bulkUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid params"})
		return
	}
	ids, ok := parseIssueIDs(req.IssueIDs)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "issue_ids must be an array or a comma separated string"})
		return
	}
	res, err := h.svc.BulkUpdate(c.Request.Context(), service.BulkStatusInput{
		AuthorityID: userIDFromCtx(c),
		IssueIDs:    ids,
		Status:      req.Status,
		Comment:     strings.TrimSpace(req.Comment),
	})
	if err != nil {
		c.JSON(service.StatusCode(err), gin.H{"success": false, "message": service.PublicMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "issues updated",
		"affected":             res.Affected,
		"side_effect_failures": len(res.SideEffectFailures),
	})
}

// Queue 负责类别下的问题列表与统计
func (h *IssueStatusHandler) Queue(c *gin.Context) {
	q, err := h.svc.AuthorityQueue(c.Request.Context(), userIDFromCtx(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// History 审计记录
func (h *IssueStatusHandler) History(c *gin.Context) {
	list, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

// Metrics 响应时效
func (h *IssueStatusHandler) Metrics(c *gin.Context) {
	m, err := h.svc.ResponseMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func parseIssueIDs(raw json.RawMessage) ([]string, bool) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, false
	}
	for _, id := range strings.Split(joined, ",") {
		if id = strings.TrimSpace(id); id != "" {
			list = append(list, id)
		}
	}
	return list, true
}
