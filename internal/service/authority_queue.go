package service

import (
	"context"

	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"go.uber.org/zap"
)

// QueueItem 待处理列表中的一项
type QueueItem struct {
	model.Issue
	CategoryName string `json:"categoryName"`
	ReporterName string `json:"reporterName"`
}

// CategoryLoad 各类别的问题数
type CategoryLoad struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Department string `json:"department"`
	IssueCount int    `json:"issueCount"`
}

// QueueSummary 平均值只统计有数据的问题，没有时为 0
type QueueSummary struct {
	Total                     int     `json:"total"`
	Pending                   int     `json:"pending"`
	InProgress                int     `json:"inProgress"`
	Resolved                  int     `json:"resolved"`
	Fake                      int     `json:"fake"`
	AverageResolutionHours    float64 `json:"averageResolutionHours"`
	AverageFirstResponseHours float64 `json:"averageFirstResponseHours"`
}

// AuthorityQueue 执法人员的工作台
type AuthorityQueue struct {
	Issues     []QueueItem    `json:"issues"`
	Categories []CategoryLoad `json:"categories"`
	Summary    QueueSummary   `json:"summary"`
}

// AuthorityQueue 负责类别下所有未删除的问题及时效统计
func (s *IssueStatusService) AuthorityQueue(ctx context.Context, authorityID string) (*AuthorityQueue, error) {
	if authorityID == "" {
		return nil, NewValidationError("authority id is required", nil)
	}
	categories, err := (&mysql.CategoryRepository{DB: s.db}).ListForAuthority(ctx, authorityID)
	if err != nil {
		return nil, NewInternalError("failed to load categories", err)
	}
	q := &AuthorityQueue{Issues: []QueueItem{}, Categories: make([]CategoryLoad, 0, len(categories))}
	if len(categories) == 0 {
		return q, nil
	}

	categoryIDs := make([]string, 0, len(categories))
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryIDs = append(categoryIDs, c.ID)
		names[c.ID] = c.Name
	}
	issues, err := (&mysql.IssueRepository{DB: s.db}).ListByCategories(ctx, categoryIDs)
	if err != nil {
		return nil, NewInternalError("failed to load issues", err)
	}
	ids := issueIDs(issues)
	firstAt, err := (&mysql.IssueUpdateRepository{DB: s.db}).FirstUpdateTimes(ctx, ids)
	if err != nil {
		return nil, NewInternalError("failed to load issue history", err)
	}
	reporterNames, err := s.reporterNames(ctx, issues)
	if err != nil {
		return nil, err
	}

	perCategory := make(map[string]int, len(categories))
	var resolutionSum, responseSum float64
	var resolutionN, responseN int
	for _, issue := range issues {
		q.Issues = append(q.Issues, QueueItem{
			Issue:        issue,
			CategoryName: names[issue.CategoryID],
			ReporterName: reporterNames[issue.PostedByUserID],
		})
		perCategory[issue.CategoryID]++

		switch issue.Status {
		case model.StatusPending:
			q.Summary.Pending++
		case model.StatusInProgress:
			q.Summary.InProgress++
		case model.StatusResolved:
			q.Summary.Resolved++
			if issue.ActualResolutionDate != nil {
				resolutionSum += *hoursBetween(issue.CreatedAt, *issue.ActualResolutionDate)
				resolutionN++
			}
		case model.StatusFake:
			q.Summary.Fake++
		}
		if at, ok := firstAt[issue.ID]; ok {
			responseSum += *hoursBetween(issue.CreatedAt, at)
			responseN++
		}
	}
	q.Summary.Total = len(issues)
	if resolutionN > 0 {
		q.Summary.AverageResolutionHours = resolutionSum / float64(resolutionN)
	}
	if responseN > 0 {
		q.Summary.AverageFirstResponseHours = responseSum / float64(responseN)
	}
	for _, c := range categories {
		q.Categories = append(q.Categories, CategoryLoad{
			CategoryID: c.ID,
			Name:       c.Name,
			Department: c.Department,
			IssueCount: perCategory[c.ID],
		})
	}
	return q, nil
}

func (s *IssueStatusService) reporterNames(ctx context.Context, issues []model.Issue) (map[string]string, error) {
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.PostedByUserID)
	}
	users, err := (&mysql.UserRepository{DB: s.db}).FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		s.logger.Error("load reporters failed", zap.Error(err))
		return nil, NewInternalError("failed to load reporters", err)
	}
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Name
	}
	return out, nil
}
