package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IssueStatus 问题状态
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
	StatusFake       IssueStatus = "fake"
)

// Valid 判断状态是否合法
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusFake:
		return true
	}
	return false
}

// Text 通知里展示给市民的状态文字
func (s IssueStatus) Text() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusFake:
		return "Marked as Fake"
	}
	return string(s)
}

type Issue struct {
	ID                      string      `gorm:"primaryKey;size:36"`
	Title                   string      `gorm:"size:200;not null"`
	Description             string      `gorm:"type:text;not null"`
	CategoryID              string      `gorm:"size:36;not null;index"`
	LocationLat             float64     `gorm:"not null"`
	LocationLng             float64     `gorm:"not null"`
	LocationAddress         string      `gorm:"size:255;not null"`
	Status                  IssueStatus `gorm:"size:16;not null;default:pending;index"`
	PostedByUserID          string      `gorm:"size:36;not null;index"`
	AssignedToAuthorityID   *string     `gorm:"size:36;index"`
	EstimatedResolutionDate *time.Time
	ActualResolutionDate    *time.Time
	Photos                  datatypes.JSONSlice[string]
	CreatedAt               time.Time `gorm:"index"`
	UpdatedAt               time.Time
	DeletedAt               gorm.DeletedAt `gorm:"index"` // 软删除
}

// IssueUpdate 状态变更审计记录，只追加不修改
type IssueUpdate struct {
	ID           string      `gorm:"primaryKey;size:36"`
	IssueID      string      `gorm:"size:36;not null;index:idx_issue_time,priority:1"`
	AuthorityID  string      `gorm:"size:36;not null;index"`
	Comment      *string     `gorm:"type:text"`
	StatusChange IssueStatus `gorm:"size:16"`
	CreatedAt    time.Time   `gorm:"index:idx_issue_time,priority:2"`
}

// IssueUpdateView 审计记录附带处理人名称
type IssueUpdateView struct {
	IssueUpdate
	AuthorityName string
}
