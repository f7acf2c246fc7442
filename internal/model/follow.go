package model

import (
	"time"

	"gorm.io/datatypes"
)

// IssueFollower 用户关注的问题
type IssueFollower struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:uk_follower_issue"`
	IssueID   string `gorm:"size:36;not null;index;uniqueIndex:uk_follower_issue"`
	CreatedAt time.Time
}

const (
	EventPointsAwarded = "points_awarded"
	EventBadgeGranted  = "badge_granted"
	EventBadgeRevoked  = "badge_revoked"
	EventStatusChanged = "status_changed"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// GamificationOutbox 积分/徽章/状态事件表，与业务写在同一事务里
type GamificationOutbox struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	EventType string         `gorm:"size:32;not null"`
	UserID    string         `gorm:"size:36;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	Status    int8           `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry     int            `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GamificationOutbox) TableName() string { return "gamification_outbox" }
