package model

import "time"

type Notification struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:36;not null;index:idx_user_time,priority:1"`
	IssueID   *string   `gorm:"size:36;index"`
	Message   string    `gorm:"type:text;not null"`
	Read      bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_user_time,priority:2"`
}
