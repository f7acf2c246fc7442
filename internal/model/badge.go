package model

import "time"

// Badge 积分达到门槛即可获得的徽章，全局定义
type Badge struct {
	ID             string `gorm:"primaryKey;size:36"`
	Name           string `gorm:"size:64;not null"`
	Description    string `gorm:"type:text"`
	PointsRequired int64  `gorm:"not null;index"`
	Icon           string `gorm:"size:32;not null"`
	CreatedAt      time.Time
}

// UserBadge 用户当前持有的徽章，只由徽章对账器增删
type UserBadge struct {
	ID       string    `gorm:"primaryKey;size:36"`
	UserID   string    `gorm:"size:36;not null;index"`
	BadgeID  string    `gorm:"size:36;not null;index"`
	EarnedAt time.Time `gorm:"not null"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

// EarnedBadge 用户徽章与徽章定义的联表结果
type EarnedBadge struct {
	Badge
	EarnedAt time.Time
}
