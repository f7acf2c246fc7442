package model

import "time"

type IssueCategory struct {
	ID                   string `gorm:"primaryKey;size:36"`
	Name                 string `gorm:"size:64;not null"`
	Description          string `gorm:"type:text"`
	Department           string `gorm:"size:128;not null"`
	DefaultEstimateHours int    `gorm:"not null;default:72"`
	CreatedAt            time.Time
}

// Authority 执法人员负责的问题类别（多对多）
type Authority struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     string `gorm:"size:36;not null;uniqueIndex:uk_authority_category"`
	CategoryID string `gorm:"size:36;not null;index;uniqueIndex:uk_authority_category"`
	CreatedAt  time.Time
}
