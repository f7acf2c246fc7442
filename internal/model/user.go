package model

import "time"

// Role 用户角色
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

// Valid 判断角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAuthority, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string `gorm:"primaryKey;size:36"`
	Email     string `gorm:"uniqueIndex;size:128;not null"`
	Password  string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role      Role   `gorm:"size:16;not null;default:citizen;index"`
	Name      string `gorm:"size:64;not null"`
	Phone     string `gorm:"size:32"`
	Points    int64  `gorm:"not null;default:0;index"` // 只允许积分账本修改，可能为负
	CreatedAt time.Time
	UpdatedAt time.Time
}
