package model

// All 需要自动建表的模型
func All() []any {
	return []any{
		&User{},
		&Badge{},
		&UserBadge{},
		&IssueCategory{},
		&Authority{},
		&Issue{},
		&IssueUpdate{},
		&IssueFollower{},
		&Notification{},
		&GamificationOutbox{},
	}
}
