package model

type User struct {
	UserID   uint64 `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username string `gorm:"column:username;type:text;not null;uniqueIndex"`
	Email    string `gorm:"column:email;type:text;not null;uniqueIndex"`
}

func (User) TableName() string {
	return "users"
}

type Follow struct {
	FollowID     uint64 `gorm:"column:follow_id;primaryKey;autoIncrement"`
	UserID       uint64 `gorm:"column:user_id;not null;uniqueIndex:ux_follows_user_repository,priority:1"`
	RepositoryID uint64 `gorm:"column:repository_id;not null;uniqueIndex:ux_follows_user_repository,priority:2;index"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
}

func (Follow) TableName() string {
	return "follows"
}
