package model

type Repository struct {
	RepositoryID uint64  `gorm:"column:repository_id;primaryKey;autoIncrement"`
	OwnerName    string  `gorm:"column:owner_name;type:text;not null;uniqueIndex:ux_repositories_owner_name,priority:1"`
	Name         string  `gorm:"column:name;type:text;not null;uniqueIndex:ux_repositories_owner_name,priority:2"`
	Description  *string `gorm:"column:description;type:text"`
	IsPrivate    bool    `gorm:"column:is_private;not null;default:false"`
	IsFork       bool    `gorm:"column:is_fork;not null;default:false"`
	CreatedAt    string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string  `gorm:"column:updated_at;type:text;not null"`
	PushedAt     *string `gorm:"column:pushed_at;type:text"`
}

func (Repository) TableName() string {
	return "repositories"
}
