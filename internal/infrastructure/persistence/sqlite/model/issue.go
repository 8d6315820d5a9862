package model

type Issue struct {
	IssueID      uint64  `gorm:"column:issue_id;primaryKey;autoIncrement"`
	RepositoryID uint64  `gorm:"column:repository_id;not null;uniqueIndex:ux_issues_repository_number,priority:1"`
	Number       int     `gorm:"column:number;not null;uniqueIndex:ux_issues_repository_number,priority:2"`
	Title        string  `gorm:"column:title;type:text;not null"`
	Body         string  `gorm:"column:body;type:text;not null"`
	IsClosed     bool    `gorm:"column:is_closed;not null;default:false"`
	ClosedAt     *string `gorm:"column:closed_at;type:text"`
	StateReason  *string `gorm:"column:state_reason;type:text"`
	IsLocked     bool    `gorm:"column:is_locked;not null;default:false"`
	LockReason   *string `gorm:"column:lock_reason;type:text"`
	CommentCount int     `gorm:"column:comment_count;not null;default:0"`
	CreatedAt    string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string  `gorm:"column:updated_at;type:text;not null"`
}

func (Issue) TableName() string {
	return "issues"
}
