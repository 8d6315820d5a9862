package model

type Comment struct {
	CommentRowID uint64 `gorm:"column:comment_row_id;primaryKey;autoIncrement"`
	IssueID      uint64 `gorm:"column:issue_id;not null;index"`
	CommentID    int64  `gorm:"column:comment_id;not null;uniqueIndex"`
	Body         string `gorm:"column:body;type:text;not null"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string `gorm:"column:updated_at;type:text;not null"`
}

func (Comment) TableName() string {
	return "comments"
}
