package model

type HistoryRecord struct {
	HistoryID    uint64  `gorm:"column:history_id;primaryKey;autoIncrement"`
	EntityKind   string  `gorm:"column:entity_kind;type:text;not null;index:ix_history_entity,priority:1"`
	EntityID     uint64  `gorm:"column:entity_id;not null;index:ix_history_entity,priority:2"`
	NaturalKey   string  `gorm:"column:natural_key;type:text;not null"`
	ChangeType   string  `gorm:"column:change_type;type:text;not null"`
	SnapshotJSON string  `gorm:"column:snapshot_json;type:text;not null"`
	ActorUserID  *uint64 `gorm:"column:actor_user_id"`
	RecordedAt   string  `gorm:"column:recorded_at;type:text;not null"`
}

func (HistoryRecord) TableName() string {
	return "history_records"
}
