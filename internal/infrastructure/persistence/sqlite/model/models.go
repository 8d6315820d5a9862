package model

// All lists every table for AutoMigrate, parents first.
func All() []any {
	return []any{
		&Repository{},
		&Issue{},
		&Comment{},
		&User{},
		&Follow{},
		&HistoryRecord{},
		&KV{},
	}
}
