package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/infrastructure/persistence/sqlite/model"
	"gissues/internal/ports"
)

// upsertTarget describes how one entity kind is written: the natural-key conflict target,
// the columns refreshed on conflict and how rows are re-read after the write.
type upsertTarget[T any, M any] struct {
	kind          mirror.EntityKind
	conflict      []string
	updateColumns []string
	toModel       func(T) M
	reload        func(db *gorm.DB, items []T) ([]T, error)
	identity      func(T) (uint64, string)
}

// saveBatch upserts rows and appends one history record per row, built from the row as
// stored after the write, all inside one transaction.
func saveBatch[T any, M any](ctx context.Context, r *MirrorRepository, target upsertTarget[T, M], batch ports.WriteBatch[T]) ([]T, error) {
	if len(batch.Rows) == 0 {
		return nil, nil
	}
	switch batch.Change {
	case mirror.ChangeCreated, mirror.ChangeChanged:
	default:
		return nil, fmt.Errorf("unsupported change type %q for %s batch", batch.Change, target.kind)
	}
	if strings.TrimSpace(batch.RecordedAt) == "" {
		return nil, fmt.Errorf("recorded_at is required for %s batch", target.kind)
	}

	columns := make([]clause.Column, 0, len(target.conflict))
	for _, name := range target.conflict {
		columns = append(columns, clause.Column{Name: name})
	}

	var saved []T
	err := r.inTx(ctx, func(db *gorm.DB) error {
		rows := make([]M, 0, len(batch.Rows))
		for _, item := range batch.Rows {
			rows = append(rows, target.toModel(item))
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   columns,
			DoUpdates: clause.AssignmentColumns(target.updateColumns),
		}).CreateInBatches(&rows, upsertBatchSize).Error; err != nil {
			return errs.Wrapf(err, "upsert %s rows", target.kind)
		}

		reloaded, err := target.reload(db, batch.Rows)
		if err != nil {
			return err
		}

		history := make([]model.HistoryRecord, 0, len(reloaded))
		for _, item := range reloaded {
			snapshot, err := json.Marshal(item)
			if err != nil {
				return errs.Wrapf(err, "marshal %s snapshot", target.kind)
			}
			entityID, naturalKey := target.identity(item)
			history = append(history, model.HistoryRecord{
				EntityKind:   string(target.kind),
				EntityID:     entityID,
				NaturalKey:   naturalKey,
				ChangeType:   string(batch.Change),
				SnapshotJSON: string(snapshot),
				ActorUserID:  batch.ActorUserID,
				RecordedAt:   batch.RecordedAt,
			})
		}
		if err := db.CreateInBatches(&history, upsertBatchSize).Error; err != nil {
			return errs.Wrapf(err, "insert %s history", target.kind)
		}

		saved = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

var repositoryUpsert = upsertTarget[ports.Repository, model.Repository]{
	kind:          mirror.KindRepository,
	conflict:      []string{"owner_name", "name"},
	updateColumns: []string{"description", "is_private", "is_fork", "created_at", "updated_at", "pushed_at"},
	toModel: func(item ports.Repository) model.Repository {
		return model.Repository{
			OwnerName:   item.OwnerName,
			Name:        item.Name,
			Description: item.Description,
			IsPrivate:   item.IsPrivate,
			IsFork:      item.IsFork,
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
			PushedAt:    item.PushedAt,
		}
	},
	reload: func(db *gorm.DB, items []ports.Repository) ([]ports.Repository, error) {
		out := make([]ports.Repository, 0, len(items))
		for _, item := range items {
			var row model.Repository
			if err := db.Where("owner_name = ? AND name = ?", item.OwnerName, item.Name).Take(&row).Error; err != nil {
				return nil, errs.Wrapf(err, "reload repository %s", mirror.FormatRepositoryRef(item.OwnerName, item.Name))
			}
			out = append(out, mapRepository(row))
		}
		return out, nil
	},
	identity: func(item ports.Repository) (uint64, string) {
		return item.RepositoryID, mirror.FormatRepositoryRef(item.OwnerName, item.Name)
	},
}

var issueUpsert = upsertTarget[ports.Issue, model.Issue]{
	kind:     mirror.KindIssue,
	conflict: []string{"repository_id", "number"},
	updateColumns: []string{
		"title", "body", "is_closed", "closed_at", "state_reason",
		"is_locked", "lock_reason", "comment_count", "created_at", "updated_at",
	},
	toModel: func(item ports.Issue) model.Issue {
		return model.Issue{
			RepositoryID: item.RepositoryID,
			Number:       item.Number,
			Title:        item.Title,
			Body:         item.Body,
			IsClosed:     item.IsClosed,
			ClosedAt:     item.ClosedAt,
			StateReason:  item.StateReason,
			IsLocked:     item.IsLocked,
			LockReason:   item.LockReason,
			CommentCount: item.CommentCount,
			CreatedAt:    item.CreatedAt,
			UpdatedAt:    item.UpdatedAt,
		}
	},
	reload: func(db *gorm.DB, items []ports.Issue) ([]ports.Issue, error) {
		type issueKey struct {
			repositoryID uint64
			number       int
		}
		numbersByRepository := make(map[uint64][]int)
		for _, item := range items {
			numbersByRepository[item.RepositoryID] = append(numbersByRepository[item.RepositoryID], item.Number)
		}

		stored := make(map[issueKey]model.Issue, len(items))
		for repositoryID, numbers := range numbersByRepository {
			var rows []model.Issue
			if err := db.Where("repository_id = ? AND number IN ?", repositoryID, numbers).Find(&rows).Error; err != nil {
				return nil, errs.Wrap(err, "reload issues")
			}
			for _, row := range rows {
				stored[issueKey{row.RepositoryID, row.Number}] = row
			}
		}

		out := make([]ports.Issue, 0, len(items))
		for _, item := range items {
			row, ok := stored[issueKey{item.RepositoryID, item.Number}]
			if !ok {
				return nil, fmt.Errorf("reload issue %d in repository %d: %w", item.Number, item.RepositoryID, ports.ErrIssueNotFound)
			}
			out = append(out, mapIssue(row))
		}
		return out, nil
	},
	identity: func(item ports.Issue) (uint64, string) {
		return item.IssueID, strconv.FormatUint(item.RepositoryID, 10) + "#" + strconv.Itoa(item.Number)
	},
}

var commentUpsert = upsertTarget[ports.Comment, model.Comment]{
	kind:          mirror.KindComment,
	conflict:      []string{"comment_id"},
	updateColumns: []string{"issue_id", "body", "created_at", "updated_at"},
	toModel: func(item ports.Comment) model.Comment {
		return model.Comment{
			IssueID:   item.IssueID,
			CommentID: item.CommentID,
			Body:      item.Body,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		}
	},
	reload: func(db *gorm.DB, items []ports.Comment) ([]ports.Comment, error) {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.CommentID)
		}

		var rows []model.Comment
		if err := db.Where("comment_id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, errs.Wrap(err, "reload comments")
		}
		stored := make(map[int64]model.Comment, len(rows))
		for _, row := range rows {
			stored[row.CommentID] = row
		}

		out := make([]ports.Comment, 0, len(items))
		for _, item := range items {
			row, ok := stored[item.CommentID]
			if !ok {
				return nil, fmt.Errorf("reload comment %d: %w", item.CommentID, ports.ErrCommentNotFound)
			}
			out = append(out, mapComment(row))
		}
		return out, nil
	},
	identity: func(item ports.Comment) (uint64, string) {
		return item.CommentRowID, strconv.FormatInt(item.CommentID, 10)
	},
}
