package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/infrastructure/persistence/sqlite/model"
	"gissues/internal/ports"
)

const upsertBatchSize = 200

type MirrorRepository struct {
	db *gorm.DB
}

var _ ports.MirrorRepository = (*MirrorRepository)(nil)

func NewMirrorRepository(db *gorm.DB) *MirrorRepository {
	return &MirrorRepository{db: db}
}

func (r *MirrorRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn on the transaction carried by ctx, opening one when there is none.
func (r *MirrorRepository) inTx(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.InTx(ctx) {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.inTx(ports.WithTxContext(ctx, tx), fn)
	})
}

func (r *MirrorRepository) GetRepository(ctx context.Context, ownerName string, name string) (ports.Repository, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Repository{}, err
	}

	var row model.Repository
	if err := db.Where("owner_name = ? AND name = ?", ownerName, name).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Repository{}, ports.ErrRepositoryNotFound
		}
		return ports.Repository{}, errs.Wrap(err, "query repository")
	}
	return mapRepository(row), nil
}

func (r *MirrorRepository) GetIssue(ctx context.Context, repositoryID uint64, number int) (ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Issue{}, err
	}

	var row model.Issue
	if err := db.Where("repository_id = ? AND number = ?", repositoryID, number).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, ports.ErrIssueNotFound
		}
		return ports.Issue{}, errs.Wrap(err, "query issue")
	}
	return mapIssue(row), nil
}

func (r *MirrorRepository) GetComment(ctx context.Context, commentID int64) (ports.Comment, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Comment{}, err
	}

	var row model.Comment
	if err := db.Where("comment_id = ?", commentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Comment{}, ports.ErrCommentNotFound
		}
		return ports.Comment{}, errs.Wrap(err, "query comment")
	}
	return mapComment(row), nil
}

func (r *MirrorRepository) GetUser(ctx context.Context, username string) (ports.User, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("username = ?", strings.TrimSpace(username)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user")
	}
	return mapUser(row), nil
}

func (r *MirrorRepository) ListIssues(ctx context.Context, repositoryID uint64) ([]ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Issue
	if err := db.Where("repository_id = ?", repositoryID).Order("number asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query issues")
	}

	items := make([]ports.Issue, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIssue(row))
	}
	return items, nil
}

func (r *MirrorRepository) ListComments(ctx context.Context, issueID uint64) ([]ports.Comment, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Comment
	if err := db.Where("issue_id = ?", issueID).Order("comment_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query comments")
	}

	items := make([]ports.Comment, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapComment(row))
	}
	return items, nil
}

// ListCommentsByIDs returns the stored comments with the given GitHub ids, whatever issue
// they are attached to.
func (r *MirrorRepository) ListCommentsByIDs(ctx context.Context, commentIDs []int64) ([]ports.Comment, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Comment
	if err := db.Where("comment_id IN ?", commentIDs).Order("comment_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query comments by id")
	}

	items := make([]ports.Comment, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapComment(row))
	}
	return items, nil
}

type followedRow struct {
	RepositoryID    uint64 `gorm:"column:repository_id"`
	OwnerName       string `gorm:"column:owner_name"`
	Name            string `gorm:"column:name"`
	FollowCreatedAt string `gorm:"column:follow_created_at"`
	UserID          uint64 `gorm:"column:user_id"`
	Username        string `gorm:"column:username"`
	Email           string `gorm:"column:email"`
}

func (r *MirrorRepository) ListFollowedRepositories(ctx context.Context) ([]ports.FollowedRepository, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []followedRow
	if err := db.Table("follows AS f").
		Select("r.repository_id, r.owner_name, r.name, f.created_at AS follow_created_at, u.user_id, u.username, u.email").
		Joins("JOIN repositories AS r ON r.repository_id = f.repository_id").
		Joins("JOIN users AS u ON u.user_id = f.user_id").
		Order("r.owner_name asc, r.name asc, u.username asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query followed repositories")
	}

	items := make([]ports.FollowedRepository, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.FollowedRepository{
			RepositoryID:    row.RepositoryID,
			OwnerName:       row.OwnerName,
			Name:            row.Name,
			FollowCreatedAt: row.FollowCreatedAt,
			UserID:          row.UserID,
			Username:        row.Username,
			FollowerEmail:   row.Email,
		})
	}
	return items, nil
}

func (r *MirrorRepository) ListHistory(ctx context.Context, filter ports.HistoryFilter) ([]ports.HistoryRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.HistoryRecord{})
	if filter.EntityKind != "" {
		query = query.Where("entity_kind = ?", string(filter.EntityKind))
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.HistoryRecord
	if err := query.Order("history_id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query history")
	}

	items := make([]ports.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.HistoryRecord{
			HistoryID:    row.HistoryID,
			EntityKind:   mirror.EntityKind(row.EntityKind),
			EntityID:     row.EntityID,
			NaturalKey:   row.NaturalKey,
			ChangeType:   mirror.ChangeType(row.ChangeType),
			SnapshotJSON: row.SnapshotJSON,
			ActorUserID:  row.ActorUserID,
			RecordedAt:   row.RecordedAt,
		})
	}
	return items, nil
}

const repositorySummaryQuery = `
SELECT
	r.repository_id,
	r.owner_name,
	r.name,
	r.updated_at,
	(SELECT COUNT(*) FROM issues i WHERE i.repository_id = r.repository_id) AS issue_count,
	(SELECT COUNT(*) FROM issues i WHERE i.repository_id = r.repository_id AND i.is_closed = 0) AS open_issue_count,
	(SELECT COUNT(*) FROM comments c JOIN issues i ON i.issue_id = c.issue_id WHERE i.repository_id = r.repository_id) AS comment_count,
	(SELECT COUNT(*) FROM follows f WHERE f.repository_id = r.repository_id) AS follower_count
FROM repositories r
ORDER BY r.owner_name ASC, r.name ASC`

type summaryRow struct {
	RepositoryID   uint64 `gorm:"column:repository_id"`
	OwnerName      string `gorm:"column:owner_name"`
	Name           string `gorm:"column:name"`
	UpdatedAt      string `gorm:"column:updated_at"`
	IssueCount     int64  `gorm:"column:issue_count"`
	OpenIssueCount int64  `gorm:"column:open_issue_count"`
	CommentCount   int64  `gorm:"column:comment_count"`
	FollowerCount  int64  `gorm:"column:follower_count"`
}

func (r *MirrorRepository) ListRepositorySummaries(ctx context.Context) ([]ports.RepositorySummary, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []summaryRow
	if err := db.Raw(repositorySummaryQuery).Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query repository summaries")
	}

	items := make([]ports.RepositorySummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.RepositorySummary(row))
	}
	return items, nil
}

func (r *MirrorRepository) SaveRepositories(ctx context.Context, batch ports.WriteBatch[ports.Repository]) ([]ports.Repository, error) {
	return saveBatch(ctx, r, repositoryUpsert, batch)
}

func (r *MirrorRepository) SaveIssues(ctx context.Context, batch ports.WriteBatch[ports.Issue]) ([]ports.Issue, error) {
	return saveBatch(ctx, r, issueUpsert, batch)
}

func (r *MirrorRepository) SaveComments(ctx context.Context, batch ports.WriteBatch[ports.Comment]) ([]ports.Comment, error) {
	return saveBatch(ctx, r, commentUpsert, batch)
}

func (r *MirrorRepository) EnsureUser(ctx context.Context, username string, email string) (ports.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return ports.User{}, mirror.Validationf("username and email are required")
	}

	var user ports.User
	err := r.inTx(ctx, func(db *gorm.DB) error {
		row := model.User{Username: username, Email: email}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"email"}),
		}).Create(&row).Error; err != nil {
			return errs.Wrap(err, "upsert user")
		}

		var saved model.User
		if err := db.Where("username = ?", username).Take(&saved).Error; err != nil {
			return errs.Wrap(err, "reload user")
		}
		user = mapUser(saved)
		return nil
	})
	if err != nil {
		return ports.User{}, err
	}
	return user, nil
}

func (r *MirrorRepository) Follow(ctx context.Context, userID uint64, repositoryID uint64, createdAt string) (ports.Follow, bool, error) {
	var (
		follow  ports.Follow
		created bool
	)
	err := r.inTx(ctx, func(db *gorm.DB) error {
		row := model.Follow{UserID: userID, RepositoryID: repositoryID, CreatedAt: createdAt}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "repository_id"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return errs.Wrap(result.Error, "insert follow")
		}
		created = result.RowsAffected > 0

		var saved model.Follow
		if err := db.Where("user_id = ? AND repository_id = ?", userID, repositoryID).Take(&saved).Error; err != nil {
			return errs.Wrap(err, "reload follow")
		}
		follow = ports.Follow{
			FollowID:     saved.FollowID,
			UserID:       saved.UserID,
			RepositoryID: saved.RepositoryID,
			CreatedAt:    saved.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return ports.Follow{}, false, err
	}
	return follow, created, nil
}

func (r *MirrorRepository) Unfollow(ctx context.Context, userID uint64, repositoryID uint64) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Where("user_id = ? AND repository_id = ?", userID, repositoryID).Delete(&model.Follow{})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "delete follow")
	}
	return result.RowsAffected > 0, nil
}

func mapRepository(row model.Repository) ports.Repository {
	return ports.Repository{
		RepositoryID: row.RepositoryID,
		OwnerName:    row.OwnerName,
		Name:         row.Name,
		Description:  row.Description,
		IsPrivate:    row.IsPrivate,
		IsFork:       row.IsFork,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		PushedAt:     row.PushedAt,
	}
}

func mapIssue(row model.Issue) ports.Issue {
	return ports.Issue{
		IssueID:      row.IssueID,
		RepositoryID: row.RepositoryID,
		Number:       row.Number,
		Title:        row.Title,
		Body:         row.Body,
		IsClosed:     row.IsClosed,
		ClosedAt:     row.ClosedAt,
		StateReason:  row.StateReason,
		IsLocked:     row.IsLocked,
		LockReason:   row.LockReason,
		CommentCount: row.CommentCount,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func mapComment(row model.Comment) ports.Comment {
	return ports.Comment{
		CommentRowID: row.CommentRowID,
		IssueID:      row.IssueID,
		CommentID:    row.CommentID,
		Body:         row.Body,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func mapUser(row model.User) ports.User {
	return ports.User{
		UserID:   row.UserID,
		Username: row.Username,
		Email:    row.Email,
	}
}
