package ports

import (
	"context"
	"errors"

	"gissues/internal/domain/mirror"
)

var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrIssueNotFound      = errors.New("issue not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrUserNotFound       = errors.New("user not found")
)

// Repository is the local mirror of a GitHub repository. The JSON form is both the
// export shape and the history snapshot.
type Repository struct {
	RepositoryID uint64  `json:"-"`
	OwnerName    string  `json:"owner_name"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	IsPrivate    bool    `json:"is_private"`
	IsFork       bool    `json:"is_fork"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	PushedAt     *string `json:"pushed_at,omitempty"`
}

type Issue struct {
	IssueID      uint64  `json:"-"`
	RepositoryID uint64  `json:"-"`
	Number       int     `json:"number"`
	Title        string  `json:"title"`
	Body         string  `json:"body"`
	IsClosed     bool    `json:"is_closed"`
	ClosedAt     *string `json:"closed_at,omitempty"`
	StateReason  *string `json:"state_reason,omitempty"`
	IsLocked     bool    `json:"is_locked"`
	LockReason   *string `json:"lock_reason,omitempty"`
	CommentCount int     `json:"comment_count"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type Comment struct {
	CommentRowID uint64 `json:"-"`
	IssueID      uint64 `json:"-"`
	CommentID    int64  `json:"comment_id"`
	Body         string `json:"body"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type User struct {
	UserID   uint64
	Username string
	Email    string
}

type Follow struct {
	FollowID     uint64
	UserID       uint64
	RepositoryID uint64
	CreatedAt    string
}

// FollowedRepository is one (repository, follower) pair; a repository with two
// followers yields two entries.
type FollowedRepository struct {
	RepositoryID    uint64
	OwnerName       string
	Name            string
	FollowCreatedAt string
	UserID          uint64
	Username        string
	FollowerEmail   string
}

type HistoryRecord struct {
	HistoryID    uint64
	EntityKind   mirror.EntityKind
	EntityID     uint64
	NaturalKey   string
	ChangeType   mirror.ChangeType
	SnapshotJSON string
	ActorUserID  *uint64
	RecordedAt   string
}

type HistoryFilter struct {
	EntityKind mirror.EntityKind
	EntityID   uint64
	Limit      int
}

type RepositorySummary struct {
	RepositoryID   uint64
	OwnerName      string
	Name           string
	UpdatedAt      string
	IssueCount     int64
	OpenIssueCount int64
	CommentCount   int64
	FollowerCount  int64
}

// WriteBatch is one batched upsert. Every row gets a history record tagged Change.
type WriteBatch[T any] struct {
	Rows        []T
	Change      mirror.ChangeType
	ActorUserID *uint64
	RecordedAt  string
}

type MirrorReadRepository interface {
	GetRepository(ctx context.Context, ownerName string, name string) (Repository, error)
	GetIssue(ctx context.Context, repositoryID uint64, number int) (Issue, error)
	GetComment(ctx context.Context, commentID int64) (Comment, error)
	GetUser(ctx context.Context, username string) (User, error)
	ListIssues(ctx context.Context, repositoryID uint64) ([]Issue, error)
	ListComments(ctx context.Context, issueID uint64) ([]Comment, error)
	ListCommentsByIDs(ctx context.Context, commentIDs []int64) ([]Comment, error)
	ListFollowedRepositories(ctx context.Context) ([]FollowedRepository, error)
	ListHistory(ctx context.Context, filter HistoryFilter) ([]HistoryRecord, error)
	ListRepositorySummaries(ctx context.Context) ([]RepositorySummary, error)
}

// MirrorRepository writes are upserts keyed by natural id; the returned rows are re-read
// after the write and carry their surrogate ids.
type MirrorRepository interface {
	MirrorReadRepository
	SaveRepositories(ctx context.Context, batch WriteBatch[Repository]) ([]Repository, error)
	SaveIssues(ctx context.Context, batch WriteBatch[Issue]) ([]Issue, error)
	SaveComments(ctx context.Context, batch WriteBatch[Comment]) ([]Comment, error)
	EnsureUser(ctx context.Context, username string, email string) (User, error)
	Follow(ctx context.Context, userID uint64, repositoryID uint64, createdAt string) (Follow, bool, error)
	Unfollow(ctx context.Context, userID uint64, repositoryID uint64) (bool, error)
}
