package ports

import (
	"context"

	"github.com/google/go-github/v68/github"
)

// RemoteClient reads the upstream source of truth. Failures are *mirror.RemoteError.
type RemoteClient interface {
	FetchRepository(ctx context.Context, owner string, name string) (*github.Repository, error)
	FetchIssueList(ctx context.Context, owner string, name string) ([]*github.Issue, error)
	FetchIssueDetail(ctx context.Context, owner string, name string, number int) (*github.Issue, error)
	FetchCommentList(ctx context.Context, owner string, name string, issueNumber int) ([]*github.IssueComment, error)
	FetchCommentDetail(ctx context.Context, owner string, name string, commentID int64) (*github.IssueComment, error)
	FetchUserRepositories(ctx context.Context, username string) ([]*github.Repository, error)
}
