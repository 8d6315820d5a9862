package mirror

import (
	"strings"

	"github.com/google/go-github/v68/github"

	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/ports"
)

// ToRepository maps an upstream repository onto the stored shape.
func ToRepository(repo *github.Repository) (ports.Repository, error) {
	if repo == nil {
		return ports.Repository{}, domainmirror.Validationf("repository payload is empty")
	}
	owner := strings.TrimSpace(repo.GetOwner().GetLogin())
	name := strings.TrimSpace(repo.GetName())
	if owner == "" || name == "" {
		return ports.Repository{}, domainmirror.Validationf("repository payload is missing owner or name")
	}

	createdAt, err := requiredTimestamp("repository created_at", repo.CreatedAt)
	if err != nil {
		return ports.Repository{}, err
	}
	updatedAt, err := requiredTimestamp("repository updated_at", repo.UpdatedAt)
	if err != nil {
		return ports.Repository{}, err
	}

	return ports.Repository{
		OwnerName:   owner,
		Name:        name,
		Description: repo.Description,
		IsPrivate:   repo.GetPrivate(),
		IsFork:      repo.GetFork(),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		PushedAt:    optionalTimestamp(repo.PushedAt),
	}, nil
}

// ToIssue maps an upstream issue. Pull requests returned by the issues endpoint are kept.
func ToIssue(issue *github.Issue, repositoryID uint64) (ports.Issue, error) {
	if issue == nil {
		return ports.Issue{}, domainmirror.Validationf("issue payload is empty")
	}
	if issue.GetNumber() <= 0 {
		return ports.Issue{}, domainmirror.Validationf("issue payload has invalid number %d", issue.GetNumber())
	}

	createdAt, err := requiredTimestamp("issue created_at", issue.CreatedAt)
	if err != nil {
		return ports.Issue{}, err
	}
	updatedAt, err := requiredTimestamp("issue updated_at", issue.UpdatedAt)
	if err != nil {
		return ports.Issue{}, err
	}

	return ports.Issue{
		RepositoryID: repositoryID,
		Number:       issue.GetNumber(),
		Title:        issue.GetTitle(),
		Body:         issue.GetBody(),
		IsClosed:     issue.GetState() == "closed",
		ClosedAt:     optionalTimestamp(issue.ClosedAt),
		StateReason:  domainmirror.NormalizeStateReason(issue.GetStateReason()),
		IsLocked:     issue.GetLocked(),
		LockReason:   domainmirror.NormalizeLockReason(issue.GetActiveLockReason()),
		CommentCount: issue.GetComments(),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func ToComment(comment *github.IssueComment, issueID uint64) (ports.Comment, error) {
	if comment == nil {
		return ports.Comment{}, domainmirror.Validationf("comment payload is empty")
	}
	if comment.GetID() <= 0 {
		return ports.Comment{}, domainmirror.Validationf("comment payload has invalid id %d", comment.GetID())
	}

	createdAt, err := requiredTimestamp("comment created_at", comment.CreatedAt)
	if err != nil {
		return ports.Comment{}, err
	}
	updatedAt, err := requiredTimestamp("comment updated_at", comment.UpdatedAt)
	if err != nil {
		return ports.Comment{}, err
	}

	return ports.Comment{
		IssueID:   issueID,
		CommentID: comment.GetID(),
		Body:      comment.GetBody(),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func requiredTimestamp(field string, ts *github.Timestamp) (string, error) {
	if ts == nil || ts.IsZero() {
		return "", domainmirror.Validationf("%s is missing", field)
	}
	return domainmirror.FormatTimestamp(ts.Time), nil
}

func optionalTimestamp(ts *github.Timestamp) *string {
	if ts == nil || ts.IsZero() {
		return nil
	}
	value := domainmirror.FormatTimestamp(ts.Time)
	return &value
}
