package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/ports"
)

// readThrough describes one read-through resource: how to find it locally, how to fetch
// and transform it on a miss and how to store it.
type readThrough[T any] struct {
	kind     domainmirror.EntityKind
	ref      string
	notFound error
	lookup   func(ctx context.Context) (T, error)
	fetch    func(ctx context.Context) (T, error)
	save     saveFunc[T]
}

// getOrSync returns the local row, or fetches, creates and returns it on a miss. A hit
// never touches the remote. Remote errors are returned unchanged and nothing is written.
func getOrSync[T any](ctx context.Context, s *Service, rt readThrough[T]) (T, error) {
	var zero T

	local, err := rt.lookup(ctx)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, rt.notFound) {
		return zero, err
	}

	remote, err := rt.fetch(ctx)
	if err != nil {
		return zero, err
	}

	var stored T
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := rt.lookup(txCtx)
		if err == nil {
			// created concurrently since the first lookup
			stored = existing
			return nil
		}
		if !errors.Is(err, rt.notFound) {
			return err
		}
		saved, err := rt.save(txCtx, ports.WriteBatch[T]{
			Rows:       []T{remote},
			Change:     domainmirror.ChangeCreated,
			RecordedAt: s.nowString(),
		})
		if err != nil {
			return err
		}
		if len(saved) != 1 {
			return fmt.Errorf("stored %d %s rows, want 1", len(saved), rt.kind)
		}
		stored = saved[0]
		return nil
	}); err != nil {
		return zero, err
	}

	logging.Info(ctx, "mirrored on demand",
		slog.String("entity_kind", string(rt.kind)),
		slog.String("ref", rt.ref),
	)
	return stored, nil
}

func (s *Service) GetOrSyncRepository(ctx context.Context, owner string, name string) (ports.Repository, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Repository{}, err
	}
	if err := s.requireSync(); err != nil {
		return ports.Repository{}, err
	}
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return ports.Repository{}, domainmirror.Validationf("repository owner and name are required")
	}

	return getOrSync(ctx, s, readThrough[ports.Repository]{
		kind:     domainmirror.KindRepository,
		ref:      domainmirror.FormatRepositoryRef(owner, name),
		notFound: ports.ErrRepositoryNotFound,
		lookup: func(ctx context.Context) (ports.Repository, error) {
			return s.repo.GetRepository(ctx, owner, name)
		},
		fetch: func(ctx context.Context) (ports.Repository, error) {
			remote, err := s.remote.FetchRepository(ctx, owner, name)
			if err != nil {
				return ports.Repository{}, err
			}
			return ToRepository(remote)
		},
		save: s.repo.SaveRepositories,
	})
}

// GetOrSyncIssue validates numberRaw before any lookup and resolves the repository first.
func (s *Service) GetOrSyncIssue(ctx context.Context, owner string, name string, numberRaw string) (ports.Issue, error) {
	number, err := domainmirror.ParseIssueNumber(numberRaw)
	if err != nil {
		return ports.Issue{}, err
	}
	return s.getOrSyncIssue(ctx, owner, name, number)
}

func (s *Service) getOrSyncIssue(ctx context.Context, owner string, name string, number int) (ports.Issue, error) {
	if number <= 0 {
		return ports.Issue{}, domainmirror.Validationf("issue number must be positive, got %d", number)
	}
	repository, err := s.GetOrSyncRepository(ctx, owner, name)
	if err != nil {
		return ports.Issue{}, err
	}

	return getOrSync(ctx, s, readThrough[ports.Issue]{
		kind:     domainmirror.KindIssue,
		ref:      domainmirror.FormatIssueRef(repository.OwnerName, repository.Name, number),
		notFound: ports.ErrIssueNotFound,
		lookup: func(ctx context.Context) (ports.Issue, error) {
			return s.repo.GetIssue(ctx, repository.RepositoryID, number)
		},
		fetch: func(ctx context.Context) (ports.Issue, error) {
			remote, err := s.remote.FetchIssueDetail(ctx, repository.OwnerName, repository.Name, number)
			if err != nil {
				return ports.Issue{}, err
			}
			return ToIssue(remote, repository.RepositoryID)
		},
		save: s.repo.SaveIssues,
	})
}

// GetOrSyncComment only returns comments that belong to the given issue.
func (s *Service) GetOrSyncComment(ctx context.Context, owner string, name string, issueNumberRaw string, commentIDRaw string) (ports.Comment, error) {
	number, err := domainmirror.ParseIssueNumber(issueNumberRaw)
	if err != nil {
		return ports.Comment{}, err
	}
	commentID, err := domainmirror.ParseCommentID(commentIDRaw)
	if err != nil {
		return ports.Comment{}, err
	}

	issue, err := s.getOrSyncIssue(ctx, owner, name, number)
	if err != nil {
		return ports.Comment{}, err
	}

	comment, err := getOrSync(ctx, s, readThrough[ports.Comment]{
		kind:     domainmirror.KindComment,
		ref:      fmt.Sprintf("%s/comments/%d", domainmirror.FormatIssueRef(owner, name, number), commentID),
		notFound: ports.ErrCommentNotFound,
		lookup: func(ctx context.Context) (ports.Comment, error) {
			return s.repo.GetComment(ctx, commentID)
		},
		fetch: func(ctx context.Context) (ports.Comment, error) {
			remote, err := s.remote.FetchCommentDetail(ctx, owner, name, commentID)
			if err != nil {
				return ports.Comment{}, err
			}
			if issueURL := remote.GetIssueURL(); issueURL != "" && !strings.HasSuffix(issueURL, fmt.Sprintf("/issues/%d", number)) {
				return ports.Comment{}, ports.ErrCommentNotFound
			}
			return ToComment(remote, issue.IssueID)
		},
		save: s.repo.SaveComments,
	})
	if err != nil {
		return ports.Comment{}, err
	}
	if comment.IssueID != issue.IssueID {
		return ports.Comment{}, ports.ErrCommentNotFound
	}
	return comment, nil
}
