package mirror

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/ports"
)

type FollowInput struct {
	Username string
	Email    string
	Owner    string
	Name     string
}

type FollowResult struct {
	Follow     ports.Follow
	Repository ports.Repository
	Created    bool
}

// FollowRepository mirrors the repository on demand and records the follow. Following
// again keeps the original cutoff.
func (s *Service) FollowRepository(ctx context.Context, input FollowInput) (FollowResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return FollowResult{}, domainmirror.Validationf("username is required")
	}
	email := strings.TrimSpace(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return FollowResult{}, domainmirror.Validationf("invalid email %q", input.Email)
	}

	repository, err := s.GetOrSyncRepository(ctx, input.Owner, input.Name)
	if err != nil {
		return FollowResult{}, err
	}

	var result FollowResult
	result.Repository = repository
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.EnsureUser(txCtx, username, email)
		if err != nil {
			return err
		}
		result.Follow, result.Created, err = s.repo.Follow(txCtx, user.UserID, repository.RepositoryID, s.nowString())
		return err
	}); err != nil {
		return FollowResult{}, err
	}

	logging.Info(ctx, "repository followed",
		slog.String("username", username),
		slog.String("repository", repositoryKey(repository)),
		slog.Bool("created", result.Created),
	)
	return result, nil
}

// UnfollowRepository reports whether a follow was removed. Unknown users or repositories
// are not an error.
func (s *Service) UnfollowRepository(ctx context.Context, username string, owner string, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	if err := s.requireStore(); err != nil {
		return false, err
	}

	var removed bool
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUser(txCtx, username)
		if err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return nil
			}
			return err
		}
		repository, err := s.repo.GetRepository(txCtx, strings.TrimSpace(owner), strings.TrimSpace(name))
		if err != nil {
			if errors.Is(err, ports.ErrRepositoryNotFound) {
				return nil
			}
			return err
		}
		removed, err = s.repo.Unfollow(txCtx, user.UserID, repository.RepositoryID)
		return err
	})
	return removed, err
}

func (s *Service) ListFollows(ctx context.Context) ([]ports.FollowedRepository, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errRepoRequired
	}
	return s.repo.ListFollowedRepositories(ctx)
}

// SyncUserRepositories reconciles every repository owned by username. Issues are not
// fetched; they arrive through follows or on demand.
func (s *Service) SyncUserRepositories(ctx context.Context, username string) (SyncResult, error) {
	if err := checkContext(ctx); err != nil {
		return SyncResult{}, err
	}
	if err := s.requireSync(); err != nil {
		return SyncResult{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return SyncResult{}, domainmirror.Validationf("username is required")
	}
	ctx = logging.WithAttrs(logging.WithComponent(ctx, "mirror.sync"), slog.String("username", username))

	remote, err := s.remote.FetchUserRepositories(ctx, username)
	if err != nil {
		return SyncResult{}, err
	}
	repositories := make([]ports.Repository, 0, len(remote))
	for _, item := range remote {
		repository, err := ToRepository(item)
		if err != nil {
			return SyncResult{}, err
		}
		repositories = append(repositories, repository)
	}

	var result SyncResult
	recordedAt := s.nowString()
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		local := make(map[string]ports.Repository, len(repositories))
		for _, repository := range repositories {
			existing, err := s.repo.GetRepository(txCtx, repository.OwnerName, repository.Name)
			if errors.Is(err, ports.ErrRepositoryNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			local[repositoryKey(existing)] = existing
		}
		plan := planChanges(local, repositories, repositoryKey, repositoryUpdatedAt)
		created, updated, err := applyPlan(txCtx, plan, recordedAt, s.repo.SaveRepositories)
		if err != nil {
			return err
		}
		result.Created = len(created)
		result.Updated = len(updated)
		result.Unchanged = plan.unchanged
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}

	logging.Info(ctx, "user repositories synced",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
	)
	return result, nil
}
