package mirror

import (
	"context"
	"log/slog"

	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

type ScheduleResult struct {
	Enqueued int
	Failed   int
}

// ScheduleFollowedRepositories enqueues one repository sync per (repository, follower)
// pair. Followers of the same repository are not merged: each carries its own cutoff and
// recipient.
func (s *Service) ScheduleFollowedRepositories(ctx context.Context) (ScheduleResult, error) {
	if err := checkContext(ctx); err != nil {
		return ScheduleResult{}, err
	}
	if s.repo == nil {
		return ScheduleResult{}, errRepoRequired
	}
	if s.queue == nil {
		return ScheduleResult{}, errQueueRequired
	}
	ctx = logging.WithComponent(ctx, "mirror.schedule")

	followed, err := s.repo.ListFollowedRepositories(ctx)
	if err != nil {
		return ScheduleResult{}, errs.Wrap(err, "list followed repositories")
	}

	var result ScheduleResult
	for _, item := range followed {
		err := s.enqueue(ctx, ports.TaskSyncRepository, SyncRepositoryPayload{
			Owner:           item.OwnerName,
			Name:            item.Name,
			FollowCreatedAt: item.FollowCreatedAt,
			RecipientEmail:  item.FollowerEmail,
		})
		if err != nil {
			result.Failed++
			logging.Error(ctx, "schedule repository sync failed",
				slog.String("repository", domainmirror.FormatRepositoryRef(item.OwnerName, item.Name)),
				slog.String("username", item.Username),
				errs.Attr(err),
			)
			continue
		}
		result.Enqueued++
	}

	logging.Info(ctx, "followed repositories scheduled",
		slog.Int("enqueued", result.Enqueued),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
