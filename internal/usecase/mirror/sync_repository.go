package mirror

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

// SyncRepositoryInput is one follower's view of a repository pass. Empty FollowCreatedAt
// or RecipientEmail disables notifications.
type SyncRepositoryInput struct {
	Owner           string
	Name            string
	FollowCreatedAt string
	RecipientEmail  string
}

type SyncResult struct {
	RepositoryDecision domainmirror.Decision
	Created            int
	Updated            int
	Unchanged          int
	CommentTasks       int
	NotificationTasks  int
}

// SyncRepository reconciles one repository and its issues. Both remote reads complete
// before anything is written; a failed read abandons the pass without writes. Comment and
// notification tasks are enqueued only after the writes commit.
func (s *Service) SyncRepository(ctx context.Context, input SyncRepositoryInput) (SyncResult, error) {
	if err := checkContext(ctx); err != nil {
		return SyncResult{}, err
	}
	if err := s.requireSync(); err != nil {
		return SyncResult{}, err
	}
	owner := strings.TrimSpace(input.Owner)
	name := strings.TrimSpace(input.Name)
	if owner == "" || name == "" {
		return SyncResult{}, domainmirror.Validationf("repository owner and name are required")
	}
	ref := domainmirror.FormatRepositoryRef(owner, name)
	ctx = logging.WithAttrs(logging.WithComponent(ctx, "mirror.sync"), slog.String("repository", ref))

	result, changed, err := s.syncRepositoryRecords(ctx, owner, name)
	if err != nil {
		logging.Warn(ctx, "repository sync abandoned", errs.Attr(err))
		s.setCacheBestEffort(ctx, cacheLastErrorKey(ref), s.nowString()+" "+err.Error())
		return SyncResult{}, err
	}

	s.enqueueFollowUps(ctx, owner, name, input, changed, &result)

	s.setCacheBestEffort(ctx, cacheLastPassKey(ref), s.nowString())
	s.deleteCacheBestEffort(ctx, cacheLastErrorKey(ref))
	logging.Info(ctx, "repository synced",
		slog.String("repository_decision", result.RepositoryDecision.String()),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("comment_tasks", result.CommentTasks),
		slog.Int("notification_tasks", result.NotificationTasks),
	)
	return result, nil
}

// syncRepositoryRecords does the remote reads and then the transactional writes. It
// returns the issues that were created or updated in this pass.
func (s *Service) syncRepositoryRecords(ctx context.Context, owner string, name string) (SyncResult, []ports.Issue, error) {
	remoteRepository, err := s.remote.FetchRepository(ctx, owner, name)
	if err != nil {
		return SyncResult{}, nil, err
	}
	remoteIssues, err := s.remote.FetchIssueList(ctx, owner, name)
	if err != nil {
		return SyncResult{}, nil, err
	}

	repository, err := ToRepository(remoteRepository)
	if err != nil {
		return SyncResult{}, nil, err
	}
	issues := make([]ports.Issue, 0, len(remoteIssues))
	for _, remote := range remoteIssues {
		issue, err := ToIssue(remote, 0)
		if err != nil {
			return SyncResult{}, nil, err
		}
		issues = append(issues, issue)
	}

	var (
		result  SyncResult
		changed []ports.Issue
	)
	recordedAt := s.nowString()
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		stored, decision, err := s.reconcileRepository(txCtx, repository, recordedAt)
		if err != nil {
			return err
		}
		result.RepositoryDecision = decision

		for i := range issues {
			issues[i].RepositoryID = stored.RepositoryID
		}
		local, err := s.repo.ListIssues(txCtx, stored.RepositoryID)
		if err != nil {
			return err
		}
		plan := planChanges(indexBy(local, issueKey), issues, issueKey, issueUpdatedAt)
		created, updated, err := applyPlan(txCtx, plan, recordedAt, s.repo.SaveIssues)
		if err != nil {
			return err
		}

		result.Created = len(created)
		result.Updated = len(updated)
		result.Unchanged = plan.unchanged
		changed = append(append(changed, created...), updated...)
		return nil
	})
	if err != nil {
		return SyncResult{}, nil, err
	}
	return result, changed, nil
}

// reconcileRepository applies change detection to the single repository record.
func (s *Service) reconcileRepository(ctx context.Context, repository ports.Repository, recordedAt string) (ports.Repository, domainmirror.Decision, error) {
	local := map[string]ports.Repository{}
	existing, err := s.repo.GetRepository(ctx, repository.OwnerName, repository.Name)
	switch {
	case err == nil:
		local[repositoryKey(existing)] = existing
	case errors.Is(err, ports.ErrRepositoryNotFound):
	default:
		return ports.Repository{}, domainmirror.DecisionUnchanged, err
	}

	plan := planChanges(local, []ports.Repository{repository}, repositoryKey, repositoryUpdatedAt)
	created, updated, err := applyPlan(ctx, plan, recordedAt, s.repo.SaveRepositories)
	if err != nil {
		return ports.Repository{}, domainmirror.DecisionUnchanged, err
	}
	switch {
	case len(created) == 1:
		return created[0], domainmirror.DecisionCreate, nil
	case len(updated) == 1:
		return updated[0], domainmirror.DecisionUpdate, nil
	default:
		return existing, domainmirror.DecisionUnchanged, nil
	}
}

// enqueueFollowUps fans out one comment task per changed issue with comments and one
// notification per changed issue newer than the follow cutoff. Enqueue failures are
// logged and do not stop the remaining tasks.
func (s *Service) enqueueFollowUps(ctx context.Context, owner string, name string, input SyncRepositoryInput, changed []ports.Issue, result *SyncResult) {
	recipient := strings.TrimSpace(input.RecipientEmail)
	for _, issue := range changed {
		issueCtx := logging.WithAttrs(ctx, slog.Int("issue_number", issue.Number))

		if issue.CommentCount > 0 {
			err := s.enqueue(issueCtx, ports.TaskSyncComments, SyncCommentsPayload{
				Owner:       owner,
				Name:        name,
				IssueNumber: issue.Number,
			})
			if err != nil {
				logging.Error(issueCtx, "enqueue comment sync failed", errs.Attr(err))
			} else {
				result.CommentTasks++
			}
		}

		if recipient == "" {
			continue
		}
		notify, err := domainmirror.ShouldNotify(issue.CreatedAt, issue.UpdatedAt, input.FollowCreatedAt)
		if err != nil {
			logging.Warn(issueCtx, "notification cutoff check failed", errs.Attr(err))
			continue
		}
		if !notify {
			continue
		}
		subject, body, err := s.templates.Render(NotificationData{
			Owner:      owner,
			Name:       name,
			Repository: domainmirror.FormatRepositoryRef(owner, name),
			Title:      issue.Title,
			Number:     issue.Number,
			UpdatedAt:  issue.UpdatedAt,
		})
		if err != nil {
			logging.Error(issueCtx, "render notification failed", errs.Attr(err))
			continue
		}
		if err := s.enqueue(issueCtx, ports.TaskSendNotification, SendNotificationPayload{
			Recipient: recipient,
			Subject:   subject,
			Body:      body,
		}); err != nil {
			logging.Error(issueCtx, "enqueue notification failed", errs.Attr(err))
			continue
		}
		result.NotificationTasks++
	}
}
