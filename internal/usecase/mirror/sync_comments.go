package mirror

import (
	"context"
	"log/slog"
	"strings"

	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

// SyncComments reconciles the comments of one issue. The issue is mirrored on demand when
// it is not stored yet. There is no further cascade.
func (s *Service) SyncComments(ctx context.Context, owner string, name string, issueNumber int) (SyncResult, error) {
	if err := checkContext(ctx); err != nil {
		return SyncResult{}, err
	}
	if err := s.requireSync(); err != nil {
		return SyncResult{}, err
	}
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return SyncResult{}, domainmirror.Validationf("repository owner and name are required")
	}
	if issueNumber <= 0 {
		return SyncResult{}, domainmirror.Validationf("issue number must be positive, got %d", issueNumber)
	}
	ctx = logging.WithAttrs(logging.WithComponent(ctx, "mirror.sync"),
		slog.String("issue", domainmirror.FormatIssueRef(owner, name, issueNumber)),
	)

	remoteComments, err := s.remote.FetchCommentList(ctx, owner, name, issueNumber)
	if err != nil {
		logging.Warn(ctx, "comment sync abandoned", errs.Attr(err))
		return SyncResult{}, err
	}

	issue, err := s.getOrSyncIssue(ctx, owner, name, issueNumber)
	if err != nil {
		logging.Warn(ctx, "comment sync abandoned", errs.Attr(err))
		return SyncResult{}, err
	}

	comments := make([]ports.Comment, 0, len(remoteComments))
	for _, remote := range remoteComments {
		comment, err := ToComment(remote, issue.IssueID)
		if err != nil {
			return SyncResult{}, err
		}
		comments = append(comments, comment)
	}

	var result SyncResult
	recordedAt := s.nowString()
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		local, err := s.repo.ListCommentsByIDs(txCtx, commentIDs(comments))
		if err != nil {
			return err
		}
		plan := planChanges(commentSnapshot(local, issue.IssueID), comments, commentKey, commentUpdatedAt)
		created, updated, err := applyPlan(txCtx, plan, recordedAt, s.repo.SaveComments)
		if err != nil {
			return err
		}
		result.Created = len(created)
		result.Updated = len(updated)
		result.Unchanged = plan.unchanged
		return nil
	}); err != nil {
		logging.Error(ctx, "comment sync write failed", errs.Attr(err))
		return SyncResult{}, err
	}

	logging.Info(ctx, "comments synced",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
	)
	return result, nil
}

func commentIDs(comments []ports.Comment) []int64 {
	ids := make([]int64, 0, len(comments))
	for _, comment := range comments {
		ids = append(ids, comment.CommentID)
	}
	return ids
}

// commentSnapshot indexes the stored comments by id. A comment stored under another issue
// loses its timestamp so it is classified as changed and rewritten under issueID.
func commentSnapshot(local []ports.Comment, issueID uint64) map[string]ports.Comment {
	index := indexBy(local, commentKey)
	for key, comment := range index {
		if comment.IssueID != issueID {
			comment.UpdatedAt = ""
			index[key] = comment
		}
	}
	return index
}
