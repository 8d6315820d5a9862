package mirror

import (
	"context"
	"strconv"

	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/ports"
)

// changePlan is the outcome of one reconciliation scope: at most one decision per natural id.
type changePlan[T any] struct {
	creates   []T
	updates   []T
	unchanged int
}

// planChanges classifies remote records against the local snapshot keyed by natural id.
// Duplicate natural ids in remote are collapsed, first occurrence wins.
func planChanges[T any](local map[string]T, remote []T, key func(T) string, updatedAt func(T) string) changePlan[T] {
	var plan changePlan[T]
	seen := make(map[string]struct{}, len(remote))
	for _, item := range remote {
		id := key(item)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		stored, found := local[id]
		localUpdatedAt := ""
		if found {
			localUpdatedAt = updatedAt(stored)
		}
		switch domainmirror.Classify(localUpdatedAt, found, updatedAt(item)) {
		case domainmirror.DecisionCreate:
			plan.creates = append(plan.creates, item)
		case domainmirror.DecisionUpdate:
			plan.updates = append(plan.updates, item)
		default:
			plan.unchanged++
		}
	}
	return plan
}

type saveFunc[T any] func(ctx context.Context, batch ports.WriteBatch[T]) ([]T, error)

// applyPlan runs one batched create and one batched update. Must be called inside a
// transaction so history and rows commit together.
func applyPlan[T any](ctx context.Context, plan changePlan[T], recordedAt string, save saveFunc[T]) (created []T, updated []T, err error) {
	if len(plan.creates) > 0 {
		created, err = save(ctx, ports.WriteBatch[T]{
			Rows:       plan.creates,
			Change:     domainmirror.ChangeCreated,
			RecordedAt: recordedAt,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	if len(plan.updates) > 0 {
		updated, err = save(ctx, ports.WriteBatch[T]{
			Rows:       plan.updates,
			Change:     domainmirror.ChangeChanged,
			RecordedAt: recordedAt,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return created, updated, nil
}

func repositoryKey(repo ports.Repository) string {
	return domainmirror.FormatRepositoryRef(repo.OwnerName, repo.Name)
}

func repositoryUpdatedAt(repo ports.Repository) string { return repo.UpdatedAt }

func issueKey(issue ports.Issue) string {
	return strconv.Itoa(issue.Number)
}

func issueUpdatedAt(issue ports.Issue) string { return issue.UpdatedAt }

func commentKey(comment ports.Comment) string {
	return strconv.FormatInt(comment.CommentID, 10)
}

func commentUpdatedAt(comment ports.Comment) string { return comment.UpdatedAt }

func indexBy[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[key(item)] = item
	}
	return out
}
