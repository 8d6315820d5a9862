package mirror

import (
	"context"
	"strings"

	"gissues/internal/ports"
)

// RepositoryStatus is one row of the status report.
type RepositoryStatus struct {
	ports.RepositorySummary
	LastPass  string
	LastError string
}

func (s *Service) ListHistory(ctx context.Context, filter ports.HistoryFilter) ([]ports.HistoryRecord, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errRepoRequired
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListHistory(ctx, filter)
}

// Status joins stored summaries with the last pass bookkeeping kept in the cache.
func (s *Service) Status(ctx context.Context) ([]RepositoryStatus, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errRepoRequired
	}

	summaries, err := s.repo.ListRepositorySummaries(ctx)
	if err != nil {
		return nil, err
	}

	lastPass := map[string]string{}
	lastError := map[string]string{}
	if s.cache != nil {
		if lastPass, err = s.cache.List(ctx, cacheLastPassPrefix); err != nil {
			return nil, err
		}
		if lastError, err = s.cache.List(ctx, cacheLastErrorPrefix); err != nil {
			return nil, err
		}
	}

	out := make([]RepositoryStatus, 0, len(summaries))
	for _, summary := range summaries {
		ref := summary.OwnerName + "/" + summary.Name
		out = append(out, RepositoryStatus{
			RepositorySummary: summary,
			LastPass:          lastPass[cacheLastPassKey(ref)],
			LastError:         strings.TrimSpace(lastError[cacheLastErrorKey(ref)]),
		})
	}
	return out, nil
}
