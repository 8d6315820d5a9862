package mirror

import (
	"context"
	"errors"
	"time"

	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/ports"
)

var (
	errRepoRequired     = errors.New("mirror repository is required")
	errUoWRequired      = errors.New("mirror unit of work is required")
	errRemoteRequired   = errors.New("remote client is required")
	errQueueRequired    = errors.New("task queue is required")
	errNotifierRequired = errors.New("notifier is required")
)

// Deps are the collaborators of Service. Cache and Templates are optional.
type Deps struct {
	Repo      ports.MirrorRepository
	UoW       ports.UnitOfWork
	Remote    ports.RemoteClient
	Queue     ports.TaskQueue
	Notifier  ports.Notifier
	Cache     ports.Cache
	Templates *Templates
	Now       func() time.Time
}

type Service struct {
	repo      ports.MirrorRepository
	uow       ports.UnitOfWork
	remote    ports.RemoteClient
	queue     ports.TaskQueue
	notifier  ports.Notifier
	cache     ports.Cache
	templates *Templates
	clock     func() time.Time
}

// NewService wires the sync engine, the on-demand path and the task handlers.
func NewService(deps Deps) *Service {
	templates := deps.Templates
	if templates == nil {
		templates = DefaultTemplates()
	}
	clock := deps.Now
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:      deps.Repo,
		uow:       deps.UoW,
		remote:    deps.Remote,
		queue:     deps.Queue,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		templates: templates,
		clock:     clock,
	}
}

func (s *Service) nowString() string {
	return domainmirror.FormatTimestamp(s.clock())
}

func (s *Service) requireStore() error {
	if s.repo == nil {
		return errRepoRequired
	}
	if s.uow == nil {
		return errUoWRequired
	}
	return nil
}

func (s *Service) requireSync() error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if s.remote == nil {
		return errRemoteRequired
	}
	return nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return ctx.Err()
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, key)
}

const (
	cacheLastPassPrefix  = "sync:last_pass:"
	cacheLastErrorPrefix = "sync:last_error:"
)

func cacheLastPassKey(repositoryRef string) string {
	return cacheLastPassPrefix + repositoryRef
}

func cacheLastErrorKey(repositoryRef string) string {
	return cacheLastErrorPrefix + repositoryRef
}
