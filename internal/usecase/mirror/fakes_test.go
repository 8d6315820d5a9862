package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/go-github/v68/github"
	"gorm.io/gorm"

	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/infrastructure/cache"
	"gissues/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "gissues/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "gissues/internal/infrastructure/persistence/sqlite/uow"
	"gissues/internal/ports"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu       sync.Mutex
	repos    map[string]*github.Repository
	issues   map[string][]*github.Issue
	comments map[string][]*github.IssueComment
	calls    []string

	repoErr      error
	issueListErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		repos:    map[string]*github.Repository{},
		issues:   map[string][]*github.Issue{},
		comments: map[string][]*github.IssueComment{},
	}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) FetchRepository(_ context.Context, owner string, name string) (*github.Repository, error) {
	f.record("repo " + owner + "/" + name)
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	repo, ok := f.repos[owner+"/"+name]
	if !ok {
		return nil, domainmirror.NewNotFound("GET", "/repos/"+owner+"/"+name)
	}
	return repo, nil
}

func (f *fakeRemote) FetchIssueList(_ context.Context, owner string, name string) ([]*github.Issue, error) {
	f.record("issues " + owner + "/" + name)
	if f.issueListErr != nil {
		return nil, f.issueListErr
	}
	return f.issues[owner+"/"+name], nil
}

func (f *fakeRemote) FetchIssueDetail(_ context.Context, owner string, name string, number int) (*github.Issue, error) {
	f.record(fmt.Sprintf("issue %s/%s#%d", owner, name, number))
	for _, issue := range f.issues[owner+"/"+name] {
		if issue.GetNumber() == number {
			return issue, nil
		}
	}
	return nil, domainmirror.NewNotFound("GET", fmt.Sprintf("/repos/%s/%s/issues/%d", owner, name, number))
}

func (f *fakeRemote) FetchCommentList(_ context.Context, owner string, name string, issueNumber int) ([]*github.IssueComment, error) {
	f.record(fmt.Sprintf("comments %s/%s#%d", owner, name, issueNumber))
	return f.comments[fmt.Sprintf("%s/%s#%d", owner, name, issueNumber)], nil
}

func (f *fakeRemote) FetchCommentDetail(_ context.Context, owner string, name string, commentID int64) (*github.IssueComment, error) {
	f.record(fmt.Sprintf("comment %s/%s/%d", owner, name, commentID))
	prefix := owner + "/" + name + "#"
	for key, list := range f.comments {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		for _, comment := range list {
			if comment.GetID() == commentID {
				return comment, nil
			}
		}
	}
	return nil, domainmirror.NewNotFound("GET", fmt.Sprintf("/repos/%s/%s/issues/comments/%d", owner, name, commentID))
}

func (f *fakeRemote) FetchUserRepositories(_ context.Context, username string) ([]*github.Repository, error) {
	f.record("user repos " + username)
	var out []*github.Repository
	for _, repo := range f.repos {
		if repo.GetOwner().GetLogin() == username {
			out = append(out, repo)
		}
	}
	return out, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	tasks    []ports.Task
	failNext int
}

func (q *fakeQueue) Enqueue(_ context.Context, task ports.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext > 0 {
		q.failNext--
		return errors.New("queue unavailable")
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) byKind(kind ports.TaskKind) []ports.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []ports.Task
	for _, task := range q.tasks {
		if task.Kind == kind {
			out = append(out, task)
		}
	}
	return out
}

func (q *fakeQueue) drain() []ports.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

type sentMessage struct {
	recipient string
	subject   string
	body      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, recipient string, subject string, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{recipient: recipient, subject: subject, body: body})
	return nil
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	remote   *fakeRemote
	queue    *fakeQueue
	notifier *fakeNotifier
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "mirror.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	env := &testEnv{
		db:       db,
		remote:   newFakeRemote(),
		queue:    &fakeQueue{},
		notifier: &fakeNotifier{},
	}
	env.svc = NewService(Deps{
		Repo:     sqliterepo.NewMirrorRepository(db),
		UoW:      sqliteuow.NewUnitOfWork(db),
		Remote:   env.remote,
		Queue:    env.queue,
		Notifier: env.notifier,
		Cache:    cache.NewSQLiteCache(db),
		Now:      func() time.Time { return fixedNow },
	})
	return env
}

func (e *testEnv) count(t *testing.T, value any) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(value).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", value, err)
	}
	return n
}

func ts(t *testing.T, raw string) *github.Timestamp {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return &github.Timestamp{Time: parsed}
}

func remoteRepository(t *testing.T, owner string, name string, updatedAt string) *github.Repository {
	return &github.Repository{
		Name:        github.Ptr(name),
		Owner:       &github.User{Login: github.Ptr(owner)},
		Description: github.Ptr("mirror me"),
		Private:     github.Ptr(false),
		Fork:        github.Ptr(false),
		CreatedAt:   ts(t, "2023-01-01T00:00:00Z"),
		UpdatedAt:   ts(t, updatedAt),
		PushedAt:    ts(t, updatedAt),
	}
}

func remoteIssue(t *testing.T, number int, title string, comments int, createdAt string, updatedAt string) *github.Issue {
	return &github.Issue{
		Number:    github.Ptr(number),
		Title:     github.Ptr(title),
		Body:      github.Ptr("body of " + title),
		State:     github.Ptr("open"),
		Locked:    github.Ptr(false),
		Comments:  github.Ptr(comments),
		CreatedAt: ts(t, createdAt),
		UpdatedAt: ts(t, updatedAt),
	}
}

func remoteComment(t *testing.T, id int64, owner string, name string, issueNumber int, body string, updatedAt string) *github.IssueComment {
	return &github.IssueComment{
		ID:        github.Ptr(id),
		Body:      github.Ptr(body),
		IssueURL:  github.Ptr(fmt.Sprintf("https://api.github.com/repos/%s/%s/issues/%d", owner, name, issueNumber)),
		CreatedAt: ts(t, "2024-01-11T00:00:00Z"),
		UpdatedAt: ts(t, updatedAt),
	}
}

// seedOctoHello is issue 10 with three comments and issue 11 without any.
func seedOctoHello(t *testing.T, remote *fakeRemote) {
	t.Helper()
	remote.repos["octo/hello"] = remoteRepository(t, "octo", "hello", "2024-01-10T08:00:00Z")
	remote.issues["octo/hello"] = []*github.Issue{
		remoteIssue(t, 10, "crash on start", 3, "2024-01-10T08:00:00Z", "2024-01-10T08:00:00Z"),
		remoteIssue(t, 11, "docs typo", 0, "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	remote.comments["octo/hello#10"] = []*github.IssueComment{
		remoteComment(t, 9001, "octo", "hello", 10, "same here", "2024-01-11T00:00:00Z"),
		remoteComment(t, 9002, "octo", "hello", 10, "fixed in main", "2024-01-12T00:00:00Z"),
		remoteComment(t, 9003, "octo", "hello", 10, "thanks", "2024-01-13T00:00:00Z"),
	}
}

func decodeTaskPayload[T any](t *testing.T, task ports.Task) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(task.Payload, &out); err != nil {
		t.Fatalf("decode %s payload: %v", task.Kind, err)
	}
	return out
}
