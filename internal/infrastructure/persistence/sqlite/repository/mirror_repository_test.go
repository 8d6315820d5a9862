package repository

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"gissues/internal/domain/mirror"
	"gissues/internal/infrastructure/persistence/sqlite/model"
	"gissues/internal/infrastructure/persistence/sqlite/uow"
	"gissues/internal/ports"
)

const recordedAt = "2024-06-01T00:00:00Z"

func setupMirrorRepository(t *testing.T) (*MirrorRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "mirror.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewMirrorRepository(db), db
}

func saveRepository(t *testing.T, repo *MirrorRepository, owner string, name string) ports.Repository {
	t.Helper()

	saved, err := repo.SaveRepositories(context.Background(), ports.WriteBatch[ports.Repository]{
		Rows: []ports.Repository{{
			OwnerName: owner,
			Name:      name,
			CreatedAt: "2024-01-01T00:00:00Z",
			UpdatedAt: "2024-01-02T00:00:00Z",
		}},
		Change:     mirror.ChangeCreated,
		RecordedAt: recordedAt,
	})
	if err != nil {
		t.Fatalf("SaveRepositories() error = %v", err)
	}
	return saved[0]
}

func TestSaveRepositoriesUpsertsByNaturalKey(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()

	created := saveRepository(t, repo, "octo", "hello")
	if created.RepositoryID == 0 {
		t.Fatalf("created repository has no id")
	}

	description := "hello world"
	updated, err := repo.SaveRepositories(ctx, ports.WriteBatch[ports.Repository]{
		Rows: []ports.Repository{{
			OwnerName:   "octo",
			Name:        "hello",
			Description: &description,
			CreatedAt:   "2024-01-01T00:00:00Z",
			UpdatedAt:   "2024-02-01T00:00:00Z",
		}},
		Change:     mirror.ChangeChanged,
		RecordedAt: recordedAt,
	})
	if err != nil {
		t.Fatalf("SaveRepositories(update) error = %v", err)
	}
	if updated[0].RepositoryID != created.RepositoryID {
		t.Fatalf("upsert changed id: %d -> %d", created.RepositoryID, updated[0].RepositoryID)
	}

	got, err := repo.GetRepository(ctx, "octo", "hello")
	if err != nil {
		t.Fatalf("GetRepository() error = %v", err)
	}
	if got.Description == nil || *got.Description != description || got.UpdatedAt != "2024-02-01T00:00:00Z" {
		t.Fatalf("GetRepository() = %+v", got)
	}

	history, err := repo.ListHistory(ctx, ports.HistoryFilter{EntityKind: mirror.KindRepository, EntityID: got.RepositoryID})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].ChangeType != mirror.ChangeChanged || history[1].ChangeType != mirror.ChangeCreated {
		t.Fatalf("history change types = %s,%s", history[0].ChangeType, history[1].ChangeType)
	}

	var snapshot ports.Repository
	if err := json.Unmarshal([]byte(history[0].SnapshotJSON), &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snapshot.Description == nil || *snapshot.Description != description || snapshot.UpdatedAt != got.UpdatedAt {
		t.Fatalf("snapshot does not match stored row: %+v", snapshot)
	}
	if history[0].NaturalKey != "octo/hello" || history[0].ActorUserID != nil {
		t.Fatalf("history natural key/actor = %q/%v", history[0].NaturalKey, history[0].ActorUserID)
	}
}

func TestSaveIssuesNumberIsUniquePerRepository(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()

	first := saveRepository(t, repo, "octo", "hello")
	second := saveRepository(t, repo, "octo", "world")

	for _, repository := range []ports.Repository{first, second} {
		if _, err := repo.SaveIssues(ctx, ports.WriteBatch[ports.Issue]{
			Rows: []ports.Issue{{
				RepositoryID: repository.RepositoryID,
				Number:       1,
				Title:        "bug in " + repository.Name,
				CreatedAt:    "2024-01-01T00:00:00Z",
				UpdatedAt:    "2024-01-01T00:00:00Z",
			}},
			Change:     mirror.ChangeCreated,
			RecordedAt: recordedAt,
		}); err != nil {
			t.Fatalf("SaveIssues(%s) error = %v", repository.Name, err)
		}
	}

	a, err := repo.GetIssue(ctx, first.RepositoryID, 1)
	if err != nil {
		t.Fatalf("GetIssue(first) error = %v", err)
	}
	b, err := repo.GetIssue(ctx, second.RepositoryID, 1)
	if err != nil {
		t.Fatalf("GetIssue(second) error = %v", err)
	}
	if a.IssueID == b.IssueID || a.Title == b.Title {
		t.Fatalf("issues collided: %+v %+v", a, b)
	}

	if _, err := repo.GetIssue(ctx, first.RepositoryID, 99); !errors.Is(err, ports.ErrIssueNotFound) {
		t.Fatalf("GetIssue(missing) error = %v", err)
	}
}

func TestSaveIssuesPreservesNullableFields(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()
	repository := saveRepository(t, repo, "octo", "hello")

	closedAt := "2024-03-01T00:00:00Z"
	reason := mirror.StateReasonCompleted
	lock := mirror.LockReasonTooHeated
	saved, err := repo.SaveIssues(ctx, ports.WriteBatch[ports.Issue]{
		Rows: []ports.Issue{
			{
				RepositoryID: repository.RepositoryID,
				Number:       10,
				Title:        "closed",
				IsClosed:     true,
				ClosedAt:     &closedAt,
				StateReason:  &reason,
				IsLocked:     true,
				LockReason:   &lock,
				CommentCount: 3,
				CreatedAt:    "2024-01-01T00:00:00Z",
				UpdatedAt:    "2024-03-01T00:00:00Z",
			},
			{
				RepositoryID: repository.RepositoryID,
				Number:       11,
				Title:        "open",
				CreatedAt:    "2024-01-01T00:00:00Z",
				UpdatedAt:    "2024-01-01T00:00:00Z",
			},
		},
		Change:     mirror.ChangeCreated,
		RecordedAt: recordedAt,
	})
	if err != nil {
		t.Fatalf("SaveIssues() error = %v", err)
	}
	if len(saved) != 2 || saved[0].Number != 10 || saved[1].Number != 11 {
		t.Fatalf("SaveIssues() order = %+v", saved)
	}

	closed := saved[0]
	if !closed.IsClosed || closed.ClosedAt == nil || closed.StateReason == nil || closed.LockReason == nil || *closed.LockReason != mirror.LockReasonTooHeated || closed.CommentCount != 3 {
		t.Fatalf("closed issue = %+v", closed)
	}
	open := saved[1]
	if open.IsClosed || open.ClosedAt != nil || open.StateReason != nil || open.LockReason != nil {
		t.Fatalf("open issue = %+v", open)
	}
}

func TestSaveCommentsAndListComments(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()
	repository := saveRepository(t, repo, "octo", "hello")

	issues, err := repo.SaveIssues(ctx, ports.WriteBatch[ports.Issue]{
		Rows: []ports.Issue{{
			RepositoryID: repository.RepositoryID,
			Number:       10,
			Title:        "with comments",
			CommentCount: 2,
			CreatedAt:    "2024-01-01T00:00:00Z",
			UpdatedAt:    "2024-01-01T00:00:00Z",
		}},
		Change:     mirror.ChangeCreated,
		RecordedAt: recordedAt,
	})
	if err != nil {
		t.Fatalf("SaveIssues() error = %v", err)
	}

	issueID := issues[0].IssueID
	if _, err := repo.SaveComments(ctx, ports.WriteBatch[ports.Comment]{
		Rows: []ports.Comment{
			{IssueID: issueID, CommentID: 502, Body: "second", CreatedAt: "2024-01-02T00:00:00Z", UpdatedAt: "2024-01-02T00:00:00Z"},
			{IssueID: issueID, CommentID: 501, Body: "first", CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"},
		},
		Change:     mirror.ChangeCreated,
		RecordedAt: recordedAt,
	}); err != nil {
		t.Fatalf("SaveComments() error = %v", err)
	}

	comments, err := repo.ListComments(ctx, issueID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 || comments[0].CommentID != 501 || comments[1].Body != "second" {
		t.Fatalf("ListComments() = %+v", comments)
	}

	history, err := repo.ListHistory(ctx, ports.HistoryFilter{EntityKind: mirror.KindComment})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("comment history len = %d", len(history))
	}
}

func TestSaveCreatedBatchOverConcurrentInsertUpserts(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()
	repository := saveRepository(t, repo, "octo", "hello")

	saveIssue := func(title string, updatedAt string) ports.Issue {
		t.Helper()
		saved, err := repo.SaveIssues(ctx, ports.WriteBatch[ports.Issue]{
			Rows: []ports.Issue{{
				RepositoryID: repository.RepositoryID,
				Number:       10,
				Title:        title,
				CreatedAt:    "2024-01-01T00:00:00Z",
				UpdatedAt:    updatedAt,
			}},
			Change:     mirror.ChangeCreated,
			RecordedAt: recordedAt,
		})
		if err != nil {
			t.Fatalf("SaveIssues(%s) error = %v", title, err)
		}
		return saved[0]
	}

	first := saveIssue("a", "2024-01-01T00:00:00Z")
	second := saveIssue("b", "2024-01-02T00:00:00Z")
	if second.IssueID != first.IssueID {
		t.Fatalf("second create changed id: %d -> %d", first.IssueID, second.IssueID)
	}

	stored, err := repo.GetIssue(ctx, repository.RepositoryID, 10)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if stored.Title != "b" || stored.UpdatedAt != "2024-01-02T00:00:00Z" {
		t.Fatalf("GetIssue() = %+v", stored)
	}

	history, err := repo.ListHistory(ctx, ports.HistoryFilter{EntityKind: mirror.KindIssue, EntityID: first.IssueID})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("issue history len = %d, want 2", len(history))
	}
	for i, want := range []string{"b", "a"} {
		var snapshot ports.Issue
		if err := json.Unmarshal([]byte(history[i].SnapshotJSON), &snapshot); err != nil {
			t.Fatalf("unmarshal snapshot %d: %v", i, err)
		}
		if snapshot.Title != want || history[i].ChangeType != mirror.ChangeCreated {
			t.Fatalf("history[%d] = %s %q, want created %q", i, history[i].ChangeType, snapshot.Title, want)
		}
	}

	for _, body := range []string{"first", "edited"} {
		if _, err := repo.SaveComments(ctx, ports.WriteBatch[ports.Comment]{
			Rows:       []ports.Comment{{IssueID: first.IssueID, CommentID: 700, Body: body, CreatedAt: "2024-01-03T00:00:00Z", UpdatedAt: "2024-01-03T00:00:00Z"}},
			Change:     mirror.ChangeCreated,
			RecordedAt: recordedAt,
		}); err != nil {
			t.Fatalf("SaveComments(%s) error = %v", body, err)
		}
	}
	comments, err := repo.ListCommentsByIDs(ctx, []int64{700, 701})
	if err != nil {
		t.Fatalf("ListCommentsByIDs() error = %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "edited" || comments[0].IssueID != first.IssueID {
		t.Fatalf("ListCommentsByIDs() = %+v", comments)
	}
}

func TestSaveBatchRollsBackWithUnitOfWork(t *testing.T) {
	repo, db := setupMirrorRepository(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := uow.NewUnitOfWork(db).WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.SaveRepositories(txCtx, ports.WriteBatch[ports.Repository]{
			Rows: []ports.Repository{{
				OwnerName: "octo",
				Name:      "rollback",
				CreatedAt: "2024-01-01T00:00:00Z",
				UpdatedAt: "2024-01-01T00:00:00Z",
			}},
			Change:     mirror.ChangeCreated,
			RecordedAt: recordedAt,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v", err)
	}

	if _, err := repo.GetRepository(ctx, "octo", "rollback"); !errors.Is(err, ports.ErrRepositoryNotFound) {
		t.Fatalf("GetRepository() after rollback error = %v", err)
	}
	history, err := repo.ListHistory(ctx, ports.HistoryFilter{})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history survived rollback: %d", len(history))
	}
}

func TestSaveBatchRejectsDeletedChange(t *testing.T) {
	repo, _ := setupMirrorRepository(t)

	_, err := repo.SaveRepositories(context.Background(), ports.WriteBatch[ports.Repository]{
		Rows:       []ports.Repository{{OwnerName: "o", Name: "n", CreatedAt: recordedAt, UpdatedAt: recordedAt}},
		Change:     mirror.ChangeDeleted,
		RecordedAt: recordedAt,
	})
	if err == nil {
		t.Fatalf("SaveRepositories() expected error for deleted change")
	}
}

func TestFollowFanOutAndSummaries(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()
	repository := saveRepository(t, repo, "octo", "hello")

	alice, err := repo.EnsureUser(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("EnsureUser(alice) error = %v", err)
	}
	bob, err := repo.EnsureUser(ctx, "bob", "bob@example.com")
	if err != nil {
		t.Fatalf("EnsureUser(bob) error = %v", err)
	}

	if _, created, err := repo.Follow(ctx, alice.UserID, repository.RepositoryID, "2024-05-01T00:00:00Z"); err != nil || !created {
		t.Fatalf("Follow(alice) created=%v err=%v", created, err)
	}
	if _, created, err := repo.Follow(ctx, bob.UserID, repository.RepositoryID, "2024-05-02T00:00:00Z"); err != nil || !created {
		t.Fatalf("Follow(bob) created=%v err=%v", created, err)
	}
	again, created, err := repo.Follow(ctx, alice.UserID, repository.RepositoryID, "2024-06-01T00:00:00Z")
	if err != nil || created {
		t.Fatalf("Follow(alice again) created=%v err=%v", created, err)
	}
	if again.CreatedAt != "2024-05-01T00:00:00Z" {
		t.Fatalf("re-follow moved the cutoff: %q", again.CreatedAt)
	}

	followed, err := repo.ListFollowedRepositories(ctx)
	if err != nil {
		t.Fatalf("ListFollowedRepositories() error = %v", err)
	}
	if len(followed) != 2 {
		t.Fatalf("ListFollowedRepositories() len = %d, want one per follower", len(followed))
	}
	if followed[0].FollowerEmail != "alice@example.com" || followed[1].FollowCreatedAt != "2024-05-02T00:00:00Z" {
		t.Fatalf("ListFollowedRepositories() = %+v", followed)
	}

	summaries, err := repo.ListRepositorySummaries(ctx)
	if err != nil {
		t.Fatalf("ListRepositorySummaries() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].FollowerCount != 2 || summaries[0].IssueCount != 0 {
		t.Fatalf("ListRepositorySummaries() = %+v", summaries)
	}

	removed, err := repo.Unfollow(ctx, bob.UserID, repository.RepositoryID)
	if err != nil || !removed {
		t.Fatalf("Unfollow() removed=%v err=%v", removed, err)
	}
	removed, err = repo.Unfollow(ctx, bob.UserID, repository.RepositoryID)
	if err != nil || removed {
		t.Fatalf("Unfollow(again) removed=%v err=%v", removed, err)
	}
}

func TestEnsureUserUpdatesEmail(t *testing.T) {
	repo, _ := setupMirrorRepository(t)
	ctx := context.Background()

	first, err := repo.EnsureUser(ctx, "alice", "old@example.com")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	second, err := repo.EnsureUser(ctx, "alice", "new@example.com")
	if err != nil {
		t.Fatalf("EnsureUser(update) error = %v", err)
	}
	if first.UserID != second.UserID || second.Email != "new@example.com" {
		t.Fatalf("EnsureUser() = %+v then %+v", first, second)
	}
	if _, err := repo.EnsureUser(ctx, "", "x@example.com"); !errors.Is(err, mirror.ErrValidation) {
		t.Fatalf("EnsureUser(empty) error = %v", err)
	}
}
