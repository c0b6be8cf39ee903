package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/store"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

var _ store.Store = (*SettingsRepository)(nil)

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, ok, err := NewSettingsRepository(db).Get(ctx, store.TokenKey)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok {
			t.Error("expected key to be missing")
		}
	})

	t.Run("Set overwrites", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSettingsRepository(db)
		if err := repo.Set(ctx, store.TokenKey, "first"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := repo.Set(ctx, store.TokenKey, "second"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		v, ok, err := repo.Get(ctx, store.TokenKey)
		if err != nil || !ok {
			t.Fatalf("Get() = %q, %v, %v", v, ok, err)
		}
		if v != "second" {
			t.Errorf("expected second, got %s", v)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSettingsRepository(db)
		key := store.SyncedKey("auth0|123")
		_ = repo.Set(ctx, key, "true")

		if err := repo.Delete(ctx, key); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete(ctx, key); err != nil {
			t.Fatalf("deleting a missing key should not error: %v", err)
		}
		if set, _ := store.IsSet(ctx, repo, key); set {
			t.Error("key should be gone")
		}
	})
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create & Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		job := models.NewJob("abc", models.KindUpload, "upload")

		rec, err := repo.Create(ctx, *job)
		if err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		if rec.LocalID == "" {
			t.Error("local ID should be set after creation")
		}
		if rec.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", rec.Sequence)
		}

		got, err := repo.Get(ctx, "abc")
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.Job.Kind != models.KindUpload || got.Job.Status != models.JobQueued {
			t.Errorf("unexpected job: %+v", got.Job)
		}
		if got.Job.Progress != nil {
			t.Error("progress should be nil")
		}
	})

	t.Run("Record updates existing row", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		job := models.NewJob("abc", models.KindUpload, "upload")
		if err := repo.Record(ctx, *job); err != nil {
			t.Fatalf("failed to record job: %v", err)
		}

		pct := 100
		job.Status = models.JobSucceeded
		job.Progress = &pct
		job.Attempts = 3
		job.Result = models.JobResult{"inserted": 42, "total": 50}
		job.Kind = ""
		if err := repo.Record(ctx, *job); err != nil {
			t.Fatalf("failed to record job update: %v", err)
		}

		all, err := repo.List(ctx, map[string]any{})
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected one row, got %d", len(all))
		}

		got := all[0].Job
		if got.Status != models.JobSucceeded {
			t.Errorf("expected succeeded, got %s", got.Status)
		}
		if got.Kind != models.KindUpload {
			t.Errorf("kind should be kept when not provided, got %q", got.Kind)
		}
		if got.Progress == nil || *got.Progress != 100 {
			t.Errorf("expected progress 100, got %v", got.Progress)
		}
		if v, _ := got.Result.Int("inserted"); v != 42 {
			t.Errorf("expected inserted 42, got %d", v)
		}
		if got.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", got.Attempts)
		}
	})

	t.Run("List filters", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		jobs := []*models.Job{
			models.NewJob("u1", models.KindUpload, "upload"),
			models.NewJob("s1", models.KindSnapshot, "day"),
			models.NewJob("s2", models.KindSnapshot, "week"),
		}
		jobs[2].Status = models.JobFailed
		for _, j := range jobs {
			if err := repo.Record(ctx, *j); err != nil {
				t.Fatalf("failed to record job: %v", err)
			}
		}

		snapshots, err := repo.List(ctx, map[string]any{"kind": "snapshot"})
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(snapshots) != 2 {
			t.Errorf("expected 2 snapshot jobs, got %d", len(snapshots))
		}
		if len(snapshots) > 0 && snapshots[0].Job.ID != "s2" {
			t.Errorf("expected newest first, got %s", snapshots[0].Job.ID)
		}

		failed, _ := repo.List(ctx, map[string]any{"status": "failed"})
		if len(failed) != 1 {
			t.Errorf("expected 1 failed job, got %d", len(failed))
		}

		limited, _ := repo.List(ctx, map[string]any{"limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected 1 job with limit, got %d", len(limited))
		}
	})

	t.Run("Errors", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)

		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Record(ctx, models.Job{Status: models.JobQueued}); err == nil {
			t.Error("expected validation error for empty id")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		_ = repo.Record(ctx, *models.NewJob("abc", models.KindLifetime, "lifetime"))

		if err := repo.Delete(ctx, "abc"); err != nil {
			t.Fatalf("failed to delete job: %v", err)
		}
		if _, err := repo.Get(ctx, "abc"); err == nil {
			t.Error("expected error when getting deleted job")
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seq1, err := NextSequence(db, "jobs")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}
	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(db, "jobs")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}
	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	if _, err := NextSequence(db, "users; DROP TABLE jobs"); err == nil {
		t.Error("expected error for unknown table")
	}
}
