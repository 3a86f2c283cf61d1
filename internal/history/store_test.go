package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/iqtlabs/gamutrf/internal/domain"
	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "jobs.sqlite"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := domain.Job{
		ID:          "job-1",
		Status:      domain.JobStatusQueued,
		Request:     domain.RecordingRequest{CenterFreq: 915e6, SampleCount: 2000000, SampleRate: 20e6},
		SubmittedAt: time.Unix(1700000000, 0),
	}
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save(queued) failed: %v", err)
	}

	job.Status = domain.JobStatusDone
	job.Succeeded = true
	job.SampleFile = "/data/gamutrf/gamutrf_recording1700000000_915000000Hz_20000000sps.s16"
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save(done) failed: %v", err)
	}

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open for verification: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM recording_jobs").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after upsert, got %d", count)
	}

	got, ok, err := store.Get(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Status != domain.JobStatusDone || !got.Succeeded || got.SampleFile != job.SampleFile {
		t.Errorf("Get() = %+v", got)
	}
	if got.Request != job.Request {
		t.Errorf("request = %+v, want %+v", got.Request, job.Request)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	if _, ok, err := store.Get(context.Background(), "nope"); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i, id := range []string{"a", "b", "c"} {
		job := domain.Job{ID: id, Status: domain.JobStatusQueued, SubmittedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.Save(ctx, job); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	jobs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Errorf("Recent(2) = %+v", jobs)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestStore_QueuedNeverOverwritesLaterStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := domain.Job{
		ID:          "job-1",
		Status:      domain.JobStatusDone,
		Succeeded:   true,
		Request:     domain.RecordingRequest{CenterFreq: 915e6, SampleCount: 1000, SampleRate: 1e6},
		SubmittedAt: time.Unix(1700000000, 0),
	}
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save(done) failed: %v", err)
	}

	stale := job
	stale.Status = domain.JobStatusQueued
	stale.Succeeded = false
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("Save(queued) failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Status != domain.JobStatusDone || !got.Succeeded {
		t.Errorf("status = %s succeeded = %v, want done/true", got.Status, got.Succeeded)
	}
}
