package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nfesorter/internal/report"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	created := time.Now().Add(-time.Minute)
	pending := &Job{ID: "a", Status: StatusPending, InputPath: "in.zip", CreatedAt: created}
	if err := store.SaveJob(ctx, pending); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	done := &Job{ID: "b", Status: StatusCompleted, OutputPath: "out.zip", Stats: &report.Stats{Approved: 3, Rejected: 1}, CreatedAt: created.Add(time.Second)}
	if err := store.SaveJob(ctx, done); err != nil {
		t.Fatalf("save completed: %v", err)
	}

	pending.Status = StatusProcessing
	if err := store.SaveJob(ctx, pending); err != nil {
		t.Fatalf("update: %v", err)
	}

	jobs, err := store.LoadJobs(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "a" || jobs[0].Status != StatusProcessing || jobs[0].Stats != nil {
		t.Fatalf("unexpected first job %+v", jobs[0])
	}
	if jobs[1].Stats == nil || *jobs[1].Stats != (report.Stats{Approved: 3, Rejected: 1}) {
		t.Fatalf("stats not restored: %+v", jobs[1].Stats)
	}
}

func TestManagerWithSQLiteStore(t *testing.T) {
	dataDir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dataDir, "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	m := NewManagerWithOptions(Options{DataDir: dataDir, UploadExtensions: []string{".zip"}, MaxConcurrentJobs: 2, Store: store})
	defer func() { _ = m.Close() }()

	in := filepath.Join(dataDir, "upload.zip")
	writeZip(t, in, []zipEntry{{"a.xml", nfeDoc("100", "9", "")}})
	m.jobs["x"] = &Job{ID: "x", Status: StatusPending, InputPath: in, CreatedAt: time.Now()}
	if err := m.Dispatch("x"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := waitTerminal(t, m, "x"); got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	jobs, err := store.LoadJobs(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != StatusCompleted || jobs[0].Stats == nil || jobs[0].Stats.Contingency != 1 {
		t.Fatalf("store not updated: %+v", jobs)
	}
}
