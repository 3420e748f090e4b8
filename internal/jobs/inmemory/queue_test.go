package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/gl-mapper/internal/jobs"
)

// waitForStatus polls the store until the job reaches want or the deadline passes.
func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ExportJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach status %s (last: %+v)", jobID, want, job)
	return nil
}

func TestQueue_PublishSetsDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	job := &jobs.ExportJob{Type: jobs.JobTypeExportStorage, RunID: "run-1"}
	if err := q.PublishExport(context.Background(), job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}

	if job.JobID == "" {
		t.Error("JobID was not assigned")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Status = %s, want %s", job.Status, jobs.JobStatusPending)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}
	if job.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", job.MaxRetries, DefaultMaxRetries)
	}
	if _, err := store.GetJob(context.Background(), job.JobID); err != nil {
		t.Errorf("published job not saved: %v", err)
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 2, store)

	var calls atomic.Int32
	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ExportJob{Type: jobs.JobTypeExportStorage, RunID: "run-1", Rows: 3}
	if err := q.PublishExport(ctx, job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("StartedAt/CompletedAt not recorded")
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.RetryBackoff = time.Millisecond
	defer q.Close()

	var calls atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("warehouse unavailable")
	})

	job := &jobs.ExportJob{Type: jobs.JobTypeExportWarehouse, MaxRetries: 2}
	if err := q.PublishExport(ctx, job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if got.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", got.RetryCount)
	}
	if got.Error != "warehouse unavailable" {
		t.Errorf("Error = %q", got.Error)
	}
	if calls.Load() != 3 {
		t.Errorf("handler called %d times, want 3", calls.Load())
	}
}

func TestQueue_RetrySucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.RetryBackoff = time.Millisecond
	defer q.Close()

	var calls atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	job := &jobs.ExportJob{Type: jobs.JobTypeExportStorage}
	_ = q.PublishExport(ctx, job)

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty after success", got.Error)
	}
}

func TestQueue_ClosedRejectsWork(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.PublishExport(context.Background(), &jobs.ExportJob{}); err == nil {
		t.Error("PublishExport() on closed queue should fail")
	}
	if err := q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }); err == nil {
		t.Error("Start() on closed queue should fail")
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestNewQueue_DefaultWorkers(t *testing.T) {
	q := NewQueue(1, 0, nil)
	if q.workers != DefaultWorkers {
		t.Errorf("workers = %d, want %d", q.workers, DefaultWorkers)
	}
}
