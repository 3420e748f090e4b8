// Package inmemory runs export jobs on goroutines inside the API process.
// Nothing survives a restart, so it only suits single-instance deployments.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/gl-mapper/internal/jobs"
	"github.com/dvloznov/gl-mapper/internal/logger"
)

const (
	DefaultWorkers    = 2
	DefaultMaxRetries = 3
)

// ErrQueueClosed is returned once Stop or Close has been called.
var ErrQueueClosed = errors.New("queue is closed")

// Queue publishes and consumes export jobs over a buffered channel. When a
// store is set every state change is saved to it.
type Queue struct {
	pending chan *jobs.ExportJob
	done    chan struct{}
	store   jobs.JobStore
	workers int

	mu      sync.RWMutex
	stopped bool
	running sync.WaitGroup

	// RetryBackoff times the retry count is the delay before a failed job
	// runs again.
	RetryBackoff time.Duration
}

// NewQueue returns a queue holding up to bufferSize unstarted jobs before
// PublishExport blocks. store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Queue{
		pending:      make(chan *jobs.ExportJob, bufferSize),
		done:         make(chan struct{}),
		store:        store,
		workers:      workers,
		RetryBackoff: time.Second,
	}
}

func (q *Queue) isStopped() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stopped
}

// PublishExport fills in ID, status, creation time and retry limit when
// unset, saves the job and enqueues it.
func (q *Queue) PublishExport(ctx context.Context, job *jobs.ExportJob) error {
	if q.isStopped() {
		return fmt.Errorf("PublishExport: %w", ErrQueueClosed)
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}

	if err := q.save(ctx, job); err != nil {
		return fmt.Errorf("PublishExport: save job %s: %w", job.JobID, err)
	}

	select {
	case q.pending <- job:
		return nil
	case <-q.done:
		return fmt.Errorf("PublishExport: %w", ErrQueueClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. They exit when ctx is done or the queue stops.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.isStopped() {
		return fmt.Errorf("Start: %w", ErrQueueClosed)
	}

	q.running.Add(q.workers)
	for range q.workers {
		go func() {
			defer q.running.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case job := <-q.pending:
					q.run(ctx, job, handler)
				}
			}
		}()
	}
	return nil
}

func (q *Queue) run(ctx context.Context, job *jobs.ExportJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("run_id", job.RunID).
		Str("job_type", string(job.Type)).
		Logger()

	started := time.Now().UTC()
	job.StartedAt = &started
	job.Status = jobs.JobStatusRunning
	q.saveOrWarn(ctx, log, job)

	err := handler(ctx, job)

	finished := time.Now().UTC()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Int("rows", job.Rows).Msg("Export job completed")
		q.saveOrWarn(ctx, log, job)

	case job.RetryCount >= job.MaxRetries:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Int("attempts", job.RetryCount+1).Msg("Export job failed")
		q.saveOrWarn(ctx, log, job)

	default:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Export job failed, retrying")
		q.saveOrWarn(ctx, log, job)

		// The retry gets its own copy so the snapshot saved above stays intact.
		next := *job
		next.Status = jobs.JobStatusPending
		next.StartedAt = nil
		next.CompletedAt = nil
		time.AfterFunc(time.Duration(next.RetryCount)*q.RetryBackoff, func() {
			if err := q.PublishExport(ctx, &next); err != nil {
				log.Error().Err(err).Msg("Failed to re-enqueue export job")
			}
		})
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.ExportJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}

func (q *Queue) saveOrWarn(ctx context.Context, log zerolog.Logger, job *jobs.ExportJob) {
	if err := q.save(ctx, job); err != nil {
		log.Warn().Err(err).Str("status", string(job.Status)).Msg("Failed to save job state")
	}
}

// Stop refuses new jobs and waits for in-flight ones, or for ctx. Calling it
// again is a no-op.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.done)
	q.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		q.running.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
