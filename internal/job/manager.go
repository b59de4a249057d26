package job

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	fileutil "nfesorter/internal/file"
	"nfesorter/internal/report"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager keeps jobs in memory, persists every state change through the
// store and runs jobs on a bounded pool of background workers.
type Manager struct {
	mu                sync.RWMutex
	jobs              map[string]*Job
	layout            Layout
	allowedExtensions map[string]struct{}
	semaphore         chan struct{}
	dispatched        map[string]struct{}
	run               func(ctx context.Context, j Job, destination string) error
	workersWG         sync.WaitGroup
	baseCtx           context.Context
	store             Store
}

// NewManager creates a manager with default options suitable for tests
func NewManager() *Manager {
	return NewManagerWithOptions(Options{
		DataDir:           "data",
		UploadExtensions:  []string{".zip"},
		MaxConcurrentJobs: defaultMaxConcurrent,
	})
}

// NewManagerWithOptions creates a manager with provided configuration
func NewManagerWithOptions(opts Options) *Manager {
	allowed := make(map[string]struct{}, len(opts.UploadExtensions))
	for _, ext := range opts.UploadExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 1
	}
	store := opts.Store
	if store == nil {
		store = NewFileStore(opts.DataDir)
	}
	m := &Manager{
		jobs:              make(map[string]*Job),
		layout:            Layout{DataDir: opts.DataDir},
		allowedExtensions: allowed,
		semaphore:         make(chan struct{}, opts.MaxConcurrentJobs),
		dispatched:        make(map[string]struct{}),
		baseCtx:           context.Background(),
		store:             store,
	}
	m.run = NewRunner(m).Run
	return m
}

// IsBusy reports whether every worker slot is taken
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// Submit stores an uploaded archive as the input of a new pending job and
// dispatches it. The returned job is a snapshot.
func (m *Manager) Submit(ctx context.Context, originalName string, upload io.Reader) (Job, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(originalName)))
	if _, ok := m.allowedExtensions[ext]; !ok {
		return Job{}, NewErrExtNotAllowed(ext)
	}

	jobID := uuid.NewString()
	now := time.Now()
	newJob := &Job{
		ID:           jobID,
		Status:       StatusPending,
		OriginalName: originalName,
		InputPath:    m.layout.InputPath(jobID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := fileutil.CopyAtomic(newJob.InputPath, upload); err != nil {
		return Job{}, fmt.Errorf("store upload: %w", err)
	}
	if err := m.persistJob(ctx, *newJob); err != nil {
		return Job{}, err
	}

	m.mu.Lock()
	m.jobs[jobID] = newJob
	snapshot := *newJob
	m.mu.Unlock()

	if err := m.Dispatch(jobID); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// Dispatch queues a pending job on the worker pool. A job is dispatched at
// most once per process; a second call returns ErrAlreadyDispatched.
func (m *Manager) Dispatch(jobID string) error {
	m.mu.Lock()
	current, found := m.jobs[jobID]
	if !found {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	if _, busy := m.dispatched[jobID]; busy {
		m.mu.Unlock()
		return ErrAlreadyDispatched
	}
	if current.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: dispatch of %s job", ErrInvalidTransition, current.Status)
	}
	m.dispatched[jobID] = struct{}{}
	m.workersWG.Add(1)
	m.mu.Unlock()

	go m.worker(jobID)
	return nil
}

func (m *Manager) worker(jobID string) {
	defer m.workersWG.Done()
	defer func() {
		m.mu.Lock()
		delete(m.dispatched, jobID)
		m.mu.Unlock()
	}()

	baseCtx := m.context()
	select {
	case m.semaphore <- struct{}{}:
	case <-baseCtx.Done():
		log.Info().Str("job_id", jobID).Msg("shutting down before job started; left pending")
		return
	}
	defer func() { <-m.semaphore }()
	if baseCtx.Err() != nil {
		log.Info().Str("job_id", jobID).Msg("shutting down before job started; left pending")
		return
	}

	current, ok := m.GetJob(jobID)
	if !ok {
		return
	}
	run := m.runner()
	// a started job runs to the end: the base context only guards the queue
	if err := run(context.WithoutCancel(baseCtx), current, m.layout.OutputPath(jobID)); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("job run ended with error")
	}
}

// GetJob returns a snapshot of the job
func (m *Manager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *found, true
}

// MarkProcessing moves a pending job to processing.
func (m *Manager) MarkProcessing(ctx context.Context, jobID string) error {
	return m.transition(ctx, jobID, StatusProcessing, nil)
}

// MarkCompleted records the result archive and final counts of a processing job.
func (m *Manager) MarkCompleted(ctx context.Context, jobID, outputPath string, stats report.Stats) error {
	return m.transition(ctx, jobID, StatusCompleted, func(j *Job) {
		j.OutputPath = outputPath
		j.Stats = &stats
	})
}

// MarkFailed ends a processing job without output.
func (m *Manager) MarkFailed(ctx context.Context, jobID, reason string) error {
	return m.transition(ctx, jobID, StatusFailed, func(j *Job) {
		j.OutputPath = ""
		j.Stats = nil
		j.Error = reason
	})
}

// transition applies one validated state change. The new state is persisted
// before readers can observe it; a persistence failure is logged and the
// in-memory state still advances.
func (m *Manager) transition(ctx context.Context, jobID string, next Status, mutate func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if !current.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
	}

	updated := *current
	updated.Status = next
	updated.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(&updated)
	}
	if err := m.persistJob(ctx, updated); err != nil {
		log.Warn().Str("job_id", jobID).Str("status", string(next)).Err(err).Msg("persist status failed")
	}
	*current = updated
	log.Info().Str("job_id", jobID).Str("status", string(next)).Msg("job status changed")
	return nil
}

// SetBaseContext sets the context whose cancellation stops queued jobs from
// starting. Intended to be set at process startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

func (m *Manager) context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseCtx
}

func (m *Manager) runner() func(ctx context.Context, j Job, destination string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.run
}

// WaitAll blocks until all in-flight job workers finish or the context is done.
// Returns true if all workers finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// UseRunner replaces the job runner. Jobs pick the runner up when they
// acquire a worker slot, so a swap affects every job not yet started.
func (m *Manager) UseRunner(run func(ctx context.Context, j Job, destination string) error) {
	m.mu.Lock()
	m.run = run
	m.mu.Unlock()
}

// Close releases the store.
func (m *Manager) Close() error {
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// persistJob saves a copy of the job so the store never touches shared state.
func (m *Manager) persistJob(ctx context.Context, j Job) error {
	if err := m.store.SaveJob(ctx, &j); err != nil {
		return fmt.Errorf("store save job: %w", err)
	}
	return nil
}
