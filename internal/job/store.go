package job

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	fileutil "nfesorter/internal/file"
)

// Store abstracts persistence of job records. The file store keeps one
// status.json per job; the SQL store keeps a jobs table.
type Store interface {
	SaveJob(ctx context.Context, j *Job) error
	LoadJobs(ctx context.Context) ([]*Job, error)
	Close() error
}

// Layout resolves where a job's files live under the data directory.
type Layout struct {
	DataDir string
}

func (l Layout) root() string { return filepath.Join(l.DataDir, "jobs") }

func (l Layout) JobDir(jobID string) string { return filepath.Join(l.root(), jobID) }

func (l Layout) InputPath(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "input.zip")
}

func (l Layout) OutputPath(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "resultado.zip")
}

func (l Layout) statusPath(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "status.json")
}

// fileStore implements Store using the local filesystem under dataDir.
type fileStore struct {
	layout Layout
}

func NewFileStore(dataDir string) Store { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{layout: Layout{DataDir: dataDir}}
}

func (s *fileStore) SaveJob(_ context.Context, j *Job) error {
	if err := fileutil.EnsureDir(s.layout.JobDir(j.ID)); err != nil {
		return fmt.Errorf("ensure job dir: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(s.layout.statusPath(j.ID), j); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

func (s *fileStore) LoadJobs(_ context.Context) ([]*Job, error) {
	entries, err := os.ReadDir(s.layout.root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	jobs := make([]*Job, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(s.layout.statusPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var j Job
		if err := json.Unmarshal(b, &j); err != nil {
			continue
		}
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

func (s *fileStore) Close() error { return nil }
