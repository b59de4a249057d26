package job

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const interruptedReason = "interrupted: service stopped while processing"

// LoadFromDisk restores jobs from the store into memory.
// Jobs left processing by a previous run are marked failed; jobs still
// pending were never started and are dispatched again.
func (m *Manager) LoadFromDisk() error {
	ctx := context.Background()
	loadedJobs, err := m.store.LoadJobs(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	pending := make([]string, 0)
	for _, loaded := range loadedJobs {
		m.mu.Lock()
		m.jobs[loaded.ID] = loaded
		m.mu.Unlock()

		switch loaded.Status {
		case StatusProcessing:
			if err := m.MarkFailed(ctx, loaded.ID, interruptedReason); err != nil {
				log.Warn().Str("job_id", loaded.ID).Err(err).Msg("mark interrupted job failed")
			}
		case StatusPending:
			pending = append(pending, loaded.ID)
		}
	}

	for _, jobID := range pending {
		if err := m.Dispatch(jobID); err != nil {
			log.Warn().Str("job_id", jobID).Err(err).Msg("redispatch pending job")
		}
	}
	log.Info().Int("jobs", len(loadedJobs)).Int("redispatched", len(pending)).Msg("jobs restored")
	return nil
}
