package job

import (
	"context"
	"errors"
	"fmt"

	"nfesorter/internal/archive"
	"nfesorter/internal/nfe"
	"nfesorter/internal/report"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	reasonInputUnreadable  = "input archive unreadable"
	reasonOutputUnwritable = "output archive not writable"
)

// StateRecorder is the only way the runner changes a job's status.
type StateRecorder interface {
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID, outputPath string, stats report.Stats) error
	MarkFailed(ctx context.Context, jobID, reason string) error
}

// Runner processes a single job: input archive in, sorted archive out.
type Runner struct {
	states StateRecorder
}

func NewRunner(states StateRecorder) *Runner {
	return &Runner{states: states}
}

// Run moves the job to processing, sorts its input archive into
// destination and records the terminal state. Only a failure to open the
// input or create the output (or to write it) ends a job as failed;
// individual documents never do.
func (r *Runner) Run(ctx context.Context, j Job, destination string) error {
	logger := log.With().Str("job_id", j.ID).Logger()

	if err := r.states.MarkProcessing(ctx, j.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	logger.Info().Str("input", j.InputPath).Msg("processing started")

	stats, err := SortArchive(j.InputPath, destination, logger)
	if err != nil {
		logger.Error().Err(err).Msg("processing failed")
		if markErr := r.states.MarkFailed(ctx, j.ID, failureReason(err)); markErr != nil {
			return errors.Join(err, fmt.Errorf("mark failed: %w", markErr))
		}
		return err
	}

	if err := r.states.MarkCompleted(ctx, j.ID, destination, stats); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.Info().
		Int("approved", stats.Approved).
		Int("contingency", stats.Contingency).
		Int("rejected", stats.Rejected).
		Str("output", destination).
		Msg("processing completed")
	return nil
}

// SortArchive classifies every document of the archive at inputPath and
// writes it into the matching folder of a new archive at outputPath, in
// input order, followed by the rejection report when there were rejections.
func SortArchive(inputPath, outputPath string, logger zerolog.Logger) (report.Stats, error) {
	reader, err := archive.Open(inputPath)
	if err != nil {
		return report.Stats{}, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn().Err(err).Msg("close input archive")
		}
	}()

	writer, err := archive.Create(outputPath)
	if err != nil {
		return report.Stats{}, err
	}

	var (
		counts     report.Accumulator
		rejections report.Builder
	)
	for reader.Next() {
		entry := reader.Entry()
		if !archive.IsDocument(entry.Name) {
			continue
		}

		data, readErr := entry.Bytes()
		outcome := nfe.Malformed()
		if readErr != nil {
			logger.Warn().Str("entry", entry.Name).Err(readErr).Msg("entry unreadable; filed as malformed")
		} else {
			outcome = nfe.Classify(data)
		}

		counts.Increment(outcome.Category)
		if err := writer.AddEntry(folderFor(outcome.Category)+entry.Name, data); err != nil {
			writer.Discard()
			return report.Stats{}, err
		}
		if outcome.Rejected() {
			rejections.Record(entry.Name, outcome.ReasonCode, outcome.ReasonText)
		}
		logger.Debug().Str("entry", entry.Name).Str("category", string(outcome.Category)).Msg("document classified")
	}

	csvData, ok, err := rejections.Render()
	if err != nil {
		writer.Discard()
		return report.Stats{}, fmt.Errorf("render report: %w", err)
	}
	if ok {
		if err := writer.AddEntry(archive.ReportEntry, csvData); err != nil {
			writer.Discard()
			return report.Stats{}, err
		}
	}

	if err := writer.Finalize(); err != nil {
		writer.Discard()
		return report.Stats{}, err
	}
	return counts.Snapshot(), nil
}

// failureReason is the client-facing cause of a failed job; the full error,
// which carries server paths, only goes to the log.
func failureReason(err error) string {
	if errors.Is(err, archive.ErrOpen) {
		return reasonInputUnreadable
	}
	return reasonOutputUnwritable
}

func folderFor(category nfe.Category) string {
	switch category.Counted() {
	case nfe.CategoryApproved:
		return archive.FolderApproved
	case nfe.CategoryContingency:
		return archive.FolderContingency
	default:
		return archive.FolderRejected
	}
}
