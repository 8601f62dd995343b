package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/errs"
	"hygienefix/internal/ports"
)

const (
	RunTypeDaily  = "daily"
	RunTypeFull   = "full"
	RunTypeManual = "manual"
)

type RunInput struct {
	RunType   string
	MaxRating int
	DryRun    bool
}

// Run drives one pipeline execution end to end and always returns stats,
// dry-run or not. The run swallows per-page and per-batch failures into
// the stats; the returned error is non-nil only for broken preconditions,
// never for upstream or store trouble mid-run.
func (s *Service) Run(ctx context.Context, in RunInput) (Stats, error) {
	if ctx == nil {
		return Stats{}, errors.New("context is required")
	}
	if s.repo == nil {
		return Stats{}, errors.New("ratings repository is required")
	}
	if s.registry == nil {
		return Stats{}, errors.New("registry client is required")
	}
	if in.MaxRating < 0 {
		return Stats{}, fmt.Errorf("maxRating must be >= 0, got %d", in.MaxRating)
	}

	runType := in.RunType
	if runType == "" {
		runType = RunTypeDaily
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.pipeline"),
		slog.String("run_type", runType),
		slog.Int("max_rating", in.MaxRating),
		slog.Bool("dry_run", in.DryRun),
	)

	stats := Stats{}

	// A dry run never touches the store, run record included. A failed
	// start is logged into the run's own error log and the run proceeds;
	// stats simply are not persisted at the end either.
	runID := ""
	if !in.DryRun {
		id, err := s.repo.StartPipelineRun(ctx, runType)
		if err != nil {
			stats.recordError(errs.Wrap(err, "failed to start pipeline run"))
		} else {
			runID = id
		}
	}

	logging.Info(logCtx, "pipeline run starting")

	firstPage, err := s.registry.FetchLowRatedPage(ctx, 1, in.MaxRating)
	if err != nil {
		// Without page 1 there is no pagination metadata; the run
		// completes immediately with the failure on record.
		stats.recordError(&RegistryError{Page: 1, Err: err})
		s.finalize(ctx, runID, in.DryRun, &stats)
		return stats, nil
	}

	// Clamp the upstream-reported page count so wrong or unbounded meta
	// can never produce a runaway loop.
	totalPages := firstPage.TotalPages
	if totalPages > s.maxPages {
		totalPages = s.maxPages
	}

	logging.Info(logCtx, "pagination discovered",
		slog.Int("total_count", firstPage.TotalCount),
		slog.Int("total_pages", totalPages))

	s.processRows(ctx, MapRows(firstPage.Establishments), in.DryRun, &stats)

	for page := 2; page <= totalPages; page++ {
		if err := sleepCtx(ctx, s.pageDelay); err != nil {
			stats.recordError(errs.Wrap(err, "pipeline interrupted"))
			break
		}

		pageData, err := s.registry.FetchLowRatedPage(ctx, page, in.MaxRating)
		if err != nil {
			// A single bad page never halts the run.
			stats.recordError(&RegistryError{Page: page, Err: err})
			continue
		}

		s.processRows(ctx, MapRows(pageData.Establishments), in.DryRun, &stats)

		if page%10 == 0 {
			logging.Info(logCtx, "pipeline progress",
				slog.Int("page", page),
				slog.Int("total_pages", totalPages),
				slog.Int("total_fetched", stats.TotalFetched))
		}
	}

	s.finalize(logCtx, runID, in.DryRun, &stats)

	logging.Info(logCtx, "pipeline run complete",
		slog.Int("total_fetched", stats.TotalFetched),
		slog.Int("new_establishments", stats.NewEstablishments),
		slog.Int("rating_changes", stats.RatingChanges),
		slog.Int("errors", stats.Errors))

	return stats, nil
}

// processRows handles one fetched page: count it, then (outside dry-run)
// detect changes against the store before the upsert can overwrite the
// prior state, and finally write the batch.
func (s *Service) processRows(ctx context.Context, rows []ports.Establishment, dryRun bool, stats *Stats) {
	stats.TotalFetched += len(rows)

	if dryRun || len(rows) == 0 {
		return
	}

	stats.RatingChanges += s.detectChanges(ctx, rows, stats)
	s.upsertAll(ctx, rows, stats)
}

// finalize closes the run record with the aggregated stats. Failing to
// complete the record is logged but does not alter the returned stats.
func (s *Service) finalize(ctx context.Context, runID string, dryRun bool, stats *Stats) {
	if dryRun || runID == "" {
		return
	}

	err := s.repo.CompletePipelineRun(ctx, runID, ports.PipelineRunCompletion{
		TotalFetched:      stats.TotalFetched,
		NewEstablishments: stats.NewEstablishments,
		RatingChanges:     stats.RatingChanges,
		Errors:            stats.Errors,
		ErrorLog:          stats.errorLogString(),
	})
	if err != nil {
		logging.Error(ctx, "failed to complete pipeline run record",
			slog.String("run_id", runID),
			slog.String("err", err.Error()))
	}
}

// sleepCtx waits the inter-page delay without outliving a cancelled
// context. The delay keeps request pacing polite toward the upstream
// registry's rate limiting.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
