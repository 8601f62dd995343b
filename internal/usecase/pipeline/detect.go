package pipeline

import (
	"context"
	"log/slog"
	"time"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/ports"
)

// detectChanges classifies one page's rows against the store and returns
// the number of rating transitions recorded. It performs exactly one bulk
// read keyed by the batch's FHRSIDs, never one read per row. It must run
// before the batch's upsert, which would otherwise overwrite the prior
// state it compares against.
//
// Every row falls into exactly one class: unknown identifier (new, the
// upsert will create it), same rating (no action), or different rating
// (append one change record). Errors are recorded on stats and contained;
// change tracking is diagnostic, the upsert is what must succeed.
func (s *Service) detectChanges(ctx context.Context, rows []ports.Establishment, stats *Stats) int {
	changes := 0

	fhrsids := make([]int64, 0, len(rows))
	for _, row := range rows {
		fhrsids = append(fhrsids, row.FHRSID)
	}

	existing, err := s.repo.GetEstablishmentsByFHRSIDs(ctx, fhrsids)
	if err != nil {
		stats.recordError(&PersistenceError{Op: "batch change detection", Err: err})
		return 0
	}

	existingByID := make(map[int64]ports.Establishment, len(existing))
	for _, e := range existing {
		existingByID[e.FHRSID] = e
	}

	detectedAt := time.Now().UTC().Format(time.RFC3339Nano)

	for _, row := range rows {
		old, ok := existingByID[row.FHRSID]
		if !ok {
			stats.NewEstablishments++
			continue
		}

		if old.RatingValue == row.RatingValue {
			continue
		}

		change := ports.RatingChange{
			FHRSID:        row.FHRSID,
			OldRating:     old.RatingValue,
			NewRating:     row.RatingValue,
			OldHygiene:    old.HygieneScore,
			NewHygiene:    row.HygieneScore,
			OldStructural: old.StructuralScore,
			NewStructural: row.StructuralScore,
			OldManagement: old.ManagementScore,
			NewManagement: row.ManagementScore,
			DetectedAt:    detectedAt,
		}

		if err := s.repo.CreateRatingChange(ctx, change); err != nil {
			stats.recordError(&PersistenceError{Op: "rating change record", FHRSID: row.FHRSID, Err: err})
			continue
		}
		changes++

		if s.publisher != nil {
			if err := s.publisher.PublishRatingChange(ctx, change); err != nil {
				logging.Warn(ctx, "rating change publish failed",
					slog.Int64("fhrsid", row.FHRSID),
					slog.String("err", err.Error()))
			}
		}
	}

	return changes
}
