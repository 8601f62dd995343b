package pipeline

import (
	"context"

	"hygienefix/internal/ports"
)

// upsertAll writes rows in sub-batches bounded by the configured maximum
// so a single store call never exceeds payload limits. A failed sub-batch
// is recorded with its size and dropped; siblings still write, so partial
// application of a page is possible and logged rather than fatal. The
// next run re-fetches the same rows and self-heals.
func (s *Service) upsertAll(ctx context.Context, rows []ports.Establishment, stats *Stats) {
	for start := 0; start < len(rows); start += s.upsertBatchSize {
		end := start + s.upsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		if err := s.repo.UpsertEstablishments(ctx, batch); err != nil {
			stats.recordError(&PersistenceError{Op: "upsert batch", BatchSize: len(batch), Err: err})
		}
	}
}
