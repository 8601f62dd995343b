package ports

import "context"

// ChangePublisher pushes detected rating transitions to downstream
// consumers (the outreach/broadcast side). Publishing is best-effort:
// the pipeline treats a publish failure like any other per-record error.
type ChangePublisher interface {
	PublishRatingChange(ctx context.Context, change RatingChange) error
}
