package pipeline

import (
	"time"

	"hygienefix/internal/bootstrap/config"
	"hygienefix/internal/ports"
)

// Service runs the daily ingestion pipeline: paginate the registry,
// detect rating transitions against the store, bulk-upsert rows, record
// run statistics. One invocation is one sequential flow; pages are never
// fetched concurrently because the upstream rate-limits and because
// change detection must observe the store before the same page's upsert.
type Service struct {
	repo      ports.RatingsRepository
	registry  ports.Registry
	publisher ports.ChangePublisher

	maxPages        int
	upsertBatchSize int
	pageDelay       time.Duration
}

func NewService(repo ports.RatingsRepository, registry ports.Registry, publisher ports.ChangePublisher, cfg config.PipelineConfig) *Service {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 500
	}
	batchSize := cfg.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	delay := time.Duration(cfg.PageDelayMS) * time.Millisecond
	if cfg.PageDelayMS < 0 {
		delay = 0
	}

	return &Service{
		repo:            repo,
		registry:        registry,
		publisher:       publisher,
		maxPages:        maxPages,
		upsertBatchSize: batchSize,
		pageDelay:       delay,
	}
}
