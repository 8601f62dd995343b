package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hygienefix/internal/bootstrap/config"
	"hygienefix/internal/ports"
)

type stubRepo struct {
	existing map[int64]ports.Establishment

	bulkReads   int
	bulkReadErr error

	upsertBatches [][]ports.Establishment
	upsertErrOn   map[int]error

	changes   []ports.RatingChange
	changeErr error

	startedRunTypes []string
	startErr        error
	completed       map[string]ports.PipelineRunCompletion
	completeErr     error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		existing:  map[int64]ports.Establishment{},
		completed: map[string]ports.PipelineRunCompletion{},
	}
}

func (s *stubRepo) GetEstablishment(_ context.Context, fhrsid int64) (ports.Establishment, error) {
	est, ok := s.existing[fhrsid]
	if !ok {
		return ports.Establishment{}, ports.ErrEstablishmentNotFound
	}
	return est, nil
}

func (s *stubRepo) GetEstablishmentsByFHRSIDs(_ context.Context, fhrsids []int64) ([]ports.Establishment, error) {
	s.bulkReads++
	if s.bulkReadErr != nil {
		return nil, s.bulkReadErr
	}
	var out []ports.Establishment
	for _, id := range fhrsids {
		if est, ok := s.existing[id]; ok {
			out = append(out, est)
		}
	}
	return out, nil
}

func (s *stubRepo) SearchEstablishments(context.Context, ports.EstablishmentFilter) ([]ports.Establishment, error) {
	return nil, nil
}

func (s *stubRepo) CountEstablishmentsByRating(context.Context) (map[string]int64, error) {
	return nil, nil
}

func (s *stubRepo) GetPipelineRun(context.Context, string) (ports.PipelineRun, error) {
	return ports.PipelineRun{}, nil
}

func (s *stubRepo) UpsertEstablishments(_ context.Context, rows []ports.Establishment) error {
	index := len(s.upsertBatches)
	s.upsertBatches = append(s.upsertBatches, rows)
	if err, ok := s.upsertErrOn[index]; ok {
		return err
	}
	return nil
}

func (s *stubRepo) CreateRatingChange(_ context.Context, change ports.RatingChange) error {
	if s.changeErr != nil {
		return s.changeErr
	}
	s.changes = append(s.changes, change)
	return nil
}

func (s *stubRepo) StartPipelineRun(_ context.Context, runType string) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	s.startedRunTypes = append(s.startedRunTypes, runType)
	return "run-1", nil
}

func (s *stubRepo) CompletePipelineRun(_ context.Context, runID string, done ports.PipelineRunCompletion) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed[runID] = done
	return nil
}

func (s *stubRepo) UpsertSubscriber(context.Context, ports.Subscriber) error { return nil }

func (s *stubRepo) SetSubscriberStatus(context.Context, string, string) error { return nil }

type stubRegistry struct {
	pages map[int]ports.RegistryPage
	errs  map[int]error
	calls []int
}

func (s *stubRegistry) FetchLowRatedPage(_ context.Context, page int, _ int) (ports.RegistryPage, error) {
	s.calls = append(s.calls, page)
	if err, ok := s.errs[page]; ok {
		return ports.RegistryPage{}, err
	}
	return s.pages[page], nil
}

type stubPublisher struct {
	published []ports.RatingChange
	err       error
}

func (s *stubPublisher) PublishRatingChange(_ context.Context, change ports.RatingChange) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, change)
	return nil
}

func registryRow(fhrsid int64, rating string) ports.RegistryEstablishment {
	return ports.RegistryEstablishment{
		FHRSID:       fhrsid,
		BusinessName: "est",
		RatingValue:  rating,
	}
}

func registryRows(rating string, fhrsids ...int64) []ports.RegistryEstablishment {
	rows := make([]ports.RegistryEstablishment, 0, len(fhrsids))
	for _, id := range fhrsids {
		rows = append(rows, registryRow(id, rating))
	}
	return rows
}

func newTestService(repo *stubRepo, reg *stubRegistry, pub ports.ChangePublisher) *Service {
	return NewService(repo, reg, pub, config.PipelineConfig{
		MaxPages:        500,
		UpsertBatchSize: 100,
		PageDelayMS:     0,
	})
}

func TestRunIngestsAllPagesAndCompletesRecord(t *testing.T) {
	repo := newStubRepo()
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {Establishments: registryRows("1", 10, 11), TotalPages: 2, TotalCount: 3},
		2: {Establishments: registryRows("2", 12), TotalPages: 2, TotalCount: 3},
	}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{RunType: RunTypeDaily, MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.TotalFetched != 3 {
		t.Fatalf("TotalFetched = %d, want 3", stats.TotalFetched)
	}
	if stats.NewEstablishments != 3 {
		t.Fatalf("NewEstablishments = %d, want 3", stats.NewEstablishments)
	}
	if stats.Errors != 0 {
		t.Fatalf("Errors = %d, log = %v", stats.Errors, stats.ErrorLog)
	}
	if len(repo.startedRunTypes) != 1 || repo.startedRunTypes[0] != RunTypeDaily {
		t.Fatalf("started runs = %v, want one %q", repo.startedRunTypes, RunTypeDaily)
	}
	done, ok := repo.completed["run-1"]
	if !ok {
		t.Fatal("run record not completed")
	}
	if done.TotalFetched != 3 || done.NewEstablishments != 3 {
		t.Fatalf("completion = %+v", done)
	}
}

func TestRunContainsMidRunPageFailure(t *testing.T) {
	repo := newStubRepo()
	reg := &stubRegistry{
		pages: map[int]ports.RegistryPage{
			1: {Establishments: registryRows("1", 10), TotalPages: 3},
			3: {Establishments: registryRows("1", 30), TotalPages: 3},
		},
		errs: map[int]error{2: errors.New("upstream 503")},
	}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.TotalFetched != 2 {
		t.Fatalf("TotalFetched = %d, want 2 (pages 1 and 3)", stats.TotalFetched)
	}
	if stats.Errors != 1 {
		t.Fatalf("Errors = %d, want 1; log = %v", stats.Errors, stats.ErrorLog)
	}
	if !strings.Contains(stats.ErrorLog[0], "page 2 fetch error") {
		t.Fatalf("error log = %q", stats.ErrorLog[0])
	}
	if len(reg.calls) != 3 {
		t.Fatalf("registry calls = %v, want pages 1..3", reg.calls)
	}
	if _, ok := repo.completed["run-1"]; !ok {
		t.Fatal("run record should complete despite the failed page")
	}
}

func TestRunFirstPageFailureFinalizesImmediately(t *testing.T) {
	repo := newStubRepo()
	reg := &stubRegistry{errs: map[int]error{1: errors.New("connection refused")}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.TotalFetched != 0 || stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if !strings.Contains(stats.ErrorLog[0], "page 1 fetch error") {
		t.Fatalf("error log = %q", stats.ErrorLog[0])
	}
	done, ok := repo.completed["run-1"]
	if !ok {
		t.Fatal("run record not completed")
	}
	if done.Errors != 1 || !strings.Contains(done.ErrorLog, "page 1 fetch error") {
		t.Fatalf("completion = %+v", done)
	}
}

func TestRunDryRunNeverWrites(t *testing.T) {
	repo := newStubRepo()
	repo.existing[10] = ports.Establishment{FHRSID: 10, RatingValue: "3"}
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {Establishments: registryRows("1", 10, 11), TotalPages: 1},
	}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2, DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.TotalFetched != 2 {
		t.Fatalf("TotalFetched = %d, want 2", stats.TotalFetched)
	}
	if stats.NewEstablishments != 0 || stats.RatingChanges != 0 {
		t.Fatalf("dry run classified rows: %+v", stats)
	}
	if len(repo.startedRunTypes) != 0 {
		t.Fatal("dry run created a run record")
	}
	if len(repo.upsertBatches) != 0 || len(repo.changes) != 0 || repo.bulkReads != 0 {
		t.Fatal("dry run touched the store")
	}
}

func TestRunClampsReportedPageCount(t *testing.T) {
	repo := newStubRepo()
	pages := map[int]ports.RegistryPage{}
	for p := 1; p <= 5; p++ {
		pages[p] = ports.RegistryPage{Establishments: registryRows("0", int64(p)), TotalPages: 5}
	}
	reg := &stubRegistry{pages: pages}
	svc := NewService(repo, reg, nil, config.PipelineConfig{MaxPages: 2, UpsertBatchSize: 100})

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(reg.calls) != 2 {
		t.Fatalf("registry calls = %v, want exactly pages 1..2", reg.calls)
	}
	if stats.TotalFetched != 2 {
		t.Fatalf("TotalFetched = %d, want 2", stats.TotalFetched)
	}
}

func TestRunZeroResultsCompletesCleanly(t *testing.T) {
	repo := newStubRepo()
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {TotalPages: 0, TotalCount: 0},
	}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 0})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.TotalFetched != 0 || stats.Errors != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, ok := repo.completed["run-1"]; !ok {
		t.Fatal("run record not completed")
	}
}

func TestRunRejectsNegativeMaxRating(t *testing.T) {
	svc := newTestService(newStubRepo(), &stubRegistry{}, nil)
	if _, err := svc.Run(context.Background(), RunInput{MaxRating: -1}); err == nil {
		t.Fatal("Run() error = nil, want precondition failure")
	}
}

func TestDetectChangesPartitionsRows(t *testing.T) {
	repo := newStubRepo()
	repo.existing[10] = ports.Establishment{FHRSID: 10, RatingValue: "1"}
	repo.existing[11] = ports.Establishment{FHRSID: 11, RatingValue: "1"}
	pub := &stubPublisher{}
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {
			Establishments: []ports.RegistryEstablishment{
				registryRow(10, "1"), // unchanged
				registryRow(11, "2"), // changed 1 -> 2
				registryRow(12, "0"), // new
			},
			TotalPages: 1,
		},
	}}
	svc := newTestService(repo, reg, pub)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.NewEstablishments != 1 {
		t.Fatalf("NewEstablishments = %d, want 1", stats.NewEstablishments)
	}
	if stats.RatingChanges != 1 {
		t.Fatalf("RatingChanges = %d, want 1", stats.RatingChanges)
	}
	if repo.bulkReads != 1 {
		t.Fatalf("bulk reads = %d, want exactly 1 per page", repo.bulkReads)
	}
	if len(repo.changes) != 1 {
		t.Fatalf("changes recorded = %d", len(repo.changes))
	}
	change := repo.changes[0]
	if change.FHRSID != 11 || change.OldRating != "1" || change.NewRating != "2" {
		t.Fatalf("change = %+v", change)
	}
	if len(pub.published) != 1 || pub.published[0].FHRSID != 11 {
		t.Fatalf("published = %+v", pub.published)
	}
}

func TestDetectChangesBulkReadFailureIsContained(t *testing.T) {
	repo := newStubRepo()
	repo.bulkReadErr = errors.New("db locked")
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {Establishments: registryRows("1", 10), TotalPages: 1},
	}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Errors != 1 {
		t.Fatalf("Errors = %d, log = %v", stats.Errors, stats.ErrorLog)
	}
	if !strings.Contains(stats.ErrorLog[0], "batch change detection") {
		t.Fatalf("error log = %q", stats.ErrorLog[0])
	}
	// Upsert still runs; detection is diagnostic.
	if len(repo.upsertBatches) != 1 {
		t.Fatalf("upsert batches = %d, want 1", len(repo.upsertBatches))
	}
}

func TestDetectChangesRecordFailureSkipsPublish(t *testing.T) {
	repo := newStubRepo()
	repo.existing[10] = ports.Establishment{FHRSID: 10, RatingValue: "3"}
	repo.changeErr = errors.New("insert failed")
	pub := &stubPublisher{}
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {Establishments: registryRows("1", 10), TotalPages: 1},
	}}
	svc := newTestService(repo, reg, pub)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.RatingChanges != 0 {
		t.Fatalf("RatingChanges = %d, want 0", stats.RatingChanges)
	}
	if stats.Errors != 1 || !strings.Contains(stats.ErrorLog[0], "FHRSID 10") {
		t.Fatalf("stats = %+v", stats)
	}
	if len(pub.published) != 0 {
		t.Fatalf("published = %+v, want none for a failed record", pub.published)
	}
}

func TestUpsertAllSplitsIntoBatchesAndContainsFailures(t *testing.T) {
	repo := newStubRepo()
	repo.upsertErrOn = map[int]error{1: errors.New("constraint violation")}

	rows := make([]ports.RegistryEstablishment, 0, 250)
	for i := 0; i < 250; i++ {
		rows = append(rows, registryRow(int64(1000+i), "1"))
	}
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {Establishments: rows, TotalPages: 1},
	}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(repo.upsertBatches) != 3 {
		t.Fatalf("upsert batches = %d, want 3", len(repo.upsertBatches))
	}
	sizes := []int{len(repo.upsertBatches[0]), len(repo.upsertBatches[1]), len(repo.upsertBatches[2])}
	if sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Fatalf("batch sizes = %v, want [100 100 50]", sizes)
	}
	if stats.Errors != 1 {
		t.Fatalf("Errors = %d, log = %v", stats.Errors, stats.ErrorLog)
	}
	if !strings.Contains(stats.ErrorLog[0], "100 rows") {
		t.Fatalf("error log = %q, want the failed batch size in it", stats.ErrorLog[0])
	}
}

func TestRunStartRecordFailureIsRecordedAndRunProceeds(t *testing.T) {
	repo := newStubRepo()
	repo.startErr = errors.New("db unavailable")
	reg := &stubRegistry{pages: map[int]ports.RegistryPage{
		1: {Establishments: registryRows("1", 10), TotalPages: 1},
	}}
	svc := newTestService(repo, reg, nil)

	stats, err := svc.Run(context.Background(), RunInput{MaxRating: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.TotalFetched != 1 {
		t.Fatalf("TotalFetched = %d, want 1", stats.TotalFetched)
	}
	if stats.Errors != 1 || !strings.Contains(stats.ErrorLog[0], "failed to start pipeline run") {
		t.Fatalf("stats = %+v", stats)
	}
	if len(repo.upsertBatches) != 1 {
		t.Fatal("ingestion should proceed without a run record")
	}
}
