package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"MovieHarvester/internal/config"
	"MovieHarvester/internal/domain"
	"MovieHarvester/internal/infrastructure/checkpoint"
)

type fakeSource struct {
	pages       map[string][]domain.Summary
	details     map[int64]domain.Detail
	detailErrs  map[int64]error
	verifyErr   error
	detailCalls map[int64]int
}

func pageKey(year int, sort string, page int) string {
	return fmt.Sprintf("%d/%s/%d", year, sort, page)
}

func (f *fakeSource) VerifyCredentials(ctx context.Context) error {
	return f.verifyErr
}

func (f *fakeSource) Discover(ctx context.Context, year int, sort string, page int) ([]domain.Summary, error) {
	return f.pages[pageKey(year, sort, page)], nil
}

func (f *fakeSource) Detail(ctx context.Context, id int64) (domain.Detail, error) {
	if f.detailCalls == nil {
		f.detailCalls = map[int64]int{}
	}
	f.detailCalls[id]++
	if err := f.detailErrs[id]; err != nil {
		return domain.Detail{}, err
	}
	d, ok := f.details[id]
	if !ok {
		return domain.Detail{}, fmt.Errorf("unknown id %d", id)
	}
	return d, nil
}

type fakeStore struct {
	checkpoints [][]domain.Record
	full        [][]domain.Record
	balanced    [][]domain.Record
}

func (f *fakeStore) Checkpoint(records []domain.Record) error {
	f.checkpoints = append(f.checkpoints, append([]domain.Record(nil), records...))
	return nil
}

func (f *fakeStore) WriteFull(records []domain.Record) error {
	f.full = append(f.full, append([]domain.Record(nil), records...))
	return nil
}

func (f *fakeStore) WriteBalanced(records []domain.Record) error {
	f.balanced = append(f.balanced, append([]domain.Record(nil), records...))
	return nil
}

func detail(id, budget, revenue int64) domain.Detail {
	return domain.Detail{
		ID:               id,
		Title:            fmt.Sprintf("Movie %d", id),
		OriginalLanguage: "en",
		ReleaseDate:      "2020-06-01",
		Budget:           budget,
		Revenue:          revenue,
	}
}

func harvestConfig() config.HarvestConfig {
	return config.HarvestConfig{
		YearStart:       2020,
		YearEnd:         2020,
		PagesPerYear:    2,
		TargetPerClass:  2,
		CheckpointEvery: 2,
		Sorts:           []string{"revenue.asc"},
		BiasSort:        "revenue.asc",
	}
}

func newTestHarvester(source *fakeSource, store *fakeStore, cfg config.HarvestConfig) *Harvester {
	return NewHarvester(HarvesterDeps{
		Source:     source,
		Store:      store,
		Harvest:    cfg,
		Classifier: config.ClassifierConfig{PosThreshold: 2.0, NegThreshold: 0.9},
		Rand:       rand.New(rand.NewSource(5)),
	})
}

func TestHarvestEndToEnd(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		pages: map[string][]domain.Summary{
			pageKey(2020, "revenue.asc", 1): {
				{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4},
				{ID: 1}, // duplicate within the page
			},
			pageKey(2020, "revenue.asc", 2): {
				{ID: 3}, // ambiguous on page 1: eligible for refetch
				{ID: 4}, // no-signal on page 1: seen, never refetched
				{ID: 5}, {ID: 6},
			},
		},
		details: map[int64]domain.Detail{
			1: detail(1, 10_000_000, 25_000_000), // ratio 2.5 -> positive
			2: detail(2, 10_000_000, 7_000_000),  // ratio 0.7 -> negative
			3: detail(3, 10_000_000, 15_000_000), // ratio 1.5 -> ambiguous
			4: detail(4, 0, 5_000_000),           // no signal
			5: detail(5, 10_000_000, 20_000_000), // ratio 2.0 -> positive (boundary)
			6: detail(6, 10_000_000, 9_000_000),  // ratio 0.9 -> negative (boundary)
		},
	}
	store := &fakeStore{}

	h := newTestHarvester(source, store, harvestConfig())
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := source.detailCalls[1]; got != 1 {
		t.Fatalf("duplicate id must be fetched once, got %d", got)
	}
	if got := source.detailCalls[3]; got != 2 {
		t.Fatalf("ambiguous id must stay unseen and be refetched, got %d calls", got)
	}
	if got := source.detailCalls[4]; got != 1 {
		t.Fatalf("no-signal id must be marked seen, got %d calls", got)
	}

	if len(store.full) != 1 {
		t.Fatalf("expected one full output, got %d", len(store.full))
	}
	full := store.full[0]
	if len(full) != 4 {
		t.Fatalf("expected 4 records, got %d", len(full))
	}
	ids := map[int64]bool{}
	for _, r := range full {
		if ids[r.ID] {
			t.Fatalf("id %d appears twice in full output", r.ID)
		}
		ids[r.ID] = true
		if r.Budget <= 0 || r.Revenue <= 0 {
			t.Fatalf("record %d has non-positive budget/revenue", r.ID)
		}
		if r.Label != domain.LabelPositive && r.Label != domain.LabelNegative {
			t.Fatalf("record %d has invalid label %q", r.ID, r.Label)
		}
	}

	if len(store.balanced) != 1 {
		t.Fatalf("expected one balanced output, got %d", len(store.balanced))
	}
	var pos, neg int
	for _, r := range store.balanced[0] {
		if r.Label == domain.LabelPositive {
			pos++
		} else {
			neg++
		}
	}
	if pos != 2 || neg != 2 {
		t.Fatalf("expected 2 per class, got pos=%d neg=%d", pos, neg)
	}

	// 2 records after page 1, 2 more after page 2
	if len(store.checkpoints) != 2 {
		t.Fatalf("expected 2 checkpoint flushes, got %d", len(store.checkpoints))
	}
}

func TestHarvestEarlyStop(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		pages: map[string][]domain.Summary{
			pageKey(2020, "revenue.asc", 1): {{ID: 1}, {ID: 2}, {ID: 3}},
		},
		details: map[int64]domain.Detail{
			1: detail(1, 10_000_000, 25_000_000),
			2: detail(2, 10_000_000, 7_000_000),
			3: detail(3, 10_000_000, 30_000_000),
		},
	}
	store := &fakeStore{}

	cfg := harvestConfig()
	cfg.TargetPerClass = 1

	h := newTestHarvester(source, store, cfg)
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := source.detailCalls[3]; got != 0 {
		t.Fatalf("entries after early-stop must not be fetched, got %d calls", got)
	}
	if len(store.full) != 1 || len(store.full[0]) != 2 {
		t.Fatalf("expected full output with 2 records, got %+v", store.full)
	}
}

func TestHarvestResumeSkipsLoadedIDs(t *testing.T) {
	t.Parallel()

	loaded := []domain.Record{
		{ID: 1, Budget: 10_000_000, Revenue: 25_000_000, Ratio: 2.5, Label: domain.LabelPositive},
	}

	source := &fakeSource{
		pages: map[string][]domain.Summary{
			pageKey(2020, "revenue.asc", 1): {{ID: 1}, {ID: 2}},
		},
		details: map[int64]domain.Detail{
			1: detail(1, 10_000_000, 25_000_000),
			2: detail(2, 10_000_000, 7_000_000),
		},
	}
	store := &fakeStore{}

	cfg := harvestConfig()
	cfg.TargetPerClass = 1

	h := newTestHarvester(source, store, cfg)
	h.Resume(loaded)
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := source.detailCalls[1]; got != 0 {
		t.Fatalf("loaded id must never be refetched, got %d calls", got)
	}
	if len(store.full) != 1 || len(store.full[0]) != 2 {
		t.Fatalf("expected loaded + fresh record in full output, got %+v", store.full)
	}
}

// crashingStore flushes checkpoints normally but dies before the final full
// write, like a process killed at the end of a run.
type crashingStore struct {
	*checkpoint.Store
}

func (c *crashingStore) WriteFull(records []domain.Record) error {
	return errors.New("process killed")
}

func TestHarvestRestartAfterFlushSkipsFlushedIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := config.OutputConfig{
		FullPath:     filepath.Join(dir, "movies_full.csv"),
		BalancedPath: filepath.Join(dir, "movies_balanced.csv"),
		PartialPath:  filepath.Join(dir, "movies_partial.csv"),
	}

	pages := map[string][]domain.Summary{
		pageKey(2020, "revenue.asc", 1): {{ID: 1}, {ID: 2}},
	}
	details := map[int64]domain.Detail{
		1: detail(1, 10_000_000, 25_000_000),
		2: detail(2, 10_000_000, 7_000_000),
	}

	cfg := harvestConfig()
	cfg.CheckpointEvery = 1

	first := &fakeSource{pages: pages, details: details}
	h := NewHarvester(HarvesterDeps{
		Source:     first,
		Store:      &crashingStore{checkpoint.NewStore(out)},
		Harvest:    cfg,
		Classifier: config.ClassifierConfig{PosThreshold: 2.0, NegThreshold: 0.9},
		Rand:       rand.New(rand.NewSource(5)),
	})
	if err := h.Run(context.Background()); err == nil {
		t.Fatal("expected the interrupted run to fail")
	}

	loaded, err := checkpoint.LoadLatest(out.FullPath, out.PartialPath)
	if err != nil {
		t.Fatalf("LoadLatest error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected both flushed records to survive the crash, got %d", len(loaded))
	}

	second := &fakeSource{pages: pages, details: details}
	h2 := NewHarvester(HarvesterDeps{
		Source:     second,
		Store:      checkpoint.NewStore(out),
		Harvest:    cfg,
		Classifier: config.ClassifierConfig{PosThreshold: 2.0, NegThreshold: 0.9},
		Rand:       rand.New(rand.NewSource(5)),
	})
	h2.Resume(loaded)
	if err := h2.Run(context.Background()); err != nil {
		t.Fatalf("restarted run error: %v", err)
	}

	if got := second.detailCalls[1] + second.detailCalls[2]; got != 0 {
		t.Fatalf("identifiers flushed before the crash must not be refetched, got %d calls", got)
	}

	full, err := checkpoint.Load(out.FullPath)
	if err != nil {
		t.Fatalf("Load full output: %v", err)
	}
	if len(full) != 2 {
		t.Fatalf("expected the restarted run to write both records, got %d", len(full))
	}
}

func TestHarvestFatalOnBadCredentials(t *testing.T) {
	t.Parallel()

	source := &fakeSource{verifyErr: fmt.Errorf("credential check: %w", domain.ErrUnauthorized)}
	store := &fakeStore{}

	h := newTestHarvester(source, store, harvestConfig())
	err := h.Run(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if len(store.checkpoints)+len(store.full)+len(store.balanced) != 0 {
		t.Fatal("no file may be written after a credential failure")
	}
}

func TestHarvestSkipsFailedEntityWithoutSeen(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		pages: map[string][]domain.Summary{
			pageKey(2020, "revenue.asc", 1): {{ID: 1}},
			pageKey(2020, "revenue.asc", 2): {{ID: 1}},
		},
		details:    map[int64]domain.Detail{},
		detailErrs: map[int64]error{1: fmt.Errorf("fetch: %w", domain.ErrExhausted)},
	}
	store := &fakeStore{}

	h := newTestHarvester(source, store, harvestConfig())
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := source.detailCalls[1]; got != 2 {
		t.Fatalf("failed entity must stay unseen and be retried, got %d calls", got)
	}
	if len(store.full) != 0 {
		t.Fatal("no records harvested, no full output expected")
	}
}

func TestHarvestNoRecordsWritesNothing(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: map[string][]domain.Summary{}}
	store := &fakeStore{}

	h := newTestHarvester(source, store, harvestConfig())
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(store.full)+len(store.balanced) != 0 {
		t.Fatal("empty harvest must not write output files")
	}
}
