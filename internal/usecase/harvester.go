package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"MovieHarvester/internal/config"
	"MovieHarvester/internal/domain"
	"MovieHarvester/internal/harvest"
	"MovieHarvester/internal/metrics"
	"MovieHarvester/internal/ports"
)

// Phase names the controller states, mostly for logs and debugging.
type Phase string

const (
	PhaseScanning      Phase = "scanning"
	PhaseFetching      Phase = "fetching"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseSampling      Phase = "sampling"
	PhaseDone          Phase = "done"
)

// HarvesterDeps wires all driven adapters into the harvest controller.
type HarvesterDeps struct {
	Source     ports.CatalogSource
	Store      ports.DatasetStore
	Repository ports.RecordRepository
	Notifier   ports.Notifier
	Harvest    config.HarvestConfig
	Classifier config.ClassifierConfig
	Logger     *slog.Logger
	Rand       *rand.Rand
}

// Harvester owns the main loop: it pulls discover pages, fetches detail per
// entry, dedups, classifies, pools, checkpoints, and on exhaustion or
// early-stop writes the full and balanced outputs.
//
// All mutable state (seen set, pools, flush counter) is touched only by the
// single control loop; the engine is deliberately sequential so the pacing
// sleep is the sole thing governing request rate.
type Harvester struct {
	source     ports.CatalogSource
	store      ports.DatasetStore
	repository ports.RecordRepository
	notifier   ports.Notifier
	classifier harvest.Classifier
	sampler    harvest.BalancedSampler
	cfg        config.HarvestConfig
	logger     *slog.Logger
	rng        *rand.Rand

	phase     Phase
	seen      *harvest.SeenSet
	records   []domain.Record
	pools     domain.Pools
	lastFlush int
}

// NewHarvester constructs the orchestration component.
func NewHarvester(deps HarvesterDeps) *Harvester {
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Harvester{
		source:     deps.Source,
		store:      deps.Store,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		classifier: harvest.NewClassifier(deps.Classifier.PosThreshold, deps.Classifier.NegThreshold),
		sampler:    harvest.NewBalancedSampler(rng),
		cfg:        deps.Harvest,
		logger:     deps.Logger,
		rng:        rng,
		phase:      PhaseScanning,
		seen:       harvest.NewSeenSet(),
	}
}

// Resume seeds the controller from a previously written full snapshot so a
// restarted run skips re-fetching identifiers it already labeled.
func (h *Harvester) Resume(records []domain.Record) {
	for _, r := range records {
		h.seen.Add(r.ID)
		h.records = append(h.records, r)
		h.pools.Append(r)
	}
	h.lastFlush = len(h.records)

	if len(records) > 0 {
		h.info("resumed from snapshot", "records", len(records), "seen", h.seen.Len(),
			"pos", len(h.pools.Positive), "neg", len(h.pools.Negative))
	}
}

// Run executes one full harvest. A rejected credential aborts immediately;
// everything else is logged and skipped.
func (h *Harvester) Run(ctx context.Context) error {
	if err := h.source.VerifyCredentials(ctx); err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	h.info("credential check passed",
		"years", fmt.Sprintf("%d-%d", h.cfg.YearStart, h.cfg.YearEnd),
		"pages_per_year", h.cfg.PagesPerYear,
		"target_per_class", h.cfg.TargetPerClass)

	cursor := harvest.NewPageCursor(
		h.cfg.YearStart, h.cfg.YearEnd, h.cfg.PagesPerYear,
		h.cfg.Sorts, h.cfg.BiasSort, h.rng,
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.pools.Balanced(h.cfg.TargetPerClass) {
			break
		}

		pos, ok := cursor.Next()
		if !ok {
			h.info("search space exhausted", "pools", h.pools.String(), "seen", h.seen.Len())
			break
		}

		h.setPhase(PhaseScanning)
		if h.cfg.LogEveryPages > 0 && pos.Page%h.cfg.LogEveryPages == 1 {
			h.info("scanning", "year", pos.Year, "sort", pos.Sort, "page", pos.Page,
				"pos", len(h.pools.Positive), "neg", len(h.pools.Negative), "total", len(h.records))
		}

		summaries, err := h.source.Discover(ctx, pos.Year, pos.Sort, pos.Page)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return err
			}
			h.warn("discover failed, skipping page", "year", pos.Year, "sort", pos.Sort, "page", pos.Page, "error", err)
			continue
		}
		metrics.PagesScanned.Inc()

		if len(summaries) == 0 {
			cursor.SkipSort()
			continue
		}

		h.setPhase(PhaseFetching)
		if err := h.processPage(ctx, summaries); err != nil {
			return err
		}
	}

	return h.finish(ctx)
}

// processPage fetches, dedups, classifies and pools every entry of one page.
func (h *Harvester) processPage(ctx context.Context, summaries []domain.Summary) error {
	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.pools.Balanced(h.cfg.TargetPerClass) {
			return nil
		}
		if h.seen.Has(summary.ID) {
			continue
		}

		detail, err := h.source.Detail(ctx, summary.ID)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return err
			}
			// Not marked seen: the identifier is retried on a later run.
			h.warn("detail fetch failed, skipping entry", "id", summary.ID, "error", err)
			continue
		}

		h.consume(detail)
	}

	return nil
}

// consume applies the classifier verdict to one detail payload.
//
// Seen-set bookkeeping is intentionally asymmetric: entries with no usable
// budget/revenue are marked seen and never refetched, while entries whose
// ratio lands in the ambiguous middle band stay unseen so a later run with
// different thresholds can reconsider them.
func (h *Harvester) consume(detail domain.Detail) {
	ratio, verdict := h.classifier.Classify(detail.Budget, detail.Revenue)

	if verdict.Discarded() {
		if verdict == harvest.VerdictNoSignal {
			h.seen.Add(detail.ID)
			metrics.DiscardedTotal.WithLabelValues("no_signal").Inc()
		} else {
			metrics.DiscardedTotal.WithLabelValues("ambiguous").Inc()
		}
		return
	}

	label := domain.LabelNegative
	if verdict == harvest.VerdictPositive {
		label = domain.LabelPositive
	}

	if h.cfg.NegativeHuntOnly && label == domain.LabelPositive &&
		len(h.pools.Positive) >= h.cfg.TargetPerClass {
		metrics.DiscardedTotal.WithLabelValues("hunt_skip").Inc()
		return
	}

	record := domain.Record{
		ID:               detail.ID,
		Title:            detail.DisplayTitle(),
		OriginalLanguage: detail.OriginalLanguage,
		ReleaseDate:      detail.ReleaseDate,
		Budget:           detail.Budget,
		Revenue:          detail.Revenue,
		Ratio:            ratio,
		VoteAverage:      detail.VoteAverage,
		VoteCount:        detail.VoteCount,
		Runtime:          detail.Runtime,
		Label:            label,
	}

	h.seen.Add(record.ID)
	h.records = append(h.records, record)
	h.pools.Append(record)

	metrics.RecordsTotal.WithLabelValues(string(label)).Inc()
	metrics.PoolSize.WithLabelValues(string(domain.LabelPositive)).Set(float64(len(h.pools.Positive)))
	metrics.PoolSize.WithLabelValues(string(domain.LabelNegative)).Set(float64(len(h.pools.Negative)))

	h.maybeCheckpoint()
}

// maybeCheckpoint flushes a full-replace snapshot once enough new records
// accumulated since the last flush. A failed flush costs nothing but the
// crash-recovery window, so it is logged and the loop continues.
func (h *Harvester) maybeCheckpoint() {
	if h.cfg.CheckpointEvery <= 0 || len(h.records)-h.lastFlush < h.cfg.CheckpointEvery {
		return
	}

	prior := h.phase
	h.setPhase(PhaseCheckpointing)
	if err := h.store.Checkpoint(h.records); err != nil {
		h.warn("checkpoint flush failed", "records", len(h.records), "error", err)
	} else {
		h.lastFlush = len(h.records)
		h.info("checkpoint written", "records", len(h.records))
	}
	h.setPhase(prior)
}

// finish writes the full output and the balanced sample, mirrors to the
// repository, and notifies.
func (h *Harvester) finish(ctx context.Context) error {
	h.setPhase(PhaseSampling)
	defer h.setPhase(PhaseDone)

	h.info("harvest finished", "total", len(h.records),
		"pos", len(h.pools.Positive), "neg", len(h.pools.Negative))

	if len(h.records) == 0 {
		h.warn("no records harvested; widen years or pages")
		return nil
	}

	if err := h.store.WriteFull(h.records); err != nil {
		return fmt.Errorf("write full output: %w", err)
	}

	balanced := h.sampler.Sample(h.pools.Positive, h.pools.Negative, h.cfg.TargetPerClass)
	if len(balanced) == 0 {
		h.warn("could not create a balanced sample (one class empty)")
	} else {
		if err := h.store.WriteBalanced(balanced); err != nil {
			return fmt.Errorf("write balanced output: %w", err)
		}
		h.info("balanced sample written", "rows", len(balanced), "per_class", len(balanced)/2)
	}

	if h.repository != nil {
		if err := h.repository.SaveRecords(ctx, h.records); err != nil {
			h.warn("mirror to repository failed", "error", err)
		}
	}

	if h.notifier != nil {
		message := fmt.Sprintf("Harvest finished: total=%d pos=%d neg=%d balanced=%d",
			len(h.records), len(h.pools.Positive), len(h.pools.Negative), len(balanced))
		if err := h.notifier.PublishSummary(ctx, message); err != nil {
			h.warn("publish summary failed", "error", err)
		}
	}

	return nil
}

func (h *Harvester) setPhase(p Phase) {
	if h.phase == p {
		return
	}
	if h.logger != nil {
		h.logger.Debug("phase transition", "from", string(h.phase), "to", string(p))
	}
	h.phase = p
}

func (h *Harvester) info(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Info(msg, args...)
	}
}

func (h *Harvester) warn(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, args...)
	}
}
