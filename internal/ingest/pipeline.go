package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/events"
	"github.com/tallyhq/tally/internal/infra/observability"
)

// Pipeline runs one ingestion pass: normalize → validate → reconcile →
// dedup → write. Every input candidate ends in exactly one of
// {inserted, updated, skipped, rejected}; the report's counts always sum
// to the input count.
type Pipeline struct {
	registry   *Registry
	reconciler *Reconciler
	dedup      *Deduper
	writer     *Writer
	publisher  domain.Publisher
	shared     string
}

// NewPipeline wires the ingestion stages over one store. sharedAccount
// names the shared-expense provider's account (the reconciliation scope).
func NewPipeline(store domain.EntryStore, sharedAccount string) *Pipeline {
	return &Pipeline{
		registry:   NewRegistry(),
		reconciler: NewReconciler(store, sharedAccount),
		dedup:      NewDeduper(store),
		writer:     NewWriter(store),
		publisher:  events.Noop{},
		shared:     sharedAccount,
	}
}

// SetPublisher installs an event publisher for run-completed events.
func (p *Pipeline) SetPublisher(pub domain.Publisher) {
	if pub != nil {
		p.publisher = pub
	}
}

// SetChunkSize bounds the rows per insert transaction.
func (p *Pipeline) SetChunkSize(n int) { p.writer.SetChunkSize(n) }

// Registry exposes the source-handler registry for extra channels.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Run processes one batch of candidates and reports the outcome. Storage
// errors surface inside the report; no single bad row aborts the batch.
func (p *Pipeline) Run(ctx context.Context, candidates []domain.Candidate) domain.IngestReport {
	start := time.Now()
	var report domain.IngestReport

	// Normalize and validate up front so malformed rows are rejected with
	// a reason instead of masquerading as duplicates later.
	var external, plain []domain.Candidate
	for _, c := range candidates {
		c = p.registry.Normalize(c)
		if err := ValidateCandidate(&c); err != nil {
			report.AddError(err.Error())
			continue
		}
		if c.Account == p.shared && c.HasExternalRef() {
			external = append(external, c)
		} else {
			plain = append(plain, c)
		}
	}

	// Reconciliation first: an update target is a refresh, not a duplicate
	// for the plain check to drop.
	updated, leftovers, failed := p.reconciler.Reconcile(ctx, external)
	report.UpdatedCount = updated

	remaining := append(leftovers, plain...)
	out, err := p.dedup.Filter(ctx, remaining)
	if err != nil {
		report.ErrorCount += len(remaining) + len(failed)
		report.Errors = append(report.Errors,
			fmt.Sprintf("duplicate filter failed for %d candidates: %v", len(remaining)+len(failed), err))
	} else {
		report.SkippedCount = out.Skipped
		for _, msg := range out.Rejected {
			report.AddError(msg)
		}
		// Failed reconciles insert unconditionally.
		inserted, errs := p.writer.Insert(ctx, append(out.Insert, failed...))
		report.InsertedCount = inserted
		for _, msg := range errs {
			report.AddError(msg)
		}
	}

	report.Success = report.ErrorCount == 0
	p.observe(ctx, &report, time.Since(start))
	return report
}

func (p *Pipeline) observe(ctx context.Context, report *domain.IngestReport, took time.Duration) {
	observability.IngestInserted.Add(float64(report.InsertedCount))
	observability.IngestUpdated.Add(float64(report.UpdatedCount))
	observability.IngestSkipped.Add(float64(report.SkippedCount))
	observability.IngestRejected.Add(float64(report.ErrorCount))
	observability.IngestDuration.Observe(took.Seconds())

	log.Printf("[ingest] run done in %s: inserted=%d updated=%d skipped=%d errors=%d",
		took.Round(time.Millisecond), report.InsertedCount, report.UpdatedCount,
		report.SkippedCount, report.ErrorCount)

	event := events.IngestCompleted{
		InsertedCount: report.InsertedCount,
		UpdatedCount:  report.UpdatedCount,
		SkippedCount:  report.SkippedCount,
		ErrorCount:    report.ErrorCount,
		CompletedAt:   time.Now().UTC(),
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		log.Printf("[ingest] event publish failed: %v", err)
	}
}
