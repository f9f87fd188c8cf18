// Package observability holds the Prometheus metrics for the ledger
// daemon. Counters are registered at init via promauto and exposed on the
// API's /metrics endpoint when enabled.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ingest Metrics ─────────────────────────────────────────────────────────

var (
	IngestInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_ingest_inserted_total",
		Help: "Candidates inserted as new ledger entries.",
	})
	IngestUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_ingest_updated_total",
		Help: "Candidates reconciled into existing entries.",
	})
	IngestSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_ingest_skipped_total",
		Help: "Candidates skipped as duplicates.",
	})
	IngestRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_ingest_rejected_total",
		Help: "Candidates rejected as malformed or failed at write time.",
	})
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tally_ingest_run_seconds",
		Help:    "Wall time of one ingestion run.",
		Buckets: prometheus.DefBuckets,
	})
)

// ─── Read-Path Metrics ──────────────────────────────────────────────────────

var (
	GroupRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_group_repairs_total",
		Help: "Groups with more than one representative repaired at read time.",
	})
	SettlementReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_settlement_reads_total",
		Help: "Settlement summary and detail computations served.",
	})
	AmbiguousPayers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_settlement_ambiguous_payer_total",
		Help: "Shared entries excluded because payer inference tied.",
	})
)
