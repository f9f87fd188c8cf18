package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ListFilter is the typed filter vocabulary of the entry store. Every read
// pattern (list, dedup window, settlement selection) composes one of these
// instead of concatenating SQL clauses at the call site.
type ListFilter struct {
	From           *time.Time // inclusive lower bound on occurred_on
	To             *time.Time // inclusive upper bound on occurred_on
	Account        string     // exact match when non-empty
	ExcludeAccount string     // account != value when non-empty
	SharedOnly     bool       // is_shared = true
	MinAmount      *decimal.Decimal
	IncludeDeleted bool // soft-deleted rows are excluded unless set
	Limit          int  // 0 means no limit
	Offset         int
}

// EntryStore abstracts persistent ledger storage. Writes are chunk-scoped
// transactions; reads never block writers.
type EntryStore interface {
	// InsertEntries persists one chunk atomically. A failed chunk rolls
	// back only itself.
	InsertEntries(ctx context.Context, entries []Entry) error

	// UpdateEntry overwrites the mutable fields of an existing row.
	UpdateEntry(ctx context.Context, e Entry) error

	// SoftDelete marks an entry deleted without removing the row.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// Restore clears the soft-delete flag.
	Restore(ctx context.Context, id string) error

	GetEntry(ctx context.Context, id string) (*Entry, error)

	// ListEntries returns raw rows matching the filter, ordered by
	// occurred_on then time-of-day. No group collapsing is applied here.
	ListEntries(ctx context.Context, f ListFilter) ([]Entry, error)

	// FindByExternalRef returns non-deleted entries of the account whose
	// external reference (stored or recoverable from the raw payload)
	// equals ref. Split members are included; callers that need only
	// reconcilable rows filter them out.
	FindByExternalRef(ctx context.Context, account, ref string) ([]Entry, error)

	// ListGroup returns all non-deleted members of a group.
	ListGroup(ctx context.Context, groupID string) ([]Entry, error)
}

// Publisher emits lifecycle events to an external broker. Implementations
// must be safe for concurrent use; a nil-safe no-op exists for deployments
// without a broker.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}
