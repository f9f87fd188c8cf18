package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/domain"
)

// DefaultChunkSize bounds the rows per insert transaction.
const DefaultChunkSize = 200

// splitSumTolerance absorbs rounding drift in upstream custom breakdowns;
// anything past it is double counting, not rounding.
var splitSumTolerance = decimal.RequireFromString("0.01")

// Non-transactional statement lines that table extraction keeps producing.
// Matched against the normalized description.
var nonTransactionalExact = map[string]bool{
	"total":    true,
	"subtotal": true,
	"summary":  true,
}

var nonTransactionalSubstrings = []string{
	"closing balance",
	"opening balance",
	"balance brought forward",
	"balance carried forward",
}

// IsNonTransactional reports whether a description names a statement
// artifact rather than a real transaction.
func IsNonTransactional(description string) bool {
	norm := domain.NormalizeDescription(description)
	if nonTransactionalExact[norm] {
		return true
	}
	for _, s := range nonTransactionalSubstrings {
		if strings.Contains(norm, s) {
			return true
		}
	}
	return false
}

// ValidateCandidate rejects candidates that must never reach the writer:
// unparseable dates, non-positive amounts, unknown directions, and
// non-transactional statement lines.
func ValidateCandidate(c *domain.Candidate) error {
	if _, err := domain.ParseDate(c.OccurredOn); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParseRejected, err)
	}
	if _, err := domain.ParseTime(c.OccurredAt); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParseRejected, err)
	}
	if c.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount %s", domain.ErrParseRejected, c.Amount)
	}
	if !c.Direction.Valid() {
		return fmt.Errorf("%w: direction %q", domain.ErrParseRejected, c.Direction)
	}
	if c.Account == "" {
		return fmt.Errorf("%w: empty account", domain.ErrParseRejected)
	}
	if IsNonTransactional(c.Description) {
		return fmt.Errorf("%w: %q", domain.ErrNonTransactional, c.Description)
	}
	if c.Split != nil && c.Split.Mode == domain.SplitCustom {
		sum := decimal.Zero
		for _, s := range c.Split.Shares {
			sum = sum.Add(s.OwedAmount)
		}
		if sum.Sub(c.Amount.Abs()).GreaterThan(splitSumTolerance) {
			return fmt.Errorf("%w: split shares sum to %s against amount %s",
				domain.ErrParseRejected, sum, c.Amount.Abs())
		}
	}
	return nil
}

// Writer persists surviving candidates in chronological order, in bounded
// chunks, with per-row error reporting and partial success.
type Writer struct {
	store     domain.EntryStore
	chunkSize int
	now       func() time.Time
	newID     func() string
}

// NewWriter creates a ledger writer with the default chunk size.
func NewWriter(store domain.EntryStore) *Writer {
	return &Writer{
		store:     store,
		chunkSize: DefaultChunkSize,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// SetChunkSize overrides the rows-per-transaction bound.
func (w *Writer) SetChunkSize(n int) {
	if n > 0 {
		w.chunkSize = n
	}
}

// Insert validates, sorts, and writes the candidates. A failed chunk rolls
// back only itself and is retried row by row, so one bad row never takes
// its neighbors down with it. Returns the inserted count and per-row
// errors.
func (w *Writer) Insert(ctx context.Context, candidates []domain.Candidate) (inserted int, errs []string) {
	var entries []domain.Entry
	for i := range candidates {
		e, err := w.build(&candidates[i])
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		entries = append(entries, e)
	}

	// Stable chronological order before the physical write; scans that
	// rely on stored order stay stable.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SortTime().Before(entries[j].SortTime())
	})

	for start := 0; start < len(entries); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		if err := w.store.InsertEntries(ctx, chunk); err == nil {
			inserted += len(chunk)
			continue
		}

		// Chunk rolled back; isolate the bad rows.
		for i := range chunk {
			if err := w.store.InsertEntries(ctx, chunk[i:i+1]); err != nil {
				errs = append(errs, fmt.Sprintf("%v: %v", domain.ErrWriteFailed, err))
				continue
			}
			inserted++
		}
	}
	return inserted, errs
}

// build turns a validated candidate into a ledger entry. Identity beyond
// the computed fields is not assigned here.
func (w *Writer) build(c *domain.Candidate) (domain.Entry, error) {
	if err := ValidateCandidate(c); err != nil {
		return domain.Entry{}, err
	}
	day, _ := domain.ParseDate(c.OccurredOn)
	at, _ := domain.ParseTime(c.OccurredAt)

	split := c.Split
	if split != nil && split.PaidBy == "" && c.PaidBy != "" {
		split.PaidBy = c.PaidBy
	}

	now := w.now().UTC()
	return domain.Entry{
		ID:              w.newID(),
		OccurredOn:      day,
		OccurredAt:      at,
		Amount:          c.Amount.Abs(),
		Direction:       c.Direction,
		Account:         c.Account,
		Description:     c.Description,
		ExternalRef:     c.ResolvedExternalRef(),
		SourceChannel:   c.SourceChannel,
		SourceSignature: domain.CanonicalSignature(c.RawPayload),
		IsShared:        split != nil,
		Split:           split,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
