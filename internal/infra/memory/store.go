// Package memory is an in-memory EntryStore used by unit tests and dry-run
// ingestion. It is thread-safe and copies rows on the way out so callers
// cannot mutate internal state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tallyhq/tally/internal/domain"
)

// Store holds ledger entries in a map keyed by id.
type Store struct {
	mu      sync.Mutex
	entries map[string]domain.Entry

	// FailInserts forces InsertEntries to fail; used to exercise the
	// chunk-rollback and reconcile-fallback paths in tests.
	FailInserts error
	// FailUpdates forces UpdateEntry to fail.
	FailUpdates error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]domain.Entry)}
}

// InsertEntries adds a chunk of entries. All-or-nothing: when FailInserts is
// set, nothing is written, mirroring a rolled-back transaction.
func (s *Store) InsertEntries(ctx context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInserts != nil {
		return s.FailInserts
	}
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; ok {
			return fmt.Errorf("%w: id %s", domain.ErrDuplicate, e.ID)
		}
	}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

// UpdateEntry overwrites an existing row.
func (s *Store) UpdateEntry(ctx context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	if _, ok := s.entries[e.ID]; !ok {
		return domain.ErrNotFound
	}
	s.entries[e.ID] = e
	return nil
}

// SoftDelete flags an entry deleted, never removes it.
func (s *Store) SoftDelete(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Deleted = true
	e.DeletedAt = &at
	e.UpdatedAt = at
	s.entries[id] = e
	return nil
}

// Restore clears the soft-delete flag.
func (s *Store) Restore(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Deleted = false
	e.DeletedAt = nil
	s.entries[id] = e
	return nil
}

// GetEntry returns a copy of one entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := e
	return &out, nil
}

// ListEntries filters and sorts chronologically (date, then time-of-day,
// then id for determinism).
func (s *Store) ListEntries(ctx context.Context, f domain.ListFilter) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Entry
	for _, e := range s.entries {
		if !matches(e, f) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].SortTime(), out[j].SortTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(e domain.Entry, f domain.ListFilter) bool {
	if e.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.From != nil && e.OccurredOn.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredOn.After(*f.To) {
		return false
	}
	if f.Account != "" && e.Account != f.Account {
		return false
	}
	if f.ExcludeAccount != "" && e.Account == f.ExcludeAccount {
		return false
	}
	if f.SharedOnly && !e.IsShared {
		return false
	}
	if f.MinAmount != nil && e.Amount.LessThan(*f.MinAmount) {
		return false
	}
	return true
}

// FindByExternalRef matches on the stored reference field or an id embedded
// in the raw payload, scoped to one account, non-deleted rows only.
func (s *Store) FindByExternalRef(ctx context.Context, account, ref string) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Entry
	for _, e := range s.entries {
		if e.Deleted || e.Account != account {
			continue
		}
		if e.ExternalRef == ref {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListGroup returns all non-deleted members of a group.
func (s *Store) ListGroup(ctx context.Context, groupID string) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Entry
	for _, e := range s.entries {
		if e.Deleted || e.GroupID != groupID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len reports the number of rows, deleted included. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Compile-time check: Store implements the domain storage interface.
var _ domain.EntryStore = (*Store)(nil)
