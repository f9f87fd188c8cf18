// Package ingest implements the write half of the ledger core: duplicate
// filtering, external-id reconciliation, validated chunked inserts, and the
// pipeline that runs them in order for one ingestion run.
package ingest

import (
	"context"
	"fmt"

	"github.com/tallyhq/tally/internal/domain"
)

// Deduper removes candidates that already exist, judged by the composite
// identity key against current storage state and against earlier candidates
// in the same batch.
type Deduper struct {
	store domain.EntryStore
}

// NewDeduper creates a duplicate filter over the given store.
func NewDeduper(store domain.EntryStore) *Deduper {
	return &Deduper{store: store}
}

// DedupOutcome partitions one batch: survivors to insert, duplicates
// skipped, and candidates rejected because their identity could not be
// computed.
type DedupOutcome struct {
	Insert   []domain.Candidate
	Skipped  int
	Rejected []string
}

// Filter applies both duplicate checks. Plain candidates are compared by
// full identity key against non-deleted stored rows inside the batch's date
// window. External-id candidates are compared by upstream reference, except
// against split members: distinct split shares legitimately carry the same
// upstream id, so those fall back to the full composite key. Both rules
// apply within the batch too, so a reference held by an earlier survivor
// blocks later holders the same way a stored row would.
//
// After filtering, no survivor collides with a non-deleted stored row or
// with another survivor.
func (d *Deduper) Filter(ctx context.Context, candidates []domain.Candidate) (DedupOutcome, error) {
	var out DedupOutcome
	if len(candidates) == 0 {
		return out, nil
	}

	storedKeys, err := d.storedKeyIndex(ctx, candidates)
	if err != nil {
		return out, err
	}

	batchKeys := make(map[string]bool)
	batchRefs := make(map[string]bool) // refs of surviving non-split candidates
	for _, c := range candidates {
		key, err := domain.CandidateKey(&c)
		if err != nil {
			out.Rejected = append(out.Rejected, err.Error())
			continue
		}
		ks := key.String()
		ref := c.ResolvedExternalRef()
		if batchKeys[ks] || (ref != "" && batchRefs[c.Account+"|"+ref]) {
			out.Skipped++
			continue
		}

		dup, err := d.isStoredDuplicate(ctx, &c, ks, storedKeys)
		if err != nil {
			return out, err
		}
		if dup {
			out.Skipped++
			continue
		}

		batchKeys[ks] = true
		if ref != "" && c.Split == nil {
			batchRefs[c.Account+"|"+ref] = true
		}
		out.Insert = append(out.Insert, c)
	}
	return out, nil
}

// storedKeyIndex loads the identity keys of every non-deleted entry inside
// the batch's [min(date), max(date)] window.
func (d *Deduper) storedKeyIndex(ctx context.Context, candidates []domain.Candidate) (map[string]bool, error) {
	var window domain.ListFilter
	for _, c := range candidates {
		day, err := domain.ParseDate(c.OccurredOn)
		if err != nil {
			continue // rejected later, must not poison the window
		}
		if window.From == nil || day.Before(*window.From) {
			t := day
			window.From = &t
		}
		if window.To == nil || day.After(*window.To) {
			t := day
			window.To = &t
		}
	}
	if window.From == nil {
		return map[string]bool{}, nil
	}

	stored, err := d.store.ListEntries(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("dedup window query: %w", err)
	}
	keys := make(map[string]bool, len(stored))
	for i := range stored {
		keys[domain.EntryKey(&stored[i]).String()] = true
	}
	return keys, nil
}

// isStoredDuplicate decides whether the candidate collides with storage.
func (d *Deduper) isStoredDuplicate(ctx context.Context, c *domain.Candidate, key string, storedKeys map[string]bool) (bool, error) {
	ref := c.ResolvedExternalRef()
	if ref == "" {
		return storedKeys[key], nil
	}

	matches, err := d.store.FindByExternalRef(ctx, c.Account, ref)
	if err != nil {
		return false, fmt.Errorf("dedup external-ref query: %w", err)
	}
	for i := range matches {
		if matches[i].IsSplitMember {
			// Same upstream id across split shares is legitimate;
			// only a full composite-key match is a duplicate.
			if domain.EntryKey(&matches[i]).String() == key {
				return true, nil
			}
			continue
		}
		return true, nil
	}
	// An external-id candidate can still collide with a plain stored row.
	return storedKeys[key], nil
}
