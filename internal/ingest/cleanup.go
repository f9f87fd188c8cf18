package ingest

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/tallyhq/tally/internal/domain"
)

// CleanupDuplicates is the offline repair for identity-key collisions that
// slipped past concurrent ingestion runs. For every set of non-deleted
// entries sharing one identity key it keeps the earliest row (creation
// time, then id) and soft-deletes the rest. Nothing is ever hard-deleted.
func CleanupDuplicates(ctx context.Context, store domain.EntryStore, now time.Time) (removed int, err error) {
	entries, err := store.ListEntries(ctx, domain.ListFilter{})
	if err != nil {
		return 0, err
	}

	byKey := make(map[string][]domain.Entry)
	for i := range entries {
		k := domain.EntryKey(&entries[i]).String()
		byKey[k] = append(byKey[k], entries[i])
	}

	for key, group := range byKey {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})
		log.Printf("[dedupe] identity key %q held by %d rows, keeping %s", key, len(group), group[0].ID)
		for _, loser := range group[1:] {
			if err := store.SoftDelete(ctx, loser.ID, now); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
