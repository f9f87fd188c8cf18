// Package view implements the read-time ledger view: multi-row economic
// events (refunds, transfers, splits) collapse to one visible row each,
// without ever mutating storage on the read path.
package view

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/infra/observability"
)

// Visibility is the per-row outcome of the collapse decision, computed once
// per row. Soft-deletion, group hiding, and the legacy-data fallback each
// map to exactly one state so the decision stays auditable.
type Visibility int

const (
	Visible Visibility = iota
	HiddenGroupMember
	HiddenDeleted
)

// groupState holds what the collapse pass learned about one group.
type groupState struct {
	representative string // elected representative id, "" when none
	repCount       int    // non-deleted representatives found
}

// indexGroups scans the row set and elects one representative per group.
// More than one representative is a historical-migration defect; the read
// path repairs it by electing the lexicographically smallest id and hiding
// the rest. Storage is left alone; this is a read-side repair.
func indexGroups(entries []domain.Entry) map[string]*groupState {
	groups := make(map[string]*groupState)
	for i := range entries {
		e := &entries[i]
		if e.GroupID == "" || e.Deleted {
			continue
		}
		st := groups[e.GroupID]
		if st == nil {
			st = &groupState{}
			groups[e.GroupID] = st
		}
		if !e.IsGroupRep {
			continue
		}
		st.repCount++
		if st.representative == "" || e.ID < st.representative {
			st.representative = e.ID
		}
	}
	for id, st := range groups {
		if st.repCount > 1 {
			observability.GroupRepairs.Inc()
			log.Printf("[view] group %s has %d representatives, electing %s", id, st.repCount, st.representative)
		}
	}
	return groups
}

// Classify decides one row's visibility against the group index.
func Classify(e *domain.Entry, groups map[string]*groupState) Visibility {
	if e.Deleted {
		return HiddenDeleted
	}
	if e.GroupID == "" {
		return Visible
	}
	if e.IsSplitMember {
		// Split shares are independently relevant lines; each carries its
		// own breakdown used by settlement.
		return Visible
	}
	st := groups[e.GroupID]
	if st == nil || st.representative == "" {
		// No representative at all: show every member rather than
		// silently hiding data behind an incomplete migration.
		return Visible
	}
	if e.ID == st.representative {
		return Visible
	}
	return HiddenGroupMember
}

// Collapse filters a row set down to its visible rows, preserving order.
func Collapse(entries []domain.Entry) []domain.Entry {
	groups := indexGroups(entries)
	out := make([]domain.Entry, 0, len(entries))
	for i := range entries {
		if Classify(&entries[i], groups) == Visible {
			out = append(out, entries[i])
		}
	}
	return out
}

// ─── Group Assembly ─────────────────────────────────────────────────────────

// BuildRepresentative synthesizes the single row that stands in for a
// refund/transfer group: its amount and direction equal the net of the
// members (credits minus debits, sign folded into direction).
func BuildRepresentative(groupID string, members []domain.Entry, now time.Time) (domain.Entry, error) {
	if len(members) == 0 {
		return domain.Entry{}, fmt.Errorf("group %s has no members", groupID)
	}

	net := decimal.Zero
	for i := range members {
		net = net.Add(members[i].Signed())
	}
	direction := domain.Credit
	if net.Sign() < 0 {
		direction = domain.Debit
	}

	// The largest member is the economic parent; the representative
	// borrows its descriptive fields.
	parent := members[0]
	for _, m := range members[1:] {
		if m.Amount.GreaterThan(parent.Amount) {
			parent = m
		}
	}

	return domain.Entry{
		ID:            uuid.New().String(),
		OccurredOn:    parent.OccurredOn,
		OccurredAt:    parent.OccurredAt,
		Amount:        net.Abs(),
		Direction:     direction,
		Account:       parent.Account,
		Description:   parent.Description,
		SourceChannel: parent.SourceChannel,
		IsShared:      parent.IsShared,
		Split:         parent.Split,
		GroupID:       groupID,
		IsGroupRep:    true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MakeGroup links the given entries into one group and inserts the
// synthesized representative. Entries already grouped or deleted are
// rejected; a group is a write-once structure.
func MakeGroup(ctx context.Context, store domain.EntryStore, ids []string) (*domain.Entry, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("a group needs at least 2 entries, got %d", len(ids))
	}
	sort.Strings(ids)

	members := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		e, err := store.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.Deleted {
			return nil, fmt.Errorf("entry %s is deleted", id)
		}
		if e.GroupID != "" {
			return nil, fmt.Errorf("entry %s already belongs to group %s", id, e.GroupID)
		}
		members = append(members, *e)
	}

	now := time.Now().UTC()
	groupID := uuid.New().String()
	rep, err := BuildRepresentative(groupID, members, now)
	if err != nil {
		return nil, err
	}

	for i := range members {
		members[i].GroupID = groupID
		members[i].UpdatedAt = now
		if err := store.UpdateEntry(ctx, members[i]); err != nil {
			return nil, fmt.Errorf("link %s: %w", members[i].ID, err)
		}
	}
	if err := store.InsertEntries(ctx, []domain.Entry{rep}); err != nil {
		return nil, fmt.Errorf("insert representative: %w", err)
	}
	return &rep, nil
}
