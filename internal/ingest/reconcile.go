package ingest

import (
	"context"
	"log"
	"time"

	"github.com/tallyhq/tally/internal/domain"
)

// Reconciler refreshes ledger rows in place when the shared-expense source
// re-sends an expense it has sent before. The upstream id is the match key;
// a re-send is an update, never a duplicate to drop.
type Reconciler struct {
	store   domain.EntryStore
	account string // the shared-expense account, e.g. "Splitwise"
	now     func() time.Time
}

// NewReconciler creates a reconciler scoped to the shared-expense account.
func NewReconciler(store domain.EntryStore, account string) *Reconciler {
	return &Reconciler{store: store, account: account, now: time.Now}
}

// Reconcile walks the external-id-bearing candidates. Candidates whose id
// matches a stored non-deleted, non-split row of the shared-expense account
// overwrite that row's mutable fields and count as updated. Candidates
// whose id is unknown come back as leftovers for the normal insert path.
// Candidates whose update FAILED come back separately: they must insert
// unconditionally, bypassing the external-ref duplicate check that would
// otherwise re-drop them against the very row they failed to refresh — a
// possible duplicate beats silently dropping data.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []domain.Candidate) (updated int, leftovers, failed []domain.Candidate) {
	for _, c := range candidates {
		ref := c.ResolvedExternalRef()
		if ref == "" || c.Account != r.account {
			leftovers = append(leftovers, c)
			continue
		}

		target, err := r.findTarget(ctx, ref)
		if err != nil {
			log.Printf("[reconcile] lookup %s failed, falling back to insert: %v", ref, err)
			failed = append(failed, c)
			continue
		}
		if target == nil {
			leftovers = append(leftovers, c)
			continue
		}

		refreshed, err := r.refresh(*target, c)
		if err != nil {
			log.Printf("[reconcile] %s not updatable, falling back to insert: %v", ref, err)
			failed = append(failed, c)
			continue
		}
		if err := r.store.UpdateEntry(ctx, refreshed); err != nil {
			log.Printf("[reconcile] %s: %v (%v), falling back to insert", ref, domain.ErrReconcileFailed, err)
			failed = append(failed, c)
			continue
		}
		updated++
	}
	return updated, leftovers, failed
}

// findTarget returns the stored row to refresh, or nil when the id is new.
// Split members are not update targets; each share is its own row.
func (r *Reconciler) findTarget(ctx context.Context, ref string) (*domain.Entry, error) {
	matches, err := r.store.FindByExternalRef(ctx, r.account, ref)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if !matches[i].IsSplitMember {
			return &matches[i], nil
		}
	}
	return nil, nil
}

// refresh overwrites the mutable fields with the latest upstream values,
// keeping identity (id, account, channel) and user edits intact.
func (r *Reconciler) refresh(target domain.Entry, c domain.Candidate) (domain.Entry, error) {
	day, err := domain.ParseDate(c.OccurredOn)
	if err != nil {
		return domain.Entry{}, err
	}
	at, err := domain.ParseTime(c.OccurredAt)
	if err != nil {
		return domain.Entry{}, err
	}

	target.OccurredOn = day
	target.OccurredAt = at
	target.Amount = c.Amount.Abs()
	target.Direction = c.Direction
	target.Description = c.Description
	target.Split = c.Split
	target.IsShared = c.Split != nil
	if target.Split != nil && target.Split.PaidBy == "" {
		target.Split.PaidBy = c.PaidBy
	}
	target.SourceSignature = domain.CanonicalSignature(c.RawPayload)
	target.UpdatedAt = r.now().UTC()
	return target, nil
}
