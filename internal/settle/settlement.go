// Package settle computes who owes whom across shared expenses, netting
// each counterparty against the ledger owner without double-counting.
package settle

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/infra/observability"
)

// Calculator derives settlement balances from the collapsed shared ledger.
type Calculator struct {
	store      domain.EntryStore
	shared     string          // the shared-expense account
	owner      map[string]bool // canonical spellings of the ledger owner
	inferPayer bool
}

// Filter narrows a settlement read.
type Filter struct {
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
}

// NewCalculator creates a calculator. ownerAliases are the spellings of the
// ledger owner to exclude from the counterparty set; "me" is always one.
func NewCalculator(store domain.EntryStore, sharedAccount string, ownerAliases []string) *Calculator {
	owner := map[string]bool{"Me": true}
	for _, a := range ownerAliases {
		if n := domain.CanonicalName(a); n != "" {
			owner[n] = true
		}
	}
	return &Calculator{store: store, shared: sharedAccount, owner: owner, inferPayer: true}
}

// SetInferPayer toggles the largest-paid-share payer heuristic. When off,
// entries without a stored payer outside the always-safe cases are flagged
// and excluded instead of guessed.
func (c *Calculator) SetInferPayer(on bool) { c.inferPayer = on }

func (c *Calculator) isOwner(canonicalName string) bool { return c.owner[canonicalName] }

// ─── Summary ────────────────────────────────────────────────────────────────

// Summary computes per-counterparty balances over the shared ledger.
// Counterparties netting to exactly zero are omitted; results sort by
// descending absolute net balance.
func (c *Calculator) Summary(ctx context.Context, f Filter) ([]domain.CounterpartyBalance, error) {
	observability.SettlementReads.Inc()

	rows, groups, err := c.load(ctx, f)
	if err != nil {
		return nil, err
	}

	acc := make(map[string]*domain.CounterpartyBalance)
	for i := range rows {
		c.accumulate(&rows[i], groups, func(cp string, owedToOwner, ownerOwes decimal.Decimal) {
			b := acc[cp]
			if b == nil {
				b = &domain.CounterpartyBalance{
					Participant: cp,
					OwedToOwner: decimal.Zero,
					OwnerOwes:   decimal.Zero,
				}
				acc[cp] = b
			}
			b.OwedToOwner = b.OwedToOwner.Add(owedToOwner)
			b.OwnerOwes = b.OwnerOwes.Add(ownerOwes)
			b.TransactionCount++
		})
	}

	out := make([]domain.CounterpartyBalance, 0, len(acc))
	for _, b := range acc {
		b.OwedToOwner = b.OwedToOwner.Round(2)
		b.OwnerOwes = b.OwnerOwes.Round(2)
		b.NetBalance = b.OwedToOwner.Sub(b.OwnerOwes)
		if b.NetBalance.IsZero() {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].NetBalance.Abs(), out[j].NetBalance.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return out[i].Participant < out[j].Participant
	})
	return out, nil
}

// ─── Detail ─────────────────────────────────────────────────────────────────

// Detail returns the transaction-level breakdown for one counterparty.
// Unlike Summary, a zero net balance is still reported.
func (c *Calculator) Detail(ctx context.Context, participant string, f Filter) (*domain.SettlementDetail, error) {
	observability.SettlementReads.Inc()

	target := domain.CanonicalName(participant)
	rows, groups, err := c.load(ctx, f)
	if err != nil {
		return nil, err
	}

	detail := &domain.SettlementDetail{Participant: target, NetBalance: decimal.Zero}
	seen := false
	for i := range rows {
		e := &rows[i]
		if !c.mentions(e, target) {
			continue
		}
		seen = true

		net := c.netAmount(e, groups)
		payer, ok := c.payer(e)
		if !ok {
			continue
		}

		ownerShare := c.shareOf(e, net, true, "")
		cpShare := c.shareOf(e, net, false, target)

		switch {
		case c.isOwner(payer):
			detail.NetBalance = detail.NetBalance.Add(cpShare)
		case payer == target:
			detail.NetBalance = detail.NetBalance.Sub(ownerShare)
		default:
			continue // paid by a third party, never attributed
		}

		detail.Transactions = append(detail.Transactions, domain.SettlementLine{
			Date:             e.OccurredOn,
			Description:      e.DisplayDescription(),
			Amount:           net.Round(2),
			OwnerShare:       ownerShare.Round(2),
			ParticipantShare: cpShare.Round(2),
			PaidBy:           payer,
		})
	}
	if !seen {
		return nil, domain.ErrUnknownParty
	}
	detail.NetBalance = detail.NetBalance.Round(2)
	return detail, nil
}

// ─── Shared Plumbing ────────────────────────────────────────────────────────

// load selects the settlement-relevant rows: non-deleted shared entries
// with a breakdown, restricted to ungrouped rows, split members, and group
// representatives — never raw hidden members. Groups touched by the rows
// are prefetched for refund netting.
func (c *Calculator) load(ctx context.Context, f Filter) ([]domain.Entry, map[string][]domain.Entry, error) {
	all, err := c.store.ListEntries(ctx, domain.ListFilter{
		From:       f.From,
		To:         f.To,
		SharedOnly: true,
		MinAmount:  f.MinAmount,
	})
	if err != nil {
		return nil, nil, err
	}

	rows := all[:0]
	for _, e := range all {
		if e.Split == nil {
			continue
		}
		if e.GroupID != "" && !e.IsSplitMember && !e.IsGroupRep {
			continue
		}
		rows = append(rows, e)
	}

	groups := make(map[string][]domain.Entry)
	for i := range rows {
		gid := rows[i].GroupID
		if gid == "" || rows[i].IsGroupRep {
			continue
		}
		if _, ok := groups[gid]; ok {
			continue
		}
		members, err := c.store.ListGroup(ctx, gid)
		if err != nil {
			return nil, nil, err
		}
		groups[gid] = members
	}
	return rows, groups, nil
}

// netAmount reduces the base amount by any refund credits linked through
// the entry's group. Representatives already carry the netted amount.
func (c *Calculator) netAmount(e *domain.Entry, groups map[string][]domain.Entry) decimal.Decimal {
	if e.GroupID == "" || e.IsGroupRep {
		return e.Amount
	}
	net := e.Amount
	for _, m := range groups[e.GroupID] {
		if m.ID == e.ID || m.IsGroupRep || m.IsSplitMember {
			continue
		}
		if m.Direction == domain.Credit {
			net = net.Sub(m.Amount)
		}
	}
	return net
}

// payer resolves who paid the entry. Resolution order: the stored value; a
// non-shared-account entry defaults to the owner; otherwise the largest
// paid share wins when inference is on. Ties are flagged and excluded
// rather than silently decided.
func (c *Calculator) payer(e *domain.Entry) (string, bool) {
	if e.Split.PaidBy != "" {
		return domain.CanonicalName(e.Split.PaidBy), true
	}
	if e.Account != c.shared {
		return "Me", true
	}
	if !c.inferPayer {
		observability.AmbiguousPayers.Inc()
		log.Printf("[settle] entry %s has no payer and inference is off", e.ID)
		return "", false
	}

	best := decimal.Zero
	bestName := ""
	tied := false
	for _, s := range e.Split.Shares {
		switch {
		case s.PaidAmount.GreaterThan(best):
			best = s.PaidAmount
			bestName = domain.CanonicalName(s.Participant)
			tied = false
		case s.PaidAmount.Equal(best) && bestName != "":
			tied = true
		}
	}
	if bestName == "" || tied {
		observability.AmbiguousPayers.Inc()
		log.Printf("[settle] entry %s: %v, excluding", e.ID, domain.ErrAmbiguousPayer)
		return "", false
	}
	return bestName, true
}

// shareOf computes one party's slice of the net amount. Equal mode divides
// by participant count; custom mode reads the explicit amounts, scaled down
// when refund netting shrank the entry below what the breakdown was written
// against. The shares never sum past the net amount either way.
func (c *Calculator) shareOf(e *domain.Entry, net decimal.Decimal, owner bool, cp string) decimal.Decimal {
	if e.Split.Mode == domain.SplitEqual {
		n := int64(len(e.Split.Shares))
		if n == 0 {
			return decimal.Zero
		}
		return net.Div(decimal.NewFromInt(n))
	}

	scale := decimal.NewFromInt(1)
	if net.LessThan(e.Amount) && e.Amount.Sign() > 0 {
		scale = net.Div(e.Amount)
	}
	if owner {
		sum := decimal.Zero
		for _, s := range e.Split.Shares {
			if c.isOwner(domain.CanonicalName(s.Participant)) {
				sum = sum.Add(s.OwedAmount)
			}
		}
		return sum.Mul(scale)
	}
	return e.Split.Share(cp).Mul(scale)
}

// mentions reports whether cp appears in the entry's breakdown.
func (c *Calculator) mentions(e *domain.Entry, cp string) bool {
	for _, s := range e.Split.Shares {
		if domain.CanonicalName(s.Participant) == cp {
			return true
		}
	}
	return false
}

// accumulate applies the attribution rule of one entry: owner paid → the
// counterparty owes their share; counterparty paid → the owner owes their
// own share; third-party payer → attributed to no one.
func (c *Calculator) accumulate(e *domain.Entry, groups map[string][]domain.Entry, add func(cp string, owedToOwner, ownerOwes decimal.Decimal)) {
	payer, ok := c.payer(e)
	if !ok {
		return
	}
	net := c.netAmount(e, groups)
	ownerShare := c.shareOf(e, net, true, "")

	for _, s := range e.Split.Shares {
		cp := domain.CanonicalName(s.Participant)
		if cp == "" || c.isOwner(cp) {
			continue
		}
		switch {
		case c.isOwner(payer):
			add(cp, c.shareOf(e, net, false, cp), decimal.Zero)
		case payer == cp:
			add(cp, decimal.Zero, ownerShare)
		}
	}
}
