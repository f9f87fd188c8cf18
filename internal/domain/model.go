// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ─── Entry Types ────────────────────────────────────────────────────────────

// Direction is the accounting side of a ledger entry. Amounts are stored
// non-negative; the signed economic effect lives here.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool { return d == Debit || d == Credit }

// SplitMode says how a shared expense is divided among participants.
type SplitMode string

const (
	SplitEqual  SplitMode = "equal"
	SplitCustom SplitMode = "custom"
)

// SplitShare is one participant's slice of a shared expense.
type SplitShare struct {
	Participant string          `json:"participant"`
	OwedAmount  decimal.Decimal `json:"owed_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
}

// SplitBreakdown carries the split metadata of a shared entry.
type SplitBreakdown struct {
	Mode   SplitMode    `json:"mode"`
	Shares []SplitShare `json:"entries"`
	PaidBy string       `json:"paid_by,omitempty"`
}

// Share returns the owed amount recorded for the given canonical participant
// name, or zero when the participant is not in the breakdown.
func (b *SplitBreakdown) Share(participant string) decimal.Decimal {
	for _, s := range b.Shares {
		if CanonicalName(s.Participant) == participant {
			return s.OwedAmount
		}
	}
	return decimal.Zero
}

// Entry is a single row of the append-only ledger, the only persistent
// entity this core manipulates.
type Entry struct {
	ID              string          `json:"id"`
	OccurredOn      time.Time       `json:"occurred_on"`
	OccurredAt      *time.Time      `json:"occurred_at,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Direction       Direction       `json:"direction"`
	Account         string          `json:"account"`
	Description     string          `json:"description"`
	UserDescription string          `json:"user_description,omitempty"`
	ExternalRef     string          `json:"external_reference,omitempty"`
	SourceChannel   string          `json:"source_channel"`
	SourceSignature string          `json:"-"`
	IsShared        bool            `json:"is_shared"`
	Split           *SplitBreakdown `json:"split_breakdown,omitempty"`
	GroupID         string          `json:"group_id,omitempty"`
	IsGroupRep      bool            `json:"is_group_representative"`
	IsSplitMember   bool            `json:"is_split_member"`
	Deleted         bool            `json:"is_deleted"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DisplayDescription prefers the user's override over the original text.
func (e *Entry) DisplayDescription() string {
	if e.UserDescription != "" {
		return e.UserDescription
	}
	return e.Description
}

// Signed folds direction into the amount: credits positive, debits negative.
func (e *Entry) Signed() decimal.Decimal {
	if e.Direction == Debit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// SortTime is the chronological position used for stable ledger ordering.
// Entries without a time-of-day sort at midnight of their date.
func (e *Entry) SortTime() time.Time {
	if e.OccurredAt != nil {
		return *e.OccurredAt
	}
	return e.OccurredOn
}

// ─── Candidate Types ────────────────────────────────────────────────────────

// Candidate is a normalized-but-unverified transaction produced by an
// upstream source (statement extraction, email alerts, the shared-expense
// API). Dates arrive as strings; parsing them is part of identity-key
// construction so that a bad date rejects the candidate instead of
// inserting a row with no identity date.
type Candidate struct {
	OccurredOn    string          `json:"occurred_on"`
	OccurredAt    string          `json:"occurred_at,omitempty"`
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Account       string          `json:"account"`
	Description   string          `json:"description"`
	ExternalRef   string          `json:"external_reference,omitempty"`
	SourceChannel string          `json:"source_channel"`
	RawPayload    map[string]any  `json:"raw_payload,omitempty"`
	Split         *SplitBreakdown `json:"split_breakdown,omitempty"`
	PaidBy        string          `json:"paid_by,omitempty"`
}

// HasExternalRef reports whether the candidate carries an upstream id,
// either directly or recoverable from its raw payload.
func (c *Candidate) HasExternalRef() bool { return c.ResolvedExternalRef() != "" }

// ResolvedExternalRef returns the upstream id, falling back to the "id"
// field of the raw payload when the dedicated field is empty.
func (c *Candidate) ResolvedExternalRef() string {
	if c.ExternalRef != "" {
		return c.ExternalRef
	}
	return ExternalRefFromPayload(c.RawPayload)
}

// ─── Ingest Report ──────────────────────────────────────────────────────────

// IngestReport is the aggregate outcome of one ingestion run. Every input
// candidate lands in exactly one bucket, so the counts always sum to the
// input size; ErrorCount distinguishes malformed rows from correctly
// skipped duplicates.
type IngestReport struct {
	Success       bool     `json:"success"`
	InsertedCount int      `json:"inserted_count"`
	UpdatedCount  int      `json:"updated_count"`
	SkippedCount  int      `json:"skipped_count"`
	ErrorCount    int      `json:"error_count"`
	Errors        []string `json:"errors,omitempty"`
}

// Total is the number of candidates accounted for.
func (r *IngestReport) Total() int {
	return r.InsertedCount + r.UpdatedCount + r.SkippedCount + r.ErrorCount
}

// AddError records a per-row failure.
func (r *IngestReport) AddError(msg string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, msg)
}

// ─── Settlement Types ───────────────────────────────────────────────────────

// CounterpartyBalance is one row of a settlement summary: how a single
// counterparty nets out against the ledger owner.
type CounterpartyBalance struct {
	Participant      string          `json:"participant"`
	OwedToOwner      decimal.Decimal `json:"owed_to_owner"`
	OwnerOwes        decimal.Decimal `json:"owner_owes"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	TransactionCount int             `json:"transaction_count"`
}

// SettlementLine is one transaction inside a settlement detail view.
type SettlementLine struct {
	Date             time.Time       `json:"date"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	OwnerShare       decimal.Decimal `json:"owner_share"`
	ParticipantShare decimal.Decimal `json:"participant_share"`
	PaidBy           string          `json:"paid_by"`
}

// SettlementDetail is the per-counterparty drill-down.
type SettlementDetail struct {
	Participant  string           `json:"participant"`
	NetBalance   decimal.Decimal  `json:"net_balance"`
	Transactions []SettlementLine `json:"transactions"`
}

// ─── Name Canonicalization ──────────────────────────────────────────────────

// CanonicalName normalizes a participant name: trimmed, single spaces
// between words, each word title-cased. "  alice  SMITH " → "Alice Smith".
func CanonicalName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
