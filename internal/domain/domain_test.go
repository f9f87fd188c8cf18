package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Identity Key Tests ─────────────────────────────────────────────────────

func TestCandidateKey_Normalization(t *testing.T) {
	c := &Candidate{
		OccurredOn:    "2024-01-05",
		Direction:     Debit,
		Amount:        decimal.RequireFromString("100.004"),
		Account:       "Card X",
		Description:   "  COFFEE Shop  ",
		SourceChannel: "statement:janu",
	}
	key, err := CandidateKey(c)
	if err != nil {
		t.Fatalf("CandidateKey() error: %v", err)
	}
	if key.Date != "2024-01-05" {
		t.Errorf("Date = %q, want %q", key.Date, "2024-01-05")
	}
	if key.Amount != "100.00" {
		t.Errorf("Amount = %q, want %q", key.Amount, "100.00")
	}
	if key.Description != "coffee shop" {
		t.Errorf("Description = %q, want %q", key.Description, "coffee shop")
	}
	if key.Account != "Card X" {
		t.Errorf("Account = %q, want verbatim %q", key.Account, "Card X")
	}
	if key.SignatureHash != "" {
		t.Errorf("SignatureHash = %q, want empty for nil payload", key.SignatureHash)
	}
}

func TestCandidateKey_BadDate(t *testing.T) {
	c := &Candidate{OccurredOn: "not-a-date", Amount: decimal.New(1, 0)}
	if _, err := CandidateKey(c); err == nil {
		t.Fatal("CandidateKey() with bad date should error")
	}
}

func TestCandidateKey_MatchesEntryKey(t *testing.T) {
	payload := map[string]any{"ref": "abc", "n": 2}
	c := &Candidate{
		OccurredOn:    "2024-03-10",
		Direction:     Credit,
		Amount:        decimal.RequireFromString("42.10"),
		Account:       "Splitwise",
		Description:   "Dinner",
		SourceChannel: "splitwise",
		RawPayload:    payload,
	}
	ck, err := CandidateKey(c)
	if err != nil {
		t.Fatal(err)
	}

	e := &Entry{
		OccurredOn:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.RequireFromString("42.1"),
		Direction:       Credit,
		Account:         "Splitwise",
		Description:     "dinner",
		SourceChannel:   "splitwise",
		SourceSignature: CanonicalSignature(payload),
	}
	ek := EntryKey(e)

	if ck.String() != ek.String() {
		t.Errorf("candidate key %q != entry key %q", ck.String(), ek.String())
	}
}

func TestCanonicalSignature_Stable(t *testing.T) {
	a := CanonicalSignature(map[string]any{"b": 1, "a": "x"})
	b := CanonicalSignature(map[string]any{"a": "x", "b": 1})
	if a != b {
		t.Errorf("signatures differ for same payload: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "{\"a\"") {
		t.Errorf("keys not sorted: %q", a)
	}
}

func TestSignatureHash_Empty(t *testing.T) {
	if got := SignatureHash(""); got != "" {
		t.Errorf("SignatureHash(\"\") = %q, want empty", got)
	}
}

func TestExternalRefFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"string id", map[string]any{"id": "sw-42"}, "sw-42"},
		{"numeric id", map[string]any{"id": float64(42)}, "42"},
		{"missing", map[string]any{"ref": "x"}, ""},
		{"nil payload", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExternalRefFromPayload(tt.payload); got != tt.want {
				t.Errorf("ExternalRefFromPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── Date Parsing ───────────────────────────────────────────────────────────

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-01-05", "2024-01-05", false},
		{" 2024-01-05 ", "2024-01-05", false},
		{"2024-01-05T14:30:00Z", "2024-01-05", false},
		{"05/01/2024", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDate(%q) should error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", tt.input, err)
			continue
		}
		if got.Format("2006-01-02") != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
		}
	}
}

// ─── Model Helpers ──────────────────────────────────────────────────────────

func TestEntry_Signed(t *testing.T) {
	e := Entry{Amount: decimal.RequireFromString("25.00"), Direction: Debit}
	if !e.Signed().Equal(decimal.RequireFromString("-25.00")) {
		t.Errorf("debit Signed() = %s, want -25.00", e.Signed())
	}
	e.Direction = Credit
	if !e.Signed().Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("credit Signed() = %s, want 25.00", e.Signed())
	}
}

func TestEntry_DisplayDescription(t *testing.T) {
	e := Entry{Description: "POS 1234 COFFEE", UserDescription: "Morning coffee"}
	if got := e.DisplayDescription(); got != "Morning coffee" {
		t.Errorf("DisplayDescription() = %q, want override", got)
	}
	e.UserDescription = ""
	if got := e.DisplayDescription(); got != "POS 1234 COFFEE" {
		t.Errorf("DisplayDescription() = %q, want original", got)
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  alice  ", "Alice"},
		{"alice SMITH", "Alice Smith"},
		{"BOB", "Bob"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalName(tt.input); got != tt.want {
			t.Errorf("CanonicalName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSplitBreakdown_Share(t *testing.T) {
	b := &SplitBreakdown{
		Mode: SplitCustom,
		Shares: []SplitShare{
			{Participant: "alice", OwedAmount: decimal.RequireFromString("30")},
			{Participant: "Bob", OwedAmount: decimal.RequireFromString("20")},
		},
	}
	if got := b.Share("Alice"); !got.Equal(decimal.RequireFromString("30")) {
		t.Errorf("Share(Alice) = %s, want 30", got)
	}
	if got := b.Share("Carol"); !got.IsZero() {
		t.Errorf("Share(Carol) = %s, want 0", got)
	}
}

func TestIngestReport_Total(t *testing.T) {
	r := IngestReport{InsertedCount: 2, UpdatedCount: 1, SkippedCount: 3}
	r.AddError("bad row")
	if r.Total() != 7 {
		t.Errorf("Total() = %d, want 7", r.Total())
	}
	if r.ErrorCount != 1 || len(r.Errors) != 1 {
		t.Errorf("AddError bookkeeping wrong: count=%d errors=%v", r.ErrorCount, r.Errors)
	}
}
