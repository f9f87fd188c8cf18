package view

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/infra/memory"
)

func entry(id string, amount string, dir domain.Direction) domain.Entry {
	now := time.Now().UTC()
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	return domain.Entry{
		ID: id, OccurredOn: day,
		Amount: decimal.RequireFromString(amount), Direction: dir,
		Account: "Card X", Description: "entry " + id, SourceChannel: "test",
		CreatedAt: now, UpdatedAt: now,
	}
}

// ─── Visibility ─────────────────────────────────────────────────────────────

func TestCollapse_Visibility(t *testing.T) {
	ungrouped := entry("a", "10", domain.Debit)

	rep := entry("rep", "200", domain.Debit)
	rep.GroupID = "g1"
	rep.IsGroupRep = true
	hidden1 := entry("m1", "300", domain.Debit)
	hidden1.GroupID = "g1"
	hidden2 := entry("m2", "100", domain.Credit)
	hidden2.GroupID = "g1"

	splitMember := entry("s1", "25", domain.Debit)
	splitMember.GroupID = "g2"
	splitMember.IsSplitMember = true

	deleted := entry("d1", "5", domain.Debit)
	deleted.Deleted = true

	rows := []domain.Entry{ungrouped, rep, hidden1, hidden2, splitMember, deleted}
	visible := Collapse(rows)

	got := map[string]bool{}
	for _, e := range visible {
		got[e.ID] = true
	}
	for _, want := range []string{"a", "rep", "s1"} {
		if !got[want] {
			t.Errorf("entry %s should be visible", want)
		}
	}
	for _, hidden := range []string{"m1", "m2", "d1"} {
		if got[hidden] {
			t.Errorf("entry %s should be hidden", hidden)
		}
	}
}

func TestClassify_ThreeStates(t *testing.T) {
	rep := entry("rep", "200", domain.Debit)
	rep.GroupID = "g1"
	rep.IsGroupRep = true
	member := entry("m1", "300", domain.Debit)
	member.GroupID = "g1"
	deleted := entry("d1", "5", domain.Debit)
	deleted.Deleted = true

	rows := []domain.Entry{rep, member, deleted}
	groups := indexGroups(rows)

	if got := Classify(&member, groups); got != HiddenGroupMember {
		t.Errorf("member visibility = %v, want HiddenGroupMember", got)
	}
	if got := Classify(&deleted, groups); got != HiddenDeleted {
		t.Errorf("deleted visibility = %v, want HiddenDeleted", got)
	}
	if got := Classify(&rep, groups); got != Visible {
		t.Errorf("representative visibility = %v, want Visible", got)
	}
}

// The no-representative fallback is the repair mechanism for data written
// before grouping existed: a group must never vanish from view.
func TestCollapse_GroupWithoutRepresentativeShowsAllMembers(t *testing.T) {
	m1 := entry("m1", "300", domain.Debit)
	m1.GroupID = "legacy"
	m2 := entry("m2", "100", domain.Credit)
	m2.GroupID = "legacy"

	visible := Collapse([]domain.Entry{m1, m2})
	if len(visible) != 2 {
		t.Fatalf("visible = %d rows, want all members of a rep-less group", len(visible))
	}
}

func TestCollapse_RepairsDuplicateRepresentatives(t *testing.T) {
	repB := entry("rep-b", "200", domain.Debit)
	repB.GroupID = "g1"
	repB.IsGroupRep = true
	repA := entry("rep-a", "200", domain.Debit)
	repA.GroupID = "g1"
	repA.IsGroupRep = true
	member := entry("m1", "300", domain.Debit)
	member.GroupID = "g1"

	visible := Collapse([]domain.Entry{repB, repA, member})
	if len(visible) != 1 {
		t.Fatalf("visible = %d rows, want exactly 1", len(visible))
	}
	if visible[0].ID != "rep-a" {
		t.Errorf("elected %s, want lexicographically smallest rep-a", visible[0].ID)
	}
}

// Exactly one visible representative per group, or the whole group shows:
// never zero, never more than one, on the read path.
func TestCollapse_GroupInvariant(t *testing.T) {
	cases := []struct {
		name string
		rows []domain.Entry
		want int
	}{
		{
			"one rep", func() []domain.Entry {
				rep := entry("r", "10", domain.Debit)
				rep.GroupID = "g"
				rep.IsGroupRep = true
				m := entry("m", "10", domain.Debit)
				m.GroupID = "g"
				return []domain.Entry{rep, m}
			}(), 1,
		},
		{
			"no rep", func() []domain.Entry {
				m1 := entry("m1", "10", domain.Debit)
				m1.GroupID = "g"
				m2 := entry("m2", "10", domain.Debit)
				m2.GroupID = "g"
				return []domain.Entry{m1, m2}
			}(), 2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(Collapse(tc.rows)); got != tc.want {
				t.Errorf("visible = %d, want %d", got, tc.want)
			}
		})
	}
}

// ─── Representative Synthesis ───────────────────────────────────────────────

func TestBuildRepresentative_RefundNet(t *testing.T) {
	parent := entry("p", "300", domain.Debit)
	refund := entry("r", "100", domain.Credit)

	rep, err := BuildRepresentative("g1", []domain.Entry{parent, refund}, time.Now().UTC())
	if err != nil {
		t.Fatalf("BuildRepresentative() error: %v", err)
	}
	if !rep.Amount.Equal(decimal.RequireFromString("200")) {
		t.Errorf("amount = %s, want 200", rep.Amount)
	}
	if rep.Direction != domain.Debit {
		t.Errorf("direction = %s, want debit", rep.Direction)
	}
	if !rep.IsGroupRep || rep.GroupID != "g1" {
		t.Errorf("representative flags wrong: %+v", rep)
	}
	if rep.Description != parent.Description {
		t.Errorf("description = %q, want parent's", rep.Description)
	}
}

func TestBuildRepresentative_CreditNet(t *testing.T) {
	a := entry("a", "50", domain.Credit)
	b := entry("b", "20", domain.Debit)

	rep, err := BuildRepresentative("g", []domain.Entry{a, b}, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Amount.Equal(decimal.RequireFromString("30")) || rep.Direction != domain.Credit {
		t.Errorf("rep = %s %s, want 30 credit", rep.Amount, rep.Direction)
	}
}

func TestBuildRepresentative_Empty(t *testing.T) {
	if _, err := BuildRepresentative("g", nil, time.Now().UTC()); err == nil {
		t.Fatal("empty group should error")
	}
}

// ─── Group Assembly ─────────────────────────────────────────────────────────

func TestMakeGroup(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	parent := entry("p", "300", domain.Debit)
	refund := entry("r", "100", domain.Credit)
	if err := store.InsertEntries(ctx, []domain.Entry{parent, refund}); err != nil {
		t.Fatal(err)
	}

	rep, err := MakeGroup(ctx, store, []string{"p", "r"})
	if err != nil {
		t.Fatalf("MakeGroup() error: %v", err)
	}
	if !rep.Amount.Equal(decimal.RequireFromString("200")) || rep.Direction != domain.Debit {
		t.Errorf("rep = %s %s, want 200 debit", rep.Amount, rep.Direction)
	}

	rows, _ := store.ListEntries(ctx, domain.ListFilter{})
	visible := Collapse(rows)
	if len(visible) != 1 || !visible[0].IsGroupRep {
		t.Errorf("collapsed view = %v, want only the representative", visible)
	}

	members, _ := store.ListGroup(ctx, rep.GroupID)
	if len(members) != 3 {
		t.Errorf("group has %d members, want parent+refund+rep", len(members))
	}
}

func TestMakeGroup_RejectsRegrouping(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	a := entry("a", "10", domain.Debit)
	a.GroupID = "existing"
	b := entry("b", "10", domain.Debit)
	if err := store.InsertEntries(ctx, []domain.Entry{a, b}); err != nil {
		t.Fatal(err)
	}
	if _, err := MakeGroup(ctx, store, []string{"a", "b"}); err == nil {
		t.Fatal("grouping an already-grouped entry should error")
	}
}
