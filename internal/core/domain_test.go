package core

import (
	"errors"
	"math"
	"testing"
)

func TestValidateBatch(t *testing.T) {
	vocab := DefaultVocabulary()

	tests := []struct {
		name    string
		entries []Entry
		wantErr bool
	}{
		{
			name: "valid batch",
			entries: []Entry{
				{Kind: Income, Target: "Salary", Value: 2200},
				{Kind: Tax, Target: "Taxes", Value: 220},
				{Kind: Expense, Target: "Rent", Value: 500, Source: "Housing"},
				{Kind: Expense, Target: "Groceries", Value: 300},
				{Kind: Expense, Target: "Bread", Value: 20, Source: "Groceries"},
			},
		},
		{
			name: "duplicate target differing in case",
			entries: []Entry{
				{Kind: Expense, Target: "Rent", Value: 500},
				{Kind: Expense, Target: "rent", Value: 100},
			},
			wantErr: true,
		},
		{
			name:    "negative value",
			entries: []Entry{{Kind: Income, Target: "Salary", Value: -1}},
			wantErr: true,
		},
		{
			name:    "NaN value",
			entries: []Entry{{Kind: Income, Target: "Salary", Value: math.NaN()}},
			wantErr: true,
		},
		{
			name:    "infinite value",
			entries: []Entry{{Kind: Expense, Target: "Rent", Value: math.Inf(1)}},
			wantErr: true,
		},
		{
			name:    "empty target",
			entries: []Entry{{Kind: Expense, Target: "  ", Value: 1}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			entries: []Entry{{Kind: "gift", Target: "X", Value: 1}},
			wantErr: true,
		},
		{
			name:    "source on income",
			entries: []Entry{{Kind: Income, Target: "Salary", Value: 1, Source: "Housing"}},
			wantErr: true,
		},
		{
			name:    "unresolvable source",
			entries: []Entry{{Kind: Expense, Target: "Rent", Value: 1, Source: "Nowhere"}},
			wantErr: true,
		},
		{
			name:    "root name as source",
			entries: []Entry{{Kind: Expense, Target: "Rent", Value: 1, Source: UsableIncomeName}},
		},
		{
			name:    "self cycle is left to the builder",
			entries: []Entry{{Kind: Expense, Target: "X", Value: 100, Source: "X"}},
		},
		{
			name:    "self cycle on tax is left to the builder",
			entries: []Entry{{Kind: Tax, Target: "X", Value: 100, Source: "X"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.entries, vocab)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateBatchReportsEveryProblem(t *testing.T) {
	err := ValidateBatch([]Entry{
		{Kind: Income, Target: "Salary", Value: -5},
		{Kind: Expense, Target: "Rent", Value: 1},
		{Kind: Expense, Target: "RENT", Value: 1},
	}, DefaultVocabulary())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
}

func TestReservedWarnings(t *testing.T) {
	entries := []Entry{
		{Kind: Expense, Target: "usable income", Value: 1},
		{Kind: Expense, Target: "Housing", Value: 1},
		{Kind: Expense, Target: "Rent", Value: 1},
	}
	got := ReservedWarnings(entries, DefaultVocabulary())
	if len(got) != 2 || got[0].Target != "usable income" || got[1].Target != "Housing" {
		t.Fatalf("unexpected warnings: %v", got)
	}
}

func TestFindSelfCycle(t *testing.T) {
	if _, ok := FindSelfCycle([]Entry{{Kind: Expense, Target: "A", Source: "B"}}); ok {
		t.Fatal("did not expect a cycle")
	}
	e, ok := FindSelfCycle([]Entry{{Kind: Expense, Target: "X", Source: "X"}})
	if !ok || e.Target != "X" {
		t.Fatalf("expected self cycle on X, got %v %v", e, ok)
	}
}

func TestWithIDsDoesNotMutateInput(t *testing.T) {
	in := []Entry{{Target: "A"}, {ID: "keep", Target: "B"}}
	out := WithIDs(in)
	if in[0].ID != "" {
		t.Fatal("input was mutated")
	}
	if out[0].ID == "" || out[1].ID != "keep" {
		t.Fatalf("unexpected ids: %q %q", out[0].ID, out[1].ID)
	}
}

func TestMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2024-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.String() != "2024-01" {
		t.Fatalf("round trip: %s", m)
	}
	trailing := m.Trailing(3)
	want := []string{"2023-12", "2023-11", "2023-10"}
	for i, k := range trailing {
		if k.String() != want[i] {
			t.Fatalf("trailing[%d] = %s, want %s", i, k, want[i])
		}
	}
	if _, err := ParseMonthKey("2024-13"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if !NewMonthKey(2023, 12).Before(m) {
		t.Fatal("expected 2023-12 before 2024-01")
	}
}

func TestMonthKeyTrailingBounds(t *testing.T) {
	m := NewMonthKey(2024, 5)
	tests := []struct {
		n    int
		want int
	}{
		{-3, 0},
		{0, 0},
		{12, 12},
		{MaxTrailingMonths + 1, MaxTrailingMonths},
		{1 << 50, MaxTrailingMonths},
	}
	for _, tt := range tests {
		if got := len(m.Trailing(tt.n)); got != tt.want {
			t.Errorf("len(Trailing(%d)) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
