package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	Income  EntryKind = "income"
	Expense EntryKind = "expense"
	Tax     EntryKind = "tax"
)

const (
	NodeIncome       NodeKind = "income"
	NodeTax          NodeKind = "tax"
	NodeExpense      NodeKind = "expense"
	NodeCategory     NodeKind = "category"
	NodeTotalIncome  NodeKind = "total_income"
	NodeUsableIncome NodeKind = "usable_income"
)

// Names the graph builder synthesizes or the UI reserves for its own labels.
const (
	TotalIncomeName   = "Total Income"
	UsableIncomeName  = "Usable Income"
	TotalExpensesName = "Total Expenses"
	TotalTaxName      = "Total Tax"
	SurplusName       = "Surplus"
)

type (
	EntryKind string
	NodeKind  string

	// Entry is one user-edited line of a month's input.
	Entry struct {
		ID        string    `json:"id"`
		Kind      EntryKind `json:"type"`
		Target    string    `json:"target"`
		Value     float64   `json:"value"`
		Source    string    `json:"source,omitempty"`
		IsFixCost bool      `json:"isFixCost,omitempty"`
	}

	Node struct {
		Name  string   `json:"name"`
		Value float64  `json:"value"`
		Kind  NodeKind `json:"kind"`
	}

	Link struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Value  float64 `json:"value"`
	}

	// CategoryTotal is a direct child of the expense root with its reconciled value.
	CategoryTotal struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	// Budget is a persisted slider value.
	Budget struct {
		Category string  `json:"category"`
		Value    float64 `json:"value"`
	}
)

func (k EntryKind) IsValid() bool {
	switch k {
	case Income, Expense, Tax:
		return true
	}
	return false
}

// IsRootName reports whether name is one of the synthesized income roots.
func IsRootName(name string) bool {
	return name == TotalIncomeName || name == UsableIncomeName
}

var reservedNames = []string{
	TotalIncomeName,
	UsableIncomeName,
	TotalExpensesName,
	TotalTaxName,
	SurplusName,
}

// IsReserved reports whether target collides, case-insensitively, with a
// synthesized label or with a category of the vocabulary.
func IsReserved(target string, vocab *Vocabulary) bool {
	for _, r := range reservedNames {
		if strings.EqualFold(r, target) {
			return true
		}
	}
	return vocab != nil && vocab.ContainsFold(target)
}

// Validate checks the per-entry invariants. Batch-level rules (uniqueness,
// source resolution) live in ValidateBatch.
func (e Entry) Validate() []Problem {
	var problems []Problem
	if strings.TrimSpace(e.Target) == "" {
		problems = append(problems, Problem{Target: e.Target, Reason: "target is empty"})
	}
	if !e.Kind.IsValid() {
		problems = append(problems, Problem{Target: e.Target, Reason: "unknown entry type " + strconv.Quote(string(e.Kind))})
	}
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		problems = append(problems, Problem{Target: e.Target, Reason: "value is not a finite number"})
	} else if e.Value < 0 {
		problems = append(problems, Problem{Target: e.Target, Reason: "value is negative"})
	}
	// A self-referencing source is a cycle whatever the kind.
	if e.Source != "" && e.Source != e.Target && e.Kind != Expense {
		problems = append(problems, Problem{Target: e.Target, Reason: "only expenses may name a source"})
	}
	return problems
}

// ValidateBatch checks target uniqueness and value sanity over a whole batch
// and resolves every explicit expense source against the batch and the
// category vocabulary.
// Self-cycles are not reported here; they are a CycleError.
func ValidateBatch(entries []Entry, vocab *Vocabulary) error {
	var problems []Problem
	seen := make(map[string]string, len(entries))
	expenseTargets := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		problems = append(problems, e.Validate()...)
		key := strings.ToLower(strings.TrimSpace(e.Target))
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			problems = append(problems, Problem{Target: e.Target, Reason: "duplicate of " + strconv.Quote(first)})
			continue
		}
		seen[key] = e.Target
		if e.Kind == Expense {
			expenseTargets[e.Target] = struct{}{}
		}
	}

	for _, e := range entries {
		if e.Kind != Expense || e.Source == "" || e.Source == e.Target {
			continue
		}
		if _, ok := expenseTargets[e.Source]; ok {
			continue
		}
		if IsRootName(e.Source) || (vocab != nil && vocab.Contains(e.Source)) {
			continue
		}
		problems = append(problems, Problem{Target: e.Target, Reason: "source " + strconv.Quote(e.Source) + " is neither an expense nor a category"})
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// FindSelfCycle returns the first entry whose source equals its target.
func FindSelfCycle(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.Source != "" && e.Source == e.Target {
			return e, true
		}
	}
	return Entry{}, false
}

// ReservedWarnings lists every entry whose target shadows a reserved name.
func ReservedWarnings(entries []Entry, vocab *Vocabulary) []ReservedNameWarning {
	var out []ReservedNameWarning
	for _, e := range entries {
		if IsReserved(e.Target, vocab) {
			out = append(out, ReservedNameWarning{Target: e.Target})
		}
	}
	return out
}

// CloneEntries returns an independent copy of entries.
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// WithIDs returns a copy of entries where every missing ID is filled with a
// fresh UUID.
func WithIDs(entries []Entry) []Entry {
	out := CloneEntries(entries)
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}
