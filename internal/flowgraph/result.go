package flowgraph

import "budgetflow/internal/core"

// Result is everything one build produces. Callers own it; nothing in it
// aliases the submitted entries.
type Result struct {
	Nodes []core.Node `json:"nodes"`
	Links []core.Link `json:"links"`

	Root             string               `json:"root"`
	TotalIncome      float64              `json:"totalIncome"`
	TotalTax         float64              `json:"totalTax"`
	UsableIncome     float64              `json:"usableIncome"`
	TotalExpenses    float64              `json:"totalExpenses"`
	RemainingBalance float64              `json:"remainingBalance"`
	CategoryTotals   []core.CategoryTotal `json:"categoryTotals"`

	Tree    *TreeNode `json:"tree"`
	Changed []Change  `json:"changed,omitempty"`

	// Entries is a copy of the input with reconciled values written back
	// into every changed node's entry.
	Entries  []core.Entry               `json:"entries"`
	Warnings []core.ReservedNameWarning `json:"warnings,omitempty"`
}

// Change reports a node whose declared value was raised to cover its children.
type Change struct {
	Name       string  `json:"name"`
	Declared   float64 `json:"declared"`
	Reconciled float64 `json:"reconciled"`
}

// Node returns the named node.
func (r *Result) Node(name string) (core.Node, bool) {
	for _, n := range r.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return core.Node{}, false
}

// TreeNode is one node of the expense tree rooted at the resolved root.
type TreeNode struct {
	Name     string      `json:"name"`
	Value    float64     `json:"value"`
	Declared float64     `json:"declared"`
	Changed  bool        `json:"changedDuringReduction"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Walk visits t and its descendants depth first. Returning false from fn
// stops descending below that node.
func (t *TreeNode) Walk(fn func(*TreeNode) bool) {
	if t == nil || !fn(t) {
		return
	}
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

func (t *TreeNode) childSum() float64 {
	var sum float64
	for _, c := range t.Children {
		sum += c.Value
	}
	return sum
}
