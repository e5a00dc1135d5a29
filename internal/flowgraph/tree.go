package flowgraph

import (
	"slices"

	"budgetflow/internal/core"
)

// epsilon absorbs float noise when comparing a children sum to a declared value.
const epsilon = 1e-9

// resolveRoot picks the node the expense tree hangs from: Usable Income
// when taxes exist, the lone pure source when there is one income, Total
// Income otherwise.
func resolveRoot(g *graph, incomes int, hasTax bool, incomeRoot string) string {
	switch {
	case hasTax:
		return core.UsableIncomeName
	case incomes == 1:
		if name, ok := pureSource(g.links); ok {
			return name
		}
		return incomeRoot
	default:
		return core.TotalIncomeName
	}
}

// pureSource returns the only node that appears as a link source but never
// as a link target.
func pureSource(links []core.Link) (string, bool) {
	targets := make(map[string]struct{}, len(links))
	for _, l := range links {
		targets[l.Target] = struct{}{}
	}
	var found []string
	seen := make(map[string]struct{})
	for _, l := range links {
		if _, ok := targets[l.Source]; ok {
			continue
		}
		if _, ok := seen[l.Source]; ok {
			continue
		}
		seen[l.Source] = struct{}{}
		found = append(found, l.Source)
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// buildTree expands the link set below root. A non-nil path means a link
// chain loops back onto itself.
func buildTree(root string, g *graph) (*TreeNode, []string) {
	children := make(map[string][]string, len(g.links))
	for _, l := range g.links {
		if l.Source == l.Target {
			return nil, []string{l.Source}
		}
		if slices.Contains(children[l.Source], l.Target) {
			continue
		}
		children[l.Source] = append(children[l.Source], l.Target)
	}

	var (
		path   []string
		onPath = make(map[string]int)
		loop   []string
	)
	var expand func(name string) *TreeNode
	expand = func(name string) *TreeNode {
		if i, ok := onPath[name]; ok {
			loop = append(append([]string(nil), path[i:]...), name)
			return nil
		}
		onPath[name] = len(path)
		path = append(path, name)
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, name)
		}()

		n := &TreeNode{Name: name, Declared: g.value(name), Value: g.value(name)}
		for _, c := range children[name] {
			child := expand(c)
			if loop != nil {
				return nil
			}
			n.Children = append(n.Children, child)
		}
		return n
	}

	tree := expand(root)
	if loop != nil {
		return nil, loop
	}
	return tree, nil
}

// reduce reconciles values bottom up. A leaf keeps its declared value; an
// inner node takes max(declared, sum of children). The root only carries
// the sum of its children.
func reduce(root *TreeNode) []Change {
	var (
		changed  []Change
		reported = make(map[string]struct{})
	)
	var visit func(n *TreeNode)
	visit = func(n *TreeNode) {
		if len(n.Children) == 0 {
			n.Value = n.Declared
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
		sum := n.childSum()
		n.Value = n.Declared
		if sum > n.Declared+epsilon {
			n.Value = sum
			n.Changed = true
			if _, ok := reported[n.Name]; !ok {
				reported[n.Name] = struct{}{}
				changed = append(changed, Change{Name: n.Name, Declared: n.Declared, Reconciled: sum})
			}
		}
	}
	for _, c := range root.Children {
		visit(c)
	}
	root.Value = root.childSum()
	return changed
}

// findSourceCycle follows every expense's source chain and returns the
// first loop found, e.g. [A B A].
func findSourceCycle(entries []core.Entry) []string {
	parent := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Kind == core.Expense && e.Source != "" {
			parent[e.Target] = e.Source
		}
	}

	clean := make(map[string]struct{}, len(parent))
	for _, e := range entries {
		var (
			path []string
			pos  = make(map[string]int)
			cur  = e.Target
		)
		for {
			if _, ok := clean[cur]; ok {
				break
			}
			if i, ok := pos[cur]; ok {
				return append(path[i:], cur)
			}
			pos[cur] = len(path)
			path = append(path, cur)
			next, ok := parent[cur]
			if !ok {
				break
			}
			cur = next
		}
		for _, name := range path {
			clean[name] = struct{}{}
		}
	}
	return nil
}
