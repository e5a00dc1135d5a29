// Package flowgraph turns a flat batch of entries into a flow graph of
// nodes and links, reconciles the expense tree hanging off the income root
// and derives the month aggregates.
package flowgraph

import (
	"math"

	"budgetflow/internal/core"
	"budgetflow/internal/log"
)

// Builder is stateless apart from its vocabulary and logger. Build may be
// called concurrently.
type Builder struct {
	vocab  *core.Vocabulary
	logger *log.Logger
}

type Option func(*Builder)

func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l.WithComponent(log.ComponentFlowGraph)
		}
	}
}

func NewBuilder(vocab *core.Vocabulary, opts ...Option) *Builder {
	if vocab == nil {
		vocab = core.DefaultVocabulary()
	}
	b := &Builder{vocab: vocab, logger: log.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// graph accumulates nodes in first-seen order.
type graph struct {
	nodes []core.Node
	index map[string]int
	links []core.Link
}

func newGraph(capacity int) *graph {
	return &graph{
		nodes: make([]core.Node, 0, capacity),
		index: make(map[string]int, capacity),
	}
}

func (g *graph) has(name string) bool {
	_, ok := g.index[name]
	return ok
}

func (g *graph) ensure(name string, kind core.NodeKind) *core.Node {
	if i, ok := g.index[name]; ok {
		return &g.nodes[i]
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, core.Node{Name: name, Kind: kind})
	return &g.nodes[len(g.nodes)-1]
}

func (g *graph) value(name string) float64 {
	if i, ok := g.index[name]; ok {
		return g.nodes[i].Value
	}
	return 0
}

func (g *graph) link(source, target string, value float64) {
	g.links = append(g.links, core.Link{Source: source, Target: target, Value: value})
}

// Build validates entries and produces the graph and its aggregates.
//
// A batch that fails validation returns a *core.ValidationError. A batch
// whose source chains loop returns a *core.CycleError carrying an untouched
// copy of the input. In both cases the result is nil.
func (b *Builder) Build(entries []core.Entry) (*Result, error) {
	if err := core.ValidateBatch(entries, b.vocab); err != nil {
		b.logger.Warn("Entry batch rejected", log.FieldOperation, log.OpValidate, log.FieldError, err.Error())
		return nil, err
	}
	if e, ok := core.FindSelfCycle(entries); ok {
		return nil, b.cycle([]string{e.Target}, entries)
	}
	if path := findSourceCycle(entries); path != nil {
		return nil, b.cycle(path, entries)
	}

	g := newGraph(len(entries) + 2)
	seedNodes(g, entries)

	var (
		incomes     []core.Entry
		taxes       []core.Entry
		totalIncome float64
		totalTax    float64
	)
	for _, e := range entries {
		switch e.Kind {
		case core.Income:
			incomes = append(incomes, e)
			totalIncome += e.Value
		case core.Tax:
			taxes = append(taxes, e)
			totalTax += e.Value
		}
	}

	incomeRoot := consolidateIncome(g, incomes)

	usableIncome := totalIncome - totalTax
	defaultSource := incomeRoot
	if len(taxes) > 0 {
		usable := g.ensure(core.UsableIncomeName, core.NodeUsableIncome)
		usable.Value = g.value(incomeRoot) - totalTax
		for _, t := range taxes {
			g.link(incomeRoot, t.Target, t.Value)
		}
		g.link(incomeRoot, core.UsableIncomeName, math.Max(0, usable.Value))
		defaultSource = core.UsableIncomeName
	}

	b.linkExpenses(g, entries, defaultSource)
	g.links = dedupLinks(g.links)

	root := resolveRoot(g, len(incomes), len(taxes) > 0, incomeRoot)
	tree, path := buildTree(root, g)
	if path != nil {
		return nil, b.cycle(path, entries)
	}
	changed := reduce(tree)

	out := core.CloneEntries(entries)
	applyChanges(g, out, changed)
	g.links = dedupLinks(g.links)

	res := &Result{
		Nodes:          g.nodes,
		Links:          g.links,
		Root:           root,
		TotalIncome:    totalIncome,
		TotalTax:       totalTax,
		UsableIncome:   usableIncome,
		TotalExpenses:  tree.Value,
		Tree:           tree,
		Changed:        changed,
		Entries:        out,
		Warnings:       core.ReservedWarnings(entries, b.vocab),
		CategoryTotals: make([]core.CategoryTotal, 0, len(tree.Children)),
	}
	res.RemainingBalance = totalIncome - res.TotalExpenses - totalTax
	for _, c := range tree.Children {
		res.CategoryTotals = append(res.CategoryTotals, core.CategoryTotal{Name: c.Name, Value: c.Value})
	}

	if len(changed) > 0 {
		b.logger.Info("Parent values raised to cover children", "changed", len(changed))
	}
	b.logger.Debug("Graph built",
		log.FieldOperation, log.OpBuild,
		log.FieldEntries, len(entries),
		"nodes", len(res.Nodes),
		"links", len(res.Links),
		"root", root,
	)
	return res, nil
}

func (b *Builder) cycle(path []string, entries []core.Entry) error {
	err := &core.CycleError{Path: path, RawInput: core.CloneEntries(entries)}
	b.logger.Warn("Entry batch contains a cycle", log.FieldOperation, log.OpBuild, log.FieldError, err.Error())
	return err
}

// seedNodes creates one node per entry target. Incomes, taxes and top level
// expenses accumulate; an expense with a source takes its own declared value.
func seedNodes(g *graph, entries []core.Entry) {
	for _, e := range entries {
		switch e.Kind {
		case core.Income:
			g.ensure(e.Target, core.NodeIncome).Value += e.Value
		case core.Tax:
			g.ensure(e.Target, core.NodeTax).Value += e.Value
		case core.Expense:
			n := g.ensure(e.Target, core.NodeExpense)
			if e.Source == "" {
				n.Value += e.Value
			} else {
				n.Value = e.Value
			}
		}
	}
}

// consolidateIncome returns the income root. A single income is its own
// root; none or several are gathered under Total Income.
func consolidateIncome(g *graph, incomes []core.Entry) string {
	if len(incomes) == 1 {
		return incomes[0].Target
	}
	total := g.ensure(core.TotalIncomeName, core.NodeTotalIncome)
	for _, in := range incomes {
		total.Value += in.Value
	}
	for _, in := range incomes {
		g.link(in.Target, core.TotalIncomeName, in.Value)
	}
	return core.TotalIncomeName
}

// linkExpenses connects every expense to its parent. A source naming a
// category that no entry defines is synthesized with the sum of its
// children and hung off the default source.
func (b *Builder) linkExpenses(g *graph, entries []core.Entry, defaultSource string) {
	categorySums := make(map[string]float64)
	for _, e := range entries {
		if e.Kind == core.Expense && e.Source != "" {
			categorySums[e.Source] += e.Value
		}
	}

	synthesized := make(map[string]struct{})
	for _, e := range entries {
		if e.Kind != core.Expense {
			continue
		}
		source := e.Source
		switch {
		case source == "":
			source = defaultSource
		case core.IsRootName(source) && !g.has(source):
			source = defaultSource
		case b.vocab.Contains(source) && !g.has(source):
			n := g.ensure(source, core.NodeCategory)
			n.Value = categorySums[source]
			synthesized[source] = struct{}{}
		}
		if _, ok := synthesized[source]; ok {
			g.link(defaultSource, source, g.value(source))
		}
		g.link(source, e.Target, e.Value)
	}
}

// applyChanges writes reconciled values into nodes, their incoming links and
// the entry copy.
func applyChanges(g *graph, entries []core.Entry, changed []Change) {
	if len(changed) == 0 {
		return
	}
	byName := make(map[string]float64, len(changed))
	for _, c := range changed {
		byName[c.Name] = c.Reconciled
		if i, ok := g.index[c.Name]; ok {
			g.nodes[i].Value = c.Reconciled
		}
	}
	for i := range g.links {
		if v, ok := byName[g.links[i].Target]; ok {
			g.links[i].Value = v
		}
	}
	for i := range entries {
		if v, ok := byName[entries[i].Target]; ok {
			entries[i].Value = v
		}
	}
}

// dedupLinks drops repeated (source, target, value) tuples, keeping the
// first occurrence.
func dedupLinks(links []core.Link) []core.Link {
	seen := make(map[core.Link]struct{}, len(links))
	out := links[:0:0]
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
