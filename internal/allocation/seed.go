package allocation

import (
	"math"

	"budgetflow/internal/core"
)

// Seeding weights.
const (
	EssentialWeight = 0.5
	SelectedWeight  = 2
	DefaultWeight   = 1
)

// SeedInput describes the categories to track and what is known about them.
type SeedInput struct {
	Categories   []string
	Averages     map[string]float64
	Essential    []string
	Selected     []string
	Budgets      []core.Budget
	RoundingUnit float64
}

// FromAverages builds one slider per category. Values start at the
// category's trailing average unless a saved budget exists. Essential
// categories start locked.
func FromAverages(in SeedInput) []Slider {
	unit := in.RoundingUnit
	if unit <= 0 {
		unit = DefaultRoundingUnit
	}
	essential := toSet(in.Essential)
	selected := toSet(in.Selected)
	budgets := make(map[string]float64, len(in.Budgets))
	for _, b := range in.Budgets {
		budgets[b.Category] = b.Value
	}

	seen := make(map[string]struct{}, len(in.Categories))
	out := make([]Slider, 0, len(in.Categories))
	for _, name := range in.Categories {
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}

		avg := math.Max(0, in.Averages[name])
		s := Slider{
			Name:   name,
			Min:    0,
			Max:    ceilTo(math.Max(2*avg, 10*unit), unit),
			Weight: DefaultWeight,
		}
		s.Value = math.Min(roundTo(avg, unit), s.Max)
		if v, ok := budgets[name]; ok && v >= 0 {
			s.Value = v
			if v > s.Max {
				s.Max = ceilTo(v*maxGrowth, unit)
			}
		}

		_, isEssential := essential[name]
		_, isSelected := selected[name]
		switch {
		case isEssential:
			s.Essential = true
			s.Locked = true
			s.Weight = EssentialWeight
		case isSelected:
			s.Weight = SelectedWeight
		}
		out = append(out, s)
	}
	return out
}

// Averages computes per-category means over months. A month that lacks a
// category counts as zero for it.
func Averages(months [][]core.CategoryTotal) map[string]float64 {
	out := make(map[string]float64)
	if len(months) == 0 {
		return out
	}
	for _, totals := range months {
		for _, t := range totals {
			out[t.Name] += t.Value
		}
	}
	n := float64(len(months))
	for k, v := range out {
		out[k] = v / n
	}
	return out
}

func ceilTo(v, unit float64) float64 {
	return math.Ceil(v/unit) * unit
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
