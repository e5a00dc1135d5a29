// Package allocation keeps a roster of budget sliders summing to at most a
// target by redistributing every change across the unlocked sliders in
// proportion to their weights.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"budgetflow/internal/core"
	"budgetflow/internal/log"
)

const (
	DefaultHistoryLimit = 50
	DefaultRoundingUnit = 100

	// maxGrowth widens a slider's max when a value reaches it.
	maxGrowth = 1.2

	// visibleBoost scales the weight of user-selected sliders in AutoAdjustAll.
	visibleBoost = 1.5

	epsilon = 1e-9
)

var ErrInvalidSlider = errors.New("invalid slider")

// Direction tells Redistribute whether candidates give up or absorb amount.
type Direction int

const (
	Reduce Direction = iota
	Increase
)

func (d Direction) String() string {
	if d == Increase {
		return "increase"
	}
	return "reduce"
}

// Slider is one category budget. It is a plain value so roster snapshots
// are ordinary slice copies.
type Slider struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Locked    bool    `json:"locked"`
	Weight    float64 `json:"weight"`
	Essential bool    `json:"isEssential"`
}

func (s Slider) validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidSlider)
	case s.Min < 0 || math.IsNaN(s.Min):
		return fmt.Errorf("%w: %q min %v", ErrInvalidSlider, s.Name, s.Min)
	case s.Value < s.Min || s.Value > s.Max || math.IsNaN(s.Value):
		return fmt.Errorf("%w: %q value %v outside [%v, %v]", ErrInvalidSlider, s.Name, s.Value, s.Min, s.Max)
	case s.Weight < 0 || math.IsNaN(s.Weight):
		return fmt.Errorf("%w: %q weight %v", ErrInvalidSlider, s.Name, s.Weight)
	}
	return nil
}

type Options struct {
	AverageIncome float64
	TargetSurplus float64
	AutoFit       bool
	HistoryLimit  int
	RoundingUnit  float64
	Selected      []string
	Logger        *log.Logger
}

// Outcome describes the roster after a command. Unresolved is the amount
// by which Total still exceeds TargetMax.
type Outcome struct {
	Total      float64  `json:"total"`
	TargetMax  float64  `json:"targetMax"`
	Unresolved float64  `json:"unresolved"`
	Touched    []string `json:"touched,omitempty"`
}

// Engine owns the slider roster and its undo history. It is not safe for
// concurrent use.
type Engine struct {
	sliders  []Slider
	index    map[string]int
	initial  []Slider
	history  [][]Slider
	selected map[string]struct{}

	averageIncome float64
	targetSurplus float64
	autoFit       bool
	historyLimit  int
	unit          float64
	logger        *log.Logger
}

// New validates the roster and records it as the reset point.
func New(sliders []Slider, opts Options) (*Engine, error) {
	e := &Engine{
		sliders:       slices.Clone(sliders),
		index:         make(map[string]int, len(sliders)),
		averageIncome: opts.AverageIncome,
		targetSurplus: opts.TargetSurplus,
		autoFit:       opts.AutoFit,
		historyLimit:  opts.HistoryLimit,
		unit:          opts.RoundingUnit,
		logger:        opts.Logger,
	}
	if e.historyLimit <= 0 {
		e.historyLimit = DefaultHistoryLimit
	}
	if e.unit <= 0 {
		e.unit = DefaultRoundingUnit
	}
	if e.logger == nil {
		e.logger = log.Discard()
	}
	e.logger = e.logger.WithComponent(log.ComponentAllocation)

	for i, s := range e.sliders {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := e.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate %q", ErrInvalidSlider, s.Name)
		}
		e.index[s.Name] = i
	}
	e.SetSelected(opts.Selected)
	e.initial = slices.Clone(e.sliders)
	e.history = [][]Slider{slices.Clone(e.sliders)}
	return e, nil
}

// Sliders returns a copy of the roster.
func (e *Engine) Sliders() []Slider {
	return slices.Clone(e.sliders)
}

func (e *Engine) Slider(name string) (Slider, bool) {
	i, ok := e.index[name]
	if !ok {
		return Slider{}, false
	}
	return e.sliders[i], true
}

// Essential, Visible and Hidden partition the roster: essential sliders,
// selected non-essential sliders, and the rest.
func (e *Engine) Essential() []Slider {
	return e.filter(func(s Slider) bool { return s.Essential })
}

func (e *Engine) Visible() []Slider {
	return e.filter(func(s Slider) bool { return !s.Essential && e.isSelected(s.Name) })
}

func (e *Engine) Hidden() []Slider {
	return e.filter(func(s Slider) bool { return !s.Essential && !e.isSelected(s.Name) })
}

func (e *Engine) filter(keep func(Slider) bool) []Slider {
	var out []Slider
	for _, s := range e.sliders {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) isSelected(name string) bool {
	_, ok := e.selected[name]
	return ok
}

// SetSelected replaces the user-selected set. Unknown names are ignored.
func (e *Engine) SetSelected(names []string) {
	e.selected = make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := e.index[n]; ok {
			e.selected[n] = struct{}{}
		}
	}
}

func (e *Engine) Selected() []string {
	var out []string
	for _, s := range e.sliders {
		if e.isSelected(s.Name) {
			out = append(out, s.Name)
		}
	}
	return out
}

func (e *Engine) SetTarget(averageIncome, targetSurplus float64) {
	e.averageIncome = averageIncome
	e.targetSurplus = targetSurplus
}

func (e *Engine) SetAutoFit(on bool) {
	e.autoFit = on
}

// TargetMax is the most the sliders may sum to.
func (e *Engine) TargetMax() float64 {
	return e.averageIncome - e.targetSurplus
}

// Total includes locked sliders.
func (e *Engine) Total() float64 {
	var sum float64
	for _, s := range e.sliders {
		sum += s.Value
	}
	return sum
}

// HistoryLen counts snapshots, the current roster included.
func (e *Engine) HistoryLen() int {
	return len(e.history)
}

// Checkpoint is an opaque copy of the roster and its history.
type Checkpoint struct {
	sliders []Slider
	history [][]Slider
}

// Checkpoint captures the current roster and history for Restore.
func (e *Engine) Checkpoint() Checkpoint {
	return Checkpoint{sliders: slices.Clone(e.sliders), history: slices.Clone(e.history)}
}

// Restore returns the engine to c, dropping any command applied since.
func (e *Engine) Restore(c Checkpoint) {
	e.sliders = slices.Clone(c.sliders)
	e.history = slices.Clone(c.history)
}

// apply runs cmd as one undoable step. A failing cmd leaves the roster as
// it was and records nothing. A cmd that leaves every slider as it was
// (for instance when rounding swallows the change) is not recorded either.
func (e *Engine) apply(op string, cmd func() ([]string, error)) (Outcome, error) {
	before := slices.Clone(e.sliders)
	touched, err := cmd()
	if err != nil {
		e.sliders = before
		e.logger.Info("Slider command reverted", log.FieldOperation, op, log.FieldError, err.Error())
		return e.outcome(nil), err
	}
	if slices.Equal(before, e.sliders) {
		e.logger.Debug("Slider command changed nothing", log.FieldOperation, op)
		return e.outcome(nil), nil
	}
	e.push()
	out := e.outcome(touched)
	if out.Unresolved > 0 {
		e.logger.Warn("Sliders still exceed target",
			log.NewFields().
				WithOperation(op).
				WithAllocation("", out.Total, out.TargetMax, out.Unresolved).
				ToSlice()...)
	}
	return out, nil
}

func (e *Engine) push() {
	e.history = append(e.history, slices.Clone(e.sliders))
	if over := len(e.history) - e.historyLimit; over > 0 {
		e.history = slices.Delete(e.history, 0, over)
	}
}

func (e *Engine) outcome(touched []string) Outcome {
	total := e.Total()
	target := e.TargetMax()
	return Outcome{
		Total:      total,
		TargetMax:  target,
		Unresolved: math.Max(0, total-target),
		Touched:    touched,
	}
}

// Adjust sets name to value, clamped to the slider's bounds and rounded to
// the rounding unit. Reaching the max widens it by a fifth. Any excess over
// TargetMax is taken from the other unlocked sliders; with auto-fit on, any
// shortfall is handed to them.
func (e *Engine) Adjust(name string, value float64) (Outcome, error) {
	i, ok := e.index[name]
	if !ok {
		return e.outcome(nil), fmt.Errorf("%w: %q", core.ErrUnknownSlider, name)
	}
	if e.sliders[i].Locked {
		return e.outcome(nil), fmt.Errorf("%w: %q", core.ErrSliderLocked, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return e.outcome(nil), fmt.Errorf("%w: %v", core.ErrInvalidAmount, value)
	}

	return e.apply(log.OpAdjust, func() ([]string, error) {
		s := &e.sliders[i]
		v := clamp(value, s.Min, s.Max)
		v = clamp(e.round(v), s.Min, s.Max)
		if v >= s.Max-1 {
			s.Max *= maxGrowth
		}
		s.Value = v
		touched := []string{name}

		total := e.Total()
		target := e.TargetMax()
		var (
			more []string
			err  error
		)
		switch {
		case total > target+epsilon:
			more, err = e.redistribute(total-target, name, Reduce, false)
		case e.autoFit && total < target-epsilon:
			more, err = e.redistribute(target-total, name, Increase, false)
		}
		if err != nil {
			return nil, err
		}
		return append(touched, more...), nil
	})
}

// Redistribute spreads amount over every unlocked slider except exclude.
// When no other slider can move, the excluded slider itself takes it.
func (e *Engine) Redistribute(amount float64, exclude string, dir Direction) (Outcome, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return e.outcome(nil), fmt.Errorf("%w: %v", core.ErrInvalidAmount, amount)
	}
	if amount == 0 {
		return e.outcome(nil), core.ErrAllocationNoOp
	}
	return e.apply(log.OpRedistribute, func() ([]string, error) {
		return e.redistribute(amount, exclude, dir, true)
	})
}

func (e *Engine) redistribute(amount float64, exclude string, dir Direction, selfFallback bool) ([]string, error) {
	var (
		candidates []int
		weights    float64
	)
	for i, s := range e.sliders {
		if s.Name == exclude || s.Locked {
			continue
		}
		candidates = append(candidates, i)
		weights += s.Weight
	}
	if weights <= 0 && selfFallback {
		if i, ok := e.index[exclude]; ok && !e.sliders[i].Locked && e.sliders[i].Weight > 0 {
			candidates = []int{i}
			weights = e.sliders[i].Weight
		}
	}
	if weights <= 0 {
		return nil, core.ErrNoAdjustableSliders
	}

	var touched []string
	for _, i := range candidates {
		s := &e.sliders[i]
		share := amount * s.Weight / weights
		next := s.Value - share
		if dir == Increase {
			next = s.Value + share
		}
		next = clamp(e.round(clamp(next, s.Min, s.Max)), s.Min, s.Max)
		if next != s.Value {
			s.Value = next
			touched = append(touched, s.Name)
		}
	}
	e.logger.Debug("Redistributed",
		log.FieldValue, amount,
		"direction", dir.String(),
		"candidates", len(candidates),
	)
	return touched, nil
}

// AutoAdjustAll moves every unlocked slider toward TargetMax at once.
// Selected non-essential sliders get a larger share.
func (e *Engine) AutoAdjustAll() (Outcome, error) {
	adjustment := e.TargetMax() - e.Total()
	if math.Abs(adjustment) < epsilon {
		return e.outcome(nil), core.ErrAllocationNoOp
	}

	return e.apply(log.OpAutoAdjust, func() ([]string, error) {
		type share struct {
			i      int
			weight float64
		}
		var (
			pool    []share
			weights float64
		)
		for i, s := range e.sliders {
			if s.Locked {
				continue
			}
			w := s.Weight
			if !s.Essential && e.isSelected(s.Name) {
				w *= visibleBoost
			}
			pool = append(pool, share{i: i, weight: w})
			weights += w
		}
		if weights <= 0 {
			return nil, core.ErrNoAdjustableSliders
		}

		var touched []string
		for _, p := range pool {
			s := &e.sliders[p.i]
			next := s.Value + adjustment*p.weight/weights
			if next > s.Max {
				s.Max *= maxGrowth
			}
			next = clamp(e.round(clamp(next, s.Min, s.Max)), s.Min, s.Max)
			if next != s.Value {
				s.Value = next
				touched = append(touched, s.Name)
			}
		}
		return touched, nil
	})
}

// ToggleLock flips one slider's lock.
func (e *Engine) ToggleLock(name string) (Outcome, error) {
	i, ok := e.index[name]
	if !ok {
		return e.outcome(nil), fmt.Errorf("%w: %q", core.ErrUnknownSlider, name)
	}
	return e.apply(log.OpLock, func() ([]string, error) {
		e.sliders[i].Locked = !e.sliders[i].Locked
		return []string{name}, nil
	})
}

// ToggleLockAll unlocks everything when every slider is locked and locks
// everything otherwise.
func (e *Engine) ToggleLockAll() (Outcome, error) {
	if len(e.sliders) == 0 {
		return e.outcome(nil), core.ErrAllocationNoOp
	}
	allLocked := true
	for _, s := range e.sliders {
		if !s.Locked {
			allLocked = false
			break
		}
	}
	return e.apply(log.OpLock, func() ([]string, error) {
		touched := make([]string, 0, len(e.sliders))
		for i := range e.sliders {
			e.sliders[i].Locked = !allLocked
			touched = append(touched, e.sliders[i].Name)
		}
		return touched, nil
	})
}

// Undo restores the roster as it was before the last command.
func (e *Engine) Undo() (Outcome, error) {
	if len(e.history) <= 1 {
		return e.outcome(nil), core.ErrAllocationNoOp
	}
	e.history = e.history[:len(e.history)-1]
	e.sliders = slices.Clone(e.history[len(e.history)-1])
	return e.outcome(nil), nil
}

// Reset returns to the roster the engine was created with.
func (e *Engine) Reset() (Outcome, error) {
	if slices.Equal(e.sliders, e.initial) {
		return e.outcome(nil), core.ErrAllocationNoOp
	}
	return e.apply(log.OpReset, func() ([]string, error) {
		e.sliders = slices.Clone(e.initial)
		return nil, nil
	})
}

// Budgets lists the current values for persistence.
func (e *Engine) Budgets() []core.Budget {
	out := make([]core.Budget, len(e.sliders))
	for i, s := range e.sliders {
		out[i] = core.Budget{Category: s.Name, Value: s.Value}
	}
	return out
}

func (e *Engine) round(v float64) float64 {
	return roundTo(v, e.unit)
}

func roundTo(v, unit float64) float64 {
	return math.Round(v/unit) * unit
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
