package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"budgetflow/internal/allocation"
	"budgetflow/internal/core"
	"budgetflow/internal/log"
	"budgetflow/internal/notify"
)

// SliderState is a read-only view of the roster.
type SliderState struct {
	Sliders       []allocation.Slider `json:"sliders"`
	Selected      []string            `json:"selected"`
	Total         float64             `json:"total"`
	TargetMax     float64             `json:"targetMax"`
	AverageIncome float64             `json:"averageIncome"`
	HistoryLen    int                 `json:"historyLength"`
	SeededFrom    string              `json:"seededFrom"`
}

// SeedSliders rebuilds the roster from the months before asOf. A months
// value of zero or less uses the configured trailing window; more than
// core.MaxTrailingMonths is a ValidationError. Any previous
// roster and its history are discarded.
func (s *Session) SeedSliders(ctx context.Context, asOf core.MonthKey, months int) (SliderState, error) {
	if err := asOf.Validate(); err != nil {
		return SliderState{}, err
	}
	if months <= 0 {
		months = s.cfg.TrailingMonths
	}
	if months > core.MaxTrailingMonths {
		return SliderState{}, &core.ValidationError{Problems: []core.Problem{{
			Target: "months",
			Reason: fmt.Sprintf("must be at most %d", core.MaxTrailingMonths),
		}}}
	}

	recs, err := s.records.Trailing(ctx, asOf, months)
	if err != nil {
		return SliderState{}, err
	}
	tracking, err := s.Tracking(ctx)
	if err != nil {
		return SliderState{}, err
	}
	essential, err := s.EssentialCategories(ctx)
	if err != nil {
		return SliderState{}, err
	}
	budgets, err := s.records.Budgets(ctx)
	if err != nil {
		return SliderState{}, err
	}

	totals := make([][]core.CategoryTotal, len(recs))
	var income float64
	for i, rec := range recs {
		totals[i] = rec.CategoryTotals
		income += rec.TotalUsableIncome
	}
	if len(recs) > 0 {
		income /= float64(len(recs))
	}
	historyAverage := income
	if tracking.AvgIncome > 0 {
		income = tracking.AvgIncome
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sliders := allocation.FromAverages(allocation.SeedInput{
		Categories:   tracking.TrackingCategories,
		Averages:     allocation.Averages(totals),
		Essential:    essential,
		Selected:     s.selectedLocked(),
		Budgets:      budgets,
		RoundingUnit: s.cfg.RoundingUnit,
	})
	engine, err := allocation.New(sliders, allocation.Options{
		AverageIncome: income,
		TargetSurplus: tracking.TargetSurplus,
		AutoFit:       s.cfg.AutoFit,
		HistoryLimit:  s.cfg.HistoryLimit,
		RoundingUnit:  s.cfg.RoundingUnit,
		Selected:      s.selectedLocked(),
		Logger:        s.logger,
	})
	if err != nil {
		return SliderState{}, fmt.Errorf("seed sliders: %w", err)
	}
	s.engine = engine
	s.seedAt = asOf
	s.average = income
	s.historyAverage = historyAverage

	if len(recs) == 0 {
		s.sink.Notify(notify.Info(fmt.Sprintf("No history before %s, sliders start from saved budgets", asOf)))
	}
	s.logger.InfoContext(ctx, "Sliders seeded",
		log.FieldOperation, log.OpSeed,
		log.FieldMonth, asOf.String(),
		"months_found", len(recs),
		"sliders", len(sliders),
		log.FieldTotal, engine.Total(),
		log.FieldTargetMax, engine.TargetMax(),
	)
	s.changed(Change{Kind: ChangeSliders})
	return s.stateLocked(), nil
}

func (s *Session) selectedLocked() []string {
	if s.engine == nil {
		return nil
	}
	return s.engine.Selected()
}

func (s *Session) Sliders() (SliderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return SliderState{}, ErrNotSeeded
	}
	return s.stateLocked(), nil
}

func (s *Session) stateLocked() SliderState {
	return SliderState{
		Sliders:       s.engine.Sliders(),
		Selected:      s.engine.Selected(),
		Total:         s.engine.Total(),
		TargetMax:     s.engine.TargetMax(),
		AverageIncome: s.average,
		HistoryLen:    s.engine.HistoryLen(),
		SeededFrom:    s.seedAt.String(),
	}
}

func (s *Session) Adjust(ctx context.Context, name string, value float64) (allocation.Outcome, error) {
	return s.command(ctx, log.OpAdjust, name, func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.Adjust(name, value)
	})
}

func (s *Session) Redistribute(ctx context.Context, amount float64, exclude string, dir allocation.Direction) (allocation.Outcome, error) {
	return s.command(ctx, log.OpRedistribute, exclude, func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.Redistribute(amount, exclude, dir)
	})
}

func (s *Session) AutoAdjust(ctx context.Context) (allocation.Outcome, error) {
	return s.command(ctx, log.OpAutoAdjust, "", func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.AutoAdjustAll()
	})
}

func (s *Session) ToggleLock(ctx context.Context, name string) (allocation.Outcome, error) {
	return s.command(ctx, log.OpLock, name, func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.ToggleLock(name)
	})
}

func (s *Session) ToggleLockAll(ctx context.Context) (allocation.Outcome, error) {
	return s.command(ctx, log.OpLock, "", func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.ToggleLockAll()
	})
}

func (s *Session) Undo(ctx context.Context) (allocation.Outcome, error) {
	return s.command(ctx, log.OpUndo, "", func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.Undo()
	})
}

func (s *Session) Reset(ctx context.Context) (allocation.Outcome, error) {
	return s.command(ctx, log.OpReset, "", func(e *allocation.Engine) (allocation.Outcome, error) {
		return e.Reset()
	})
}

// SetSelected changes which categories are shown as visible sliders. It
// is not an undoable command.
func (s *Session) SetSelected(names []string) (SliderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return SliderState{}, ErrNotSeeded
	}
	var unknown []core.Problem
	for _, n := range names {
		if _, ok := s.engine.Slider(n); !ok {
			unknown = append(unknown, core.Problem{Target: n, Reason: "no such slider"})
		}
	}
	if len(unknown) > 0 {
		return SliderState{}, &core.ValidationError{Problems: unknown}
	}
	s.engine.SetSelected(slices.Clone(names))
	return s.stateLocked(), nil
}

func (s *Session) SetAutoFit(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.AutoFit = on
	if s.engine != nil {
		s.engine.SetAutoFit(on)
	}
}

// command runs one engine mutation, reports the outcome to the sink and
// persists the resulting budgets. If the budgets cannot be saved the
// roster and its history are restored to their state before fn.
func (s *Session) command(ctx context.Context, op, slider string, fn func(*allocation.Engine) (allocation.Outcome, error)) (allocation.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return allocation.Outcome{}, ErrNotSeeded
	}

	checkpoint := s.engine.Checkpoint()
	out, err := fn(s.engine)
	switch {
	case errors.Is(err, core.ErrAllocationNoOp):
		s.sink.Notify(notify.Info("Nothing to adjust"))
		return out, err
	case errors.Is(err, core.ErrNoAdjustableSliders):
		s.sink.Notify(notify.Warning("Change reverted: unlock a slider so the difference has somewhere to go"))
		return out, err
	case err != nil:
		return out, err
	}

	if out.Unresolved > 0 {
		s.sink.Notify(notify.Warning(fmt.Sprintf("Budgets exceed the target of %s by %s",
			s.format.Format(out.TargetMax), s.format.Format(out.Unresolved))))
	}
	if err := s.records.SaveBudgets(ctx, s.engine.Budgets()); err != nil {
		s.engine.Restore(checkpoint)
		s.logger.ErrorContext(ctx, "Slider command rolled back",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		return allocation.Outcome{}, fmt.Errorf("save budgets: %w", err)
	}
	s.logger.DebugContext(ctx, "Slider command applied",
		log.NewFields().WithOperation(op).WithAllocation(slider, out.Total, out.TargetMax, out.Unresolved).ToSlice()...)
	s.changed(Change{Kind: ChangeSliders})
	return out, nil
}
