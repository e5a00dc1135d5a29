package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetflow/internal/core"
	"budgetflow/internal/flowgraph"
	"budgetflow/internal/notify"
	"budgetflow/internal/storage"
)

func (s *Session) FixCosts(ctx context.Context) ([]core.Entry, error) {
	return s.records.FixCosts(ctx)
}

// SaveFixCosts validates the recurring entries as a batch of their own and
// stores them with IsFixCost set.
func (s *Session) SaveFixCosts(ctx context.Context, entries []core.Entry) error {
	entries = core.WithIDs(entries)
	if err := core.ValidateBatch(entries, s.vocab); err != nil {
		return err
	}
	if err := s.records.SaveFixCosts(ctx, entries); err != nil {
		return fmt.Errorf("save fix costs: %w", err)
	}
	s.mu.Lock()
	s.changed(Change{Kind: ChangeSettings})
	s.mu.Unlock()
	return nil
}

// ApplyFixCosts merges the stored fix costs into month's raw input and
// resubmits it. Targets already present, compared case-insensitively,
// are kept as entered.
func (s *Session) ApplyFixCosts(ctx context.Context, month core.MonthKey) (*flowgraph.Result, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	fixed, err := s.records.FixCosts(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current []core.Entry
	rec, err := s.records.Month(ctx, month)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		current = rec.RawInput
	}

	merged, added := mergeFixCosts(current, fixed)
	if added == 0 {
		s.sink.Notify(notify.Info("Fix costs are already part of " + month.String()))
	}
	return s.submitLocked(ctx, month, core.WithIDs(merged))
}

func mergeFixCosts(current, fixed []core.Entry) ([]core.Entry, int) {
	out := core.CloneEntries(current)
	seen := make(map[string]struct{}, len(current))
	for _, e := range current {
		seen[strings.ToLower(strings.TrimSpace(e.Target))] = struct{}{}
	}
	added := 0
	for _, e := range fixed {
		key := strings.ToLower(strings.TrimSpace(e.Target))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		e.IsFixCost = true
		out = append(out, e)
		added++
	}
	return out, added
}

// EssentialCategories returns the stored list, or the vocabulary's
// defaults when none was saved.
func (s *Session) EssentialCategories(ctx context.Context) ([]string, error) {
	names, ok, err := s.records.EssentialCategories(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.vocab.Essential(), nil
	}
	return names, nil
}

func (s *Session) SaveEssentialCategories(ctx context.Context, names []string) error {
	if err := s.checkCategories(names); err != nil {
		return err
	}
	if err := s.records.SaveEssentialCategories(ctx, names); err != nil {
		return fmt.Errorf("save essential categories: %w", err)
	}
	s.mu.Lock()
	s.changed(Change{Kind: ChangeSettings})
	s.mu.Unlock()
	return nil
}

// Tracking returns the stored slider settings. Without any, every
// vocabulary category is tracked with no surplus target.
func (s *Session) Tracking(ctx context.Context) (storage.Tracking, error) {
	t, ok, err := s.records.Tracking(ctx)
	if err != nil {
		return storage.Tracking{}, err
	}
	if !ok || len(t.TrackingCategories) == 0 {
		t.TrackingCategories = s.vocab.Names()
	}
	return t, nil
}

// SaveTracking persists the settings and retargets a seeded roster.
func (s *Session) SaveTracking(ctx context.Context, t storage.Tracking) error {
	if err := s.checkCategories(t.TrackingCategories); err != nil {
		return err
	}
	if t.TargetSurplus < 0 || t.AvgIncome < 0 {
		return &core.ValidationError{Problems: []core.Problem{{Reason: "target surplus and average income must not be negative"}}}
	}
	if err := s.records.SaveTracking(ctx, t); err != nil {
		return fmt.Errorf("save tracking: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		income := t.AvgIncome
		if income == 0 {
			income = s.historyAverage
		}
		s.average = income
		s.engine.SetTarget(income, t.TargetSurplus)
	}
	s.changed(Change{Kind: ChangeSettings})
	return nil
}

func (s *Session) checkCategories(names []string) error {
	var problems []core.Problem
	for _, n := range names {
		if !s.vocab.Contains(n) {
			problems = append(problems, core.Problem{Target: n, Reason: "unknown category"})
		}
	}
	if len(problems) > 0 {
		return &core.ValidationError{Problems: problems}
	}
	return nil
}
