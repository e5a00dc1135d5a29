package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"budgetflow/internal/allocation"
	"budgetflow/internal/core"
	"budgetflow/internal/forecast"
	"budgetflow/internal/log"
	"budgetflow/internal/notify"
	"budgetflow/internal/storage"
	"budgetflow/internal/storage/memory"
)

type published struct {
	month   string
	version int64
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) PublishMonthUpdated(_ context.Context, month string, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{month, version})
	return nil
}

type fakePredictor struct {
	got []forecast.Request
	out []float64
	err error
}

func (f *fakePredictor) Predict(_ context.Context, req forecast.Request) ([]float64, error) {
	f.got = append(f.got, req)
	return f.out, f.err
}

// failingStore rejects writes to one key once fail is set.
type failingStore struct {
	*memory.Store
	key  string
	fail bool
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) (int64, error) {
	if s.fail && key == s.key {
		return 0, errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value)
}

type fixture struct {
	session   *Session
	records   *storage.Records
	notices   *notify.Buffer
	publisher *fakePublisher
	changes   []Change
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.NewStore(), opts...)
}

func newFixtureOn(t *testing.T, store storage.Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		records:   storage.NewRecords(store),
		notices:   notify.NewBuffer(32),
		publisher: &fakePublisher{},
	}
	base := []Option{
		WithSink(f.notices),
		WithPublisher(f.publisher),
		WithOnChange(func(c Change) { f.changes = append(f.changes, c) }),
		withClock(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }),
	}
	f.session = NewSession(core.DefaultVocabulary(), f.records, append(base, opts...)...)
	return f
}

func month(t *testing.T, s string) core.MonthKey {
	t.Helper()
	m, err := core.ParseMonthKey(s)
	if err != nil {
		t.Fatalf("parse month %q: %v", s, err)
	}
	return m
}

func scenarioA() []core.Entry {
	return []core.Entry{
		{Kind: core.Income, Target: "Salary", Value: 2200},
		{Kind: core.Income, Target: "Side", Value: 800},
		{Kind: core.Tax, Target: "Taxes", Value: 220},
		{Kind: core.Expense, Target: "Rent", Value: 500, Source: "Housing"},
	}
}

func TestSubmitEntriesPersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := month(t, "2024-03")

	res, err := f.session.SubmitEntries(ctx, m, scenarioA())
	if err != nil {
		t.Fatalf("SubmitEntries: %v", err)
	}
	if res.RemainingBalance != 2280 {
		t.Errorf("RemainingBalance = %v, want 2280", res.RemainingBalance)
	}

	rec, err := f.records.Month(ctx, m)
	if err != nil {
		t.Fatalf("load month: %v", err)
	}
	if rec.TotalUsableIncome != 2780 || rec.TotalGrossIncome != 3000 || rec.TotalExpenses != 500 {
		t.Errorf("unexpected aggregates: %+v", rec)
	}
	if !rec.LastUpdated.Equal(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("LastUpdated = %v", rec.LastUpdated)
	}
	for _, e := range rec.RawInput {
		if e.ID == "" {
			t.Errorf("entry %q stored without id", e.Target)
		}
	}

	if len(f.publisher.sent) != 1 || f.publisher.sent[0] != (published{"2024-03", 1}) {
		t.Errorf("published = %v", f.publisher.sent)
	}
	if len(f.changes) != 1 || f.changes[0] != (Change{Kind: ChangeMonth, Month: "2024-03"}) {
		t.Errorf("changes = %v", f.changes)
	}
	if got, _, ok := f.session.Graph(); !ok || got != m {
		t.Errorf("Graph() = %v, %v", got, ok)
	}
}

func TestSubmitEntriesValidationKeepsPreviousState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := month(t, "2024-03")

	if _, err := f.session.SubmitEntries(ctx, m, scenarioA()); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := f.session.SubmitEntries(ctx, m, []core.Entry{
		{Kind: core.Expense, Target: "Rent", Value: 500},
		{Kind: core.Expense, Target: "rent", Value: 100},
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	rec, err := f.records.Month(ctx, m)
	if err != nil {
		t.Fatalf("load month: %v", err)
	}
	if rec.Version != 1 || rec.TotalUsableIncome != 2780 {
		t.Errorf("stored record changed: version %d, usable %v", rec.Version, rec.TotalUsableIncome)
	}
	if _, res, _ := f.session.Graph(); res == nil || res.UsableIncome != 2780 {
		t.Error("in-memory graph was replaced by a rejected batch")
	}
	if n := f.notices.Recent(1); len(n) != 1 || n[0].Level != notify.LevelWarning {
		t.Errorf("expected a warning notice, got %v", n)
	}
	if len(f.publisher.sent) != 1 {
		t.Errorf("rejected batch was published: %v", f.publisher.sent)
	}
}

func TestSubmitEntriesCycleStoresSentinel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := month(t, "2024-03")
	input := []core.Entry{{ID: "x1", Kind: core.Expense, Target: "X", Value: 100, Source: "X"}}

	_, err := f.session.SubmitEntries(ctx, m, input)
	var cycleErr *core.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}

	rec, err := f.records.Month(ctx, m)
	if err != nil {
		t.Fatalf("load month: %v", err)
	}
	if rec.Valid() {
		t.Error("sentinel record should not be valid")
	}
	if len(rec.RawInput) != 1 || rec.RawInput[0] != input[0] {
		t.Errorf("RawInput = %v, want %v", rec.RawInput, input)
	}
	if rec.Month != "2024-03" || rec.TotalExpenses != 0 || len(rec.Nodes) != 0 {
		t.Errorf("sentinel carries aggregates: %+v", rec)
	}

	n := f.notices.Recent(1)
	if len(n) != 1 || n[0].Level != notify.LevelError || n[0].DurationMs != 0 || n[0].ActionLabel == "" {
		t.Errorf("expected a blocking notice, got %v", n)
	}
	if len(f.publisher.sent) != 0 {
		t.Errorf("cycle sentinel was published: %v", f.publisher.sent)
	}
}

func TestSubmitEntriesPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	if _, err := f.session.SubmitEntries(context.Background(), month(t, "2024-03"), scenarioA()); err != nil {
		t.Fatalf("SubmitEntries should succeed when publishing fails: %v", err)
	}
}

func TestSubmitEntriesReservedNameWarns(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.SubmitEntries(context.Background(), month(t, "2024-03"), []core.Entry{
		{Kind: core.Income, Target: "Salary", Value: 1000},
		{Kind: core.Expense, Target: "surplus", Value: 100},
	})
	if err != nil {
		t.Fatalf("SubmitEntries: %v", err)
	}
	found := false
	for _, n := range f.notices.Recent(0) {
		if n.Level == notify.LevelWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected a reserved-name warning notice")
	}
}

func TestApplyFixCosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := month(t, "2024-03")

	err := f.session.SaveFixCosts(ctx, []core.Entry{
		{Kind: core.Expense, Target: "Rent", Value: 500, Source: "Housing"},
		{Kind: core.Expense, Target: "Internet", Value: 40, Source: "Utilities"},
	})
	if err != nil {
		t.Fatalf("SaveFixCosts: %v", err)
	}
	if _, err := f.session.SubmitEntries(ctx, m, []core.Entry{
		{Kind: core.Income, Target: "Salary", Value: 2000},
		{Kind: core.Expense, Target: "rent", Value: 450, Source: "Housing"},
	}); err != nil {
		t.Fatalf("SubmitEntries: %v", err)
	}

	res, err := f.session.ApplyFixCosts(ctx, m)
	if err != nil {
		t.Fatalf("ApplyFixCosts: %v", err)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("expected 3 entries after merge, got %d: %v", len(res.Entries), res.Entries)
	}
	for _, e := range res.Entries {
		switch e.Target {
		case "rent":
			if e.Value != 450 || e.IsFixCost {
				t.Errorf("existing entry was overwritten: %+v", e)
			}
		case "Internet":
			if !e.IsFixCost {
				t.Errorf("fix cost lost its flag: %+v", e)
			}
		}
	}
	if res.TotalExpenses != 490 {
		t.Errorf("TotalExpenses = %v, want 490", res.TotalExpenses)
	}
}

func TestApplyFixCostsToEmptyMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.session.SaveFixCosts(ctx, []core.Entry{{Kind: core.Expense, Target: "Gym", Value: 30, Source: "Personal"}}); err != nil {
		t.Fatalf("SaveFixCosts: %v", err)
	}
	res, err := f.session.ApplyFixCosts(ctx, month(t, "2024-04"))
	if err != nil {
		t.Fatalf("ApplyFixCosts: %v", err)
	}
	if len(res.Entries) != 1 || res.TotalExpenses != 30 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSaveFixCostsRejectsInvalidBatch(t *testing.T) {
	f := newFixture(t)
	err := f.session.SaveFixCosts(context.Background(), []core.Entry{{Kind: core.Expense, Target: "Gym", Value: -1}})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEssentialAndTrackingDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	essential, err := f.session.EssentialCategories(ctx)
	if err != nil || len(essential) == 0 {
		t.Fatalf("EssentialCategories() = %v, %v", essential, err)
	}
	tracking, err := f.session.Tracking(ctx)
	if err != nil || len(tracking.TrackingCategories) != len(core.DefaultCategories) {
		t.Fatalf("Tracking() = %+v, %v", tracking, err)
	}

	if err := f.session.SaveEssentialCategories(ctx, []string{"Nope"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for unknown category, got %v", err)
	}
	if err := f.session.SaveEssentialCategories(ctx, []string{}); err != nil {
		t.Fatalf("SaveEssentialCategories: %v", err)
	}
	essential, _ = f.session.EssentialCategories(ctx)
	if len(essential) != 0 {
		t.Errorf("stored empty list should win over defaults, got %v", essential)
	}
}

func seedHistory(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for m, food := range map[string]float64{"2024-01": 400, "2024-02": 600} {
		_, err := f.session.SubmitEntries(ctx, month(t, m), []core.Entry{
			{Kind: core.Income, Target: "Salary", Value: 3000},
			{Kind: core.Expense, Target: "Rent", Value: 1000, Source: "Housing"},
			{Kind: core.Expense, Target: "Groceries", Value: food, Source: "Food"},
		})
		if err != nil {
			t.Fatalf("submit %s: %v", m, err)
		}
	}
	if err := f.session.SaveTracking(ctx, storage.Tracking{TrackingCategories: []string{"Housing", "Food", "Entertainment"}}); err != nil {
		t.Fatalf("SaveTracking: %v", err)
	}
	if err := f.session.SaveEssentialCategories(ctx, []string{"Housing"}); err != nil {
		t.Fatalf("SaveEssentialCategories: %v", err)
	}
}

func sliderByName(t *testing.T, state SliderState, name string) allocation.Slider {
	t.Helper()
	for _, s := range state.Sliders {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("slider %q not found in %v", name, state.Sliders)
	return allocation.Slider{}
}

func TestSeedSliders(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)

	state, err := f.session.SeedSliders(context.Background(), month(t, "2024-03"), 3)
	if err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}
	if len(state.Sliders) != 3 {
		t.Fatalf("expected 3 sliders, got %d", len(state.Sliders))
	}

	housing := sliderByName(t, state, "Housing")
	if !housing.Locked || !housing.Essential || housing.Value != 1000 {
		t.Errorf("Housing = %+v", housing)
	}
	food := sliderByName(t, state, "Food")
	if food.Locked || food.Value != 500 || food.Max != 1000 {
		t.Errorf("Food = %+v", food)
	}
	if state.AverageIncome != 3000 || state.TargetMax != 3000 {
		t.Errorf("income %v, target %v", state.AverageIncome, state.TargetMax)
	}
	if state.SeededFrom != "2024-03" {
		t.Errorf("SeededFrom = %q", state.SeededFrom)
	}
}

func TestSliderCommandsPersistBudgets(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)
	ctx := context.Background()

	if _, err := f.session.Adjust(ctx, "Food", 700); !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded before seeding, got %v", err)
	}
	if _, err := f.session.SeedSliders(ctx, month(t, "2024-03"), 3); err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}

	out, err := f.session.Adjust(ctx, "Food", 700)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if out.Total != 1700 {
		t.Errorf("Total = %v, want 1700", out.Total)
	}
	budgets, err := f.records.Budgets(ctx)
	if err != nil {
		t.Fatalf("Budgets: %v", err)
	}
	foundFood := false
	for _, b := range budgets {
		if b.Category == "Food" {
			foundFood = b.Value == 700
		}
	}
	if !foundFood {
		t.Errorf("budgets not persisted: %v", budgets)
	}

	if _, err := f.session.Adjust(ctx, "Housing", 10); !errors.Is(err, core.ErrSliderLocked) {
		t.Errorf("expected ErrSliderLocked, got %v", err)
	}

	if _, err := f.session.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	state, _ := f.session.Sliders()
	if v := sliderByName(t, state, "Food").Value; v != 500 {
		t.Errorf("Food after undo = %v, want 500", v)
	}

	if _, err := f.session.Undo(ctx); !errors.Is(err, core.ErrAllocationNoOp) {
		t.Errorf("expected no-op undo, got %v", err)
	}
	if n := f.notices.Recent(1); len(n) != 1 || n[0].Level != notify.LevelInfo {
		t.Errorf("expected info notice for no-op, got %v", n)
	}
}

func TestSliderCommandRevertedWhenEverythingLocked(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)
	ctx := context.Background()
	if err := f.session.SaveTracking(ctx, storage.Tracking{
		TrackingCategories: []string{"Housing", "Food", "Entertainment"},
		AvgIncome:          1200,
	}); err != nil {
		t.Fatalf("SaveTracking: %v", err)
	}
	if _, err := f.session.SeedSliders(ctx, month(t, "2024-03"), 3); err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}
	if _, err := f.session.ToggleLock(ctx, "Entertainment"); err != nil {
		t.Fatalf("ToggleLock: %v", err)
	}

	_, err := f.session.Adjust(ctx, "Food", 900)
	if !errors.Is(err, core.ErrNoAdjustableSliders) {
		t.Fatalf("expected ErrNoAdjustableSliders, got %v", err)
	}
	state, _ := f.session.Sliders()
	if v := sliderByName(t, state, "Food").Value; v != 500 {
		t.Errorf("Food = %v after reverted command, want 500", v)
	}
	if n := f.notices.Recent(1); len(n) != 1 || n[0].Level != notify.LevelWarning {
		t.Errorf("expected warning notice, got %v", n)
	}
}

func TestSetSelected(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)
	if _, err := f.session.SetSelected([]string{"Food"}); !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded, got %v", err)
	}
	if _, err := f.session.SeedSliders(context.Background(), month(t, "2024-03"), 3); err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}
	if _, err := f.session.SetSelected([]string{"Nope"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	state, err := f.session.SetSelected([]string{"Food"})
	if err != nil {
		t.Fatalf("SetSelected: %v", err)
	}
	if len(state.Selected) != 1 || state.Selected[0] != "Food" {
		t.Errorf("Selected = %v", state.Selected)
	}
}

func TestForecastCategory(t *testing.T) {
	predictor := &fakePredictor{out: []float64{550, 560}}
	f := newFixture(t, WithForecaster(predictor))
	seedHistory(t, f)

	got, err := f.session.ForecastCategory(context.Background(), month(t, "2024-02"), "Food", 2)
	if err != nil {
		t.Fatalf("ForecastCategory: %v", err)
	}
	if len(predictor.got) != 1 {
		t.Fatalf("expected one predictor call, got %d", len(predictor.got))
	}
	req := predictor.got[0]
	if len(req.Data) != 2 || req.Data[0] != 400 || req.Data[1] != 600 || req.MonthsToPredict != 2 {
		t.Errorf("request = %+v, want oldest first [400 600]", req)
	}
	if got.ForecastMonths[0] != "2024-03" || got.ForecastMonths[1] != "2024-04" {
		t.Errorf("ForecastMonths = %v", got.ForecastMonths)
	}

	if _, err := f.session.ForecastCategory(context.Background(), month(t, "2024-02"), "Nope", 2); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := f.session.ForecastCategory(context.Background(), month(t, "2024-01"), "Food", 2); !errors.Is(err, forecast.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest for short history, got %v", err)
	}
}

func TestForecastDisabled(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Forecast(context.Background(), forecast.Request{Data: []float64{1, 2}, MonthsToPredict: 1})
	if !errors.Is(err, forecast.ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestSeedSlidersRejectsHugeWindow(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)

	for _, n := range []int{core.MaxTrailingMonths + 1, 1 << 50} {
		_, err := f.session.SeedSliders(context.Background(), month(t, "2024-05"), n)
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("months=%d: expected *core.ValidationError, got %v", n, err)
		}
	}
	if _, err := f.session.Sliders(); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("rejected seed left a roster behind: %v", err)
	}
	if _, err := f.session.SeedSliders(context.Background(), month(t, "2024-05"), core.MaxTrailingMonths); err != nil {
		t.Errorf("largest window rejected: %v", err)
	}
}

func TestSliderCommandRolledBackWhenBudgetsCannotBeSaved(t *testing.T) {
	store := &failingStore{Store: memory.NewStore(), key: storage.KeyBudgets}
	f := newFixtureOn(t, store)
	seedHistory(t, f)
	ctx := context.Background()

	seeded, err := f.session.SeedSliders(ctx, month(t, "2024-03"), 3)
	if err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}
	changes := len(f.changes)

	store.fail = true
	if _, err := f.session.Adjust(ctx, "Food", 700); err == nil {
		t.Fatal("expected the save error")
	}

	after, err := f.session.Sliders()
	if err != nil {
		t.Fatalf("Sliders: %v", err)
	}
	if !reflect.DeepEqual(after.Sliders, seeded.Sliders) {
		t.Errorf("roster changed after failed save:\n got %v\nwant %v", after.Sliders, seeded.Sliders)
	}
	if after.HistoryLen != seeded.HistoryLen {
		t.Errorf("HistoryLen = %d, want %d", after.HistoryLen, seeded.HistoryLen)
	}
	if len(f.changes) != changes {
		t.Error("failed command announced a change")
	}

	store.fail = false
	if _, err := f.session.Adjust(ctx, "Food", 700); err != nil {
		t.Fatalf("Adjust after recovery: %v", err)
	}
	if got := sliderByName(t, mustSliders(t, f.session), "Food").Value; got != 700 {
		t.Errorf("Food = %v, want 700", got)
	}
}

func mustSliders(t *testing.T, s *Session) SliderState {
	t.Helper()
	st, err := s.Sliders()
	if err != nil {
		t.Fatalf("Sliders: %v", err)
	}
	return st
}

func TestClearingIncomeOverrideFallsBackToHistory(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)
	ctx := context.Background()
	categories := []string{"Housing", "Food", "Entertainment"}

	if err := f.session.SaveTracking(ctx, storage.Tracking{TrackingCategories: categories, AvgIncome: 5000}); err != nil {
		t.Fatalf("SaveTracking: %v", err)
	}
	st, err := f.session.SeedSliders(ctx, month(t, "2024-03"), 3)
	if err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}
	if st.TargetMax != 5000 {
		t.Fatalf("TargetMax with override = %v, want 5000", st.TargetMax)
	}

	if err := f.session.SaveTracking(ctx, storage.Tracking{TrackingCategories: categories}); err != nil {
		t.Fatalf("SaveTracking: %v", err)
	}
	st = mustSliders(t, f.session)
	if st.TargetMax != 3000 || st.AverageIncome != 3000 {
		t.Errorf("after clearing override: target %v, income %v; want 3000 from history", st.TargetMax, st.AverageIncome)
	}
}

func TestRedistributeLogsItsOwnOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	f := newFixture(t, WithLogger(logger))
	seedHistory(t, f)
	ctx := context.Background()
	if _, err := f.session.SeedSliders(ctx, month(t, "2024-03"), 3); err != nil {
		t.Fatalf("SeedSliders: %v", err)
	}
	buf.Reset()

	if _, err := f.session.Redistribute(ctx, 100, "Housing", allocation.Reduce); err != nil {
		t.Fatalf("Redistribute: %v", err)
	}

	var ops []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if rec["msg"] == "Slider command applied" {
			ops = append(ops, fmt.Sprint(rec[log.FieldOperation]))
		}
	}
	if len(ops) != 1 || ops[0] != log.OpRedistribute {
		t.Errorf("logged operations = %v, want [%s]", ops, log.OpRedistribute)
	}
}
