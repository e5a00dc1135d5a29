package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetflow/internal/core"
)

// Well-known keys. Month records live under their "YYYY-MM" key.
const (
	KeyFixCosts            = "fixCosts"
	KeyEssentialCategories = "essentialCategories"
	KeyBudgets             = "budgets"
	KeyTrackedCategories   = "trackedCategories"
)

// trailingLoadLimit bounds concurrent reads in Trailing.
const trailingLoadLimit = 4

// MonthRecord is the persisted result of processing one month. A record
// written after a cycle carries only RawInput and Month.
type MonthRecord struct {
	LastUpdated       time.Time            `json:"lastUpdated"`
	Nodes             []core.Node          `json:"nodes"`
	Links             []core.Link          `json:"links"`
	TotalUsableIncome float64              `json:"totalUsableIncome"`
	TotalGrossIncome  float64              `json:"totalGrossIncome"`
	TotalTax          float64              `json:"totalTax"`
	TotalExpenses     float64              `json:"totalExpenses"`
	RemainingBalance  float64              `json:"remainingBalance"`
	CategoryTotals    []core.CategoryTotal `json:"categoryTotals"`
	RawInput          []core.Entry         `json:"rawInput"`
	Month             string               `json:"month"`

	Version int64 `json:"-"`
}

// CycleRecord is the sentinel stored when a batch contains a cycle.
func CycleRecord(month core.MonthKey, raw []core.Entry) MonthRecord {
	return MonthRecord{Month: month.String(), RawInput: core.CloneEntries(raw)}
}

// Valid reports whether the record holds computed aggregates.
func (r MonthRecord) Valid() bool {
	return len(r.Nodes) > 0
}

// Tracking is the slider configuration stored under trackedCategories.
type Tracking struct {
	TrackingCategories []string `json:"trackingCategories"`
	TargetSurplus      float64  `json:"targetSurplus"`
	AvgIncome          float64  `json:"avgIncome"`
}

// Records gives typed access to the values kept in a Store.
type Records struct {
	store Store
}

func NewRecords(store Store) *Records {
	return &Records{store: store}
}

func (r *Records) Store() Store {
	return r.store
}

func (r *Records) Month(ctx context.Context, m core.MonthKey) (MonthRecord, error) {
	var rec MonthRecord
	version, err := r.get(ctx, m.String(), &rec)
	if err != nil {
		return MonthRecord{}, err
	}
	rec.Version = version
	return rec, nil
}

// SaveMonth stores rec under its month key and returns the new version.
func (r *Records) SaveMonth(ctx context.Context, rec MonthRecord) (int64, error) {
	m, err := core.ParseMonthKey(rec.Month)
	if err != nil {
		return 0, err
	}
	return r.put(ctx, m.String(), rec)
}

// Months lists every stored month, oldest first.
func (r *Records) Months(ctx context.Context) ([]core.MonthKey, error) {
	keys, err := r.store.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []core.MonthKey
	for _, k := range keys {
		if len(k) != len("2006-01") {
			continue
		}
		if m, err := core.ParseMonthKey(k); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// Trailing loads up to n valid records before m, most recent first.
// Missing months and cycle sentinels are skipped.
func (r *Records) Trailing(ctx context.Context, m core.MonthKey, n int) ([]MonthRecord, error) {
	months := m.Trailing(n)
	loaded := make([]*MonthRecord, len(months))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(trailingLoadLimit)
	for i, month := range months {
		g.Go(func() error {
			rec, err := r.Month(ctx, month)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", month, err)
			}
			loaded[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]MonthRecord, 0, len(loaded))
	for _, rec := range loaded {
		if rec != nil && rec.Valid() {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// FixCosts returns the stored recurring entries, or none.
func (r *Records) FixCosts(ctx context.Context) ([]core.Entry, error) {
	var entries []core.Entry
	if _, err := r.get(ctx, KeyFixCosts, &entries); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return entries, nil
}

// SaveFixCosts stores entries with IsFixCost forced on.
func (r *Records) SaveFixCosts(ctx context.Context, entries []core.Entry) error {
	out := core.CloneEntries(entries)
	for i := range out {
		out[i].IsFixCost = true
	}
	if out == nil {
		out = []core.Entry{}
	}
	_, err := r.put(ctx, KeyFixCosts, out)
	return err
}

// EssentialCategories returns the stored list and whether one was stored.
func (r *Records) EssentialCategories(ctx context.Context) ([]string, bool, error) {
	var names []string
	_, err := r.get(ctx, KeyEssentialCategories, &names)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return names, true, nil
}

func (r *Records) SaveEssentialCategories(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	_, err := r.put(ctx, KeyEssentialCategories, names)
	return err
}

func (r *Records) Budgets(ctx context.Context) ([]core.Budget, error) {
	var budgets []core.Budget
	if _, err := r.get(ctx, KeyBudgets, &budgets); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return budgets, nil
}

func (r *Records) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	if budgets == nil {
		budgets = []core.Budget{}
	}
	_, err := r.put(ctx, KeyBudgets, budgets)
	return err
}

// Tracking returns the stored slider configuration and whether one exists.
func (r *Records) Tracking(ctx context.Context) (Tracking, bool, error) {
	var t Tracking
	_, err := r.get(ctx, KeyTrackedCategories, &t)
	if errors.Is(err, ErrNotFound) {
		return Tracking{}, false, nil
	}
	if err != nil {
		return Tracking{}, false, err
	}
	return t, true, nil
}

func (r *Records) SaveTracking(ctx context.Context, t Tracking) error {
	_, err := r.put(ctx, KeyTrackedCategories, t)
	return err
}

func (r *Records) get(ctx context.Context, key string, v any) (int64, error) {
	item, err := r.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(item.Value, v); err != nil {
		return 0, fmt.Errorf("decode %q: %w", key, err)
	}
	return item.Version, nil
}

func (r *Records) put(ctx context.Context, key string, v any) (int64, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %q: %w", key, err)
	}
	return r.store.Put(ctx, key, body)
}
