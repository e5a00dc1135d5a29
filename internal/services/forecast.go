package services

import (
	"context"
	"fmt"
	"slices"

	"budgetflow/internal/core"
	"budgetflow/internal/forecast"
	"budgetflow/internal/log"
)

// CategoryForecast pairs a category's monthly history with its predicted
// continuation.
type CategoryForecast struct {
	Category       string    `json:"category"`
	HistoryMonths  []string  `json:"historyMonths"`
	History        []float64 `json:"history"`
	ForecastMonths []string  `json:"forecastMonths"`
	Forecast       []float64 `json:"forecast"`
}

func (s *Session) Forecast(ctx context.Context, req forecast.Request) ([]float64, error) {
	if s.forecaster == nil {
		return nil, forecast.ErrDisabled
	}
	return s.forecaster.Predict(ctx, req)
}

// ForecastCategory predicts n months after asOf from the stored history up
// to and including asOf. The category may also be the expense total.
func (s *Session) ForecastCategory(ctx context.Context, asOf core.MonthKey, category string, n int) (CategoryForecast, error) {
	if err := asOf.Validate(); err != nil {
		return CategoryForecast{}, err
	}
	if category != core.TotalExpensesName && !s.vocab.Contains(category) {
		return CategoryForecast{}, &core.ValidationError{Problems: []core.Problem{{Target: category, Reason: "unknown category"}}}
	}

	recs, err := s.records.Trailing(ctx, asOf.AddMonths(1), s.cfg.TrailingMonths)
	if err != nil {
		return CategoryForecast{}, err
	}
	if len(recs) < 2 {
		return CategoryForecast{}, fmt.Errorf("%w: %q needs at least two months of history", forecast.ErrBadRequest, category)
	}
	slices.Reverse(recs)

	out := CategoryForecast{Category: category}
	for _, rec := range recs {
		out.HistoryMonths = append(out.HistoryMonths, rec.Month)
		out.History = append(out.History, categoryValue(rec.CategoryTotals, rec.TotalExpenses, category))
	}

	values, err := s.Forecast(ctx, forecast.Request{Data: out.History, MonthsToPredict: n})
	if err != nil {
		s.logger.WarnContext(ctx, "Forecast failed",
			log.NewFields().WithOperation(log.OpForecast).WithMonth(asOf.String()).WithError(err).ToSlice()...)
		return CategoryForecast{}, err
	}
	out.Forecast = values
	for i := range values {
		out.ForecastMonths = append(out.ForecastMonths, asOf.AddMonths(i+1).String())
	}
	return out, nil
}

func categoryValue(totals []core.CategoryTotal, totalExpenses float64, category string) float64 {
	if category == core.TotalExpensesName {
		return totalExpenses
	}
	for _, t := range totals {
		if t.Name == category {
			return t.Value
		}
	}
	return 0
}
