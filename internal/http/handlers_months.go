package http

import (
	"net/http"

	"budgetflow/internal/core"
	"budgetflow/internal/flowgraph"
	"budgetflow/internal/log"
	"budgetflow/internal/storage"
)

type entriesBody struct {
	Entries []core.Entry `json:"entries"`
}

// formattedTotals carries display strings next to the raw numbers.
type formattedTotals struct {
	TotalGrossIncomeFormatted  string            `json:"totalGrossIncomeFormatted"`
	TotalTaxFormatted          string            `json:"totalTaxFormatted"`
	TotalUsableIncomeFormatted string            `json:"totalUsableIncomeFormatted"`
	TotalExpensesFormatted     string            `json:"totalExpensesFormatted"`
	RemainingBalanceFormatted  string            `json:"remainingBalanceFormatted"`
	CategoryTotalsFormatted    map[string]string `json:"categoryTotalsFormatted,omitempty"`
}

func (s *Server) formatTotals(gross, tax, usable, expenses, remaining float64, categories []core.CategoryTotal) formattedTotals {
	f := formattedTotals{
		TotalGrossIncomeFormatted:  s.format.Format(gross),
		TotalTaxFormatted:          s.format.Format(tax),
		TotalUsableIncomeFormatted: s.format.Format(usable),
		TotalExpensesFormatted:     s.format.Format(expenses),
		RemainingBalanceFormatted:  s.format.Format(remaining),
	}
	if len(categories) > 0 {
		f.CategoryTotalsFormatted = make(map[string]string, len(categories))
		for _, c := range categories {
			f.CategoryTotalsFormatted[c.Name] = s.format.Format(c.Value)
		}
	}
	return f
}

type monthResponse struct {
	storage.MonthRecord
	formattedTotals
	Version int64 `json:"version"`
	Valid   bool  `json:"valid"`
}

type buildResponse struct {
	Month string `json:"month"`
	*flowgraph.Result
	formattedTotals
}

func (s *Server) buildResponse(month core.MonthKey, res *flowgraph.Result) buildResponse {
	return buildResponse{
		Month:  month.String(),
		Result: res,
		formattedTotals: s.formatTotals(res.TotalIncome, res.TotalTax, res.UsableIncome,
			res.TotalExpenses, res.RemainingBalance, res.CategoryTotals),
	}
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	keys, err := s.session.Months(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	months := make([]string, len(keys))
	for i, k := range keys {
		months[i] = k.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months})
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	rec, ok := s.months.get(month)
	if ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Month cache hit", log.FieldMonth, month.String())
	} else {
		rec, err = s.session.Month(r.Context(), month)
		if err != nil {
			s.writeError(w, r, log.OpRead, err)
			return
		}
		s.months.set(rec)
	}

	writeJSON(w, http.StatusOK, monthResponse{
		MonthRecord: rec,
		formattedTotals: s.formatTotals(rec.TotalGrossIncome, rec.TotalTax, rec.TotalUsableIncome,
			rec.TotalExpenses, rec.RemainingBalance, rec.CategoryTotals),
		Version: rec.Version,
		Valid:   rec.Valid(),
	})
}

// handleSubmitEntries replaces the month's entries and rebuilds its graph.
func (s *Server) handleSubmitEntries(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpBuild, err)
		return
	}
	var body entriesBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpBuild, err)
		return
	}

	res, err := s.session.SubmitEntries(r.Context(), month, body.Entries)
	if err != nil {
		s.writeError(w, r, log.OpBuild, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildResponse(month, res))
}

// handleApplyFixCosts merges the stored fix costs into the month and
// rebuilds it.
func (s *Server) handleApplyFixCosts(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpBuild, err)
		return
	}
	res, err := s.session.ApplyFixCosts(r.Context(), month)
	if err != nil {
		s.writeError(w, r, log.OpBuild, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildResponse(month, res))
}
