package http

import (
	"net/http"

	"budgetflow/internal/forecast"
	"budgetflow/internal/log"
)

const defaultForecastMonths = 3

// handleForecast forwards a raw series to the forecasting service.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecast.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpForecast, err)
		return
	}
	values, err := s.session.Forecast(r.Context(), req)
	if err != nil {
		s.writeError(w, r, log.OpForecast, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast.Response{Forecast: values})
}

// handleForecastCategory predicts a category from its stored history.
// Query: asOf=YYYY-MM (default current month), months=N.
func (s *Server) handleForecastCategory(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryMonth(r, "asOf")
	if err != nil {
		s.writeError(w, r, log.OpForecast, err)
		return
	}
	n, err := queryInt(r, "months", defaultForecastMonths)
	if err != nil {
		s.writeError(w, r, log.OpForecast, err)
		return
	}
	out, err := s.session.ForecastCategory(r.Context(), asOf, r.PathValue("category"), n)
	if err != nil {
		s.writeError(w, r, log.OpForecast, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
