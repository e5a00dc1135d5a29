package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetflow/internal/core"
	"budgetflow/internal/forecast"
	"budgetflow/internal/notify"
	"budgetflow/internal/services"
	"budgetflow/internal/storage"
	"budgetflow/internal/storage/memory"
)

type fakePredictor struct {
	out []float64
	err error
}

func (f fakePredictor) Predict(context.Context, forecast.Request) ([]float64, error) {
	return f.out, f.err
}

type testServer struct {
	srv     *Server
	records *storage.Records
	notices *notify.Buffer
}

func newTestServer(t *testing.T, rateLimit int, opts ...services.Option) *testServer {
	t.Helper()
	records := storage.NewRecords(memory.NewStore())
	notices := notify.NewBuffer(16)
	months := NewMonthCache()
	base := []services.Option{services.WithSink(notices), services.WithOnChange(months.Invalidate)}
	session := services.NewSession(core.DefaultVocabulary(), records, append(base, opts...)...)
	srv := NewServer(":0", Options{
		Session:   session,
		Notices:   notices,
		Months:    months,
		RateLimit: rateLimit,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, records: records, notices: notices}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
		req = httptest.NewRequest(method, path, &buf)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

var scenarioA = map[string]any{"entries": []map[string]any{
	{"type": "income", "target": "Salary", "value": 2200},
	{"type": "income", "target": "Side", "value": 800},
	{"type": "tax", "target": "Taxes", "value": 220},
	{"type": "expense", "target": "Rent", "value": 500, "source": "Housing"},
}}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t, 0)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
	}
	rr := ts.do(t, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Errorf("metrics body missing counters: %s", rr.Body.String())
	}
}

func TestSubmitAndReadMonth(t *testing.T) {
	ts := newTestServer(t, 0)

	rr := ts.do(t, http.MethodPut, "/api/months/2024-03/entries", scenarioA)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	built := decode[map[string]any](t, rr)
	if built["remainingBalance"] != 2280.0 || built["usableIncome"] != 2780.0 {
		t.Errorf("unexpected aggregates: %v", built)
	}
	if built["remainingBalanceFormatted"] != "2,280.00" {
		t.Errorf("remainingBalanceFormatted = %v", built["remainingBalanceFormatted"])
	}

	rr = ts.do(t, http.MethodGet, "/api/months/2024-03", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	month := decode[map[string]any](t, rr)
	if month["version"] != 1.0 || month["valid"] != true || month["totalExpensesFormatted"] != "500.00" {
		t.Errorf("unexpected month: %v", month)
	}

	// Resubmitting must invalidate the cached copy.
	ts.do(t, http.MethodGet, "/api/months/2024-03", nil)
	if rr := ts.do(t, http.MethodPut, "/api/months/2024-03/entries", scenarioA); rr.Code != http.StatusOK {
		t.Fatalf("resubmit status=%d", rr.Code)
	}
	month = decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/months/2024-03", nil))
	if month["version"] != 2.0 {
		t.Errorf("version after resubmit = %v, want 2", month["version"])
	}

	list := decode[map[string][]string](t, ts.do(t, http.MethodGet, "/api/months", nil))
	if len(list["months"]) != 1 || list["months"][0] != "2024-03" {
		t.Errorf("months = %v", list["months"])
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		check  func(t *testing.T, body errorBody)
	}{
		{
			name:   "invalid month",
			path:   "/api/months/2024-13/entries",
			body:   scenarioA,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown field",
			path:   "/api/months/2024-03/entries",
			body:   map[string]any{"rows": []any{}},
			status: http.StatusBadRequest,
		},
		{
			name: "validation",
			path: "/api/months/2024-03/entries",
			body: map[string]any{"entries": []map[string]any{
				{"type": "income", "target": "Salary", "value": -1},
			}},
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body errorBody) {
				if len(body.Problems) != 1 || body.Problems[0].Target != "Salary" {
					t.Errorf("problems = %v", body.Problems)
				}
			},
		},
		{
			name: "cycle",
			path: "/api/months/2024-03/entries",
			body: map[string]any{"entries": []map[string]any{
				{"type": "expense", "target": "X", "value": 100, "source": "X"},
			}},
			status: http.StatusConflict,
			check: func(t *testing.T, body errorBody) {
				if len(body.Path) == 0 || len(body.RawInput) != 1 {
					t.Errorf("cycle body = %+v", body)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, 0)
			rr := ts.do(t, http.MethodPut, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if tt.check != nil {
				tt.check(t, decode[errorBody](t, rr))
			}
		})
	}
}

func TestCycleNoticeIsPolled(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.do(t, http.MethodPut, "/api/months/2024-03/entries", map[string]any{"entries": []map[string]any{
		{"type": "expense", "target": "X", "value": 100, "source": "X"},
	}})

	got := decode[map[string][]notify.Notice](t, ts.do(t, http.MethodGet, "/api/notices?limit=1", nil))
	if len(got["notices"]) != 1 || got["notices"][0].DurationMs != 0 || got["notices"][0].ActionLabel == "" {
		t.Fatalf("expected one blocking notice, got %+v", got["notices"])
	}

	month := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/months/2024-03", nil))
	if month["valid"] != false {
		t.Errorf("cycle month should be stored as invalid: %v", month)
	}
}

func TestGetMonthNotFound(t *testing.T) {
	ts := newTestServer(t, 0)
	if rr := ts.do(t, http.MethodGet, "/api/months/2020-01", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t, 0)

	rr := ts.do(t, http.MethodPut, "/api/settings/essential", categoriesBody{Categories: []string{"Housing", "Food"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("put essential status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[categoriesBody](t, rr); len(got.Categories) != 2 {
		t.Errorf("essential = %v", got.Categories)
	}
	if rr := ts.do(t, http.MethodPut, "/api/settings/essential", categoriesBody{Categories: []string{"Yachts"}}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown essential status=%d", rr.Code)
	}

	rr = ts.do(t, http.MethodPut, "/api/settings/tracking", storage.Tracking{TrackingCategories: []string{"Food"}, TargetSurplus: 200})
	if rr.Code != http.StatusOK {
		t.Fatalf("put tracking status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[storage.Tracking](t, rr); got.TargetSurplus != 200 {
		t.Errorf("tracking = %+v", got)
	}

	rr = ts.do(t, http.MethodPut, "/api/fixcosts", map[string]any{"entries": []map[string]any{
		{"type": "expense", "target": "Gym", "value": 40, "source": "Healthcare"},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("put fixcosts status=%d body=%s", rr.Code, rr.Body.String())
	}
	fixed := decode[entriesBody](t, rr)
	if len(fixed.Entries) != 1 || !fixed.Entries[0].IsFixCost {
		t.Errorf("fix costs = %+v", fixed.Entries)
	}

	ts.do(t, http.MethodPut, "/api/months/2024-03/entries", scenarioA)
	rr = ts.do(t, http.MethodPost, "/api/months/2024-03/fixcosts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("apply fixcosts status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[map[string]any](t, rr); got["totalExpenses"] != 540.0 {
		t.Errorf("totalExpenses after fix costs = %v, want 540", got["totalExpenses"])
	}
}

func seedHistory(t *testing.T, ts *testServer) {
	t.Helper()
	for m, food := range map[string]float64{"2024-01": 400, "2024-02": 600} {
		rr := ts.do(t, http.MethodPut, "/api/months/"+m+"/entries", map[string]any{"entries": []map[string]any{
			{"type": "income", "target": "Salary", "value": 3000},
			{"type": "expense", "target": "Rent", "value": 1000, "source": "Housing"},
			{"type": "expense", "target": "Groceries", "value": food, "source": "Food"},
		}})
		if rr.Code != http.StatusOK {
			t.Fatalf("submit %s: %d %s", m, rr.Code, rr.Body.String())
		}
	}
	ts.do(t, http.MethodPut, "/api/settings/tracking", storage.Tracking{TrackingCategories: []string{"Housing", "Food", "Entertainment"}})
	ts.do(t, http.MethodPut, "/api/settings/essential", categoriesBody{Categories: []string{"Housing"}})
}

func TestSliderFlow(t *testing.T) {
	ts := newTestServer(t, 0)
	seedHistory(t, ts)

	if rr := ts.do(t, http.MethodGet, "/api/sliders", nil); rr.Code != http.StatusConflict {
		t.Fatalf("unseeded sliders status=%d", rr.Code)
	}

	rr := ts.do(t, http.MethodPost, "/api/sliders/seed", seedBody{AsOf: "2024-03", Months: 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
	}
	state := decode[sliderStateResponse](t, rr)
	if len(state.Sliders) != 3 || state.TargetMax != 3000 || state.TargetMaxFormatted != "3,000.00" {
		t.Fatalf("unexpected state: %+v", state)
	}

	rr = ts.do(t, http.MethodPost, "/api/sliders/Food/adjust", map[string]any{"value": "700"})
	if rr.Code != http.StatusOK {
		t.Fatalf("adjust status=%d body=%s", rr.Code, rr.Body.String())
	}
	if out := decode[sliderCommandResponse](t, rr); out.Outcome.Total != 1700 {
		t.Errorf("total after adjust = %v, want 1700", out.Outcome.Total)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"locked slider", http.MethodPost, "/api/sliders/Housing/adjust", map[string]any{"value": 10}, http.StatusConflict},
		{"unknown slider", http.MethodPost, "/api/sliders/Yachts/adjust", map[string]any{"value": 10}, http.StatusNotFound},
		{"negative value", http.MethodPost, "/api/sliders/Food/adjust", map[string]any{"value": -5}, http.StatusBadRequest},
		{"bad direction", http.MethodPost, "/api/sliders/redistribute", map[string]any{"amount": 10, "direction": "up"}, http.StatusBadRequest},
		{"unknown selection", http.MethodPut, "/api/sliders/selected", selectedBody{Selected: []string{"Yachts"}}, http.StatusUnprocessableEntity},
		{"undo", http.MethodPost, "/api/sliders/undo", nil, http.StatusOK},
		{"undo at bottom is a no-op", http.MethodPost, "/api/sliders/undo", nil, http.StatusOK},
		{"reset", http.MethodPost, "/api/sliders/reset", nil, http.StatusOK},
		{"auto-fit toggle", http.MethodPut, "/api/sliders/autofit", autoFitBody{Enabled: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}

	state = decode[sliderStateResponse](t, ts.do(t, http.MethodGet, "/api/sliders", nil))
	for _, s := range state.Sliders {
		if s.Name == "Food" && s.Value != 500 {
			t.Errorf("Food after undo/reset = %v, want 500", s.Value)
		}
	}
}

func TestSeedRejectsOversizedWindow(t *testing.T) {
	ts := newTestServer(t, 0)
	seedHistory(t, ts)

	rr := ts.do(t, http.MethodPost, "/api/sliders/seed", map[string]any{"asOf": "2024-05", "months": 1 << 50})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode[errorBody](t, rr)
	if len(body.Problems) != 1 || body.Problems[0].Target != "months" {
		t.Errorf("problems = %v", body.Problems)
	}
	if rr := ts.do(t, http.MethodGet, "/api/sliders", nil); rr.Code != http.StatusConflict {
		t.Errorf("rejected seed left sliders behind: status=%d", rr.Code)
	}
}

func TestSliderRevertedWhenEverythingLocked(t *testing.T) {
	ts := newTestServer(t, 0)
	seedHistory(t, ts)
	ts.do(t, http.MethodPut, "/api/settings/tracking", storage.Tracking{
		TrackingCategories: []string{"Housing", "Food", "Entertainment"},
		AvgIncome:          1200,
	})
	ts.do(t, http.MethodPost, "/api/sliders/seed", seedBody{AsOf: "2024-03", Months: 3})
	ts.do(t, http.MethodPost, "/api/sliders/Entertainment/lock", nil)

	rr := ts.do(t, http.MethodPost, "/api/sliders/Food/adjust", map[string]any{"value": 900})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	notices := ts.notices.Recent(1)
	if len(notices) != 1 || notices[0].Level != notify.LevelWarning {
		t.Errorf("expected a warning notice, got %+v", notices)
	}
}

func TestForecastEndpoints(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, 0)
		rr := ts.do(t, http.MethodPost, "/api/forecast", forecast.Request{Data: []float64{1, 2}, MonthsToPredict: 1})
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("category", func(t *testing.T) {
		ts := newTestServer(t, 0, services.WithForecaster(fakePredictor{out: []float64{510, 520}}))
		seedHistory(t, ts)
		rr := ts.do(t, http.MethodGet, "/api/forecast/Food?asOf=2024-02&months=2", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		got := decode[services.CategoryForecast](t, rr)
		if len(got.History) != 2 || got.History[0] != 400 || len(got.ForecastMonths) != 2 || got.ForecastMonths[0] != "2024-03" {
			t.Errorf("unexpected forecast: %+v", got)
		}
	})

	t.Run("not enough history", func(t *testing.T) {
		ts := newTestServer(t, 0, services.WithForecaster(fakePredictor{out: []float64{1}}))
		rr := ts.do(t, http.MethodGet, "/api/forecast/Food?asOf=2024-02", nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status=%d", rr.Code)
		}
	})
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t, 1)
	if rr := ts.do(t, http.MethodPut, "/api/months/2024-03/entries", scenarioA); rr.Code != http.StatusOK {
		t.Fatalf("first write status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodPut, "/api/months/2024-03/entries", scenarioA); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/months/2024-03", nil); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rr.Code)
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	ts := newTestServer(t, 0)
	if rr := ts.do(t, http.MethodGet, "/.env", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}
