package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"budgetflow/internal/allocation"
	"budgetflow/internal/core"
	"budgetflow/internal/log"
	"budgetflow/internal/services"
)

// amount accepts a JSON number or a user-typed string such as "12,50".
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return fmt.Errorf("%w: %q", err, s)
		}
		*a = amount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v < 0 || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", core.ErrInvalidAmount, v)
	}
	*a = amount(v)
	return nil
}

type seedBody struct {
	AsOf   string `json:"asOf"`
	Months int    `json:"months"`
}

type adjustBody struct {
	Value amount `json:"value"`
}

type redistributeBody struct {
	Amount    amount `json:"amount"`
	Exclude   string `json:"exclude"`
	Direction string `json:"direction"`
}

type selectedBody struct {
	Selected []string `json:"selected"`
}

type autoFitBody struct {
	Enabled bool `json:"enabled"`
}

type sliderStateResponse struct {
	services.SliderState
	TotalFormatted     string `json:"totalFormatted"`
	TargetMaxFormatted string `json:"targetMaxFormatted"`
}

type sliderCommandResponse struct {
	Outcome allocation.Outcome  `json:"outcome"`
	State   sliderStateResponse `json:"state"`
	NoOp    bool                `json:"noop,omitempty"`
}

func (s *Server) sliderState(st services.SliderState) sliderStateResponse {
	return sliderStateResponse{
		SliderState:        st,
		TotalFormatted:     s.format.Format(st.Total),
		TargetMaxFormatted: s.format.Format(st.TargetMax),
	}
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(w, r, v)
}

func (s *Server) handleSeedSliders(w http.ResponseWriter, r *http.Request) {
	var body seedBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpSeed, err)
		return
	}
	asOf := core.MonthOf(time.Now())
	if body.AsOf != "" {
		m, err := core.ParseMonthKey(body.AsOf)
		if err != nil {
			s.writeError(w, r, log.OpSeed, err)
			return
		}
		asOf = m
	}
	if body.Months < 0 {
		s.writeError(w, r, log.OpSeed, fmt.Errorf("%w: months must not be negative", errBadBody))
		return
	}

	st, err := s.session.SeedSliders(r.Context(), asOf, body.Months)
	if err != nil {
		s.writeError(w, r, log.OpSeed, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sliderState(st))
}

func (s *Server) handleGetSliders(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Sliders()
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sliderState(st))
}

// sliderCommand runs one roster mutation. A command that had nothing to do
// still answers 200 so clients can show the notice.
func (s *Server) sliderCommand(w http.ResponseWriter, r *http.Request, op string, run func(context.Context) (allocation.Outcome, error)) {
	out, err := run(r.Context())
	noop := errors.Is(err, core.ErrAllocationNoOp)
	if err != nil && !noop {
		s.writeError(w, r, op, err)
		return
	}
	st, err := s.session.Sliders()
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sliderCommandResponse{Outcome: out, State: s.sliderState(st), NoOp: noop})
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var body adjustBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpAdjust, err)
		return
	}
	name := r.PathValue("name")
	s.sliderCommand(w, r, log.OpAdjust, func(ctx context.Context) (allocation.Outcome, error) {
		return s.session.Adjust(ctx, name, float64(body.Value))
	})
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.sliderCommand(w, r, log.OpLock, func(ctx context.Context) (allocation.Outcome, error) {
		return s.session.ToggleLock(ctx, name)
	})
}

func (s *Server) handleToggleLockAll(w http.ResponseWriter, r *http.Request) {
	s.sliderCommand(w, r, log.OpLock, s.session.ToggleLockAll)
}

func (s *Server) handleAutoAdjust(w http.ResponseWriter, r *http.Request) {
	s.sliderCommand(w, r, log.OpAutoAdjust, s.session.AutoAdjust)
}

func (s *Server) handleRedistribute(w http.ResponseWriter, r *http.Request) {
	var body redistributeBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpRedistribute, err)
		return
	}
	var dir allocation.Direction
	switch body.Direction {
	case "", allocation.Reduce.String():
		dir = allocation.Reduce
	case allocation.Increase.String():
		dir = allocation.Increase
	default:
		s.writeError(w, r, log.OpRedistribute, fmt.Errorf("%w: direction must be reduce or increase", errBadBody))
		return
	}
	s.sliderCommand(w, r, log.OpRedistribute, func(ctx context.Context) (allocation.Outcome, error) {
		return s.session.Redistribute(ctx, float64(body.Amount), body.Exclude, dir)
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.sliderCommand(w, r, log.OpUndo, s.session.Undo)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sliderCommand(w, r, log.OpReset, s.session.Reset)
}

func (s *Server) handleSetSelected(w http.ResponseWriter, r *http.Request) {
	var body selectedBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	st, err := s.session.SetSelected(body.Selected)
	if err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sliderState(st))
}

func (s *Server) handleSetAutoFit(w http.ResponseWriter, r *http.Request) {
	var body autoFitBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	s.session.SetAutoFit(body.Enabled)
	writeJSON(w, http.StatusOK, autoFitBody{Enabled: body.Enabled})
}
