// Package services holds the session that owns one user's working state:
// the current month's entries and graph, and the slider roster with its
// undo history. Every command runs under the session lock, so the graph
// builder and the allocation engine never see interleaved calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"budgetflow/internal/allocation"
	"budgetflow/internal/core"
	"budgetflow/internal/flowgraph"
	"budgetflow/internal/forecast"
	"budgetflow/internal/log"
	"budgetflow/internal/notify"
	"budgetflow/internal/storage"
)

// Publisher announces that a month record changed.
type Publisher interface {
	PublishMonthUpdated(ctx context.Context, month string, version int64) error
}

// ChangeKind tells OnChange subscribers what was rewritten.
type ChangeKind string

const (
	ChangeMonth    ChangeKind = "month"
	ChangeSliders  ChangeKind = "sliders"
	ChangeSettings ChangeKind = "settings"
)

// Change is passed to the OnChange callback after a successful write.
type Change struct {
	Kind  ChangeKind
	Month string
}

type Config struct {
	TrailingMonths int
	HistoryLimit   int
	RoundingUnit   float64
	AutoFit        bool
	Locale         string
}

func DefaultConfig() Config {
	return Config{
		TrailingMonths: 6,
		HistoryLimit:   allocation.DefaultHistoryLimit,
		RoundingUnit:   allocation.DefaultRoundingUnit,
		Locale:         "en",
	}
}

type Option func(*Session)

func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

func WithSink(sink notify.Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

func WithForecaster(p forecast.Predictor) Option {
	return func(s *Session) { s.forecaster = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnChange registers a callback run after every persisted change. It
// is called with the session lock held and must not call back into the
// session.
func WithOnChange(fn func(Change)) Option {
	return func(s *Session) { s.onChange = fn }
}

func withClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

var ErrNotSeeded = errors.New("sliders have not been seeded")

// Session is created at startup and discarded with Close. It is safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	vocab      *core.Vocabulary
	builder    *flowgraph.Builder
	records    *storage.Records
	sink       notify.Sink
	publisher  Publisher
	forecaster forecast.Predictor
	logger     *log.Logger
	format     *core.Formatter
	onChange   func(Change)
	now        func() time.Time
	cfg        Config

	month   core.MonthKey
	graph   *flowgraph.Result
	engine  *allocation.Engine
	seedAt  core.MonthKey
	average float64
	// historyAverage is the usable income averaged over the seeding window,
	// before any stored override.
	historyAverage float64
}

func NewSession(vocab *core.Vocabulary, records *storage.Records, opts ...Option) *Session {
	if vocab == nil {
		vocab = core.DefaultVocabulary()
	}
	s := &Session{
		vocab:   vocab,
		records: records,
		sink:    notify.Discard,
		logger:  log.Discard(),
		now:     time.Now,
		cfg:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.TrailingMonths <= 0 {
		s.cfg.TrailingMonths = DefaultConfig().TrailingMonths
	}
	s.logger = s.logger.WithComponent(log.ComponentSession)
	s.builder = flowgraph.NewBuilder(vocab, flowgraph.WithLogger(s.logger))
	s.format = core.NewFormatter(s.cfg.Locale)
	return s
}

func (s *Session) Vocabulary() *core.Vocabulary {
	return s.vocab
}

// SubmitEntries builds the month's graph and persists it. A rejected batch
// leaves the previous state untouched; a cyclic batch is stored as a
// sentinel holding only the raw input.
func (s *Session) SubmitEntries(ctx context.Context, month core.MonthKey, entries []core.Entry) (*flowgraph.Result, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, month, core.WithIDs(entries))
}

func (s *Session) submitLocked(ctx context.Context, month core.MonthKey, entries []core.Entry) (*flowgraph.Result, error) {
	res, err := s.builder.Build(entries)

	var cycleErr *core.CycleError
	var validationErr *core.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.logger.WarnContext(ctx, "Rejected entry batch",
			log.NewFields().WithMonth(month.String()).WithOperation(log.OpValidate).WithError(err).ToSlice()...)
		s.sink.Notify(notify.Warning(validationMessage(validationErr)))
		return nil, err

	case errors.As(err, &cycleErr):
		rec := storage.CycleRecord(month, cycleErr.RawInput)
		rec.LastUpdated = s.now()
		if _, saveErr := s.records.SaveMonth(ctx, rec); saveErr != nil {
			return nil, fmt.Errorf("save cycle record: %w", saveErr)
		}
		if s.month == month {
			s.graph = nil
		}
		s.logger.WarnContext(ctx, "Entry batch contains a cycle",
			log.NewFields().WithMonth(month.String()).WithError(err).ToSlice()...)
		s.sink.Notify(notify.Blocking(cycleErr.Error()+". Fix the entries to recompute the month.", "Edit entries"))
		s.changed(Change{Kind: ChangeMonth, Month: month.String()})
		return nil, err

	case err != nil:
		return nil, err
	}

	rec := monthRecord(month, res, s.now())
	version, err := s.records.SaveMonth(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save month %s: %w", month, err)
	}
	s.month = month
	s.graph = res

	for _, w := range res.Warnings {
		s.sink.Notify(notify.Warning(w.String()))
	}
	if len(res.Changed) > 0 {
		names := make([]string, len(res.Changed))
		for i, c := range res.Changed {
			names[i] = c.Name
		}
		s.sink.Notify(notify.Info("Raised to match their items: " + strings.Join(names, ", ")))
	}

	s.logger.InfoContext(ctx, "Month processed",
		log.FieldMonth, month.String(),
		log.FieldEntries, len(entries),
		log.FieldVersion, version,
		log.FieldTotal, res.TotalExpenses,
	)
	s.publish(ctx, month, version)
	s.changed(Change{Kind: ChangeMonth, Month: month.String()})
	return res, nil
}

func (s *Session) publish(ctx context.Context, month core.MonthKey, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMonthUpdated(ctx, month.String(), version); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish month update",
			log.NewFields().WithMonth(month.String()).WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}

func (s *Session) changed(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

// Graph returns the last successfully built month and its result.
func (s *Session) Graph() (core.MonthKey, *flowgraph.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.month, s.graph, s.graph != nil
}

func (s *Session) Month(ctx context.Context, month core.MonthKey) (storage.MonthRecord, error) {
	if err := month.Validate(); err != nil {
		return storage.MonthRecord{}, err
	}
	return s.records.Month(ctx, month)
}

func (s *Session) Months(ctx context.Context) ([]core.MonthKey, error) {
	return s.records.Months(ctx)
}

// Close drops the in-memory state. The store is owned by the caller.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = nil
	s.engine = nil
}

func monthRecord(month core.MonthKey, res *flowgraph.Result, now time.Time) storage.MonthRecord {
	return storage.MonthRecord{
		LastUpdated:       now,
		Nodes:             res.Nodes,
		Links:             res.Links,
		TotalUsableIncome: res.UsableIncome,
		TotalGrossIncome:  res.TotalIncome,
		TotalTax:          res.TotalTax,
		TotalExpenses:     res.TotalExpenses,
		RemainingBalance:  res.RemainingBalance,
		CategoryTotals:    res.CategoryTotals,
		RawInput:          res.Entries,
		Month:             month.String(),
	}
}

func validationMessage(err *core.ValidationError) string {
	if len(err.Problems) == 1 {
		return "Entries not saved: " + err.Problems[0].String()
	}
	return fmt.Sprintf("Entries not saved: %d problems, first: %s", len(err.Problems), err.Problems[0])
}
