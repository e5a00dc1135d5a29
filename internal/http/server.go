// Package http exposes the budgeting session as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"budgetflow/internal/cache"
	"budgetflow/internal/core"
	"budgetflow/internal/log"
	"budgetflow/internal/middleware/ratelimit"
	"budgetflow/internal/middleware/security"
	"budgetflow/internal/middleware/trace"
	"budgetflow/internal/notify"
	"budgetflow/internal/services"
	"budgetflow/internal/storage"
)

const (
	monthCacheSize    = 100
	monthCacheTTL     = 5 * time.Minute
	cacheSweepEvery   = 10 * time.Minute
	storeCheckTimeout = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// MonthCache holds month records read through the API. Its Invalidate
// method is meant to be handed to the session as its change hook, which is
// why it exists before the server does.
type MonthCache struct {
	records *cache.LRUCache[storage.MonthRecord]
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewMonthCache() *MonthCache {
	return &MonthCache{records: cache.NewLRUCache[storage.MonthRecord](monthCacheSize, monthCacheTTL)}
}

// Invalidate drops whatever a change made stale. It must not call back into
// the session.
func (c *MonthCache) Invalidate(change services.Change) {
	if change.Kind == services.ChangeMonth && change.Month != "" {
		c.records.Delete(change.Month)
	}
}

func (c *MonthCache) get(month core.MonthKey) (storage.MonthRecord, bool) {
	rec, ok := c.records.Get(month.String())
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return rec, ok
}

func (c *MonthCache) set(rec storage.MonthRecord) {
	c.records.Set(rec.Month, rec)
}

// Options wires the server's collaborators. Session is required.
type Options struct {
	Session   *services.Session
	Notices   *notify.Buffer
	Months    *MonthCache
	Logger    *log.Logger
	Locale    string
	RateLimit int
}

type Server struct {
	http.Server

	session  *services.Session
	notices  *notify.Buffer
	months   *MonthCache
	caches   *cache.Manager
	format   *core.Formatter
	logger   *log.Logger
	started  time.Time
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer registers every route and returns a server ready for
// ListenAndServe.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.Notices == nil {
		opts.Notices = notify.NewBuffer(notify.DefaultBufferSize)
	}
	if opts.Months == nil {
		opts.Months = NewMonthCache()
	}
	rl := ratelimit.DefaultConfig()
	if opts.RateLimit > 0 {
		rl.RequestsPerMinute = opts.RateLimit
	}

	s := &Server{
		session:  opts.Session,
		notices:  opts.Notices,
		months:   opts.Months,
		caches:   cache.NewManager(logger),
		format:   core.NewFormatter(opts.Locale),
		logger:   logger,
		started:  time.Now(),
		limiter:  ratelimit.NewLimiter(rl),
		tracer:   trace.NewMiddleware(),
		detector: security.NewDetector(),
	}
	s.caches.Register(s.months.records)
	s.caches.StartCleanup(cacheSweepEvery)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/months", s.handleListMonths)
	mux.HandleFunc("GET /api/months/{month}", s.handleGetMonth)
	mux.HandleFunc("PUT /api/months/{month}/entries", s.handleSubmitEntries)
	mux.HandleFunc("POST /api/months/{month}/fixcosts", s.handleApplyFixCosts)

	mux.HandleFunc("GET /api/fixcosts", s.handleGetFixCosts)
	mux.HandleFunc("PUT /api/fixcosts", s.handlePutFixCosts)
	mux.HandleFunc("GET /api/settings/essential", s.handleGetEssential)
	mux.HandleFunc("PUT /api/settings/essential", s.handlePutEssential)
	mux.HandleFunc("GET /api/settings/tracking", s.handleGetTracking)
	mux.HandleFunc("PUT /api/settings/tracking", s.handlePutTracking)

	mux.HandleFunc("POST /api/sliders/seed", s.handleSeedSliders)
	mux.HandleFunc("GET /api/sliders", s.handleGetSliders)
	mux.HandleFunc("POST /api/sliders/{name}/adjust", s.handleAdjust)
	mux.HandleFunc("POST /api/sliders/{name}/lock", s.handleToggleLock)
	mux.HandleFunc("POST /api/sliders/lock-all", s.handleToggleLockAll)
	mux.HandleFunc("POST /api/sliders/auto-adjust", s.handleAutoAdjust)
	mux.HandleFunc("POST /api/sliders/redistribute", s.handleRedistribute)
	mux.HandleFunc("POST /api/sliders/undo", s.handleUndo)
	mux.HandleFunc("POST /api/sliders/reset", s.handleReset)
	mux.HandleFunc("PUT /api/sliders/selected", s.handleSetSelected)
	mux.HandleFunc("PUT /api/sliders/autofit", s.handleSetAutoFit)

	mux.HandleFunc("POST /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/forecast/{category}", s.handleForecastCategory)

	mux.HandleFunc("GET /api/notices", s.handleNotices)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps next, outermost first: tracing, the request logger,
// access logging, hostile request filtering, security headers, then rate
// limiting of writes.
func (s *Server) middleware(next http.Handler) http.Handler {
	clientIP := s.detector.ExtractClientIP
	h := s.limiter.Middleware(clientIP, s.onRateLimited)(next)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(true, s.onSuspicious)(h)
	h = log.AccessLog(clientIP)(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).WithComponent(log.ComponentRateLimit).ToSlice()...)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
}

func (s *Server) onSuspicious(r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request blocked",
		log.FieldPath, strings.ToValidUTF8(r.URL.Path, "?"),
		log.FieldUserAgent, r.UserAgent(),
		log.FieldClientIP, s.detector.ExtractClientIP(r))
}

// Shutdown stops background goroutines, then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
