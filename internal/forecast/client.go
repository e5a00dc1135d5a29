// Package forecast calls the external forecasting service, which predicts
// the next values of a monthly series.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetflow/internal/cache"
	"budgetflow/internal/log"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 15 * time.Minute
	maxBodySize     = 1 << 20
	cacheSize       = 256
)

var (
	ErrDisabled   = errors.New("forecast: service not configured")
	ErrBadRequest = errors.New("forecast: invalid request")
)

type Request struct {
	Data            []float64 `json:"data"`
	MonthsToPredict int       `json:"monthsToPredict"`
}

type Response struct {
	Forecast []float64 `json:"forecast"`
}

// Predictor is what the session needs from the forecasting service.
type Predictor interface {
	Predict(ctx context.Context, req Request) ([]float64, error)
}

// Client posts series to the service. Identical concurrent requests share
// one round trip and answers are cached for a while.
type Client struct {
	url    string
	http   *http.Client
	group  singleflight.Group
	cache  *cache.LRUCache[[]float64]
	logger *log.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentForecast)
		}
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = cache.NewLRUCache[[]float64](cacheSize, ttl) }
}

// NewClient returns nil when url is empty so callers can treat forecasting
// as optional.
func NewClient(url string, timeout time.Duration, opts ...Option) *Client {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		cache:  cache.NewLRUCache[[]float64](cacheSize, DefaultCacheTTL),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the response cache for registration with a cache.Manager.
func (c *Client) Cache() *cache.LRUCache[[]float64] {
	return c.cache
}

func (c *Client) Predict(ctx context.Context, req Request) ([]float64, error) {
	if c == nil {
		return nil, ErrDisabled
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	key := cacheKey(req)
	if v, ok := c.cache.Get(key); ok {
		return append([]float64(nil), v...), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		out, err := c.post(ctx, req)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, out)
		return out, nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Forecast request failed", log.FieldOperation, log.OpForecast, log.FieldError, err.Error())
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "Forecast request coalesced")
	}
	return append([]float64(nil), v.([]float64)...), nil
}

func (c *Client) post(ctx context.Context, req Request) ([]float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("forecast: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("forecast: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("forecast: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("forecast: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("forecast: reading response: %w", err)
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("forecast: parsing response: %w", err)
	}
	for _, v := range out.Forecast {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("forecast: response contains non-finite values")
		}
	}
	return out.Forecast, nil
}

func validate(req Request) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: empty series", ErrBadRequest)
	}
	if req.MonthsToPredict <= 0 {
		return fmt.Errorf("%w: monthsToPredict must be positive", ErrBadRequest)
	}
	for _, v := range req.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: series contains non-finite values", ErrBadRequest)
		}
	}
	return nil
}

func cacheKey(req Request) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(req.MonthsToPredict))
	for _, v := range req.Data {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
