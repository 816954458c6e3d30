package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"banktransfer/internal/domain"
	"banktransfer/internal/logging"
	"banktransfer/internal/metrics"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultBackoffBase     = time.Second
	defaultBackoffCap      = 30 * time.Second
	defaultBreakerCooldown = 30 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 8 << 20

	// RequestIDHeader is sent with every attempt of a logical request.
	RequestIDHeader = "X-Request-ID"
	userAgent       = "banktransfer/1.0"
)

// Config holds transport settings. Zero durations take defaults.
type Config struct {
	BaseURL     string        // e.g. http://localhost:8123
	Timeout     time.Duration // per attempt
	MaxRetries  int           // retries after the first attempt; negative means 0
	BackoffBase time.Duration // first retry delay, doubled per retry
	BackoffCap  time.Duration // ceiling for a single delay

	// RateLimit paces attempts in requests per second; 0 disables it.
	RateLimit float64
	// BreakerThreshold opens the circuit after this many consecutive
	// transient failures; 0 disables the breaker.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	HTTP    *http.Client // optional; a fresh client is used when nil
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// Request is one logical call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	// Route labels metrics instead of Path, e.g. "/accounts/balance/{id}".
	Route  string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response is the final, successful (2xx) response of a logical call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Client sends requests with retry, backoff and failure classification.
type Client struct {
	base    string
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
	metrics *metrics.Collectors
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = cfg.BackoffBase
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		base:    strings.TrimRight(u.String(), "/"),
		cfg:     cfg,
		http:    httpClient,
		log:     logging.OrNop(cfg.Logger).Named("transport"),
		metrics: cfg.Metrics,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.BreakerThreshold > 0 {
		c.breaker = newBreaker(c.base, cfg, c.log)
	}
	return c, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string { return c.base }

// Send performs req and, when out is non-nil, decodes the JSON body into it.
//
// Errors are always *domain.Error values: Unavailable, ClientError or
// ProtocolError.
func (c *Client) Send(ctx context.Context, req Request, out any) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	route := req.Route
	if route == "" {
		route = req.Path
	}

	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, domain.WrapError(domain.KindClientError, err, "encode %s body", describe(req.Method, route))
		}
		body = b
	}

	requestID := uuid.NewString()
	log := c.log.With(
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("request_id", requestID),
	)

	var (
		resp     *Response
		attempts int
		start    = time.Now()
	)
	op := func() error {
		attempts++
		log.Debug("sending request", zap.Int("attempt", attempts))
		r, err := c.attempt(ctx, req, route, body, requestID)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.metrics.ObserveRetry(req.Method, route)
		log.Warn("transient failure, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(c.cfg.BackoffBase, c.cfg.BackoffCap), uint64(c.cfg.MaxRetries)), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	c.metrics.ObserveRequest(req.Method, route, time.Since(start))
	if err != nil {
		err = c.finalError(ctx, req.Method, route, attempts, err)
		log.Debug("request failed", zap.Int("attempts", attempts), zap.Error(err))
		return nil, err
	}

	resp.Attempts = attempts
	log.Debug("request succeeded", zap.Int("status", resp.StatusCode), zap.Int("attempts", attempts))

	if out != nil {
		if err := decode(resp, out); err != nil {
			return nil, &domain.Error{
				Kind:    domain.KindProtocolError,
				Status:  resp.StatusCode,
				Message: "malformed response to " + describe(req.Method, route),
				Err:     err,
			}
		}
	}
	return resp, nil
}

// attempt runs one round trip behind the rate limiter and circuit breaker.
func (c *Client) attempt(ctx context.Context, req Request, route string, body []byte, requestID string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(domain.WrapError(domain.KindUnavailable, err, "%s aborted", describe(req.Method, route)))
		}
	}
	if c.breaker == nil {
		return c.roundTrip(ctx, req, route, body, requestID)
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, req, route, body, requestID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.ObserveAttempt(req.Method, route, metrics.OutcomeRejected)
		return nil, backoff.Permanent(domain.WrapError(domain.KindUnavailable, err, "%s rejected", describe(req.Method, route)))
	}
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

// roundTrip performs a single HTTP exchange. Transient failures are returned
// as plain *domain.Error values; everything else is wrapped with
// backoff.Permanent so the retry loop stops.
func (c *Client) roundTrip(ctx context.Context, req Request, route string, body []byte, requestID string) (*Response, error) {
	what := describe(req.Method, route)

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.url(req), reader)
	if err != nil {
		return nil, backoff.Permanent(domain.WrapError(domain.KindClientError, err, "build %s", what))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(domain.WrapError(domain.KindUnavailable, ctx.Err(), "%s aborted", what))
		}
		outcome := metrics.OutcomeNetwork
		if attemptCtx.Err() != nil {
			outcome = metrics.OutcomeTimeout
		}
		c.metrics.ObserveAttempt(req.Method, route, outcome)
		return nil, domain.WrapError(domain.KindUnavailable, err, "%s", what)
	}
	defer httpResp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(domain.WrapError(domain.KindUnavailable, ctx.Err(), "%s aborted", what))
		}
		c.metrics.ObserveAttempt(req.Method, route, metrics.OutcomeNetwork)
		return nil, domain.WrapError(domain.KindUnavailable, err, "read %s response", what)
	}

	status := httpResp.StatusCode
	switch {
	case isTransientStatus(status):
		c.metrics.ObserveAttempt(req.Method, route, metrics.OutcomeServerError)
		return nil, &domain.Error{Kind: domain.KindUnavailable, Status: status, Message: what, Err: parseAPIError(status, b)}
	case status >= 400:
		c.metrics.ObserveAttempt(req.Method, route, metrics.OutcomeClientError)
		return nil, backoff.Permanent(&domain.Error{Kind: domain.KindClientError, Status: status, Message: what, Err: parseAPIError(status, b)})
	}

	c.metrics.ObserveAttempt(req.Method, route, metrics.OutcomeOK)
	return &Response{StatusCode: status, Header: httpResp.Header, Body: b}, nil
}

// finalError shapes the error left after the retry loop gave up.
func (c *Client) finalError(ctx context.Context, method, route string, attempts int, err error) error {
	what := describe(method, route)
	if ctx.Err() != nil && domain.KindOf(err) == "" {
		return domain.WrapError(domain.KindUnavailable, err, "%s aborted", what)
	}
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return domain.WrapError(domain.KindUnavailable, err, "%s", what)
	}
	if derr.Kind == domain.KindUnavailable && ctx.Err() == nil {
		c.log.Warn("giving up",
			zap.String("method", method),
			zap.String("path", route),
			zap.Int("attempts", attempts),
			zap.Error(derr),
		)
		return &domain.Error{
			Kind:    domain.KindUnavailable,
			Status:  derr.Status,
			Message: fmt.Sprintf("%s failed after %d attempts", what, attempts),
			Err:     derr,
		}
	}
	return derr
}

func (c *Client) url(req Request) string {
	u := c.base + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func decode(resp *Response, out any) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
