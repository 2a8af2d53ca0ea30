package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/pulseform/servicecore/internal/infrastructure/logging"
	"github.com/pulseform/servicecore/internal/infrastructure/monitoring"
	"github.com/pulseform/servicecore/internal/infrastructure/resilience"
)

// Config defines outbound call behavior.
type Config struct {
	// MaxRetries is the total number of attempts per call
	MaxRetries int
	// RetryDelay is the fixed delay between attempts
	RetryDelay time.Duration
	// Timeout is the per-attempt timeout
	Timeout time.Duration
	// IdleConnTimeout is how long idle keep-alive connections are retained
	IdleConnTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	return c
}

// Request describes a single outbound call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	// Body is JSON-encoded when non-nil
	Body any
	// Idempotent overrides the method-based idempotency inference,
	// e.g. for creation calls made safe by an idempotency key
	Idempotent *bool
}

func (r Request) idempotent() bool {
	if r.Idempotent != nil {
		return *r.Idempotent
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Response is the outcome of a successful call.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Decode unmarshals the JSON response body into v.
func (r *Response) Decode(v any) error {
	return sonic.Unmarshal(r.Body, v)
}

// Client performs outbound calls with bounded retries and circuit-breaker
// protection. One breaker exists per named downstream dependency; the
// transport and its keep-alive pool are shared.
type Client struct {
	rest     *resty.Client
	breakers *resilience.Registry
	cfg      Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates a resilient client backed by a pooled keep-alive transport
func New(cfg Config, breakers *resilience.Registry, logger *logging.Logger) *Client {
	cfg = cfg.withDefaults()

	// retryablehttp furnishes the tuned pooled transport; its own retry
	// loop stays disabled so Call owns retry policy and breaker signals.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	transport := retryClient.HTTPClient.Transport
	if t, ok := transport.(*http.Transport); ok {
		t.IdleConnTimeout = cfg.IdleConnTimeout
		t.MaxIdleConnsPerHost = 10
	}

	rest := resty.New()
	rest.
		SetTransport(transport).
		SetRetryCount(0).
		SetHeader("User-Agent", "servicecore/1.0")
	rest.JSONMarshal = sonic.Marshal
	rest.JSONUnmarshal = sonic.Unmarshal

	return &Client{
		rest:     rest,
		breakers: breakers,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithMetrics attaches a metrics collector
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// Breakers exposes the breaker registry for introspection endpoints
func (c *Client) Breakers() *resilience.Registry {
	return c.breakers
}

// Call performs an outbound call to the named dependency. The circuit
// breaker is consulted first: a denied call returns ErrCircuitOpen with
// zero network I/O and zero retries. Only the final outcome, after the
// retry loop has run its course, is reported back to the breaker.
func (c *Client) Call(ctx context.Context, dependency string, req Request) (*Response, error) {
	br := c.breakers.Get(dependency)

	ok, state, gen := br.Allow()
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordBreakerRejection(dependency)
		}
		c.logger.Debug("call rejected by circuit breaker",
			zap.String("dependency", dependency),
		)
		return nil, fmt.Errorf("call %s: %w", dependency, resilience.ErrCircuitOpen)
	}

	start := time.Now()
	resp, err := c.attemptLoop(ctx, dependency, req)
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordOutbound(dependency, outcomeLabel(err), duration)
	}

	if err == nil {
		br.RecordSuccess(gen)
		return resp, nil
	}

	// A caller-initiated abort says nothing about dependency health, but
	// an abandoned half-open probe must release its slot or no other call
	// will ever be admitted to probe.
	if errors.Is(err, context.Canceled) {
		if state == resilience.StateHalfOpen {
			br.CancelProbe(gen)
		}
		return nil, err
	}

	if countsAsBreakerFailure(err) {
		br.RecordFailure(gen)
		c.logger.Warn("outbound call failed",
			zap.String("dependency", dependency),
			zap.String("method", req.Method),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		// 4xx: the dependency is healthy, the request was at fault.
		br.RecordSuccess(gen)
	}
	return nil, err
}

// attemptLoop runs up to MaxRetries attempts, classifying each failure
// and deciding whether the retry policy allows another try.
func (c *Client) attemptLoop(ctx context.Context, dependency string, req Request) (*Response, error) {
	idempotent := req.idempotent()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if c.metrics != nil {
				c.metrics.RecordRetry(dependency)
			}
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, classifyTransport(dependency, ctx.Err())
				}
				return nil, fmt.Errorf("call %s: %w", dependency, ctx.Err())
			case <-time.After(c.cfg.RetryDelay):
			}
			c.logger.Debug("retrying outbound call",
				zap.String("dependency", dependency),
				zap.Int("attempt", attempt),
			)
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("call %s: %w", dependency, ctx.Err())
			}
			lastErr = classifyTransport(dependency, err)
			if !retryAllowed(err, idempotent) {
				return nil, lastErr
			}
			continue
		}

		if resp.Status >= 200 && resp.Status < 300 {
			return resp, nil
		}

		lastErr = &StatusError{Dependency: dependency, Status: resp.Status, Body: resp.Body}
		if resp.Status < 500 || !idempotent {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// attempt performs a single request with the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	r := c.rest.R().SetContext(attemptCtx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:  resp.StatusCode(),
		Headers: resp.Header(),
		Body:    resp.Body(),
	}, nil
}

// classifyTransport wraps a raw transport error into the taxonomy.
func classifyTransport(dependency string, err error) error {
	if isTimeoutErr(err) {
		return fmt.Errorf("call %s: %w: %v", dependency, ErrTimeout, err)
	}
	return fmt.Errorf("call %s: %w: %v", dependency, ErrTransport, err)
}

// retryAllowed decides whether the raw failure of one attempt may be
// retried. Idempotent requests retry on any transport error or timeout.
// Non-idempotent requests retry only when the failure clearly happened
// before the request reached the dependency; a timeout is ambiguous
// (the request may have been applied) and is never retried for them.
func retryAllowed(err error, idempotent bool) bool {
	if idempotent {
		return true
	}
	return isPreDispatch(err)
}
