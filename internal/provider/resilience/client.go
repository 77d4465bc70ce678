package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	tracerName = "github.com/ambientwx/ambientwx/internal/provider/resilience"
	userAgent  = "ambientwx-go"
)

// DefaultRetryableStatusCodes are the statuses that trigger another attempt.
var DefaultRetryableStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultSensitiveParams are query parameters whose values never reach logs or errors.
var DefaultSensitiveParams = []string{"apiKey", "applicationKey"}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client in logs, metrics and the registry.
	Name string

	// MaxAttempts bounds the number of requests per Fetch, first attempt included.
	// Default: 10
	MaxAttempts int

	// BackoffFactor scales the wait before attempt n (n >= 2) to
	// BackoffFactor * 2^(n-1), so the first retry waits twice the factor.
	// Default: 100ms
	BackoffFactor time.Duration

	// MaxBackoff caps a single wait between attempts.
	// Default: 2 minutes
	MaxBackoff time.Duration

	// RetryableStatusCodes lists the statuses that are retried.
	// Default: DefaultRetryableStatusCodes
	RetryableStatusCodes []int

	// ConnectTimeout bounds dialing and the TLS handshake.
	// Default: 1 second
	ConnectTimeout time.Duration

	// ReadTimeout bounds waiting for response headers and reading the body.
	// Default: 10 seconds
	ReadTimeout time.Duration

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit rate.Limit

	// RateBurst is the limiter burst size.
	// Default: 1
	RateBurst int

	// CircuitBreaker enables a circuit breaker when non-nil.
	CircuitBreaker *CircuitBreakerConfig

	// SensitiveParams are redacted from logged and returned URLs.
	// Default: DefaultSensitiveParams
	SensitiveParams []string

	// Registry receives success/failure records when non-nil.
	Registry *Registry

	// Metrics records provider request metrics when non-nil.
	Metrics *ProviderMetrics

	// Logger for request logging.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the default retry and timeout policy.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:                 name,
		MaxAttempts:          10,
		BackoffFactor:        100 * time.Millisecond,
		MaxBackoff:           2 * time.Minute,
		RetryableStatusCodes: DefaultRetryableStatusCodes,
		ConnectTimeout:       1 * time.Second,
		ReadTimeout:          10 * time.Second,
		RateBurst:            1,
		SensitiveParams:      DefaultSensitiveParams,
		Logger:               zerolog.Nop(),
	}
}

// Request describes one GET against base URL + endpoint.
type Request struct {
	BaseURL  string
	Endpoint string
	Query    url.Values
}

// URL builds the target URL. One trailing slash is stripped from BaseURL and
// an empty Endpoint targets BaseURL itself.
func (r Request) URL() (string, error) {
	target := strings.TrimSuffix(r.BaseURL, "/")
	if r.Endpoint != "" {
		target = target + "/" + r.Endpoint
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parsing url: missing scheme or host in %q", r.BaseURL)
	}

	if len(r.Query) > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&" + r.Query.Encode()
		} else {
			u.RawQuery = r.Query.Encode()
		}
	}

	return u.String(), nil
}

// Result is a successful, fully buffered response.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// DecodeJSON unmarshals the body into v.
func (r *Result) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client is a resilient HTTP client with retry, timeout and optional
// rate limiting and circuit breaking. It is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*Result]
	limiter        *rate.Limiter
	retryable      map[int]bool
	tracer         trace.Tracer
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	// Set defaults
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Minute
	}
	if cfg.RetryableStatusCodes == nil {
		cfg.RetryableStatusCodes = DefaultRetryableStatusCodes
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 1 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.SensitiveParams == nil {
		cfg.SensitiveParams = DefaultSensitiveParams
	}

	retryable := make(map[int]bool, len(cfg.RetryableStatusCodes))
	for _, code := range cfg.RetryableStatusCodes {
		retryable[code] = true
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ReadTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport},
		retryable:  retryable,
		tracer:     otel.Tracer(tracerName),
		config:     cfg,
	}

	if cfg.CircuitBreaker != nil {
		c.circuitBreaker = NewCircuitBreaker[*Result](*cfg.CircuitBreaker)
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// Config returns a copy of the client configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

// Fetch performs one logical GET: attempts are repeated with exponential
// backoff while the status is retryable and MaxAttempts is not reached.
// Any failure is returned as a *FetchError.
func (c *Client) Fetch(ctx context.Context, r Request) (*Result, error) {
	target, err := r.URL()
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	redacted := RedactURL(target, c.config.SensitiveParams)

	logger := c.config.Logger.With().
		Str("provider", c.config.Name).
		Str("method", http.MethodGet).
		Str("url", redacted).
		Logger()

	ctx, span := c.tracer.Start(ctx, "resilience.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", c.config.Name),
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", redacted),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := c.fetch(ctx, target, redacted, logger)
	c.record(ctx, span, start, res, err)

	if err != nil {
		logger.Error().Err(err).Msg("GET request failed")
		return nil, err
	}
	return res, nil
}

func (c *Client) fetch(ctx context.Context, target, redacted string, logger zerolog.Logger) (*Result, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * c.config.BackoffFactor
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = c.config.MaxBackoff
	bo.MaxElapsedTime = 0 // Attempts are bounded by WithMaxRetries

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.config.MaxAttempts-1)), //nolint:gosec // MaxAttempts is positive
		ctx,
	)

	var (
		result     *Result
		attempts   int
		lastStatus int
	)

	operation := func() error {
		attempts++

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(c.limiterFailure(ctx, redacted, attempts, lastStatus, err))
			}
		}

		logger.Info().Int("attempt", attempts).Msg("GET request")

		res, err := c.attempt(ctx, target, redacted, attempts)
		if err != nil {
			return backoff.Permanent(err)
		}

		switch {
		case c.retryable[res.StatusCode]:
			lastStatus = res.StatusCode
			return &ServerError{StatusCode: res.StatusCode}
		case res.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(&FetchError{
				Kind:       KindUnauthorized,
				URL:        redacted,
				StatusCode: res.StatusCode,
				Attempts:   attempts,
			})
		case res.StatusCode < 200 || res.StatusCode > 299:
			return backoff.Permanent(&FetchError{
				Kind:       KindHTTPStatus,
				URL:        redacted,
				StatusCode: res.StatusCode,
				Attempts:   attempts,
			})
		}

		res.Attempts = attempts
		result = res
		return nil
	}

	notify := func(_ error, wait time.Duration) {
		logger.Info().
			Int("retry", attempts).
			Int("status", lastStatus).
			Dur("backoff", wait).
			Msgf("Retry %d: status code %d", attempts, lastStatus)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return result, nil
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return nil, fetchErr
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return nil, &FetchError{
			Kind:       KindRetriesExhausted,
			URL:        redacted,
			StatusCode: lastStatus,
			Attempts:   attempts,
			Err:        serverErr,
		}
	}

	// Context canceled or expired while waiting between attempts.
	return nil, c.transportFailure(redacted, attempts, err)
}

// attempt runs one request, through the circuit breaker when configured.
func (c *Client) attempt(ctx context.Context, target, redacted string, n int) (*Result, error) {
	if c.circuitBreaker == nil {
		return c.roundTrip(ctx, target, redacted, n)
	}

	res, err := c.circuitBreaker.Execute(func() (*Result, error) {
		r, err := c.roundTrip(ctx, target, redacted, n)
		if err != nil {
			return nil, err
		}
		// Retryable statuses count as failures for the breaker
		if c.retryable[r.StatusCode] || r.StatusCode >= 500 {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{Kind: KindConnection, URL: redacted, Attempts: n, Err: ErrCircuitOpen}
		}
		var serverErr *ServerError
		if errors.As(err, &serverErr) && res != nil {
			return res, nil
		}
		return nil, err
	}

	return res, nil
}

// roundTrip performs a single GET and buffers the whole body.
func (c *Client) roundTrip(ctx context.Context, target, redacted string, n int) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout+c.config.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, c.transportFailure(redacted, n, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportFailure(redacted, n, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportFailure(redacted, n, err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// transportFailure classifies a transport-level error as timeout or connection
// failure. The *url.Error wrapper is dropped because it embeds the raw URL.
func (c *Client) transportFailure(redacted string, attempts int, err error) *FetchError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	kind := KindConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}

	return &FetchError{Kind: kind, URL: redacted, Attempts: attempts, Err: err}
}

// limiterFailure classifies a rate limiter wait that the caller's deadline
// cannot accommodate as a timeout. The limiter reports this before the
// deadline passes, without wrapping context.DeadlineExceeded.
func (c *Client) limiterFailure(ctx context.Context, redacted string, attempts, lastStatus int, err error) *FetchError {
	fe := c.transportFailure(redacted, attempts, err)
	if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
		fe.Kind = KindTimeout
	}
	fe.StatusCode = lastStatus
	return fe
}

func (c *Client) record(ctx context.Context, span trace.Span, start time.Time, res *Result, err error) {
	attempts := 0
	if res != nil {
		attempts = res.Attempts
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		attempts = fetchErr.Attempts
		span.SetAttributes(attribute.String("error.type", fetchErr.Kind.String()))
		if fetchErr.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", fetchErr.StatusCode))
		}
	}
	span.SetAttributes(attribute.Int("http.request.attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if c.config.Metrics != nil {
		c.config.Metrics.RecordFetch(ctx, c.config.Name, time.Since(start), attempts, err)
	}

	if c.config.Registry != nil {
		if err != nil {
			c.config.Registry.RecordFailure(c.config.Name, err)
		} else {
			c.config.Registry.RecordSuccess(c.config.Name)
		}
	}
}

// CircuitBreakerState returns the current state of the circuit breaker.
// Without a breaker the client always reports closed.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	if c.circuitBreaker == nil {
		return gobreaker.Counts{}
	}
	return c.circuitBreaker.Counts()
}
