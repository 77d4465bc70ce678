package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Failure classes signaled by Fetch. Match them with errors.Is.
var (
	// ErrUnauthorized is returned for HTTP 401 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRetriesExhausted is returned when every attempt hit a retryable status.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrTimeout is returned when a connect or read timeout elapsed.
	ErrTimeout = errors.New("request timed out")

	// ErrConnection is returned for transport failures (DNS, refused, reset).
	ErrConnection = errors.New("connection failure")

	// ErrHTTPStatus is returned for any other non-2xx status.
	ErrHTTPStatus = errors.New("http error")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Kind classifies a failed fetch.
type Kind int

// Failure kinds.
const (
	KindUnauthorized Kind = iota + 1
	KindRetriesExhausted
	KindTimeout
	KindConnection
	KindHTTPStatus
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRetriesExhausted:
		return "retries_exhausted"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRetriesExhausted:
		return ErrRetriesExhausted
	case KindTimeout:
		return ErrTimeout
	case KindConnection:
		return ErrConnection
	case KindHTTPStatus:
		return ErrHTTPStatus
	default:
		return nil
	}
}

// FetchError is the single error value Fetch signals for a failed call.
// URL never carries secret query parameter values.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return fmt.Sprintf("401 Unauthorized GET request %s - check API key and application key", e.URL)
	case KindRetriesExhausted:
		return fmt.Sprintf("GET %s: retries exhausted after %d attempts (last status %d)", e.URL, e.Attempts, e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("GET %s: request timed out: %v", e.URL, e.Err)
	case KindConnection:
		return fmt.Sprintf("GET %s: connection error: %v", e.URL, e.Err)
	case KindHTTPStatus:
		return fmt.Sprintf("GET %s: API error %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("GET %s: request failed: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *FetchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ServerError represents a retryable or 5xx status seen by the circuit breaker.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// RedactURL replaces the values of the given query parameters with "***".
// Unparseable input is not echoed back.
func RedactURL(raw string, params []string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if u.RawQuery == "" || len(params) == 0 {
		return u.String()
	}

	q := u.Query()
	redacted := false
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, "***")
			redacted = true
		}
	}
	if !redacted {
		return u.String()
	}

	u.RawQuery = strings.ReplaceAll(q.Encode(), "%2A%2A%2A", "***")
	return u.String()
}
