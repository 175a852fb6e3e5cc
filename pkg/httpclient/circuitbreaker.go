package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/checkout-wizard/pkg/errors"
)

// CircuitBreakerConfig tunes the breaker guarding checkout backend calls.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in metrics and logs.
	Name string

	// MaxRequests is how many probe requests pass through while half-open.
	MaxRequests uint32

	// Interval is the closed-state window after which counts reset.
	// Zero keeps counts for the whole closed period.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureRatio is the failure share that trips the breaker.
	FailureRatio float64

	// MinRequests is how many observations are needed before tripping.
	MinRequests uint32
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "checkout_wizard",
			Name:      "backend_breaker_state",
			Help:      "Checkout backend breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout_wizard",
			Name:      "backend_breaker_fallbacks_total",
			Help:      "Requests answered by the breaker fallback instead of the backend",
		},
		[]string{"name"},
	)
)

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ErrCircuitOpen is returned when the breaker rejects a request outright.
var ErrCircuitOpen = gobreaker.ErrOpenState

// FallbackFunc answers a request while the breaker is open. It receives the
// rejection error and returns a substitute response or error.
type FallbackFunc func(ctx context.Context, err error) (*http.Response, error)

// CircuitBreakerClient wraps the backend Client with a circuit breaker. A 5xx
// answer counts as a breaker failure and is surfaced as the mapped backend
// error instead of a response, so callers only ever see usable responses.
type CircuitBreakerClient struct {
	client   *Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	logger   *slog.Logger
	fallback FallbackFunc
	name     string
}

// NewCircuitBreakerClient puts a circuit breaker in front of client.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	breakerState.WithLabelValues(cfg.Name).Set(breakerStateValue(gobreaker.StateClosed))

	return &CircuitBreakerClient{
		client:  client,
		breaker: cb,
		logger:  logger,
		name:    cfg.Name,
	}
}

// WithFallback returns a copy of the client that answers open-circuit
// rejections with fn instead of ErrCircuitOpen.
func (c *CircuitBreakerClient) WithFallback(fn FallbackFunc) *CircuitBreakerClient {
	cpy := *c
	cpy.fallback = fn
	return &cpy
}

// Do executes an HTTP request through the circuit breaker.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, ParseResponseError(resp, c.name)
		}
		return resp, nil
	})
	if err != nil && c.fallback != nil && errors.Is(err, ErrCircuitOpen) {
		breakerFallbacks.WithLabelValues(c.name).Inc()
		c.logger.WarnContext(ctx, "backend breaker open, invoking fallback",
			slog.String("breaker", c.name),
		)
		return c.fallback(ctx, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// backendEnvelope mirrors the {success, message, data} shape the checkout
// backend wraps every response in.
type backendEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ParseResponseError consumes the body of a non-2xx backend response and
// translates it into an error that keeps the backend's message when the body
// matches the envelope shape. The body is fully read and closed.
func ParseResponseError(resp *http.Response, source string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", source, resp.StatusCode, err)
	}

	var env backendEnvelope
	if json.Unmarshal(bodyBytes, &env) == nil && env.Message != "" {
		return mapBackendError(resp.StatusCode, env.Message, source)
	}

	return fmt.Errorf("%s returned status %d: %s", source, resp.StatusCode, string(bodyBytes))
}

// mapBackendError picks the AppError matching the backend's status code.
func mapBackendError(status int, message, source string) error {
	qualified := fmt.Sprintf("%s: %s", source, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(source, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusUnprocessableEntity:
		return apperrors.OrderFailed(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	case status >= 500:
		return fmt.Errorf("%s server error (%d): %s", source, status, message)
	default:
		return &apperrors.AppError{
			Code:    "BACKEND_ERROR",
			Message: qualified,
			Status:  status,
		}
	}
}
