package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrUpstreamUnavailable is returned when the upstream keeps failing.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrCallerGone wraps the request context error when the caller hung up
	// or timed out. It never counts as an upstream failure.
	ErrCallerGone = errors.New("caller gone")
)

// hopHeaders are connection specific and never forwarded.
var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// upstreamResponse is a fully read upstream answer.
type upstreamResponse struct {
	status int
	header http.Header
	body   []byte
}

// ResilientClient calls the upstream service through a circuit breaker and
// retries idempotent requests with exponential backoff.
type ResilientClient struct {
	logger   *zap.Logger
	client   *http.Client
	upstream *url.URL
	retry    *RetryConfig
	breaker  *gobreaker.CircuitBreaker
}

func NewResilientClient(logger *zap.Logger, config *GatewayConfig, client *http.Client) (*ResilientClient, error) {
	upstream, err := url.Parse(config.UpstreamURL)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("gateway: invalid upstream url %q", config.UpstreamURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	bc := config.Breaker
	breakerState.WithLabelValues(bc.Name).Set(float64(gobreaker.StateClosed))
	settings := gobreaker.Settings{
		Name:        bc.Name,
		MaxRequests: bc.HalfOpenMaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.OpenTimeout,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCallerGone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("gateway: circuit breaker state changed",
				zap.String("breaker.name", name),
				zap.String("breaker.from", from.String()),
				zap.String("breaker.to", to.String()),
			)
		},
	}
	return &ResilientClient{
		logger:   logger,
		client:   client,
		upstream: upstream,
		retry:    &config.Retry,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// State returns the current circuit breaker state.
func (rc *ResilientClient) State() gobreaker.State {
	return rc.breaker.State()
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Do forwards the request to path on the upstream. ErrCallerGone means the
// request context ended first; any other error means the fallback should be
// served: the breaker is open or every attempt failed.
func (rc *ResilientClient) Do(r *http.Request, path string, body []byte) (*upstreamResponse, error) {
	if err := r.Context().Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallerGone, err)
	}
	result, err := rc.breaker.Execute(func() (interface{}, error) {
		resp, err := rc.doWithRetry(r, path, body)
		if err != nil && r.Context().Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCallerGone, r.Context().Err())
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*upstreamResponse), nil
}

func (rc *ResilientClient) newBackOff(ctx context.Context, method string) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rc.retry.InitialInterval
	bo.MaxInterval = rc.retry.MaxInterval
	bo.Multiplier = rc.retry.Multiplier
	bo.MaxElapsedTime = 0
	retries := rc.retry.MaxAttempts - 1
	if !isIdempotent(method) || retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
}

func (rc *ResilientClient) doWithRetry(r *http.Request, path string, body []byte) (*upstreamResponse, error) {
	var resp *upstreamResponse
	attempt := 0
	operation := func() error {
		attempt++
		res, err := rc.send(r, path, body)
		if err != nil {
			if r.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if res.status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, res.status)
		}
		resp = res
		return nil
	}
	notify := func(err error, d time.Duration) {
		upstreamRetries.Inc()
		rc.logger.Warn("gateway: upstream call failed, retrying",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.String("upstream.path", path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", d),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, rc.newBackOff(r.Context(), r.Method), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// send performs a single upstream call and reads the whole answer.
func (rc *ResilientClient) send(r *http.Request, path string, body []byte) (*upstreamResponse, error) {
	target := *rc.upstream
	target.Path = strings.TrimSuffix(rc.upstream.Path, "/") + path
	target.RawQuery = r.URL.RawQuery

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	if ip := GetRequestSourceIP(r); ip != "" {
		if prior := out.Header.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		out.Header.Set("X-Forwarded-For", ip)
	}
	if id := GetValueFromContext(r.Context(), RequestIDContextKey); id != "" {
		out.Header.Set(RequestIDHeader, id)
	}

	res, err := rc.client.Do(out)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	header := res.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	return &upstreamResponse{status: res.StatusCode, header: header, body: data}, nil
}

// fallbackReason names why the fallback was served, for logs and metrics.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return "circuit_open"
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_half_open"
	case errors.Is(err, ErrCallerGone), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "upstream_failure"
	}
}
