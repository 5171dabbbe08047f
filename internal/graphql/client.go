package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrRequestFailed is returned when every attempt of a request fails
var ErrRequestFailed = errors.New("graphql request failed")

// AcceptHeader is the media type requested from the server
const AcceptHeader = "application/graphql-response+json"

// HTTPError is a non-2xx response from the server
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("network response was not ok: HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the server may succeed on a later attempt
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	URL               string
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerSecond float64 // 0 means unlimited
	RetryDelay        time.Duration
	Breaker           BreakerConfig
}

// Client executes queries and mutations over HTTP
type Client struct {
	url         string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
	breaker     *breaker
	logger      zerolog.Logger
}

// NewClient creates a new Client
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = 200 * time.Millisecond
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		url: cfg.URL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter:     limiter,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		breaker:     newBreaker(cfg.Breaker),
		logger:      logger.With().Str("component", "graphql-client").Logger(),
	}
}

// Do executes the request and returns the data field of the result
func (c *Client) Do(ctx context.Context, req *Request) (json.RawMessage, error) {
	if !c.breaker.allow() {
		return nil, ErrCircuitOpen
	}

	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := c.execute(ctx, req)
		if err == nil {
			c.breaker.success()
			return c.result(resp)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if !isRetryable(err) {
			// the server answered
			c.breaker.success()
			return nil, err
		}

		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("maxAttempts", c.maxAttempts).
			Err(err).
			Msg("request failed, retrying")
	}

	c.breaker.failure()
	if c.breaker.open() {
		c.logger.Warn().Err(lastErr).Msg("server unreachable, circuit opened")
	}
	return nil, fmt.Errorf("%w: %v", ErrRequestFailed, lastErr)
}

// Decode executes the request and unmarshals the data field into out
func (c *Client) Decode(ctx context.Context, req *Request, out any) error {
	data, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) result(resp *Response) (json.RawMessage, error) {
	if len(resp.Errors) > 0 {
		if !resp.HasData() {
			return nil, resp.Errors
		}
		c.logger.Debug().
			Err(resp.Errors).
			Msg("partial result with errors")
	}
	if !resp.HasData() {
		return nil, errors.New("graphql: response has no data")
	}
	return resp.Data, nil
}

func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", AcceptHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	gqlResp, err := ParseResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("request succeeded")

	return gqlResp, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}
