package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dunelink/dunelink/pkg/requestid"
)

const (
	// APIKeyHeader carries the static credential on every remote call.
	APIKeyHeader = "X-Dune-API-Key"

	EndpointExecute = "execute query"
	EndpointStatus  = "execution status"
	EndpointResults = "execution results"
	EndpointLatest  = "latest results"

	defaultTimeout        = 300 * time.Second
	maxErrorBodyBytes     = 512
	breakerFailures       = 5
	breakerOpenTimeout    = 30 * time.Second
	breakerHalfOpenProbes = 1
)

// Dune is the subset of the remote analytics API the bridge consumes.
type Dune interface {
	ExecuteQuery(ctx context.Context, queryID int64) (*ExecuteResponse, error)
	GetExecutionStatus(ctx context.Context, executionID ExecutionID) (*StatusResponse, error)
	GetExecutionResults(ctx context.Context, executionID ExecutionID) (*ResultsResponse, error)
	GetLatestResults(ctx context.Context, queryID int64) (*ResultsResponse, error)
}

var _ Dune = (*DuneClient)(nil)

// DuneClient is an HTTP client for the Dune API. It is safe for concurrent use;
// all calls share one pooled *http.Client and one circuit breaker.
type DuneClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type DuneOption func(c *DuneClient)

func WithHTTPClient(httpClient *http.Client) DuneOption {
	return func(c *DuneClient) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) DuneOption {
	return func(c *DuneClient) {
		c.httpClient = NewHTTPClient(timeout)
	}
}

// WithCircuitBreaker overrides how many consecutive failures open the breaker and
// how long it stays open.
func WithCircuitBreaker(failures uint32, openTimeout time.Duration) DuneOption {
	return func(c *DuneClient) {
		c.breaker = newBreaker(failures, openTimeout)
	}
}

func NewDuneClient(baseURL, apiKey string, opts ...DuneOption) *DuneClient {
	c := &DuneClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: NewHTTPClient(defaultTimeout),
		breaker:    newBreaker(breakerFailures, breakerOpenTimeout),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewHTTPClient returns a connection-pooled client shared by concurrent executions.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func newBreaker(failures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dune",
		MaxRequests: breakerHalfOpenProbes,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client errors and calls the caller gave up on say nothing about the remote health.
		IsSuccessful: func(err error) bool {
			var abandoned *errCallerDone
			if err == nil || errors.As(err, &abandoned) {
				return true
			}
			var statusErr *ErrUnexpectedStatus
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500
			}
			var decodeErr *ErrDecode
			return errors.As(err, &decodeErr)
		},
	})
}

func (c *DuneClient) ExecuteQuery(ctx context.Context, queryID int64) (*ExecuteResponse, error) {
	var out ExecuteResponse
	path := fmt.Sprintf("/query/%s/execute", strconv.FormatInt(queryID, 10))
	if err := c.do(ctx, http.MethodPost, EndpointExecute, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DuneClient) GetExecutionStatus(ctx context.Context, executionID ExecutionID) (*StatusResponse, error) {
	var out StatusResponse
	path := fmt.Sprintf("/execution/%s/status", url.PathEscape(string(executionID)))
	if err := c.do(ctx, http.MethodGet, EndpointStatus, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DuneClient) GetExecutionResults(ctx context.Context, executionID ExecutionID) (*ResultsResponse, error) {
	var out ResultsResponse
	path := fmt.Sprintf("/execution/%s/results", url.PathEscape(string(executionID)))
	if err := c.do(ctx, http.MethodGet, EndpointResults, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DuneClient) GetLatestResults(ctx context.Context, queryID int64) (*ResultsResponse, error) {
	var out ResultsResponse
	path := fmt.Sprintf("/query/%s/results", strconv.FormatInt(queryID, 10))
	if err := c.do(ctx, http.MethodGet, EndpointLatest, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// errCallerDone marks a call that failed because the caller's context was cancelled
// or its deadline passed.
type errCallerDone struct {
	error
}

func (e *errCallerDone) Unwrap() error {
	return e.error
}

func (c *DuneClient) do(ctx context.Context, method, endpoint, path string, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		err := c.roundTrip(ctx, method, endpoint, path, out)
		if err != nil && ctx.Err() != nil {
			return nil, &errCallerDone{err}
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: remote API unavailable: %w", endpoint, err)
	}
	return err
}

func (c *DuneClient) roundTrip(ctx context.Context, method, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}

	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	requestid.Propagate(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response body: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewErrUnexpectedStatus(endpoint, resp.StatusCode, truncate(string(body), maxErrorBodyBytes))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewErrDecode(endpoint, err)
	}

	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
