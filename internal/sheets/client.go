// Package sheets reads table values from the spreadsheet data endpoint.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/our-story/internal/circuitbreaker"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/observability"
)

// DefaultBaseURL is the Google Sheets v4 spreadsheets collection.
const DefaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// ValuesFetcher returns the raw values of one named table.
type ValuesFetcher interface {
	Values(ctx context.Context, table string) (models.Table, error)
}

var (
	ErrBadRequest      = errors.New("bad request")
	ErrTableNotFound   = errors.New("table not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrTransport       = errors.New("transport failure")
	ErrNoValues        = errors.New("response has no values")
	ErrTooFewRows      = errors.New("table has no data rows")
	ErrCircuitOpen     = circuitbreaker.ErrOpen
)

// Config configures a Client. Zero retry fields fall back to 3 attempts, 100ms base, 2s max.
type Config struct {
	BaseURL        string
	SpreadsheetID  string
	APIKey         string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Client fetches table values over HTTP with retry and an optional circuit breaker.
type Client struct {
	baseURL        string
	spreadsheetID  string
	apiKey         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		spreadsheetID:  cfg.SpreadsheetID,
		apiKey:         cfg.APIKey,
		timeout:        cfg.Timeout,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.retryAttempts <= 0 {
		c.retryAttempts = 3
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = 100 * time.Millisecond
	}
	if c.retryMaxDelay < c.retryBaseDelay {
		c.retryMaxDelay = 2 * time.Second
	}
	c.client = &http.Client{Timeout: c.timeout}
	return c
}

// SetCircuitBreaker wraps every Values call in cb. Nil disables it.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type valuesResponse struct {
	Range  string      `json:"range"`
	Values *[][]string `json:"values"`
}

// Values fetches one table. The first returned row is the header row; at least one data row
// is guaranteed on success.
func (c *Client) Values(ctx context.Context, table string) (models.Table, error) {
	var out models.Table
	var fetchErr error
	// Only upstream failures count against the breaker; a table with bad content is
	// a failure of that table alone.
	fetch := func() error {
		out, fetchErr = c.valuesWithRetry(ctx, table)
		if fetchErr != nil && isRetryable(fetchErr) {
			return fetchErr
		}
		return nil
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, fetch)
	} else {
		err = fetch()
	}
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		return models.Table{}, fmt.Errorf("fetch table %q: %w", table, err)
	}
	return out, nil
}

func (c *Client) valuesWithRetry(ctx context.Context, table string) (models.Table, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.SheetFetchRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return models.Table{}, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		result, err := c.callAPI(ctx, table)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return models.Table{}, err
		}
	}
	return models.Table{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *Client) callAPI(ctx context.Context, table string) (models.Table, error) {
	start := time.Now()
	defer func() {
		observability.SheetFetchDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	}()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.valuesURL(table), nil)
	if err != nil {
		observability.SheetFetchTotal.WithLabelValues(table, "error").Inc()
		return models.Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.SheetFetchTotal.WithLabelValues(table, "error").Inc()
		return models.Table{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	observability.SheetFetchTotal.WithLabelValues(table, statusLabel(resp.StatusCode)).Inc()
	if err := handleErrorResponse(resp); err != nil {
		return models.Table{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Table{}, fmt.Errorf("%w: read response body: %w", ErrTransport, err)
	}

	var apiResp valuesResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Table{}, fmt.Errorf("parse response: %w", err)
	}
	if apiResp.Values == nil {
		return models.Table{}, ErrNoValues
	}
	if len(*apiResp.Values) < 2 {
		return models.Table{}, fmt.Errorf("%w: got %d rows", ErrTooFewRows, len(*apiResp.Values))
	}
	return models.Table{Name: table, Values: *apiResp.Values, FetchedAt: time.Now()}, nil
}

func (c *Client) valuesURL(table string) string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	return c.baseURL + "/" + url.PathEscape(c.spreadsheetID) + "/values/" + url.PathEscape(table) + "?" + q.Encode()
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamFailure) ||
		errors.Is(err, ErrTransport)
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrTableNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrBadRequest, resp.StatusCode)
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}
