package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/atwrap/go-bluesky-api-wrapper/pkg/errors"
	"golang.org/x/time/rate"
)

// Client executes XRPC calls against a single origin server.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	logger    *slog.Logger

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching the server.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 300 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 30 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 300
	DefaultRateLimitBurst    = 30
	secondsPerMinute         = 60.0
	parseFloatBitSize        = 64

	// xrpcPrefix is prepended to every endpoint NSID.
	xrpcPrefix = "xrpc/"

	contentTypeJSON = "application/json"
)

// NewClient returns a transport bound to baseURL.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, baseURL, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: "parse base URL", Err: err}
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: "base URL must be absolute"}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		logger:    logger,
		limiter:   buildLimiter(*rateCfg),
	}, nil
}

// NewRequest creates an XRPC request for the endpoint NSID. Query parameters
// and extra headers (typically Authorization) are optional.
func (c *Client) NewRequest(ctx context.Context, method, nsid string, body io.Reader, params url.Values, headers map[string]string) (*http.Request, error) {
	u, err := c.BaseURL.Parse(xrpcPrefix + nsid)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: nsid, Err: err}
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: nsid, URL: u.String(), Err: err}
	}

	req.Header.Set("User-Agent", c.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Do sends the request and decodes a JSON response body into v. A non-success
// status is translated into an *errors.APIError; transport-level failures are
// wrapped in *errors.RequestError. An empty success body decodes as "{}".
func (c *Client) Do(req *http.Request, v any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return translateError(resp)
	}

	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pkgerrs.RequestError{URL: req.URL.String(), Message: "failed to read response body", Err: err}
	}
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		bodyBytes = []byte("{}")
	}

	if err := json.Unmarshal(bodyBytes, v); err != nil {
		return &pkgerrs.RequestError{URL: req.URL.String(), Message: "failed to decode response body", Err: err}
	}

	return nil
}

// DoBlob sends the request and returns the raw response bytes.
func (c *Client) DoBlob(req *http.Request) ([]byte, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, translateError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgerrs.RequestError{URL: req.URL.String(), Message: "failed to read response body", Err: err}
	}
	return data, nil
}

// DoStream sends the request and hands the live response body to decode
// without buffering it. The body may be arbitrarily large; decode is expected
// to consume it incrementally. On a non-success status the (small) error body
// is still read fully and translated.
func (c *Client) DoStream(req *http.Request, decode func(io.Reader) error) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return translateError(resp)
	}

	return decode(resp.Body)
}

// send applies rate limiting, executes the request, and records any
// server-reported throttling headers from the response.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if err := c.waitForRateLimit(req.Context()); err != nil {
		return nil, &pkgerrs.RequestError{Operation: "rate limit wait", URL: req.URL.String(), Err: err}
	}

	if c.logger != nil {
		c.logger.Debug("xrpc request", "method", req.Method, "url", req.URL.String())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.RequestError{URL: req.URL.String(), Err: err}
	}

	c.applyRateHeaders(resp)
	return resp, nil
}

// Get issues a typed GET call against the endpoint NSID.
func Get[T any](ctx context.Context, c *Client, nsid string, params url.Values, headers map[string]string) (*T, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, nsid, nil, params, headers)
	if err != nil {
		return nil, err
	}

	var out T
	if err := c.Do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Post issues a typed POST call against the endpoint NSID. A nil body sends a
// bodyless request; otherwise body is JSON-encoded.
func Post[T any](ctx context.Context, c *Client, nsid string, body any, headers map[string]string) (*T, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &pkgerrs.RequestError{Operation: nsid, Message: "failed to encode request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := c.NewRequest(ctx, http.MethodPost, nsid, reader, nil, headers)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	var out T
	if err := c.Do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / secondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

// applyRateHeaders honors Retry-After and the ratelimit-* headers the PDS
// attaches to every response. ratelimit-reset carries a unix timestamp.
func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("RateLimit-Remaining")
	resetHeader := resp.Header.Get("RateLimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, parseFloatBitSize)
	resetEpoch, errReset := strconv.ParseInt(resetHeader, 10, 64)
	if errRemaining != nil || errReset != nil || resetEpoch <= 0 {
		return
	}

	if remaining <= 1 {
		c.deferRequests(time.Until(time.Unix(resetEpoch, 0)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}

// xrpcErrorBody is the structured error shape XRPC endpoints return.
type xrpcErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// translateError converts a non-success response into an *errors.APIError.
// It never fails: an empty body yields an error carrying only the status
// code, and an undecodable body is retained raw.
func translateError(resp *http.Response) *pkgerrs.APIError {
	apiErr := &pkgerrs.APIError{StatusCode: resp.StatusCode}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return apiErr
	}

	var decoded xrpcErrorBody
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil || decoded.Error == "" {
		apiErr.Body = string(bodyBytes)
		return apiErr
	}

	apiErr.Kind = decoded.Error
	apiErr.Message = decoded.Message
	return apiErr
}
