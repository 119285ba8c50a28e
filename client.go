package captionkit

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

	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/captionkit/internal/backoff"
	"github.com/ambiyansyah-risyal/captionkit/internal/singleflight"
)

// Client defaults.
const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Client is a resilient JSON client that layers caching, request
// coalescing, timeouts, retries and error classification around the
// standard net/http Client. It is safe for concurrent use; its cache and
// in-flight registry belong to the instance.
type Client struct {
	httpClient      *http.Client
	baseURL         *url.URL
	timeout         time.Duration
	retries         int
	backoff         backoff.Strategy
	retryCondition  RetryCondition
	cacheMaxAge     time.Duration
	store           Store
	pending         *singleflight.Group
	middleware      []Middleware
	limiter         *rate.Limiter
	headers         map[string]string
	messages        Messages
	metrics         *MetricsCollector
	debug           *DebugConfig
	logger          Logger
	optionErrors    []string
	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors. An
// invalid client fails every request with the validation error.
func New(options ...Option) *Client {
	base, _ := url.Parse(DefaultBaseURL)

	client := &Client{
		httpClient:     &http.Client{},
		baseURL:        base,
		timeout:        DefaultTimeout,
		retries:        DefaultRetries,
		backoff:        backoff.Constant{Interval: DefaultRetryDelay},
		retryCondition: DefaultRetryCondition,
		cacheMaxAge:    CacheMedium,
		store:          NewInMemoryCache(),
		pending:        singleflight.New(),
		middleware:     []Middleware{},
		headers: map[string]string{
			"User-Agent": "captionkit/" + Version,
		},
		messages: DefaultMessages,
		debug:    DefaultDebugConfig(),
		logger:   NopLogger(),
	}

	for _, option := range options {
		option(client)
	}
	if client.debug == nil {
		client.debug = &DebugConfig{}
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get fetches endpoint with params and returns the raw JSON body. Responses
// are cached and concurrent identical calls share one network request.
func (c *Client) Get(ctx context.Context, endpoint string, params Params, opts ...RequestOption) (json.RawMessage, error) {
	cfg := c.newRequestConfig(true, opts)
	d, err := c.newDescriptor(http.MethodGet, endpoint, params, nil, cfg)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, d)
}

// Post sends body as JSON, or as-is when it is a *RawBody.
func (c *Client) Post(ctx context.Context, endpoint string, body interface{}, opts ...RequestOption) (json.RawMessage, error) {
	return c.send(ctx, http.MethodPost, endpoint, body, opts)
}

// Put sends body as JSON, or as-is when it is a *RawBody.
func (c *Client) Put(ctx context.Context, endpoint string, body interface{}, opts ...RequestOption) (json.RawMessage, error) {
	return c.send(ctx, http.MethodPut, endpoint, body, opts)
}

// Delete issues a DELETE without a body.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (json.RawMessage, error) {
	return c.send(ctx, http.MethodDelete, endpoint, nil, opts)
}

func (c *Client) send(ctx context.Context, method, endpoint string, body interface{}, opts []RequestOption) (json.RawMessage, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	cfg := c.newRequestConfig(false, opts)
	d, err := c.newDescriptor(method, endpoint, nil, payload, cfg)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, d)
}

func (c *Client) newRequestConfig(cache bool, opts []RequestOption) RequestConfig {
	cfg := RequestConfig{
		CacheEnabled: cache,
		CacheMaxAge:  c.cacheMaxAge,
		Timeout:      c.timeout,
		Retries:      c.retries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c *Client) newDescriptor(method, endpoint string, params Params, payload *RawBody, cfg RequestConfig) (*requestDescriptor, error) {
	fullURL, err := c.BuildURL(endpoint, params)
	if err != nil {
		return nil, &Error{
			Kind:      KindUnknown,
			Message:   err.Error(),
			Method:    method,
			Endpoint:  endpoint,
			Timestamp: time.Now(),
			Cause:     err,
		}
	}

	d := &requestDescriptor{
		method:   method,
		url:      fullURL,
		endpoint: metricsEndpoint(fullURL),
		config:   cfg,
	}
	if payload != nil {
		d.body = payload.Data
		d.contentType = payload.ContentType
	}
	if method == http.MethodGet && payload == nil {
		d.key = CacheKey(fullURL, KeyOptions{Method: method, Params: params, Headers: cfg.Headers})
	}
	return d, nil
}

// request is the dispatcher: cache, then coalescing, then the retry loop.
func (c *Client) request(ctx context.Context, d *requestDescriptor) (json.RawMessage, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	requestID := c.newRequestID()
	if c.debugEnabled(c.debug.LogRequests) {
		c.logger.Debug("Starting request", "requestID", requestID, "method", d.method, "url", d.url)
	}

	if d.cacheable() {
		if value, ok := c.cacheLookup(ctx, d, requestID); ok {
			return value, nil
		}
	}

	var (
		value json.RawMessage
		err   error
	)
	if d.coalescable() {
		value, err = c.coalesce(ctx, d, requestID)
	} else {
		value, err = c.doWithRetry(ctx, d, requestID)
	}

	if err != nil {
		c.metrics.RecordError(KindOf(err), d.method, d.endpoint)
		if c.debugEnabled(c.debug.LogRequests) {
			c.logger.Debug("Request failed", "requestID", requestID, "error", err.Error())
		}
		return nil, err
	}
	return value, nil
}

// doWithRetry runs attempts until one succeeds, a non-retryable error
// occurs, or the retry budget is spent. GETs re-check the cache before
// every retry.
func (c *Client) doWithRetry(ctx context.Context, d *requestDescriptor, requestID string) (json.RawMessage, error) {
	maxRetries := d.config.Retries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(d.method, d.endpoint, attempt)
			if c.debugEnabled(c.debug.LogRetries) {
				c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", maxRetries, "url", d.url)
			}
			if d.cacheable() {
				if value, ok := c.cacheLookup(ctx, d, requestID); ok {
					return value, nil
				}
			}
		}

		value, cerr := c.attempt(ctx, d, requestID)
		if cerr == nil {
			if d.cacheable() {
				c.cacheStore(ctx, d, value, requestID)
			}
			return value, nil
		}

		cerr.RequestID = requestID
		cerr.Attempt = attempt + 1
		cerr.MaxRetries = maxRetries

		if attempt >= maxRetries || !c.retryCondition(cerr) {
			return nil, cerr
		}

		delay := c.backoff.Delay(attempt + 1)
		if c.debugEnabled(c.debug.LogRetries) {
			c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "error", cerr.Error())
		}
		if err := sleepContext(ctx, delay); err != nil {
			return nil, c.newError(KindTimeout, d, 0, "", err)
		}
	}
}

// attempt performs one network round trip under its own timeout.
func (c *Client) attempt(ctx context.Context, d *requestDescriptor, requestID string) (json.RawMessage, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			return nil, c.newError(KindTimeout, d, 0, "", err)
		}
	}

	req, err := c.newHTTPRequest(attemptCtx, d)
	if err != nil {
		return nil, c.newError(KindUnknown, d, 0, "", err)
	}

	start := time.Now()
	c.metrics.RecordRequestStart(d.method, d.endpoint)
	resp, err := c.executeMiddleware(req)
	c.metrics.RecordRequestEnd(d.method, d.endpoint)

	if err != nil {
		c.metrics.RecordRequest(d.method, d.endpoint, 0, time.Since(start))
		if attemptCtx.Err() != nil {
			return nil, c.newError(KindTimeout, d, 0, "", attemptCtx.Err())
		}
		return nil, c.newError(KindNetworkError, d, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	c.metrics.RecordRequest(d.method, d.endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		if attemptCtx.Err() != nil {
			return nil, c.newError(KindTimeout, d, resp.StatusCode, "", attemptCtx.Err())
		}
		return nil, c.newError(KindNetworkError, d, resp.StatusCode, "", err)
	}
	if len(body) > maxResponseBytes {
		return nil, c.newError(KindUnknown, d, resp.StatusCode, "",
			fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseBytes))
	}

	if c.debugEnabled(c.debug.LogRequests) {
		c.logger.Debug("Response received", "requestID", requestID, "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))
	}

	return c.classify(d, resp.StatusCode, body)
}

// classify turns a completed response into a value or a typed error.
func (c *Client) classify(d *requestDescriptor, status int, body []byte) (json.RawMessage, *Error) {
	if status >= 200 && status < 300 {
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(trimmed) {
			return nil, c.newError(KindNetworkError, d, status, "", errors.New("response body is not valid JSON"))
		}
		return json.RawMessage(trimmed), nil
	}

	return nil, c.newError(kindForStatus(status), d, status, extractDetail(body), nil)
}

func (c *Client) newError(kind ErrorKind, d *requestDescriptor, status int, detail string, cause error) *Error {
	message := detail
	if message == "" {
		message = c.messages.For(kind)
	}
	return &Error{
		Kind:       kind,
		Message:    message,
		Detail:     detail,
		StatusCode: status,
		Method:     d.method,
		URL:        d.url,
		Endpoint:   d.endpoint,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, d *requestDescriptor) (*http.Request, error) {
	var body io.Reader
	if d.body != nil {
		body = bytes.NewReader(d.body)
	}

	req, err := http.NewRequestWithContext(ctx, d.method, d.url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if d.contentType != "" {
		req.Header.Set("Content-Type", d.contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range d.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// encodeBody prepares a request body. nil means no body.
func encodeBody(body interface{}) (*RawBody, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case *RawBody:
		return b, nil
	case RawBody:
		return &b, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("captionkit: encoding request body: %w", err)
	}
	return &RawBody{ContentType: "application/json", Data: data}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// BaseURL returns the URL endpoints are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// metricsEndpoint reduces a URL to host and path for metric labels.
func metricsEndpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
