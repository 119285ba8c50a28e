package captionkit

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/captionkit/internal/backoff"
)

// WithBaseURL sets the URL endpoints are resolved against.
func WithBaseURL(rawURL string) Option {
	return func(c *Client) {
		u, err := url.Parse(rawURL)
		if err != nil {
			c.optionErrors = append(c.optionErrors, fmt.Sprintf("base URL %q: %v", rawURL, err))
			return
		}
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client. Its Timeout should be zero;
// attempts are bounded by the client timeout through the request context.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the default number of retries after a NetworkError.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithRetryDelay sets a fixed delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = backoff.Constant{Interval: d}
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(c *Client) {
		c.backoff = strategy
	}
}

// WithRetryCondition sets a custom retry condition. The default retries
// NetworkError only.
func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

// WithDefaultCacheMaxAge sets the max-age used by GETs that don't pass
// WithCacheMaxAge.
func WithDefaultCacheMaxAge(d time.Duration) Option {
	return func(c *Client) {
		c.cacheMaxAge = d
	}
}

// WithStore replaces the in-memory response cache.
func WithStore(store Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRateLimit throttles outgoing attempts to limit per second with the
// given burst. Waiting for a token counts against the attempt timeout.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithDefaultHeader adds a header sent with every request.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[http.CanonicalHeaderKey(key)] = value
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return WithDefaultHeader("User-Agent", ua)
}

// WithMessages sets the fallback error messages.
func WithMessages(messages Messages) Option {
	return func(c *Client) {
		c.messages = messages
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets the logger for debug output and warnings.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithCache turns response caching on for a GET.
func WithCache() RequestOption {
	return func(rc *RequestConfig) {
		rc.CacheEnabled = true
	}
}

// WithoutCache bypasses the cache for a GET; the response is not stored.
func WithoutCache() RequestOption {
	return func(rc *RequestConfig) {
		rc.CacheEnabled = false
	}
}

// WithCacheMaxAge sets the oldest cached response this GET accepts.
// Non-positive values keep the client default.
func WithCacheMaxAge(d time.Duration) RequestOption {
	return func(rc *RequestConfig) {
		if d > 0 {
			rc.CacheMaxAge = d
		}
	}
}

// WithRequestTimeout overrides the per-attempt timeout for one call.
// Non-positive values keep the client default.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(rc *RequestConfig) {
		if d > 0 {
			rc.Timeout = d
		}
	}
}

// WithRetries overrides the retry budget for one call.
func WithRetries(n int) RequestOption {
	return func(rc *RequestConfig) {
		if n >= 0 {
			rc.Retries = n
		}
	}
}

// WithHeader sets one header for a call.
func WithHeader(key, value string) RequestOption {
	return func(rc *RequestConfig) {
		if rc.Headers == nil {
			rc.Headers = make(map[string]string)
		}
		rc.Headers[http.CanonicalHeaderKey(key)] = value
	}
}

// WithHeaders sets several headers for a call.
func WithHeaders(headers map[string]string) RequestOption {
	return func(rc *RequestConfig) {
		for k, v := range headers {
			WithHeader(k, v)(rc)
		}
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.optionErrors...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateHTTPClientConfig()...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(problems, "; "))
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.retries < 0 {
		problems = append(problems, "retries must be non-negative")
	}
	if c.retries > 100 {
		problems = append(problems, "retries should not exceed 100")
	}
	if c.backoff == nil {
		problems = append(problems, "backoff strategy cannot be nil")
	}
	if c.retryCondition == nil {
		problems = append(problems, "retry condition cannot be nil")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout should not exceed 10 minutes")
	}

	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.store == nil {
		problems = append(problems, "cache store cannot be nil")
	}
	if c.cacheMaxAge <= 0 {
		problems = append(problems, "cache max-age must be positive")
	}
	if c.cacheMaxAge > 24*time.Hour {
		problems = append(problems, "cache max-age should not exceed 24 hours")
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.logger == nil {
		problems = append(problems, "logger cannot be nil")
	}
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen == nil {
		problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
	}

	return problems
}

func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

func (c *Client) validateHTTPClientConfig() []string {
	var problems []string

	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}
	if c.baseURL == nil || !c.baseURL.IsAbs() {
		problems = append(problems, "base URL must be absolute")
	}

	return problems
}
