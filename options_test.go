package captionkit

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/captionkit/internal/backoff"
)

func TestWithMaxRetries(t *testing.T) {
	client := New(WithMaxRetries(5))

	if client.retries != 5 {
		t.Errorf("Expected retries=5, got %d", client.retries)
	}
}

func TestWithRetryDelay(t *testing.T) {
	client := New(WithRetryDelay(250 * time.Millisecond))

	for attempt := 1; attempt <= 3; attempt++ {
		if got := client.backoff.Delay(attempt); got != 250*time.Millisecond {
			t.Errorf("Expected constant 250ms delay at attempt %d, got %v", attempt, got)
		}
	}
}

func TestWithBackoff(t *testing.T) {
	strategy := backoff.Exponential{Initial: 10 * time.Millisecond, Max: time.Second, Multiplier: 2}
	client := New(WithBackoff(strategy))

	if _, ok := client.backoff.(backoff.Exponential); !ok {
		t.Errorf("Expected exponential strategy, got %T", client.backoff)
	}
}

func TestWithTimeout(t *testing.T) {
	client := New(WithTimeout(5 * time.Second))

	if client.timeout != 5*time.Second {
		t.Errorf("Expected timeout=5s, got %v", client.timeout)
	}
}

func TestWithBaseURL(t *testing.T) {
	client := New(WithBaseURL("https://captions.example.com/api/"))

	if client.BaseURL() != "https://captions.example.com/api/" {
		t.Errorf("Unexpected base URL %s", client.BaseURL())
	}

	bad := New(WithBaseURL("::not a url"))
	if bad.IsValid() {
		t.Error("Expected invalid base URL to fail validation")
	}

	relative := New(WithBaseURL("/api"))
	if relative.IsValid() {
		t.Error("Expected relative base URL to fail validation")
	}
}

func TestWithDefaultHeaders(t *testing.T) {
	client := New(WithDefaultHeader("x-api-key", "secret"), WithUserAgent("captionctl/1.0"))

	if client.headers["X-Api-Key"] != "secret" {
		t.Errorf("Expected canonical header key, got %v", client.headers)
	}
	if client.headers["User-Agent"] != "captionctl/1.0" {
		t.Errorf("Expected overridden User-Agent, got %q", client.headers["User-Agent"])
	}
}

func TestWithRateLimit(t *testing.T) {
	client := New(WithRateLimit(rate.Limit(10), 2))

	if client.limiter == nil {
		t.Fatal("Expected limiter to be configured")
	}
	if client.limiter.Burst() != 2 {
		t.Errorf("Expected burst 2, got %d", client.limiter.Burst())
	}
}

func TestRateLimitWaitCountsAsTimeout(t *testing.T) {
	client, srv := newFakeClient(t, WithRateLimit(rate.Every(time.Hour), 1))
	ctx := context.Background()

	if _, err := client.Get(ctx, "/", nil, WithoutCache()); err != nil {
		t.Fatalf("First request should pass: %v", err)
	}
	_, err := client.Get(ctx, "/", nil, WithoutCache(), WithRequestTimeout(20*time.Millisecond))
	if !IsKind(err, KindTimeout) {
		t.Errorf(expectedKindMsg, KindTimeout, KindOf(err), err)
	}
	if n := srv.Calls(http.MethodGet, "/"); n != 1 {
		t.Errorf(expectedCallCountMsg, 1, n)
	}
}

func TestWithStoreAndMaxAge(t *testing.T) {
	cache := NewInMemoryCache()
	client := New(WithStore(cache), WithDefaultCacheMaxAge(CacheLong))

	if client.store != cache {
		t.Error("Expected custom store")
	}
	if client.cacheMaxAge != CacheLong {
		t.Errorf("Expected default max-age %v, got %v", CacheLong, client.cacheMaxAge)
	}
}

func TestWithDebug(t *testing.T) {
	client := New(WithDebug())

	if !client.debug.Enabled {
		t.Error("Expected debug enabled")
	}
	if client.newRequestID() == "" {
		t.Error("Expected generated request ID")
	}

	custom := New(WithDebug(), WithRequestIDGenerator(func() string { return "req-1" }))
	if custom.newRequestID() != "req-1" {
		t.Errorf("Expected custom request ID, got %q", custom.newRequestID())
	}
}

func TestWithDebugConfigNil(t *testing.T) {
	client := New(WithDebugConfig(nil))

	if !client.IsValid() {
		t.Fatalf("Expected valid client: %v", client.ValidationError())
	}
	if client.debugEnabled(true) {
		t.Error("Expected debug disabled")
	}
}

func TestDebugLogging(t *testing.T) {
	client, _ := newFakeClient(t, WithDebug(), WithRequestIDGenerator(func() string { return "req-42" }))
	var buf bytes.Buffer
	client.logger = NewZerologLogger(zerolog.New(&buf))

	if _, err := client.Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Starting request", "Cache miss", "Response cached", "req-42"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q:\n%s", want, out)
		}
	}
}

func TestRequestOptions(t *testing.T) {
	client := New()
	cfg := client.newRequestConfig(true, []RequestOption{
		WithCacheMaxAge(CacheLong),
		WithRequestTimeout(2 * time.Second),
		WithRetries(0),
		WithHeaders(map[string]string{"authorization": "Bearer x"}),
		nil,
	})

	if !cfg.CacheEnabled || cfg.CacheMaxAge != CacheLong {
		t.Errorf("Unexpected cache config %+v", cfg)
	}
	if cfg.Timeout != 2*time.Second || cfg.Retries != 0 {
		t.Errorf("Unexpected timeout/retries %+v", cfg)
	}
	if cfg.Headers["Authorization"] != "Bearer x" {
		t.Errorf("Expected canonical header, got %v", cfg.Headers)
	}

	ignored := client.newRequestConfig(false, []RequestOption{
		WithCacheMaxAge(-time.Second),
		WithRequestTimeout(0),
		WithRetries(-1),
	})
	if ignored.CacheEnabled {
		t.Error("Expected mutation default to bypass cache")
	}
	if ignored.CacheMaxAge != client.cacheMaxAge || ignored.Timeout != client.timeout || ignored.Retries != client.retries {
		t.Errorf("Expected invalid overrides to keep defaults, got %+v", ignored)
	}
}

func TestValidateConfiguration(t *testing.T) {
	testCases := []struct {
		name    string
		options []Option
		want    string
	}{
		{"negative retries", []Option{WithMaxRetries(-1)}, "retries must be non-negative"},
		{"too many retries", []Option{WithMaxRetries(101)}, "retries should not exceed 100"},
		{"zero timeout", []Option{WithTimeout(0)}, "timeout must be positive"},
		{"huge timeout", []Option{WithTimeout(time.Hour)}, "timeout should not exceed 10 minutes"},
		{"nil backoff", []Option{WithBackoff(nil)}, "backoff strategy cannot be nil"},
		{"nil condition", []Option{WithRetryCondition(nil)}, "retry condition cannot be nil"},
		{"nil store", []Option{WithStore(nil)}, "cache store cannot be nil"},
		{"zero max-age", []Option{WithDefaultCacheMaxAge(0)}, "cache max-age must be positive"},
		{"huge max-age", []Option{WithDefaultCacheMaxAge(48 * time.Hour)}, "cache max-age should not exceed 24 hours"},
		{"nil logger", []Option{WithLogger(nil)}, "logger cannot be nil"},
		{"nil middleware", []Option{WithMiddleware(nil)}, "middleware[0] cannot be nil"},
		{"nil http client", []Option{WithHTTPClient(nil)}, "HTTP client cannot be nil"},
		{"debug without id generator", []Option{WithDebug(), WithRequestIDGenerator(nil)}, "RequestIDGen"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := New(tc.options...)
			err := client.ValidationError()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestValidateConfigurationCollectsAllProblems(t *testing.T) {
	client := New(WithMaxRetries(-1), WithTimeout(0), WithStore(nil))

	err := client.ValidationError()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if n := strings.Count(err.Error(), ";"); n != 2 {
		t.Errorf("Expected 3 problems, got %v", err)
	}
}
