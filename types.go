package captionkit

import (
	"net/http"
	"time"
)

// Param is a single query parameter. Params keep their insertion order.
type Param struct {
	Key   string
	Value interface{}
}

// Params is an ordered list of query parameters. Entries whose Value is nil
// (including typed nil pointers, maps and slices) are omitted from the URL.
type Params []Param

// P builds a Param.
func P(key string, value interface{}) Param {
	return Param{Key: key, Value: value}
}

// RequestConfig holds the per-call settings of a request. Verb methods fill
// it from client defaults before applying RequestOptions.
type RequestConfig struct {
	// CacheEnabled controls cache reads and writes. Only GET honours it.
	CacheEnabled bool
	// CacheMaxAge is the oldest cached response this call accepts.
	CacheMaxAge time.Duration
	// Timeout bounds each attempt. The caller's context may end it sooner.
	Timeout time.Duration
	// Retries is the number of extra attempts after a NetworkError.
	Retries int
	// Headers are sent with the request and take part in the cache key.
	Headers map[string]string
}

// RequestOption adjusts a RequestConfig for a single call.
type RequestOption func(*RequestConfig)

// Option represents a client configuration option.
type Option func(*Client)

// RetryCondition decides whether a classified failure is retried.
type RetryCondition func(err *Error) bool

// Middleware represents a middleware function wrapped around the transport.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// requestDescriptor is everything the dispatcher needs for one call. It is
// built by the verb methods and never mutated after dispatch starts.
type requestDescriptor struct {
	method      string
	url         string
	endpoint    string
	key         string
	body        []byte
	contentType string
	config      RequestConfig
}

// coalescable reports whether d has a cache key, which only bodiless GETs get.
func (d *requestDescriptor) coalescable() bool {
	return d.key != ""
}

func (d *requestDescriptor) cacheable() bool {
	return d.coalescable() && d.config.CacheEnabled
}
