// Package captionkit is a resilient JSON client for the Caption Generator
// service (media analysis, caption generation, musicians, venues, templates
// and analytics).
//
// The Client layers a small set of reliability primitives around net/http:
//
//   - Canonical URL building with ordered query parameters
//   - GET response caching with a per-read freshness window (max-age)
//   - Request coalescing: concurrent identical GETs share one network call
//   - Per-attempt timeouts composed with the caller's context
//   - Retry of transport failures (NetworkError) with a fixed delay
//   - Classification of failures into a closed set of ErrorKind values
//   - Prometheus metrics and optional structured debug logging
//
// Typical usage:
//
//	client := captionkit.New(
//	    captionkit.WithBaseURL("http://localhost:8000"),
//	    captionkit.WithMaxRetries(3),
//	)
//	var list captionkit.MusicianList
//	err := client.GetJSON(ctx, captionkit.EndpointMusicians, nil, &list,
//	    captionkit.WithCacheMaxAge(captionkit.CacheLong))
//
// Only GET requests are cached or coalesced. Mutations never invalidate the
// cache on their own; call ClearCache with an endpoint pattern afterwards, as
// the CaptionService helpers do.
package captionkit
