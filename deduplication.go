package captionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ambiyansyah-risyal/captionkit/internal/singleflight"
)

// coalesce runs d through the in-flight registry. The first caller for a
// key becomes the owner and performs the request; later callers with the
// same key wait for and receive the owner's settlement. The key is released
// as soon as the owner settles, after a successful result is cached.
func (c *Client) coalesce(ctx context.Context, d *requestDescriptor, requestID string) (json.RawMessage, error) {
	v, err, shared := c.pending.Do(ctx, d.key, func() (interface{}, error) {
		c.metrics.RecordPendingRequests(c.pending.Len())
		defer func() {
			// The key is still registered while fn runs.
			c.metrics.RecordPendingRequests(c.pending.Len() - 1)
		}()
		return c.doWithRetry(ctx, d, requestID)
	})

	if shared {
		c.metrics.RecordDeduplicationHit(d.method, d.endpoint)
		if c.debugEnabled(c.debug.LogRequests) {
			c.logger.Debug("Deduplication hit", "requestID", requestID, "cacheKey", d.key)
		}
	}

	if err != nil {
		return nil, c.coalescedError(d, err)
	}

	value, _ := v.(json.RawMessage)
	if shared {
		value = bytes.Clone(value)
	}
	return value, nil
}

// coalescedError maps failures that did not come from the dispatcher.
func (c *Client) coalescedError(d *requestDescriptor, err error) error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.newError(KindTimeout, d, 0, "", err)
	}
	if errors.Is(err, singleflight.ErrPanicked) {
		return c.newError(KindUnknown, d, 0, "", err)
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Method: d.method, URL: d.url, Timestamp: time.Now(), Cause: err}
}

// PendingRequests reports how many distinct GETs are in flight.
func (c *Client) PendingRequests() int {
	return c.pending.Len()
}
