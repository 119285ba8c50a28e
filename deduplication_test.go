package captionkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// blockingServer answers every request only after release is closed.
func blockingServer(t *testing.T, status int, body string) (*httptest.Server, *int32, chan struct{}) {
	t.Helper()
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &calls, release
}

func waitForWaiters(t *testing.T, c *Client, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.pending.Waiters(key) < n {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d waiters, have %d", n, c.pending.Waiters(key))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	server, calls, release := blockingServer(t, http.StatusOK, `{"musicians":[],"count":0}`)
	client := New(WithBaseURL(server.URL), WithStore(NewInMemoryCache()))
	key := CacheKey(server.URL+"/musicians", KeyOptions{})

	const callers = 10
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := client.Get(context.Background(), "/musicians", nil)
			results[i], errs[i] = string(value), err
		}(i)
	}

	waitForWaiters(t, client, key, callers-1)
	if client.PendingRequests() != 1 {
		t.Errorf("Expected 1 pending request, got %d", client.PendingRequests())
	}
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf(expectedCallCountMsg, 1, n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Errorf("Caller %d failed: %v", i, errs[i])
		}
		if results[i] != `{"musicians":[],"count":0}` {
			t.Errorf("Caller %d got %s", i, results[i])
		}
	}
	if client.PendingRequests() != 0 {
		t.Errorf("Expected pending registry to be empty, got %d", client.PendingRequests())
	}
}

func TestCoalescedErrorIsShared(t *testing.T) {
	server, calls, release := blockingServer(t, http.StatusNotFound, `{"detail":"Template not found"}`)
	client := New(WithBaseURL(server.URL))
	key := CacheKey(server.URL+"/templates/7", KeyOptions{})

	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Get(context.Background(), "/templates/7", nil)
		}(i)
	}

	waitForWaiters(t, client, key, len(errs)-1)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf(expectedCallCountMsg, 1, n)
	}

	var first *Error
	if !errors.As(errs[0], &first) || first.Kind != KindNotFound {
		t.Fatalf("Expected NotFound, got %v", errs[0])
	}
	for i, err := range errs[1:] {
		var cerr *Error
		if !errors.As(err, &cerr) || cerr != first {
			t.Errorf("Caller %d did not receive the shared error: %v", i+1, err)
		}
	}
}

func TestPendingReleasedAfterSettle(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.Get(ctx, "/analytics", nil); !IsKind(err, KindServerError) {
			t.Fatalf("Expected ServerError, got %v", err)
		}
		if client.PendingRequests() != 0 {
			t.Fatalf("Expected pending key to be released, got %d", client.PendingRequests())
		}
	}

	// failures are not cached, so every sequential call reaches the network
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf(expectedCallCountMsg, 3, n)
	}
}

func TestSuccessCachedBeforeRelease(t *testing.T) {
	server, calls, release := blockingServer(t, http.StatusOK, `{"ok":true}`)
	cache := NewInMemoryCache()
	client := New(WithBaseURL(server.URL), WithStore(cache))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = client.Get(context.Background(), "/venues", nil)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for client.PendingRequests() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	close(release)
	<-done

	if cache.Len() != 1 {
		t.Fatalf("Expected cached response, got %d entries", cache.Len())
	}
	if _, err := client.Get(context.Background(), "/venues", nil); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf(expectedCallCountMsg, 1, n)
	}
}

func TestWaiterCancellation(t *testing.T) {
	server, _, release := blockingServer(t, http.StatusOK, `{}`)
	client := New(WithBaseURL(server.URL))
	key := CacheKey(server.URL+"/me", KeyOptions{})

	ownerDone := make(chan error, 1)
	go func() {
		_, err := client.Get(context.Background(), "/me", nil)
		ownerDone <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for client.PendingRequests() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := client.Get(ctx, "/me", nil)
		waiterDone <- err
	}()
	waitForWaiters(t, client, key, 1)
	cancel()

	err := <-waiterDone
	if !IsKind(err, KindTimeout) {
		t.Errorf(expectedKindMsg, KindTimeout, KindOf(err), err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected Canceled cause, got %v", err)
	}

	close(release)
	if err := <-ownerDone; err != nil {
		t.Errorf("Expected owner to succeed, got %v", err)
	}
}

func TestDifferentKeysDoNotCoalesce(t *testing.T) {
	server, calls, release := blockingServer(t, http.StatusOK, `{}`)
	client := New(WithBaseURL(server.URL))

	var wg sync.WaitGroup
	for _, p := range []Params{{P("skip", 0)}, {P("skip", 10)}} {
		wg.Add(1)
		go func(p Params) {
			defer wg.Done()
			_, _ = client.Get(context.Background(), "/venues", p)
		}(p)
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.PendingRequests() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(calls); n != 2 {
		t.Errorf(expectedCallCountMsg, 2, n)
	}
}

func TestDeduplicationMetrics(t *testing.T) {
	server, _, release := blockingServer(t, http.StatusOK, `{}`)
	metrics := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(WithBaseURL(server.URL), WithMetricsCollector(metrics))
	key := CacheKey(server.URL+"/", KeyOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Get(context.Background(), "/", nil)
		}()
	}
	waitForWaiters(t, client, key, 2)
	close(release)
	wg.Wait()

	if got := counterValue(t, metrics.deduplicationHits.WithLabelValues(http.MethodGet, metricsEndpoint(server.URL+"/"))); got != 2 {
		t.Errorf("Expected 2 deduplication hits, got %v", got)
	}
}
