package sqlitestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/captionkit"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := &clock{t: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)}
	s.now = c.Now
	return s, c
}

func TestSetGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "key", json.RawMessage(`{"a":1}`)))
	value, found, err := s.Get(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(value))

	require.NoError(t, s.Set(ctx, "key", json.RawMessage(`{"a":2}`)))
	value, _, _ = s.Get(ctx, "key", time.Minute)
	assert.Equal(t, `{"a":2}`, string(value))
	assert.Equal(t, 1, s.Len())
}

func TestFreshnessBoundary(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key", json.RawMessage(`1`)))

	clk.t = clk.t.Add(time.Minute)
	_, found, err := s.Get(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, found, "an entry exactly maxAge old is fresh")

	clk.t = clk.t.Add(time.Nanosecond)
	_, found, err = s.Get(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, s.Len(), "stale entries are evicted")
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"http://x/musicians_{}", "http://x/musicians?skip=1_{}", "http://x/venues_{}", "http://x/100%_{}"} {
		require.NoError(t, s.Set(ctx, k, json.RawMessage(`[]`)))
	}

	require.NoError(t, s.Clear(ctx, "/musicians"))
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Clear(ctx, "%"))
	assert.Equal(t, 1, s.Len(), "pattern characters match literally")

	require.NoError(t, s.Clear(ctx, ""))
	assert.Equal(t, 0, s.Len())
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "key", json.RawMessage(`"kept"`)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	value, found, err := reopened.Get(ctx, "key", time.Hour)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `"kept"`, string(value))
}

func TestClientUsesSQLiteStore(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"venues":[],"count":0}`))
	}))
	defer server.Close()

	s, _ := newTestStore(t)
	client := captionkit.New(captionkit.WithBaseURL(server.URL), captionkit.WithStore(s))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Get(ctx, captionkit.EndpointVenues, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, s.Len())
}
