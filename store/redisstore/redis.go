// Package redisstore keeps cached caption service responses in Redis so
// several processes can share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ambiyansyah-risyal/captionkit"
)

const (
	defaultPrefix       = "captionkit"
	defaultQueryTimeout = 2 * time.Second
	defaultTTL          = 24 * time.Hour
	scanCount           = 256
)

// compareAndDelete removes KEYS[1] only while its "v" field still equals
// ARGV[1], so a concurrent Set is never undone.
var compareAndDelete = redis.NewScript(`
if redis.call("HGET", KEYS[1], "v") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// entry is the msgpack payload stored in the "v" field of each hash.
type entry struct {
	Value    []byte `msgpack:"v"`
	StoredAt int64  `msgpack:"t"`
}

// Store is a captionkit.Store backed by a Redis hash per key.
// The caller owns the redis.Client lifecycle.
type Store struct {
	client       redis.UniversalClient
	prefix       string
	queryTimeout time.Duration
	ttl          time.Duration
	now          func() time.Time
}

var _ captionkit.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key as prefix:key.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithQueryTimeout bounds each Redis round trip.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithTTL sets how long Redis keeps an entry regardless of reads. It only
// bounds memory; freshness is still decided by the max-age of each read.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// New returns a Store using client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:       client,
		prefix:       defaultPrefix,
		queryTimeout: defaultQueryTimeout,
		ttl:          defaultTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}

func (s *Store) prefixKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get implements captionkit.Store.
func (s *Store) Get(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	k := s.prefixKey(key)
	data, err := s.client.HGet(qctx, k, "v").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, false, s.deleteIfUnchanged(qctx, k, data)
	}

	if s.now().Sub(time.Unix(0, e.StoredAt)) > maxAge {
		return nil, false, s.deleteIfUnchanged(qctx, k, data)
	}
	return json.RawMessage(e.Value), true, nil
}

// deleteIfUnchanged evicts k when it still holds data.
func (s *Store) deleteIfUnchanged(ctx context.Context, k string, data []byte) error {
	if err := compareAndDelete.Run(ctx, s.client, []string{k}, data).Err(); err != nil {
		return fmt.Errorf("redisstore: evicting %s: %w", k, err)
	}
	return nil
}

// Set implements captionkit.Store.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	data, err := msgpack.Marshal(entry{Value: value, StoredAt: s.now().UnixNano()})
	if err != nil {
		return err
	}

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	k := s.prefixKey(key)
	pipe := s.client.Pipeline()
	pipe.HSet(qctx, k, "v", data)
	pipe.Expire(qctx, k, s.ttl)
	_, err = pipe.Exec(qctx)
	return err
}

// Clear implements captionkit.Store. It scans the prefix and deletes keys
// containing pattern.
func (s *Store) Clear(ctx context.Context, pattern string) error {
	match := "*" + escapeGlob(pattern) + "*"
	if s.prefix != "" {
		match = escapeGlob(s.prefix) + ":" + match
	}

	var cursor uint64
	for {
		qctx, cancel := s.queryCtx(ctx)
		keys, next, err := s.client.Scan(qctx, cursor, match, scanCount).Result()
		if err == nil && len(keys) > 0 {
			err = s.client.Del(qctx, keys...).Err()
		}
		cancel()
		if err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
