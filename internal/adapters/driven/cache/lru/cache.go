// Package lru provides a sharded, single-flight embedding cache.
package lru

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	golru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.EmbeddingCache = (*Cache)(nil)

// Cache is a content-addressed LRU of embedding vectors.
// Keys are spread over independently locked shards; no lock is held while computing.
type Cache struct {
	shards []*shard
	group  singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	computes  atomic.Uint64
	evictions atomic.Uint64
}

// entries is the per-shard LRU. Both golang-lru flavours satisfy it.
type entries interface {
	Add(key string, value []float32) bool
	Get(key string) ([]float32, bool)
	Len() int
	Purge()
}

type shard struct {
	capacity int
	entries  entries

	// purging suppresses eviction counting while Purge drops entries.
	purging atomic.Bool
}

// New creates a cache from validated settings.
// Capacity is split across shards so the total never exceeds it. With a
// positive TTL an entry expires that long after it was stored.
func New(cfg domain.CacheSettings) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{shards: make([]*shard, cfg.Shards)}
	base, extra := cfg.Capacity/cfg.Shards, cfg.Capacity%cfg.Shards
	for i := range c.shards {
		capacity := base
		if i < extra {
			capacity++
		}
		s, err := c.newShard(capacity, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("embedding cache shard %d: %w", i, err)
		}
		c.shards[i] = s
	}
	return c, nil
}

func (c *Cache) newShard(capacity int, ttl time.Duration) (*shard, error) {
	s := &shard{capacity: capacity}
	onEvict := func(string, []float32) {
		if !s.purging.Load() {
			c.evictions.Add(1)
		}
	}

	if ttl > 0 {
		s.entries = expirable.NewLRU[string, []float32](capacity, onEvict, ttl)
		return s, nil
	}
	plain, err := golru.NewWithEvict[string, []float32](capacity, onEvict)
	if err != nil {
		return nil, err
	}
	s.entries = plain
	return s, nil
}

// Key returns the cache key for text: the SHA-256 of its whitespace-collapsed form.
// Case is preserved.
func Key(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the vector for text, computing it at most once per key
// across concurrent callers. Callers stop waiting when their own context ends;
// the shared computation keeps running for the callers still waiting.
func (c *Cache) GetOrCompute(ctx context.Context, text string, compute driven.ComputeFunc) ([]float32, error) {
	key := Key(text)

	if vec, ok := c.get(key); ok {
		c.hits.Add(1)
		return clone(vec), nil
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		// A previous flight may have stored the key since our lookup.
		if vec, ok := c.get(key); ok {
			return vec, nil
		}

		c.computes.Add(1)
		vec, err := compute(context.WithoutCancel(ctx), text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingComputeFailed, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty vector", domain.ErrEmbeddingComputeFailed)
		}

		stored := clone(vec)
		c.put(key, stored)
		return stored, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		vec, ok := res.Val.([]float32)
		if !ok {
			return nil, errors.New("embedding cache: unexpected flight result")
		}
		return clone(vec), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.entries.Len()
	}
	return n
}

// Purge removes every entry.
func (c *Cache) Purge() {
	for _, s := range c.shards {
		s.purging.Store(true)
		s.entries.Purge()
		s.purging.Store(false)
	}
}

// Stats returns counters since construction.
func (c *Cache) Stats() driven.CacheStats {
	return driven.CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Computes:  c.computes.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Cache) shardFor(key string) *shard {
	b, _ := hex.DecodeString(key[:8])
	return c.shards[binary.BigEndian.Uint32(b)%uint32(len(c.shards))]
}

func (c *Cache) get(key string) ([]float32, bool) {
	return c.shardFor(key).entries.Get(key)
}

func (c *Cache) put(key string, vec []float32) {
	c.shardFor(key).entries.Add(key, vec)
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
