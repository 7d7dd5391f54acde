// Package redis is a search result cache shared between processes. Pages are
// stored as JSON under a key prefix with a Redis expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/services/search"
)

const clearBatch = 256

// Cache implements search.ResultCache on Redis.
type Cache struct {
	client goredis.Cmdable
	prefix string
}

var _ search.ResultCache = (*Cache)(nil)

// New returns a Cache that namespaces every key with prefix.
func New(client goredis.Cmdable, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) Get(ctx context.Context, key string) (domain.CachedPage, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.CachedPage{}, false, nil
	}
	if err != nil {
		return domain.CachedPage{}, false, fmt.Errorf("redis get: %w", err)
	}
	var page domain.CachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return domain.CachedPage{}, false, fmt.Errorf("decode cached page: %w", err)
	}
	return page, true, nil
}

// Set stores page for ttl. A non-positive ttl stores nothing.
func (c *Cache) Set(ctx context.Context, key string, page domain.CachedPage, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode cached page: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix. Keys written while the scan runs
// may survive.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, escapeGlob(c.prefix)+"*", clearBatch).Iterator()
	batch := make([]string, 0, clearBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == clearBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
