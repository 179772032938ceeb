// Package cache provides time-boxed, read-through caching of the slow-moving
// network facts needed to build a notification: display names, post and feed
// text, and per-account block sets.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TTLs are tuned to how quickly the underlying data changes. Context text
// lives longer because notifications for a post stop arriving long before a
// week is out.
const (
	profileTTL  = 24 * time.Hour
	contextTTL  = 7 * 24 * time.Hour
	blockingTTL = 24 * time.Hour
)

// emptyMarker keeps the block set non-empty so an account with no blocks
// doesn't re-trigger the full pagination on every event.
const emptyMarker = "\x00none"

// Fetcher is the upstream source consulted on a cache miss.
type Fetcher interface {
	GetProfile(ctx context.Context, did string) (string, error)
	GetPostText(ctx context.Context, uri string) (string, error)
	GetFeedGeneratorName(ctx context.Context, uri string) (string, error)
	ListAllBlocks(ctx context.Context, did string) ([]string, error)
}

// Cache is a read-through cache over a shared Redis store. Each miss performs
// exactly one upstream fetch (concurrent misses for the same key are
// collapsed) and one write.
type Cache struct {
	kv      redis.Cmdable
	fetcher Fetcher
	group   singleflight.Group
}

// New creates a Cache backed by the given Redis client and upstream fetcher.
func New(kv redis.Cmdable, fetcher Fetcher) *Cache {
	return &Cache{kv: kv, fetcher: fetcher}
}

// GetProfile returns the display name (or handle) for the DID.
func (c *Cache) GetProfile(ctx context.Context, did string) (string, error) {
	return c.readThrough(ctx, "profile:"+did, profileTTL, func() (string, error) {
		return c.fetcher.GetProfile(ctx, did)
	})
}

// GetContextPost returns the text of the post at the given at-uri.
func (c *Cache) GetContextPost(ctx context.Context, uri string) (string, error) {
	return c.readThrough(ctx, "post:"+uri, contextTTL, func() (string, error) {
		return c.fetcher.GetPostText(ctx, uri)
	})
}

// GetContextFeed returns the display name of the feed generator at the uri.
func (c *Cache) GetContextFeed(ctx context.Context, uri string) (string, error) {
	return c.readThrough(ctx, "feed:"+uri, contextTTL, func() (string, error) {
		return c.fetcher.GetFeedGeneratorName(ctx, uri)
	})
}

// IsBlocking reports whether subject blocks target. On the first query for a
// subject the full block list is paginated from their PDS and stored as a
// set; later queries are a single set-membership check.
func (c *Cache) IsBlocking(ctx context.Context, subject, target string) (bool, error) {
	key := "blocking:" + subject

	exists, err := c.kv.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check block set: %w", err)
	}
	if exists > 0 {
		blocked, err := c.kv.SIsMember(ctx, key, target).Result()
		if err != nil {
			return false, fmt.Errorf("check block membership: %w", err)
		}
		return blocked, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		blocks, err := c.fetcher.ListAllBlocks(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("fetch block list: %w", err)
		}

		members := make([]any, 0, len(blocks)+1)
		members = append(members, emptyMarker)
		for _, did := range blocks {
			members = append(members, did)
		}

		pipe := c.kv.TxPipeline()
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, blockingTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("store block set: %w", err)
		}

		return blocks, nil
	})
	if err != nil {
		return false, err
	}

	for _, did := range v.([]string) {
		if did == target {
			return true, nil
		}
	}
	return false, nil
}

func (c *Cache) readThrough(ctx context.Context, key string, ttl time.Duration, fetch func() (string, error)) (string, error) {
	cached, err := c.kv.Get(ctx, key).Result()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := fetch()
		if err != nil {
			return "", err
		}
		if err := c.kv.Set(ctx, key, value, ttl).Err(); err != nil {
			return "", fmt.Errorf("write %s: %w", key, err)
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
