package overfast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const cacheSize = 256

// StatsKey identifies one memoized career stats call
type StatsKey struct {
	PlayerID string
	Gamemode string
	Platform string
	Hero     string
}

// CachedClient memoizes successful Summary and CareerStats calls for a short
// TTL. Staleness up to the TTL is accepted; errors are never cached.
type CachedClient struct {
	client    *Client
	summaries *expirable.LRU[string, *Summary]
	stats     *expirable.LRU[StatsKey, json.RawMessage]
}

// NewCachedClient wraps c. A non-positive ttl disables caching.
func NewCachedClient(c *Client, ttl time.Duration) *CachedClient {
	cc := &CachedClient{client: c}
	if ttl > 0 {
		cc.summaries = expirable.NewLRU[string, *Summary](cacheSize, nil, ttl)
		cc.stats = expirable.NewLRU[StatsKey, json.RawMessage](cacheSize, nil, ttl)
	}
	return cc
}

// Summary returns the cached summary for playerID or fetches it
func (cc *CachedClient) Summary(ctx context.Context, playerID string) (*Summary, error) {
	if cc.summaries != nil {
		if s, ok := cc.summaries.Get(playerID); ok {
			return s, nil
		}
	}

	s, err := cc.client.Summary(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if cc.summaries != nil {
		cc.summaries.Add(playerID, s)
	}
	return s, nil
}

// CareerStats returns the cached stats for (player, mode, platform, hero) or fetches them
func (cc *CachedClient) CareerStats(ctx context.Context, playerID string, q StatsQuery) (json.RawMessage, error) {
	key := StatsKey{PlayerID: playerID, Gamemode: q.Gamemode, Platform: q.Platform, Hero: q.Hero}
	if cc.stats != nil {
		if body, ok := cc.stats.Get(key); ok {
			return body, nil
		}
	}

	body, err := cc.client.CareerStats(ctx, playerID, q)
	if err != nil {
		return nil, err
	}
	if cc.stats != nil {
		cc.stats.Add(key, body)
	}
	return body, nil
}

// Purge drops every memoized response
func (cc *CachedClient) Purge() {
	if cc.summaries != nil {
		cc.summaries.Purge()
	}
	if cc.stats != nil {
		cc.stats.Purge()
	}
}
