// Package cache implements the optional Redis layer in front of the account
// link store. It caches chat-to-active-link resolutions so the bot's receipt
// and command paths do not hit Postgres on every Telegram update. The cache
// is never the system of record: entries carry a short TTL, are invalidated
// whenever a link is created, refreshed, or deactivated, and every Redis
// failure degrades to a direct repository read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// DefaultLinkTTL bounds staleness when an invalidation is lost (for example a
// Redis restart between the DB write and the Del).
const DefaultLinkTTL = 5 * time.Minute

// KeyPrefixLink is the prefix for cached chat resolutions.
const KeyPrefixLink = "link:chat:"

// LinkKey returns the Redis key holding the cached active link for a chat.
func LinkKey(externalChatID string) string {
	return KeyPrefixLink + externalChatID
}

// LinkCache stores chat -> active-link resolutions as JSON values.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache creates a link cache on an established Redis client.
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &LinkCache{client: client, ttl: ttl}
}

// GetLink returns the cached active link for a chat. A nil link with a nil
// error is a miss: the caller falls through to the repository. Only active
// links are ever cached, so there is no negative caching to distinguish.
func (c *LinkCache) GetLink(ctx context.Context, externalChatID string) (*models.AccountLink, error) {
	data, err := c.client.Get(ctx, LinkKey(externalChatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read link cache: %w", err)
	}

	var link models.AccountLink
	if err := json.Unmarshal(data, &link); err != nil {
		// A corrupt entry behaves like a miss; the next SetLink overwrites it.
		return nil, nil
	}
	return &link, nil
}

// SetLink caches the active link under its chat key.
func (c *LinkCache) SetLink(ctx context.Context, link *models.AccountLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}
	if err := c.client.Set(ctx, LinkKey(link.ExternalChatID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write link cache: %w", err)
	}
	return nil
}

// InvalidateLink drops the cached resolution for a chat.
func (c *LinkCache) InvalidateLink(ctx context.Context, externalChatID string) error {
	if err := c.client.Del(ctx, LinkKey(externalChatID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate link cache: %w", err)
	}
	return nil
}
