// ratelimit.go provides Gin middleware that enforces per-client token-bucket rate limits,
// returning 429 responses when the configured requests-per-minute threshold is exceeded.
// It also provides the per-chat webhook limiter used by the Telegram webhook handler,
// backed by redis_rate when Redis is configured so the limit holds across instances.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// rateLimitStaleAfter is how long an idle client's bucket survives before the
// cleanup pass evicts it.
const rateLimitStaleAfter = 10 * time.Minute

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often to clean up expired entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200, // Higher limit for authenticated API usage
		BurstSize:         50,  // Allow burst for pages that load multiple resources
		CleanupInterval:   5 * time.Minute,
	}
}

// LinkingRateLimitConfig returns stricter limits for code issuance. A code is
// only useful once, so legitimate traffic here is a handful per user per day.
func LinkingRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         3,
		CleanupInterval:   5 * time.Minute,
	}
}

// AgentChatRateLimitConfig returns limits for agent chat, which fans out to
// the LLM on every request.
func AgentChatRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// rateLimitEntry tracks one client's bucket
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.RWMutex
	stopCh  chan struct{}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically evicts stale buckets until Stop
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// evictStale drops buckets idle past rateLimitStaleAfter.
func (rl *RateLimiter) evictStale(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.entries {
		if now.Sub(entry.lastUpdate) > rateLimitStaleAfter {
			delete(rl.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// refillTokens returns entry's bucket level at now, capped at the burst size.
// It does not mutate the entry.
func (rl *RateLimiter) refillTokens(entry *rateLimitEntry, now time.Time) float64 {
	perSecond := float64(rl.config.RequestsPerMinute) / 60.0
	refilled := entry.tokens + now.Sub(entry.lastUpdate).Seconds()*perSecond
	return min(float64(rl.config.BurstSize), refilled)
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]
	if !exists {
		// New client starts with a full burst, minus this request
		rl.entries[key] = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true
	}

	entry.tokens = rl.refillTokens(entry, now)
	entry.lastUpdate = now

	if entry.tokens < 1 {
		return false
	}
	entry.tokens--
	return true
}

// RemainingTokens returns how many tokens are left for a key
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return rl.config.BurstSize
	}
	return int(rl.refillTokens(entry, time.Now()))
}

// retryAfterSeconds is how long a blocked client should wait for one token to
// refill, rounded up to a whole second.
func (rl *RateLimiter) retryAfterSeconds() int {
	rpm := rl.config.RequestsPerMinute
	if rpm <= 0 {
		return 60
	}

	secs := 60 / rpm
	if 60%rpm != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		if !limiter.Allow(key) {
			retryAfter := limiter.retryAfterSeconds()
			c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))

		c.Next()
	}
}

// getRateLimitKey picks the bucket key: authenticated user first, then ops
// token, then client IP.
func getRateLimitKey(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return "user:" + id
	}
	if id := c.GetString("ops_token_id"); id != "" {
		return "opstoken:" + id
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + c.Request.RemoteAddr
}

// WebhookLimiter throttles Telegram updates per chat. Rate limiting by IP is
// useless on the webhook route because every request arrives from Telegram's
// egress range, so the key is the chat id parsed from the update. With Redis
// the limit is enforced with redis_rate (GCRA, shared across instances);
// without Redis a process-local token bucket is used.
type WebhookLimiter struct {
	redis *redis_rate.Limiter
	local *RateLimiter
	limit redis_rate.Limit
}

// NewWebhookLimiter creates a limiter admitting perMinute updates per chat
// with the given burst. rdb may be nil.
func NewWebhookLimiter(rdb *redis.Client, perMinute, burst int) *WebhookLimiter {
	wl := &WebhookLimiter{
		limit: redis_rate.Limit{Rate: perMinute, Burst: burst, Period: time.Minute},
	}
	if rdb != nil {
		wl.redis = redis_rate.NewLimiter(rdb)
		return wl
	}
	wl.local = NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: perMinute,
		BurstSize:         burst,
		CleanupInterval:   5 * time.Minute,
	})
	return wl
}

// Allow reports whether an update for this chat may be processed now.
// Redis failures fail open: the limiter protects the LLM budget, it is not
// a correctness gate.
func (wl *WebhookLimiter) Allow(ctx context.Context, chatID string) bool {
	key := "webhook:chat:" + chatID
	if wl.redis != nil {
		res, err := wl.redis.Allow(ctx, key, wl.limit)
		if err != nil {
			slog.Warn("webhook rate limiter unavailable", "error", err)
			return true
		}
		return res.Allowed > 0
	}
	return wl.local.Allow(key)
}

// Stop releases the fallback limiter's cleanup goroutine
func (wl *WebhookLimiter) Stop() {
	if wl.local != nil {
		wl.local.Stop()
	}
}
