package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

func newTestCache(t *testing.T) (*LinkCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLinkCache(client, time.Minute), mr
}

func sampleLink(chatID string) *models.AccountLink {
	name := "Juan D."
	return &models.AccountLink{
		ID:                  "11111111-1111-1111-1111-111111111111",
		WebUserID:           "user-1",
		ExternalChatID:      chatID,
		ExternalDisplayName: &name,
		LinkedAt:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Active:              true,
	}
}

func TestLinkKey(t *testing.T) {
	if got := LinkKey("123456"); got != "link:chat:123456" {
		t.Errorf("LinkKey = %q, want %q", got, "link:chat:123456")
	}
}

func TestSetAndGetLink(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	link := sampleLink("123456")
	if err := c.SetLink(ctx, link); err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}

	got, err := c.GetLink(ctx, "123456")
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetLink = nil, want cached link")
	}
	if got.WebUserID != link.WebUserID {
		t.Errorf("WebUserID = %q, want %q", got.WebUserID, link.WebUserID)
	}
	if got.ExternalChatID != link.ExternalChatID {
		t.Errorf("ExternalChatID = %q, want %q", got.ExternalChatID, link.ExternalChatID)
	}
	if got.ExternalDisplayName == nil || *got.ExternalDisplayName != "Juan D." {
		t.Errorf("ExternalDisplayName not preserved: %v", got.ExternalDisplayName)
	}
	if !got.Active {
		t.Error("Active = false after round trip")
	}
	if !got.LinkedAt.Equal(link.LinkedAt) {
		t.Errorf("LinkedAt = %v, want %v", got.LinkedAt, link.LinkedAt)
	}
}

func TestGetLink_MissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.GetLink(context.Background(), "999999")
	if err != nil {
		t.Fatalf("GetLink on empty cache returned error: %v", err)
	}
	if got != nil {
		t.Errorf("GetLink = %+v, want nil for a miss", got)
	}
}

func TestGetLink_CorruptEntryBehavesAsMiss(t *testing.T) {
	c, mr := newTestCache(t)

	if err := mr.Set(LinkKey("777"), "{not json"); err != nil {
		t.Fatalf("seeding corrupt entry: %v", err)
	}

	got, err := c.GetLink(context.Background(), "777")
	if err != nil {
		t.Fatalf("GetLink on corrupt entry returned error: %v", err)
	}
	if got != nil {
		t.Errorf("GetLink = %+v, want nil for a corrupt entry", got)
	}
}

func TestInvalidateLink(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.SetLink(ctx, sampleLink("123456")); err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}
	if err := c.InvalidateLink(ctx, "123456"); err != nil {
		t.Fatalf("InvalidateLink failed: %v", err)
	}

	got, err := c.GetLink(ctx, "123456")
	if err != nil {
		t.Fatalf("GetLink after invalidation returned error: %v", err)
	}
	if got != nil {
		t.Error("entry still cached after invalidation")
	}

	// Invalidating an absent key is a no-op, not an error
	if err := c.InvalidateLink(ctx, "does-not-exist"); err != nil {
		t.Errorf("InvalidateLink on absent key returned error: %v", err)
	}
}

func TestLinkEntryExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetLink(ctx, sampleLink("123456")); err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := c.GetLink(ctx, "123456")
	if err != nil {
		t.Fatalf("GetLink after TTL returned error: %v", err)
	}
	if got != nil {
		t.Error("entry survived past its TTL")
	}
}

func TestGetLink_ServerDownReturnsError(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.GetLink(context.Background(), "123456")
	if err == nil {
		t.Error("GetLink = nil error with Redis down, want error")
	}
}

func TestNewLinkCache_DefaultTTL(t *testing.T) {
	c := NewLinkCache(nil, 0)
	if c.ttl != DefaultLinkTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultLinkTTL)
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(&config.RedisConfig{Enabled: true, Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("ping after Connect failed: %v", err)
	}
}
