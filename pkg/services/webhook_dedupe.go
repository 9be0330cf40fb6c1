package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultEventClaimTTL is how long a processed webhook event id is remembered.
const DefaultEventClaimTTL = 24 * time.Hour

// EventDeduper records which webhook events have been handled so redeliveries
// are acknowledged without being applied twice.
type EventDeduper interface {
	// Claim marks eventID as being handled. It returns false if the event was
	// already claimed.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets a claim so a failed event can be redelivered and retried.
	Release(ctx context.Context, eventID string) error
}

type redisEventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewEventDeduper returns a Redis-backed deduper, or one that never reports
// duplicates when client is nil.
func NewEventDeduper(client *redis.Client, ttl time.Duration) EventDeduper {
	if client == nil {
		return noopEventDeduper{}
	}
	if ttl <= 0 {
		ttl = DefaultEventClaimTTL
	}
	return &redisEventDeduper{
		client: client,
		prefix: "lookout:webhook:event:",
		ttl:    ttl,
	}
}

func (d *redisEventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+eventID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (d *redisEventDeduper) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, d.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", eventID, err)
	}
	return nil
}

type noopEventDeduper struct{}

func (noopEventDeduper) Claim(context.Context, string) (bool, error) { return true, nil }

func (noopEventDeduper) Release(context.Context, string) error { return nil }

var (
	_ EventDeduper = (*redisEventDeduper)(nil)
	_ EventDeduper = noopEventDeduper{}
)
