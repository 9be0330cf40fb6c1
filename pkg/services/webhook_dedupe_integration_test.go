//go:build integration

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookout-hq/lookout/pkg/testhelpers"
)

func TestRedisEventDeduper_Integration(t *testing.T) {
	client := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	d := NewEventDeduper(client, time.Minute)

	ok, err := d.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, ok, "second claim is a duplicate")

	ttl, err := client.TTL(ctx, "lookout:webhook:event:evt_1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, d.Release(ctx, "evt_1"))
	ok, err = d.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok, "released events can be claimed again")
}
