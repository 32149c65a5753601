// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_DeliveryClaim_OnceOnly(t *testing.T) {
	_, client := newTestRedisStore(t)
	store, err := NewRedisDeliveryStore(client, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	claimed, err := store.TryClaim(ctx, "delivery-abc")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.TryClaim(ctx, "delivery-abc")
	require.NoError(t, err)
	require.False(t, claimed, "replayed delivery id must not be claimable again")
}

func TestRedisStore_DeliveryClaim_ExpiresWithMiniredisFastForward(t *testing.T) {
	mr, client := newTestRedisStore(t)
	store, err := NewRedisDeliveryStore(client, time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	claimed, err := store.TryClaim(ctx, "delivery-xyz")
	require.NoError(t, err)
	require.True(t, claimed)

	mr.FastForward(2 * time.Second)

	claimed, err = store.TryClaim(ctx, "delivery-xyz")
	require.NoError(t, err)
	require.True(t, claimed, "claim should be reclaimable once its TTL expires")
}

func TestRedisStore_DeliveryClaim_RejectsNonPositiveTTL(t *testing.T) {
	_, client := newTestRedisStore(t)
	_, err := NewRedisDeliveryStore(client, 0)
	require.Error(t, err)
}

func TestRedisStore_Seen_ReflectsClaimState(t *testing.T) {
	_, client := newTestRedisStore(t)
	store, err := NewRedisDeliveryStore(client, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	seen, err := store.Seen(ctx, "delivery-new")
	require.NoError(t, err)
	require.False(t, seen)

	_, err = store.TryClaim(ctx, "delivery-new")
	require.NoError(t, err)

	seen, err = store.Seen(ctx, "delivery-new")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestRedisStore_TicketLock_ClaimThenRelease(t *testing.T) {
	_, client := newTestRedisStore(t)
	store, err := NewRedisTicketLockStore(client, 5*time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	claimed, err := store.TryClaim(ctx, "42")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.TryClaim(ctx, "42")
	require.NoError(t, err)
	require.False(t, claimed, "ticket lock held by another run must not be re-claimable")

	require.NoError(t, store.Release(ctx, "42"))

	claimed, err = store.TryClaim(ctx, "42")
	require.NoError(t, err)
	require.True(t, claimed, "lock must be claimable again after release")
}

func TestRedisStore_TicketLock_ZeroTTLFallsBackToDefault(t *testing.T) {
	_, client := newTestRedisStore(t)
	store, err := NewRedisTicketLockStore(client, 0)
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, store.ttl)
}
