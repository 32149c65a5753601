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
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	deliveryIDPrefix = "zammad:delivery_id:"
	ticketLockPrefix = "zammad:ticket_lock:"
)

// RedisStore is a ClaimStore/LockStore built on a single Redis key
// namespace. Claims use SET key 1 NX EX ttl, which is a single atomic
// round trip; no Lua scripting is needed since there's nothing to
// combine with the claim.
type RedisStore struct {
	client Cmdable
	prefix string
	ttl    time.Duration
}

// Cmdable is the minimal surface of *redis.Client this package needs,
// so tests can substitute a miniredis-backed client without pulling in
// the full redis.Cmdable interface.
type Cmdable interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisDeliveryStore returns a ClaimStore namespaced for webhook
// delivery-ID dedup.
func NewRedisDeliveryStore(client Cmdable, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("idempotency: ttl must be > 0 for a redis-backed store")
	}
	return &RedisStore{client: client, prefix: deliveryIDPrefix, ttl: ttl}, nil
}

// NewRedisTicketLockStore returns a LockStore namespaced for per-ticket
// mutual exclusion, with a fixed fallback TTL so a crashed holder
// doesn't wedge the lock forever.
func NewRedisTicketLockStore(client Cmdable, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, prefix: ticketLockPrefix, ttl: ttl}, nil
}

func (s *RedisStore) key(raw string) string {
	return s.prefix + raw
}

func (s *RedisStore) TryClaim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: redis claim failed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idempotency: redis seen check failed: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: redis release failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return nil }
