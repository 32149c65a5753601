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
	"fmt"
	"sync"
	"time"

	"ticketarchiver/internal/archiver/clock"
)

// InMemoryTTLSet is a single-process ClaimStore and LockStore backed by
// a map of expiry times, with best-effort periodic eviction so the map
// doesn't grow unbounded when keys are mostly unique.
type InMemoryTTLSet struct {
	mu          sync.Mutex
	ttl         time.Duration
	clock       clock.Clock
	expiresAt   map[string]time.Time
	nextEvictAt time.Time
}

// NewInMemoryTTLSet builds a TTL set. ttl must be >= 0; a zero TTL means
// every claim expires immediately (effectively disabling dedup).
func NewInMemoryTTLSet(ttl time.Duration, c clock.Clock) (*InMemoryTTLSet, error) {
	if ttl < 0 {
		return nil, fmt.Errorf("idempotency: ttl must be >= 0")
	}
	if c == nil {
		c = clock.Real()
	}
	now := c.Now()
	return &InMemoryTTLSet{
		ttl:         ttl,
		clock:       c,
		expiresAt:   make(map[string]time.Time),
		nextEvictAt: now,
	}, nil
}

func (s *InMemoryTTLSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiresAt)
}

func (s *InMemoryTTLSet) maybeEvictLocked(now time.Time) {
	if now.Before(s.nextEvictAt) {
		return
	}
	s.evictExpiredLocked(now)
	interval := s.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	s.nextEvictAt = now.Add(interval)
}

func (s *InMemoryTTLSet) evictExpiredLocked(now time.Time) {
	for key, exp := range s.expiresAt {
		if !now.Before(exp) {
			delete(s.expiresAt, key)
		}
	}
}

func (s *InMemoryTTLSet) seenLocked(now time.Time, key string) bool {
	s.maybeEvictLocked(now)
	exp, ok := s.expiresAt[key]
	if !ok {
		return false
	}
	if !now.Before(exp) {
		delete(s.expiresAt, key)
		return false
	}
	return true
}

func (s *InMemoryTTLSet) addLocked(now time.Time, key string) {
	s.maybeEvictLocked(now)
	s.expiresAt[key] = now.Add(s.ttl)
}

func (s *InMemoryTTLSet) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seenLocked(s.clock.Now(), key), nil
}

func (s *InMemoryTTLSet) Add(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(s.clock.Now(), key)
	return nil
}

// TryClaim implements both ClaimStore and LockStore: it is the
// compare-and-set over seen+add done while holding the mutex so two
// concurrent callers never both observe an unclaimed key.
func (s *InMemoryTTLSet) TryClaim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.seenLocked(now, key) {
		return false, nil
	}
	s.addLocked(now, key)
	return true, nil
}

// Release removes key immediately, used when InMemoryTTLSet backs a
// LockStore rather than a dedup ClaimStore.
func (s *InMemoryTTLSet) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiresAt, key)
	return nil
}

func (s *InMemoryTTLSet) EvictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(s.clock.Now())
}

func (s *InMemoryTTLSet) Close() error { return nil }
