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

	"ticketarchiver/internal/archiver/clock"
)

func TestInMemoryTTLSet_TryClaim_OnceOnly(t *testing.T) {
	mc := clock.NewMutable(time.Unix(0, 0))
	s, err := NewInMemoryTTLSet(time.Minute, mc)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ctx := context.Background()

	claimed, err := s.TryClaim(ctx, "delivery-1")
	if err != nil || !claimed {
		t.Fatalf("first claim should succeed, got claimed=%v err=%v", claimed, err)
	}

	claimed, err = s.TryClaim(ctx, "delivery-1")
	if err != nil || claimed {
		t.Fatalf("replay claim should fail, got claimed=%v err=%v", claimed, err)
	}
}

func TestInMemoryTTLSet_ClaimExpiresAfterTTL(t *testing.T) {
	mc := clock.NewMutable(time.Unix(0, 0))
	s, err := NewInMemoryTTLSet(time.Minute, mc)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ctx := context.Background()

	if claimed, _ := s.TryClaim(ctx, "k"); !claimed {
		t.Fatal("expected first claim to succeed")
	}

	mc.Advance(59 * time.Second)
	if claimed, _ := s.TryClaim(ctx, "k"); claimed {
		t.Fatal("claim should still be live before TTL elapses")
	}

	mc.Advance(2 * time.Second)
	if claimed, _ := s.TryClaim(ctx, "k"); !claimed {
		t.Fatal("claim should be reclaimable once the TTL has elapsed")
	}
}

func TestInMemoryTTLSet_ZeroTTLRejectsNothing(t *testing.T) {
	mc := clock.NewMutable(time.Unix(0, 0))
	s, err := NewInMemoryTTLSet(0, mc)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		claimed, err := s.TryClaim(ctx, "k")
		if err != nil || !claimed {
			t.Fatalf("zero TTL should never hold a claim, iteration %d: claimed=%v err=%v", i, claimed, err)
		}
	}
}

func TestInMemoryTTLSet_NegativeTTLRejected(t *testing.T) {
	if _, err := NewInMemoryTTLSet(-time.Second, nil); err == nil {
		t.Fatal("expected error for negative TTL")
	}
}

func TestInMemoryTTLSet_ReleaseClearsClaim(t *testing.T) {
	mc := clock.NewMutable(time.Unix(0, 0))
	s, err := NewInMemoryTTLSet(time.Hour, mc)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ctx := context.Background()

	if claimed, _ := s.TryClaim(ctx, "ticket-7"); !claimed {
		t.Fatal("expected claim to succeed")
	}
	if err := s.Release(ctx, "ticket-7"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if claimed, _ := s.TryClaim(ctx, "ticket-7"); !claimed {
		t.Fatal("expected claim to succeed again after release")
	}
}

func TestInMemoryTTLSet_EvictExpiredShrinksSet(t *testing.T) {
	mc := clock.NewMutable(time.Unix(0, 0))
	s, err := NewInMemoryTTLSet(time.Second, mc)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.TryClaim(ctx, string(rune('a'+i))); err != nil {
			t.Fatalf("unexpected: %v", err)
		}
	}
	if got := s.Len(); got != 5 {
		t.Fatalf("expected 5 live keys, got %d", got)
	}

	mc.Advance(2 * time.Second)
	s.EvictExpired()
	if got := s.Len(); got != 0 {
		t.Fatalf("expected eviction to clear expired keys, got %d remaining", got)
	}
}
