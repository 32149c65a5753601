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

// Package idempotency provides delivery-ID dedup and per-ticket mutual
// exclusion, each with an in-process and a Redis-backed implementation,
// plus a coordinator that layers a local lock in front of a distributed
// one so a single process never races itself even when Redis is down.
package idempotency

import "context"

// ClaimStore deduplicates opaque keys (webhook delivery IDs) for a
// bounded TTL window.
type ClaimStore interface {
	// TryClaim atomically records key as seen if it was not already
	// seen within the TTL window. It returns true if this call claimed
	// the key (caller should proceed), false if it was already claimed
	// (caller should skip as a duplicate).
	TryClaim(ctx context.Context, key string) (bool, error)
	Seen(ctx context.Context, key string) (bool, error)
	Close() error
}

// LockStore provides simple mutual exclusion keyed by an opaque ID
// (a ticket ID), backed by a TTL so a crashed holder doesn't wedge the
// lock forever.
type LockStore interface {
	TryClaim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}
