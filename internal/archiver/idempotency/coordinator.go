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

	log "github.com/sirupsen/logrus"
)

// TicketCoordinator layers an in-process lock in front of an optional
// distributed LockStore, so a single process never races itself on a
// ticket ID even when the distributed backend is unreachable.
//
// Acquire order is local-then-distributed; release order is the
// reverse. If the distributed claim fails, the local lock is rolled
// back so the ticket isn't wedged. If the distributed store itself
// errors (Redis down), the coordinator logs a warning and falls back
// to local-only exclusion rather than blocking ingestion.
type TicketCoordinator struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
	distLock LockStore // nil disables the distributed layer
}

func NewTicketCoordinator(distLock LockStore) *TicketCoordinator {
	return &TicketCoordinator{
		inFlight: make(map[int64]struct{}),
		distLock: distLock,
	}
}

// TryAcquire attempts to take exclusive ownership of ticketID for the
// duration of one pipeline run. It returns false (no error) if another
// concurrent run already holds the ticket.
func (c *TicketCoordinator) TryAcquire(ctx context.Context, ticketID int64) (bool, error) {
	c.mu.Lock()
	if _, busy := c.inFlight[ticketID]; busy {
		c.mu.Unlock()
		return false, nil
	}
	c.inFlight[ticketID] = struct{}{}
	c.mu.Unlock()

	if c.distLock == nil {
		return true, nil
	}

	key := fmt.Sprintf("%d", ticketID)
	claimed, err := c.distLock.TryClaim(ctx, key)
	if err != nil {
		log.WithFields(log.Fields{"ticket_id": ticketID}).Warn("idempotency: distributed ticket lock unreachable, falling back to local-only exclusion")
		return true, nil
	}
	if !claimed {
		c.mu.Lock()
		delete(c.inFlight, ticketID)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// InFlight reports whether ticketID is currently held by this process.
// It only consults the local lock: a ticket held by another process
// via the distributed layer alone is not visible here.
func (c *TicketCoordinator) InFlight(ticketID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inFlight[ticketID]
	return busy
}

// Release reverses TryAcquire: distributed lock first (best effort),
// then the local lock.
func (c *TicketCoordinator) Release(ctx context.Context, ticketID int64) {
	if c.distLock != nil {
		key := fmt.Sprintf("%d", ticketID)
		if err := c.distLock.Release(ctx, key); err != nil {
			log.WithFields(log.Fields{"ticket_id": ticketID}).Warn("idempotency: distributed ticket unlock failed")
		}
	}
	c.mu.Lock()
	delete(c.inFlight, ticketID)
	c.mu.Unlock()
}

// DeliveryCoordinator wraps a ClaimStore (or nil to disable
// idempotency) behind a single entry point for webhook delivery
// dedup.
type DeliveryCoordinator struct {
	store ClaimStore // nil disables idempotency entirely
}

func NewDeliveryCoordinator(store ClaimStore) *DeliveryCoordinator {
	return &DeliveryCoordinator{store: store}
}

// TryClaim returns true if deliveryID was newly claimed and the caller
// should proceed, false if it is a replay that should be skipped. With
// idempotency disabled (store == nil) every delivery is treated as new.
func (d *DeliveryCoordinator) TryClaim(ctx context.Context, deliveryID string) (bool, error) {
	if d.store == nil {
		return true, nil
	}
	return d.store.TryClaim(ctx, deliveryID)
}
