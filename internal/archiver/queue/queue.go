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

package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cmdable is the minimal Redis Streams surface the queue needs, so
// tests can substitute a miniredis-backed client without pulling in
// the full redis.Cmdable interface.
type Cmdable interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	XRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
}

// Streams names the two streams the queue uses (the work stream and the
// dead-letter stream), the consumer group name shared by every worker
// in the fleet, and this worker's consumer name.
type Streams struct {
	Work     string
	DLQ      string
	Group    string
	Consumer string
}

// Queue wraps a Redis client with the work/DLQ stream names and
// consumer identity a worker loop needs.
type Queue struct {
	client  Cmdable
	streams Streams
}

func New(client Cmdable, streams Streams) *Queue {
	return &Queue{client: client, streams: streams}
}

// EnsureGroup creates the consumer group at stream position 0 so any
// pre-existing backlog is visible to a freshly started worker fleet.
// BUSYGROUP (the group already exists) is treated as success.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.streams.Work, q.streams.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue: create consumer group: %w", err)
	}
	return nil
}

// Enqueue appends env to the work stream.
func (q *Queue) Enqueue(ctx context.Context, env Envelope) error {
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streams.Work,
		Values: env.Fields(),
	}).Result()
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// DeadLetter appends env (with reason recorded in LastError) to the
// dead-letter stream.
func (q *Queue) DeadLetter(ctx context.Context, env Envelope, reason string) error {
	env.LastError = reason
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streams.DLQ,
		Values: env.Fields(),
	}).Result()
	if err != nil {
		return fmt.Errorf("queue: dead-letter: %w", err)
	}
	return nil
}

// Ack acknowledges and deletes id from the work stream, matching the
// worker loop's ack+delete-together convention so the stream doesn't
// grow unbounded with acked-but-retained entries.
func (q *Queue) Ack(ctx context.Context, id string) error {
	if err := q.client.XAck(ctx, q.streams.Work, q.streams.Group, id).Err(); err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}
	if err := q.client.XDel(ctx, q.streams.Work, id).Err(); err != nil {
		return fmt.Errorf("queue: delete: %w", err)
	}
	return nil
}

// Stats reports queue depth and pending/DLQ counts for the HTTP
// surface's queue-stats endpoint.
type Stats struct {
	Depth    int64
	Pending  int64
	DLQDepth int64
	Consumer string
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	depth, err := q.client.XLen(ctx, q.streams.Work).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("queue: stats depth: %w", err)
	}
	dlqDepth, err := q.client.XLen(ctx, q.streams.DLQ).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("queue: stats dlq depth: %w", err)
	}
	pendingSummary, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streams.Work,
		Group:  q.streams.Group,
		Start:  "-",
		End:    "+",
		Count:  1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("queue: stats pending: %w", err)
	}
	return Stats{
		Depth:    depth,
		Pending:  int64(len(pendingSummary)),
		DLQDepth: dlqDepth,
		Consumer: q.streams.Consumer,
	}, nil
}

// ClaimStale reclaims pending entries idle longer than idleFor from
// other consumers in the group, guarding against a dead peer wedging
// the stream. It returns the claimed messages for the caller to
// process as if freshly delivered.
func (q *Queue) ClaimStale(ctx context.Context, idleFor time.Duration, count int64) ([]redis.XMessage, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streams.Work,
		Group:  q.streams.Group,
		Start:  "-",
		End:    "+",
		Count:  count,
		Idle:   idleFor,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: scan pending: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   q.streams.Work,
		Group:    q.streams.Group,
		Consumer: q.streams.Consumer,
		MinIdle:  idleFor,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: claim stale: %w", err)
	}
	return claimed, nil
}

// ReadOwnPending reads entries already delivered to this consumer but
// never acked, so a restarted worker resumes in-flight work instead of
// losing it.
func (q *Queue) ReadOwnPending(ctx context.Context, count int64) ([]redis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.streams.Group,
		Consumer: q.streams.Consumer,
		Streams:  []string{q.streams.Work, "0"},
		Count:    count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: read own pending: %w", err)
	}
	return messagesFrom(streams, q.streams.Work), nil
}

// ReadNew reads new messages not yet delivered to any consumer,
// blocking up to block for at least one.
func (q *Queue) ReadNew(ctx context.Context, count int64, block time.Duration) ([]redis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.streams.Group,
		Consumer: q.streams.Consumer,
		Streams:  []string{q.streams.Work, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: read new: %w", err)
	}
	return messagesFrom(streams, q.streams.Work), nil
}

// DrainDLQ deletes up to limit entries from the dead-letter stream,
// oldest first, and reports how many were removed.
func (q *Queue) DrainDLQ(ctx context.Context, limit int64) (int64, error) {
	if limit < 1 {
		return 0, nil
	}
	entries, err := q.client.XRangeN(ctx, q.streams.DLQ, "-", "+", limit).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: drain dlq scan: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := q.client.XDel(ctx, q.streams.DLQ, ids...).Err(); err != nil {
		return 0, fmt.Errorf("queue: drain dlq delete: %w", err)
	}
	return int64(len(ids)), nil
}

func messagesFrom(streams []redis.XStream, name string) []redis.XMessage {
	for _, s := range streams {
		if s.Stream == name {
			return s.Messages
		}
	}
	return nil
}
