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

// Package history records and replays a capped, append-only log of
// every archival outcome (success, failure, skip) for the HTTP
// surface's history endpoint and for operator troubleshooting.
package history

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ticketarchiver/internal/archiver/redact"
)

// Cmdable is the minimal Redis Streams surface the history log needs.
type Cmdable interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRevRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
}

const maxMessageLen = 500

// Entry is one normalized history record.
type Entry struct {
	ID             string
	Status         string
	TicketID       *int64
	Classification string
	Message        string
	DeliveryID     string
	RequestID      string
	CreatedAt      float64
}

// Log is an append-only, capped history of archival outcomes, backed
// by a Redis stream with approximate maxlen trimming.
type Log struct {
	client Cmdable
	stream string
	maxLen int64
	nowSec func() float64
}

func New(client Cmdable, stream string, maxLen int64, nowSec func() float64) *Log {
	return &Log{client: client, stream: stream, maxLen: maxLen, nowSec: nowSec}
}

// Enabled reports whether this log has a backing client configured.
// A nil client means history recording is disabled, matching the
// upstream behavior of silently no-op'ing rather than failing writes.
func (l *Log) Enabled() bool {
	return l != nil && l.client != nil && l.maxLen > 0
}

// Record appends one normalized outcome to the stream, scrubbing any
// secret-shaped text out of message first. Write failures are logged
// and swallowed; history is diagnostic, never load-bearing.
func (l *Log) Record(ctx context.Context, status string, ticketID *int64, classification, message, deliveryID, requestID string) {
	if !l.Enabled() {
		return
	}

	ticketField := ""
	if ticketID != nil {
		ticketField = strconv.FormatInt(*ticketID, 10)
	}

	fields := map[string]interface{}{
		"status":         status,
		"ticket_id":      ticketField,
		"classification": classification,
		"message":        boundedMessage(message),
		"delivery_id":    deliveryID,
		"request_id":     requestID,
		"created_at":     strconv.FormatFloat(l.nowSec(), 'f', -1, 64),
	}

	_, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxLen,
		Approx: true,
		Values: fields,
	}).Result()
	if err != nil {
		log.WithError(err).Warn("history: record failed")
	}
}

// RecordInvalidMessage records a terminal, permanent outcome for an
// envelope that could not be decoded, satisfying queue.HistoryRecorder.
func (l *Log) RecordInvalidMessage(ctx context.Context, reason string) {
	l.Record(ctx, "failed_permanent", nil, "permanent", reason, "", "")
}

func boundedMessage(message string) string {
	cleaned := redact.ScrubSecretsInText(strings.TrimSpace(message))
	if len(cleaned) > maxMessageLen {
		return cleaned[:maxMessageLen]
	}
	return cleaned
}

// Read returns up to limit entries, most recent first, optionally
// filtered to one ticket ID. When filtering, it over-fetches (up to 8x
// limit, capped at 10000) so a sparse stream doesn't return an
// artificially short page.
func (l *Log) Read(ctx context.Context, limit int, ticketID *int64) []Entry {
	if !l.Enabled() {
		return nil
	}

	bounded := limit
	if bounded < 1 {
		bounded = 1
	}
	if bounded > 5000 {
		bounded = 5000
	}

	fetchCount := int64(bounded)
	if ticketID != nil {
		fetchCount = int64(bounded) * 8
		if fetchCount > 10000 {
			fetchCount = 10000
		}
	}

	raw, err := l.client.XRevRangeN(ctx, l.stream, "+", "-", fetchCount).Result()
	if err != nil {
		log.WithError(err).Warn("history: read failed")
		return nil
	}

	out := make([]Entry, 0, bounded)
	for _, entry := range raw {
		item := normalizeEntry(entry)
		if ticketID != nil && (item.TicketID == nil || *item.TicketID != *ticketID) {
			continue
		}
		out = append(out, item)
		if len(out) >= bounded {
			break
		}
	}
	return out
}

func normalizeEntry(entry redis.XMessage) Entry {
	item := Entry{ID: entry.ID}
	item.Status, _ = entry.Values["status"].(string)
	item.Classification, _ = entry.Values["classification"].(string)
	item.Message, _ = entry.Values["message"].(string)
	item.DeliveryID, _ = entry.Values["delivery_id"].(string)
	item.RequestID, _ = entry.Values["request_id"].(string)

	if raw, ok := entry.Values["ticket_id"].(string); ok && raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			item.TicketID = &n
		}
	}
	if raw, ok := entry.Values["created_at"].(string); ok && raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			item.CreatedAt = f
		}
	}
	return item
}
