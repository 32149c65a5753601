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

package history

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLog(t *testing.T, maxLen int64) *Log {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tick := 1700000000.0
	return New(client, "archiver:history", maxLen, func() float64 {
		tick++
		return tick
	})
}

func ptr(n int64) *int64 { return &n }

func TestLog_RecordAndRead(t *testing.T) {
	l := newTestLog(t, 1000)
	ctx := context.Background()

	l.Record(ctx, "processed", ptr(42), "", "archived ok", "d1", "r1")
	l.Record(ctx, "failed_transient", ptr(43), "transient", "upstream 503", "d2", "r2")

	entries := l.Read(ctx, 10, nil)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != "failed_transient" {
		t.Fatalf("expected most recent first, got %+v", entries[0])
	}
}

func TestLog_ReadFiltersByTicketID(t *testing.T) {
	l := newTestLog(t, 1000)
	ctx := context.Background()

	l.Record(ctx, "processed", ptr(1), "", "ok", "d1", "r1")
	l.Record(ctx, "processed", ptr(2), "", "ok", "d2", "r2")
	l.Record(ctx, "processed", ptr(1), "", "ok again", "d3", "r3")

	entries := l.Read(ctx, 10, ptr(1))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for ticket 1, got %d", len(entries))
	}
	for _, e := range entries {
		if e.TicketID == nil || *e.TicketID != 1 {
			t.Fatalf("unexpected entry leaked through filter: %+v", e)
		}
	}
}

func TestLog_RecordScrubsSecrets(t *testing.T) {
	l := newTestLog(t, 1000)
	ctx := context.Background()

	l.Record(ctx, "failed_permanent", nil, "permanent", "Authorization: Bearer abcdef123456", "", "")

	entries := l.Read(ctx, 10, nil)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if strings.Contains(entries[0].Message, "abcdef123456") {
		t.Fatalf("expected secret to be scrubbed, got %q", entries[0].Message)
	}
}

func TestLog_DisabledWhenMaxLenZero(t *testing.T) {
	l := newTestLog(t, 0)
	if l.Enabled() {
		t.Fatal("expected log to be disabled when maxLen is 0")
	}
	ctx := context.Background()
	l.Record(ctx, "processed", ptr(1), "", "ok", "", "")
	if got := l.Read(ctx, 10, nil); got != nil {
		t.Fatalf("expected nil read result when disabled, got %+v", got)
	}
}

func TestLog_RecordInvalidMessage(t *testing.T) {
	l := newTestLog(t, 1000)
	ctx := context.Background()

	l.RecordInvalidMessage(ctx, "queue: envelope missing payload_json")

	entries := l.Read(ctx, 10, nil)
	if len(entries) != 1 || entries[0].Status != "failed_permanent" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
