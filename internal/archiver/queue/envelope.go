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

// Package queue durably dispatches webhook deliveries to the
// processing pipeline using a Redis Streams consumer group, with
// exponential-backoff delayed redelivery and a dead-letter stream for
// exhausted or malformed entries.
package queue

import (
	"encoding/json"
	"fmt"
)

// Envelope is one unit of work on the work stream.
type Envelope struct {
	PayloadJSON string `json:"payload_json"`
	DeliveryID  string `json:"delivery_id"`
	Attempt     int    `json:"attempt"`
	NotBeforeTS int64  `json:"not_before_ts"`
	EnqueuedAt  int64  `json:"enqueued_at"`
	LastError   string `json:"last_error,omitempty"`
}

const maxLastErrorLen = 500

// Fields renders the envelope as a Redis stream field map (XADD
// values), truncating LastError to maxLastErrorLen.
func (e Envelope) Fields() map[string]interface{} {
	lastErr := e.LastError
	if len(lastErr) > maxLastErrorLen {
		lastErr = lastErr[:maxLastErrorLen]
	}
	return map[string]interface{}{
		"payload_json":  e.PayloadJSON,
		"delivery_id":   e.DeliveryID,
		"attempt":       e.Attempt,
		"not_before_ts": e.NotBeforeTS,
		"enqueued_at":   e.EnqueuedAt,
		"last_error":    lastErr,
	}
}

// EnvelopeFromFields decodes a Redis stream entry's field map back
// into an Envelope. It returns an error if required fields are
// missing or malformed, so the caller can route the raw entry to the
// dead-letter stream rather than crash the worker loop.
func EnvelopeFromFields(fields map[string]interface{}) (Envelope, error) {
	var e Envelope
	payload, ok := fields["payload_json"].(string)
	if !ok {
		return e, fmt.Errorf("queue: envelope missing payload_json")
	}
	e.PayloadJSON = payload
	e.DeliveryID, _ = fields["delivery_id"].(string)
	e.LastError, _ = fields["last_error"].(string)

	attempt, err := toInt64(fields["attempt"])
	if err != nil {
		return e, fmt.Errorf("queue: envelope attempt: %w", err)
	}
	e.Attempt = int(attempt)

	notBefore, err := toInt64(fields["not_before_ts"])
	if err != nil {
		return e, fmt.Errorf("queue: envelope not_before_ts: %w", err)
	}
	e.NotBeforeTS = notBefore

	enqueuedAt, err := toInt64(fields["enqueued_at"])
	if err != nil {
		return e, fmt.Errorf("queue: envelope enqueued_at: %w", err)
	}
	e.EnqueuedAt = enqueuedAt

	if !json.Valid([]byte(e.PayloadJSON)) {
		return e, fmt.Errorf("queue: envelope payload_json is not valid json")
	}
	return e, nil
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported numeric field type %T", v)
	}
}

// Payload unmarshals PayloadJSON into a generic webhook payload map.
func (e Envelope) Payload() (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(e.PayloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("queue: decode payload_json: %w", err)
	}
	return payload, nil
}
