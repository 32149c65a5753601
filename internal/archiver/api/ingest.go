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

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"ticketarchiver/internal/archiver/core"
	"ticketarchiver/internal/archiver/queue"
)

func decodePayload(r *http.Request) (map[string]any, error) {
	var payload map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func buildEnvelope(deliveryID string, payload map[string]any) (queue.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return queue.Envelope{}, err
	}
	return queue.Envelope{PayloadJSON: string(raw), DeliveryID: deliveryID}, nil
}

func (s *Server) shuttingDown(w http.ResponseWriter, route string) bool {
	if s.Lifecyle != nil && s.Lifecyle.ShuttingDown() {
		apiError(w, route, http.StatusServiceUnavailable, "Service is shutting down", "shutting_down", "")
		return true
	}
	return false
}

// handleIngest implements POST /ingest: the webhook entry point.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if s.shuttingDown(w, "/ingest") {
		return
	}

	payload, err := decodePayload(r)
	if err == errBodyTooLarge {
		apiError(w, "/ingest", http.StatusRequestEntityTooLarge, "request_too_large", "request_too_large", "")
		return
	}
	if err != nil {
		apiError(w, "/ingest", http.StatusUnprocessableEntity, "invalid_payload", "invalid_payload", "")
		return
	}

	ticketID := core.ExtractTicketID(payload)
	if ticketID == 0 {
		apiError(w, "/ingest", http.StatusUnprocessableEntity, "Payload must contain ticket.id or ticket_id (positive integer)", "invalid_payload", "")
		return
	}

	deliveryID := strings.TrimSpace(r.Header.Get(deliveryIDHeader))
	payload["request_id"] = requestIDFrom(r.Context())

	s.dispatch(deliveryID, payload)

	writeJSON(w, "/ingest", http.StatusAccepted, map[string]any{"status": "accepted", "ticket_id": ticketID})
}

// handleIngestBatch implements POST /ingest/batch: accepts an array of
// payloads, dispatching every one that resolves a ticket id.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if s.shuttingDown(w, "/ingest/batch") {
		return
	}

	var payloads []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
		apiError(w, "/ingest/batch", http.StatusUnprocessableEntity, "invalid_payload", "invalid_payload", "")
		return
	}

	requestID := requestIDFrom(r.Context())
	accepted := 0
	for _, payload := range payloads {
		ticketID := core.ExtractTicketID(payload)
		if ticketID == 0 {
			continue
		}
		payload["request_id"] = requestID
		s.dispatch("", payload)
		accepted++
	}

	writeJSON(w, "/ingest/batch", http.StatusAccepted, map[string]any{"status": "accepted", "count": accepted})
}

// handleRetry implements POST /retry/{ticket_id}: manual replay without
// delivery-id dedup.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if s.shuttingDown(w, "/retry") {
		return
	}

	idText := strings.TrimPrefix(r.URL.Path, "/retry/")
	ticketID, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || ticketID < 1 {
		apiError(w, "/retry", http.StatusUnprocessableEntity, "invalid_ticket_id", "invalid_ticket_id", "")
		return
	}

	payload := map[string]any{
		"ticket_id":  ticketID,
		"request_id": requestIDFrom(r.Context()),
	}
	s.dispatch("", payload)

	writeJSON(w, "/retry", http.StatusAccepted, map[string]any{"status": "accepted", "ticket_id": ticketID})
}
