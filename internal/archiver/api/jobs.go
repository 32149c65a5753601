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
	"crypto/hmac"
	"net/http"
	"strconv"
	"strings"
)

// authorizeBearer compares the request's Authorization: Bearer header
// against expected in constant time. An empty expected token always
// fails closed (503, the ops surface isn't configured).
func authorizeBearer(w http.ResponseWriter, route, expected string, r *http.Request) bool {
	if strings.TrimSpace(expected) == "" {
		apiError(w, route, http.StatusServiceUnavailable, "ops_token_not_configured", "ops_token_not_configured", "")
		return false
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || len(auth) < 8 {
		apiError(w, route, http.StatusUnauthorized, "unauthorized", "unauthorized", "")
		return false
	}
	provided := strings.TrimSpace(auth[len("Bearer "):])
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		apiError(w, route, http.StatusUnauthorized, "unauthorized", "unauthorized", "")
		return false
	}
	return true
}

// handleJobStatus implements GET /jobs/{ticket_id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	idText := strings.TrimPrefix(r.URL.Path, "/jobs/")
	ticketID, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		apiError(w, "/jobs/{ticket_id}", http.StatusUnprocessableEntity, "invalid_ticket_id", "invalid_ticket_id", "")
		return
	}

	inFlight := s.Tickets != nil && s.Tickets.InFlight(ticketID)
	shuttingDown := s.Lifecyle != nil && s.Lifecyle.ShuttingDown()

	writeJSON(w, "/jobs/{ticket_id}", http.StatusOK, map[string]any{
		"ticket_id":     ticketID,
		"in_flight":     inFlight,
		"shutting_down": shuttingDown,
	})
}

// handleQueueStats implements GET /jobs/queue/stats.
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/admin/") {
		if !authorizeBearer(w, r.URL.Path, s.Config.AdminBearerToken, r) {
			return
		}
	}

	if s.Config.ExecutionBackend != "redis_queue" || s.Queue == nil {
		writeJSON(w, r.URL.Path, http.StatusOK, map[string]any{
			"execution_backend": executionBackendOrDefault(s.Config.ExecutionBackend),
			"queue_enabled":      false,
		})
		return
	}

	stats, err := s.Queue.Stats(r.Context())
	if err != nil {
		writeJSON(w, r.URL.Path, http.StatusServiceUnavailable, map[string]any{
			"execution_backend": s.Config.ExecutionBackend,
			"queue_enabled":      false,
			"status":             "error",
			"detail":             "queue_unavailable",
		})
		return
	}

	writeJSON(w, r.URL.Path, http.StatusOK, map[string]any{
		"execution_backend": s.Config.ExecutionBackend,
		"queue_enabled":      true,
		"consumer":           stats.Consumer,
		"queue_depth":        stats.Depth,
		"pending":            stats.Pending,
		"dlq_depth":          stats.DLQDepth,
	})
}

func executionBackendOrDefault(backend string) string {
	if strings.TrimSpace(backend) == "" {
		return "inprocess"
	}
	return backend
}

// handleHistory implements GET /jobs/history?limit&ticket_id.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	token := s.Config.OpsBearerToken
	if strings.HasPrefix(r.URL.Path, "/admin/") {
		token = s.Config.AdminBearerToken
	}
	if !authorizeBearer(w, r.URL.Path, token, r) {
		return
	}
	if s.History == nil || !s.History.Enabled() {
		apiError(w, r.URL.Path, http.StatusServiceUnavailable, "history_unavailable", "history_unavailable", "")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 5000 {
		limit = 5000
	}

	var ticketID *int64
	if raw := r.URL.Query().Get("ticket_id"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ticketID = &n
		}
	}

	items := s.History.Read(r.Context(), limit, ticketID)
	writeJSON(w, r.URL.Path, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  len(items),
		"items":  items,
	})
}

// handleDrainDLQ implements POST /jobs/queue/dlq/drain?limit.
func (s *Server) handleDrainDLQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !authorizeBearer(w, r.URL.Path, s.Config.OpsBearerToken, r) {
		return
	}
	if s.Queue == nil {
		apiError(w, r.URL.Path, http.StatusServiceUnavailable, "dlq_unavailable", "dlq_unavailable", "")
		return
	}

	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	drained, err := s.Queue.DrainDLQ(r.Context(), limit)
	if err != nil {
		apiError(w, r.URL.Path, http.StatusServiceUnavailable, "dlq_unavailable", "dlq_unavailable", "")
		return
	}

	writeJSON(w, r.URL.Path, http.StatusOK, map[string]any{"status": "ok", "drained": drained})
}
