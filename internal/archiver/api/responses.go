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

// Package api implements the public HTTP surface: webhook intake,
// manual replay, job/queue introspection, the admin dashboard, and the
// Prometheus/health endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"ticketarchiver/internal/archiver/telemetry"
)

func writeJSON(w http.ResponseWriter, route string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	telemetry.ObserveHTTPRequest(route, telemetry.StatusClass(status))
}

// apiError writes a JSON error body in the {detail, code?, hint?} shape.
func apiError(w http.ResponseWriter, route string, status int, detail string, code, hint string) {
	body := map[string]string{"detail": detail}
	if code != "" {
		body["code"] = code
	}
	if hint != "" {
		body["hint"] = hint
	}
	writeJSON(w, route, status, body)
}
