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
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleMetrics implements GET /metrics: Prometheus text exposition,
// optionally behind a bearer token.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	expected := strings.TrimSpace(s.Config.MetricsBearerToken)
	if expected != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) < 8 {
			http.Error(w, "Unauthorized\n", http.StatusUnauthorized)
			return
		}
		provided := strings.TrimSpace(auth[len("Bearer "):])
		if !hmac.Equal([]byte(expected), []byte(provided)) {
			http.Error(w, "Unauthorized\n", http.StatusUnauthorized)
			return
		}
	}

	promhttp.Handler().ServeHTTP(w, r)
}
