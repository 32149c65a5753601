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
	"net/http"
)

const adminDashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>ticket archiver admin</title>
</head>
<body>
  <h1>ticket archiver</h1>
  <p>Queue stats: <code>/admin/api/queue/stats</code></p>
  <p>History: <code>/admin/api/history?limit=100&ticket_id=</code></p>
  <p>Requests to the api/ routes above require Authorization: Bearer &lt;admin token&gt;.</p>
</body>
</html>
`

// handleAdminDashboard implements GET /admin: a minimal HTML shell
// pointing operators at the bearer-guarded JSON endpoints under
// /admin/api/.
func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !s.Config.AdminEnabled {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(adminDashboardHTML))
}
