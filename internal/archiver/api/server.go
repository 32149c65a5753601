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
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"ticketarchiver/internal/archiver/core"
	"ticketarchiver/internal/archiver/history"
	"ticketarchiver/internal/archiver/idempotency"
	"ticketarchiver/internal/archiver/lifecycle"
	"ticketarchiver/internal/archiver/queue"
)

// Config holds the HTTP surface's own settings: the ones not owned by
// any one collaborator (pipeline, queue, history) but needed to wire
// middleware and guard the ops/admin endpoints.
type Config struct {
	WebhookHMACSecret         string
	LegacyWebhookSecret       string
	AllowUnsigned             bool
	AllowUnsignedWhenNoSecret bool
	RequireDeliveryID         bool

	RateLimitEnabled        bool
	RateLimitRPS            float64
	RateLimitBurst          int
	RateLimitIncludeMetrics bool
	ClientKeyHeader         string

	BodySizeLimitBytes int64

	ExecutionBackend string // "redis_queue" or "inprocess"

	AdminEnabled     bool
	AdminBearerToken string
	OpsBearerToken   string

	MetricsBearerToken string
	HealthzOmitVersion bool

	ServiceName    string
	ServiceVersion string
}

// Server is the public HTTP surface: webhook intake, manual replay,
// job/queue introspection, the admin dashboard, and the
// Prometheus/health endpoints.
type Server struct {
	Config   Config
	Pipeline *core.Pipeline
	Queue    *queue.Queue
	History  *history.Log
	Tickets  *idempotency.TicketCoordinator
	Lifecyle *lifecycle.Manager

	limiter *rateLimiter
}

func NewServer(cfg Config, pipeline *core.Pipeline, q *queue.Queue, h *history.Log, tickets *idempotency.TicketCoordinator, lc *lifecycle.Manager) *Server {
	s := &Server{
		Config:   cfg,
		Pipeline: pipeline,
		Queue:    q,
		History:  h,
		Tickets:  tickets,
		Lifecyle: lc,
	}
	if cfg.RateLimitEnabled {
		s.limiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, nil)
	}
	return s
}

// RegisterRoutes mounts every endpoint and wraps them with the
// request-id, rate-limit, body-size-limit, and HMAC middleware in that
// order (outermost first).
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/ingest/batch", s.handleIngestBatch)
	mux.HandleFunc("/retry/", s.handleRetry)
	mux.HandleFunc("/jobs/queue/stats", s.handleQueueStats)
	mux.HandleFunc("/jobs/history", s.handleHistory)
	mux.HandleFunc("/jobs/queue/dlq/drain", s.handleDrainDLQ)
	mux.HandleFunc("/jobs/", s.handleJobStatus)
	mux.HandleFunc("/admin", s.handleAdminDashboard)
	mux.HandleFunc("/admin/api/queue/stats", s.handleQueueStats)
	mux.HandleFunc("/admin/api/history", s.handleHistory)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

// Handler wraps mux with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	guarded := map[string]bool{"/ingest": true}
	if s.Config.RateLimitIncludeMetrics {
		guarded["/metrics"] = true
	}

	var h http.Handler = mux
	h = hmacVerifyMiddleware(s.Config, h)
	h = bodySizeLimitMiddleware(s.Config.BodySizeLimitBytes, "/ingest", h)
	h = rateLimitMiddleware(s.limiter, s.Config.ClientKeyHeader, guarded, h)
	h = requestIDMiddleware(h)
	return h
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("api: listening")
	return httpServer.ListenAndServe()
}

// dispatch runs the pipeline for one payload, either onto the durable
// queue or as a tracked background task, matching the
// intake-validates-then-hands-off contract: the HTTP response never
// waits on the pipeline itself.
func (s *Server) dispatch(deliveryID string, payload map[string]any) {
	if s.Config.ExecutionBackend == "redis_queue" && s.Queue != nil {
		env, err := buildEnvelope(deliveryID, payload)
		if err != nil {
			log.WithError(err).Warn("api: failed to build queue envelope, falling back to in-process dispatch")
		} else if err := s.Queue.Enqueue(context.Background(), env); err != nil {
			log.WithError(err).Warn("api: failed to enqueue, falling back to in-process dispatch")
		} else {
			return
		}
	}

	s.Lifecyle.TrackTask(func() {
		if err := s.Pipeline.Process(context.Background(), deliveryID, payload); err != nil {
			log.WithError(err).WithField("delivery_id", deliveryID).Warn("api: in-process pipeline run failed")
		}
	})
}
