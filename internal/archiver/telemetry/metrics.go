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

// Package telemetry exposes the service's Prometheus metrics: pipeline
// throughput and latency, and queue worker outcomes. It implements the
// narrow Metrics interfaces the core pipeline and queue worker depend
// on, so neither package imports Prometheus directly.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticketsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archiver_tickets_processed_total",
		Help: "Total tickets successfully archived.",
	})
	ticketsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archiver_tickets_failed_total",
		Help: "Total tickets whose archiving failed.",
	})
	ticketsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archiver_tickets_skipped_total",
		Help: "Total tickets skipped by the pipeline, labeled by reason.",
	}, []string{"reason"})

	renderSecondsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archiver_render_seconds",
		Help:    "Time spent rendering a ticket snapshot to PDF.",
		Buckets: prometheus.DefBuckets,
	})
	signSecondsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archiver_sign_seconds",
		Help:    "Time spent signing a rendered PDF.",
		Buckets: prometheus.DefBuckets,
	})
	totalSecondsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archiver_pipeline_seconds",
		Help:    "End-to-end time spent processing one ticket through the pipeline.",
		Buckets: prometheus.DefBuckets,
	})

	queueProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archiver_queue_processed_total",
		Help: "Total queue envelopes that completed the pipeline successfully.",
	})
	queueRetriedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archiver_queue_retried_total",
		Help: "Total queue envelopes re-enqueued after a transient failure.",
	})
	queueDLQTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archiver_queue_dlq_total",
		Help: "Total queue envelopes moved to the dead letter stream.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archiver_http_requests_total",
		Help: "Total HTTP requests handled, labeled by route and status class.",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(
		ticketsProcessedTotal,
		ticketsFailedTotal,
		ticketsSkippedTotal,
		renderSecondsHistogram,
		signSecondsHistogram,
		totalSecondsHistogram,
		queueProcessedTotal,
		queueRetriedTotal,
		queueDLQTotal,
		httpRequestsTotal,
	)
}

// PipelineMetrics implements core.Metrics against the package-level
// Prometheus collectors above.
type PipelineMetrics struct{}

func (PipelineMetrics) IncProcessed() { ticketsProcessedTotal.Inc() }
func (PipelineMetrics) IncFailed()    { ticketsFailedTotal.Inc() }
func (PipelineMetrics) IncSkipped(reason string) {
	ticketsSkippedTotal.WithLabelValues(reason).Inc()
}
func (PipelineMetrics) ObserveRenderSeconds(d time.Duration) { renderSecondsHistogram.Observe(d.Seconds()) }
func (PipelineMetrics) ObserveSignSeconds(d time.Duration)   { signSecondsHistogram.Observe(d.Seconds()) }
func (PipelineMetrics) ObserveTotalSeconds(d time.Duration)  { totalSecondsHistogram.Observe(d.Seconds()) }

// QueueMetrics implements queue.Metrics against the same registry.
type QueueMetrics struct{}

func (QueueMetrics) IncQueueProcessed() { queueProcessedTotal.Inc() }
func (QueueMetrics) IncQueueRetried()   { queueRetriedTotal.Inc() }
func (QueueMetrics) IncQueueDLQ()       { queueDLQTotal.Inc() }

// ObserveHTTPRequest records one completed HTTP request, labeled by
// route template and status class (e.g. "2xx", "4xx", "5xx").
func ObserveHTTPRequest(route string, statusClass string) {
	httpRequestsTotal.WithLabelValues(route, statusClass).Inc()
}

// StatusClass buckets an HTTP status code into its class label.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
