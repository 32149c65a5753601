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
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ticketarchiver/internal/archiver/core"
	"ticketarchiver/internal/archiver/core/snapshot"
	"ticketarchiver/internal/archiver/idempotency"
	"ticketarchiver/internal/archiver/lifecycle"
	"ticketarchiver/internal/archiver/render"
	"ticketarchiver/internal/archiver/storage"
	"ticketarchiver/internal/archiver/ticketing"
)

type fakeTicketingClient struct {
	mu     sync.Mutex
	ticket ticketing.Ticket
	tags   []string
	calls  []string
}

func (f *fakeTicketingClient) GetTicket(ctx context.Context, ticketID int64) (*ticketing.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetTicket")
	t := f.ticket
	return &t, nil
}

func (f *fakeTicketingClient) ListTags(ctx context.Context, ticketID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags...), nil
}

func (f *fakeTicketingClient) ListArticles(ctx context.Context, ticketID int64) ([]ticketing.Article, error) {
	return nil, nil
}

func (f *fakeTicketingClient) GetAttachmentContent(ctx context.Context, ticketID, articleID, attachmentID int64) ([]byte, error) {
	return nil, nil
}

func (f *fakeTicketingClient) AddTag(ctx context.Context, ticketID int64, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tag)
	return nil
}

func (f *fakeTicketingClient) RemoveTag(ctx context.Context, ticketID int64, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.tags[:0]
	for _, t := range f.tags {
		if t != tag {
			out = append(out, t)
		}
	}
	f.tags = out
	return nil
}

func (f *fakeTicketingClient) CreateInternalArticle(ctx context.Context, ticketID int64, subject, bodyHTML string) error {
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, snap *snapshot.TicketSnapshot, template string, opts render.Options) ([]byte, error) {
	return []byte("%PDF-1.4 fake"), nil
}

func newTestServer(t *testing.T) (*Server, *fakeTicketingClient) {
	t.Helper()
	client := &fakeTicketingClient{
		ticket: ticketing.Ticket{ID: 42, Number: "T-42", Title: "hello"},
		tags:   []string{"pdf:sign"},
	}

	pipeline := &core.Pipeline{
		Client:              client,
		Renderer:            fakeRenderer{},
		Writer:              storage.New(t.TempDir(), false),
		TicketCoordinator:   idempotency.NewTicketCoordinator(nil),
		DeliveryCoordinator: idempotency.NewDeliveryCoordinator(nil),
		Now:                 func() time.Time { return time.Unix(1700000000, 0) },
		Config: core.Config{
			Fields: core.FieldsConfig{ArchiveUserMode: "archive_user_mode", ArchiveUser: "archive_user"},
			Storage: core.StorageConfig{
				AllowPrefixes:   []string{"archive"},
				FilenamePattern: "{ticket_number}_{date_utc}.pdf",
			},
			PDF: core.PDFConfig{Template: "default", MaxArticles: 100, ArticleLimitMode: render.CapPolicyFail},
			Workflow: core.WorkflowConfig{
				TriggerTag:           "pdf:sign",
				RequireTag:           true,
				AcknowledgeOnSuccess: true,
			},
		},
	}

	srv := NewServer(Config{
		ExecutionBackend:   "inprocess",
		ServiceName:        "ticket-archiver",
		ServiceVersion:     "0.1.0",
		AdminEnabled:       true,
		AdminBearerToken:   "admin-secret",
		OpsBearerToken:     "ops-secret",
		MetricsBearerToken: "",
	}, pipeline, nil, nil, pipeline.TicketCoordinator, lifecycle.NewManager())

	return srv, client
}

func TestHandleHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handleHealthz(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleHealthz_OmitsVersionWhenConfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.HealthzOmitVersion = true
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handleHealthz(rec, req)
	if strings.Contains(rec.Body.String(), "version") {
		t.Fatalf("expected version omitted, got %s", rec.Body.String())
	}
}

func TestHandleJobStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs/42", nil)
	rec := httptest.NewRecorder()
	srv.handleJobStatus(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ticket_id":42`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleJobStatus_InvalidTicketID(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-number", nil)
	rec := httptest.NewRecorder()
	srv.handleJobStatus(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleQueueStats_InProcessBackend(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs/queue/stats", nil)
	rec := httptest.NewRecorder()
	srv.handleQueueStats(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"queue_enabled":false`) {
		t.Fatalf("expected queue disabled for inprocess backend, got %s", rec.Body.String())
	}
}

func TestHandleHistory_RequiresBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs/history", nil)
	rec := httptest.NewRecorder()
	srv.handleHistory(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestHandleHistory_WrongBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs/history", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	srv.handleHistory(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong bearer token, got %d", rec.Code)
	}
}

func TestHandleDrainDLQ_NoQueueConfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/jobs/queue/dlq/drain", nil)
	req.Header.Set("Authorization", "Bearer ops-secret")
	rec := httptest.NewRecorder()
	srv.handleDrainDLQ(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no queue configured, got %d", rec.Code)
	}
}

func TestHandleAdminDashboard_DisabledIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.AdminEnabled = false
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	srv.handleAdminDashboard(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when admin disabled, got %d", rec.Code)
	}
}

func TestHandleAdminDashboard_EnabledServesHTML(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	srv.handleAdminDashboard(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Fatalf("expected HTML body, got %s", rec.Body.String())
	}
}

func TestHandleIngest_DispatchesAndReturns202(t *testing.T) {
	srv, client := newTestServer(t)
	body := strings.NewReader(`{"ticket_id": 42}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	rec := httptest.NewRecorder()
	srv.handleIngest(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	srv.Lifecyle.Wait(2 * time.Second)

	client.mu.Lock()
	calls := append([]string(nil), client.calls...)
	client.mu.Unlock()
	if len(calls) == 0 {
		t.Fatal("expected the pipeline to have called the ticketing client")
	}
}

func TestHandleIngest_MissingTicketIDIs422(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	rec := httptest.NewRecorder()
	srv.handleIngest(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleIngest_ShuttingDownIs503(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Lifecyle.BeginShutdown()
	body := strings.NewReader(`{"ticket_id": 42}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	rec := httptest.NewRecorder()
	srv.handleIngest(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while shutting down, got %d", rec.Code)
	}
}

func TestHandleIngestBatch_CountsAccepted(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`[{"ticket_id": 42}, {}, {"ticket_id": 43}]`)
	req := httptest.NewRequest(http.MethodPost, "/ingest/batch", body)
	rec := httptest.NewRecorder()
	srv.handleIngestBatch(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"count":2`) {
		t.Fatalf("expected 2 accepted, got %s", rec.Body.String())
	}
	srv.Lifecyle.Wait(2 * time.Second)
}

func TestHandleRetry_InvalidTicketIDIs422(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/retry/not-a-number", nil)
	rec := httptest.NewRecorder()
	srv.handleRetry(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
