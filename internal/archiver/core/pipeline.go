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

package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"ticketarchiver/internal/archiver/classify"
	"ticketarchiver/internal/archiver/core/snapshot"
	"ticketarchiver/internal/archiver/history"
	"ticketarchiver/internal/archiver/idempotency"
	"ticketarchiver/internal/archiver/pathpolicy"
	"ticketarchiver/internal/archiver/render"
	"ticketarchiver/internal/archiver/signing"
	"ticketarchiver/internal/archiver/storage"
	"ticketarchiver/internal/archiver/ticketing"
)

// FieldsConfig names the custom fields a ticket must carry for the
// pipeline to resolve an archive owner and destination.
type FieldsConfig struct {
	ArchiveUserMode string
	ArchiveUser     string
	ArchivePath     string
}

// StorageConfig controls where and how archived PDFs land on disk.
type StorageConfig struct {
	Root            string
	Fsync           bool
	AllowPrefixes   []string
	FilenamePattern string
}

// PDFConfig controls rendering and attachment inclusion.
type PDFConfig struct {
	Template                string
	MaxArticles             int
	ArticleLimitMode        render.CapPolicy
	IncludeAttachmentBinary bool
	MaxAttachmentBytes      int64
	MaxTotalAttachmentBytes int64
	AttachmentConcurrency   int
}

// SigningConfig controls whether and how archived PDFs are signed.
type SigningConfig struct {
	Enabled bool
	Options signing.Options
}

// WorkflowConfig controls tag-driven triggering and ticket
// acknowledgement behavior.
type WorkflowConfig struct {
	TriggerTag           string
	RequireTag           bool
	AcknowledgeOnSuccess bool
}

// Config is the full set of knobs Process needs, assembled once at
// startup from the loaded configuration.
type Config struct {
	Fields   FieldsConfig
	Storage  StorageConfig
	PDF      PDFConfig
	Signing  SigningConfig
	Workflow WorkflowConfig
}

// Metrics is the subset of telemetry counters/histograms the pipeline
// reports into. Its concrete implementation lives in
// internal/archiver/telemetry, backed by Prometheus collectors.
type Metrics interface {
	IncProcessed()
	IncFailed()
	IncSkipped(reason string)
	ObserveRenderSeconds(d time.Duration)
	ObserveSignSeconds(d time.Duration)
	ObserveTotalSeconds(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) IncProcessed()                        {}
func (noopMetrics) IncFailed()                           {}
func (noopMetrics) IncSkipped(reason string)             {}
func (noopMetrics) ObserveRenderSeconds(d time.Duration) {}
func (noopMetrics) ObserveSignSeconds(d time.Duration)   {}
func (noopMetrics) ObserveTotalSeconds(d time.Duration)  {}

// NoopMetrics is a Metrics implementation that discards every
// observation, used by callers (and tests) that don't need telemetry.
var NoopMetrics Metrics = noopMetrics{}

// Pipeline wires together every collaborator process_ticket needs:
// the ticketing client, the PDF renderer, the optional signer, the
// storage writer, and the idempotency/concurrency coordinators.
type Pipeline struct {
	Client              ticketing.Client
	Renderer            render.Renderer
	Signer              signing.Signer
	Writer              *storage.Writer
	TicketCoordinator   *idempotency.TicketCoordinator
	DeliveryCoordinator *idempotency.DeliveryCoordinator
	History             *history.Log
	Metrics             Metrics
	Now                 func() time.Time
	Config              Config
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) metrics() Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return NoopMetrics
}

// recordHistory appends one outcome to the history log, if one is
// configured. ticketID of 0 is recorded as unknown (nil).
func (p *Pipeline) recordHistory(ctx context.Context, status string, ticketID int64, classification, message, deliveryID, requestID string) {
	if p.History == nil {
		return
	}
	var ticketIDPtr *int64
	if ticketID != 0 {
		ticketIDPtr = &ticketID
	}
	p.History.Record(ctx, status, ticketIDPtr, classification, message, deliveryID, requestID)
}

// Process runs one webhook delivery through the full archival
// pipeline: idempotency, state-machine trigger check, snapshot build,
// render, optional sign, atomic storage commit, and ticket
// notification — mirroring the upstream job's control flow, including
// its best-effort cleanup on every exit path.
func (p *Pipeline) Process(ctx context.Context, deliveryID string, payload map[string]any) error {
	ticketID := ExtractTicketID(payload)
	if ticketID == 0 {
		log.WithField("delivery_id", deliveryID).Info("process_ticket: no ticket id in payload, skipping")
		p.metrics().IncSkipped("no_ticket_id")
		p.recordHistory(ctx, "skipped_no_ticket_id", 0, "", "no ticket id in payload", deliveryID, "")
		return nil
	}
	requestID := ExtractRequestID(payload)

	entry := log.WithField("ticket_id", ticketID)
	if deliveryID != "" {
		entry = entry.WithField("delivery_id", deliveryID)
	}
	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	triggerTag := p.Config.Workflow.TriggerTag
	if triggerTag == "" {
		triggerTag = TriggerTag
	}

	acquired, err := p.TicketCoordinator.TryAcquire(ctx, ticketID)
	if err != nil {
		entry.WithError(err).Warn("process_ticket: ticket lock acquisition error, proceeding best-effort")
	}
	if !acquired {
		entry.Info("process_ticket: ticket already in flight, skipping")
		p.metrics().IncSkipped("in_flight")
		p.recordHistory(ctx, "skipped_in_flight", ticketID, "", "ticket already in flight", deliveryID, requestID)
		return nil
	}
	defer p.TicketCoordinator.Release(ctx, ticketID)

	if deliveryID != "" && p.DeliveryCoordinator != nil {
		claimed, err := p.DeliveryCoordinator.TryClaim(ctx, deliveryID)
		if err != nil {
			entry.WithError(err).Warn("process_ticket: delivery idempotency check error, proceeding best-effort")
		} else if !claimed {
			entry.Info("process_ticket: delivery id already seen, skipping")
			p.metrics().IncSkipped("idempotency")
			p.recordHistory(ctx, "skipped_idempotency", ticketID, "", "delivery id already seen", deliveryID, requestID)
			return nil
		}
	}

	totalStart := p.now()
	observeTotal := true
	defer func() {
		if observeTotal {
			p.metrics().ObserveTotalSeconds(p.now().Sub(totalStart))
		}
	}()

	ticket, err := p.Client.GetTicket(ctx, ticketID)
	if err != nil {
		return p.handleFailure(ctx, entry, ticketID, requestID, deliveryID, triggerTag, err)
	}
	tags, err := p.Client.ListTags(ctx, ticketID)
	if err != nil {
		return p.handleFailure(ctx, entry, ticketID, requestID, deliveryID, triggerTag, err)
	}

	if !ShouldProcess(tags, triggerTag, p.Config.Workflow.RequireTag) {
		observeTotal = false
		entry.WithField("tags", tags).Info("process_ticket: should-not-process, skipping")
		p.metrics().IncSkipped("not_triggered")
		p.recordHistory(ctx, "skipped_not_triggered", ticketID, "", "ticket tags do not require processing", deliveryID, requestID)
		return nil
	}

	if err := ApplyProcessing(ctx, p.Client, ticketID, triggerTag); err != nil {
		return p.handleFailure(ctx, entry, ticketID, requestID, deliveryID, triggerTag, err)
	}

	if err := p.process(ctx, entry, ticket, tags, payload, requestID, deliveryID, triggerTag); err != nil {
		return p.handleFailure(ctx, entry, ticketID, requestID, deliveryID, triggerTag, err)
	}

	p.metrics().IncProcessed()
	entry.Info("process_ticket: done")
	p.recordHistory(ctx, "processed", ticketID, "", "", deliveryID, requestID)
	return nil
}

func (p *Pipeline) process(ctx context.Context, entry *log.Entry, ticket *ticketing.Ticket, tags []string, payload map[string]any, requestID, deliveryID, triggerTag string) error {
	username, err := DetermineUsername(UsernameInput{
		Ticket:           ticket,
		PayloadUserLogin: ExtractPayloadUserLogin(payload),
		CustomFields:     ticket.CustomFields,
		ModeFieldName:    p.Config.Fields.ArchiveUserMode,
		ArchiveUserField: p.Config.Fields.ArchiveUser,
	})
	if err != nil {
		return err
	}

	segments, err := ParseArchivePathSegments(ticket.CustomFields[p.Config.Fields.ArchivePath])
	if err != nil {
		return err
	}

	targetDir, err := pathpolicy.BuildTargetDir(p.Config.Storage.Root, username, segments, p.Config.Storage.AllowPrefixes)
	if err != nil {
		return err
	}

	now := p.now()
	filename, err := pathpolicy.BuildFilenameFromPattern(p.Config.Storage.FilenamePattern, ticket.Number, now.UTC().Format("2006-01-02"))
	if err != nil {
		return err
	}
	targetPath := filepath.Join(targetDir, filename)
	sidecarName := filename + ".json"

	snap, err := snapshot.Build(ctx, p.Client, ticket.ID, ticket, tags)
	if err != nil {
		return err
	}

	if p.Config.PDF.ArticleLimitMode == render.CapPolicyCapAndContinue && p.Config.PDF.MaxArticles > 0 && len(snap.Articles) > p.Config.PDF.MaxArticles {
		entry.WithField("total", len(snap.Articles)).WithField("cap", p.Config.PDF.MaxArticles).Warn("process_ticket: article limit capped")
		snap = &snapshot.TicketSnapshot{Ticket: snap.Ticket, Articles: append([]snapshot.Article{}, snap.Articles[:p.Config.PDF.MaxArticles]...)}
	}

	if p.Config.PDF.IncludeAttachmentBinary {
		if attClient, ok := p.Client.(snapshot.AttachmentClient); ok {
			snap = snapshot.Enrich(ctx, snap, attClient, snapshot.EnrichOptions{
				Enabled:                 true,
				Concurrency:             p.Config.PDF.AttachmentConcurrency,
				MaxAttachmentBytes:      p.Config.PDF.MaxAttachmentBytes,
				MaxTotalAttachmentBytes: p.Config.PDF.MaxTotalAttachmentBytes,
			})
		}
	}

	renderStart := p.now()
	pdfBytes, err := p.Renderer.Render(ctx, snap, p.Config.PDF.Template, render.Options{
		MaxArticles:   p.Config.PDF.MaxArticles,
		OnArticleCap:  p.Config.PDF.ArticleLimitMode,
		IncludeHeader: true,
	})
	if err != nil {
		return err
	}
	p.metrics().ObserveRenderSeconds(p.now().Sub(renderStart))

	signingEnabled := false
	tsaUsed := false
	certFingerprint := ""
	if p.Config.Signing.Enabled && p.Signer != nil {
		signStart := p.now()
		signed, err := p.Signer.Sign(pdfBytes, p.Config.Signing.Options)
		if err != nil {
			return signing.WrapSignFailure(err)
		}
		pdfBytes = signed
		p.metrics().ObserveSignSeconds(p.now().Sub(signStart))
		signingEnabled = true
		tsaUsed = p.Config.Signing.Options.TimestampEnabled
		if fp, err := p.Signer.CertFingerprint(); err == nil {
			certFingerprint = fp
		}
	}

	sha256Hex := ComputeSHA256(pdfBytes)

	var attachmentEntries []AttachmentEntry
	var staged []storage.StagingFile
	for _, a := range snap.Articles {
		for _, att := range a.Attachments {
			if att.Content == nil {
				continue
			}
			safeName := safeAttachmentName(att.ArticleID, att.AttachmentID, att.Filename)
			staged = append(staged, storage.StagingFile{RelPath: filepath.Join("attachments", safeName), Data: att.Content})
			attachmentEntries = append(attachmentEntries, AttachmentEntry{
				StoragePath:  filepath.Join(targetDir, "attachments", safeName),
				ArticleID:    att.ArticleID,
				AttachmentID: att.AttachmentID,
				Filename:     att.Filename,
				SHA256:       ComputeSHA256(att.Content),
			})
		}
	}

	record := BuildRecord(BuildRecordInput{
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Title:        ticket.Title,
		CreatedAt:    now,
		StoragePath:  targetPath,
		SHA256:       sha256Hex,
		Signing: SigningInfo{
			Enabled:         signingEnabled,
			TSAUsed:         tsaUsed,
			CertFingerprint: certFingerprint,
		},
		Attachments: attachmentEntries,
	})
	sidecarBytes, err := record.MarshalIndent()
	if err != nil {
		return fmt.Errorf("core: marshal audit record: %w", err)
	}

	if err := p.Writer.CommitGroup(targetDir, ticket.ID, filename, pdfBytes, sidecarName, sidecarBytes, staged); err != nil {
		return err
	}

	if p.Config.Workflow.AcknowledgeOnSuccess {
		note := SuccessNoteHTML(SuccessNoteInput{
			StorageDir:   targetDir,
			Filename:     filename,
			SidecarPath:  filepath.Join(targetDir, sidecarName),
			SizeBytes:    int64(len(pdfBytes)),
			SHA256Hex:    sha256Hex,
			RequestID:    requestID,
			DeliveryID:   deliveryID,
			TimestampUTC: formatTimestampUTC(now),
		})
		if err := p.Client.CreateInternalArticle(ctx, ticket.ID, fmt.Sprintf("PDF archived (%s)", Version), note); err != nil {
			entry.WithError(err).Warn("process_ticket: success note failed")
		}
	}

	if err := applyDoneWithRetries(ctx, p.Client, ticket.ID, triggerTag); err != nil {
		entry.WithError(err).Error("process_ticket: apply_done failed after retries")
	}
	return nil
}

func applyDoneWithRetries(ctx context.Context, client TicketTagger, ticketID int64, triggerTag string) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ApplyDone(ctx, client, ticketID, triggerTag); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < maxAttempts-1 {
			time.Sleep(500 * time.Millisecond * time.Duration(1<<attempt))
		}
	}
	return lastErr
}

func (p *Pipeline) handleFailure(ctx context.Context, entry *log.Entry, ticketID int64, requestID, deliveryID, triggerTag string, cause error) error {
	p.metrics().IncFailed()

	classified := classify.Classify(cause)
	msg := ConciseMessage(cause)
	action := ActionHint(cause, classified)
	code, hint := "", ""
	if classified.IsPermanent() {
		code, hint = classified.Code, classified.Hint
	}

	entry.WithError(cause).
		WithField("classification", classified.Classification).
		WithField("code", code).
		Error("process_ticket: failed")

	now := p.now()
	note := ErrorNoteHTML(ErrorNoteInput{
		Classification: classified.Classification,
		Message:        msg,
		Action:         action,
		RequestID:      requestID,
		DeliveryID:     deliveryID,
		TimestampUTC:   formatTimestampUTC(now),
		Code:           code,
		Hint:           hint,
	})
	if err := p.Client.CreateInternalArticle(ctx, ticketID, fmt.Sprintf("PDF archiver error (%s)", Version), note); err != nil {
		entry.WithError(err).Error("process_ticket: error note failed")
	}

	keepTrigger := classified.IsTransient()
	if err := ApplyError(ctx, p.Client, ticketID, triggerTag, keepTrigger); err != nil {
		time.Sleep(300 * time.Millisecond)
		if err := ApplyError(ctx, p.Client, ticketID, triggerTag, keepTrigger); err != nil {
			entry.WithError(err).Error("process_ticket: apply_error failed")
		}
	}

	if err := p.Client.RemoveTag(ctx, ticketID, ProcessingTag); err != nil {
		entry.WithError(err).Error("process_ticket: processing tag cleanup failed")
	}

	status := "failed_permanent"
	if classified.IsTransient() {
		status = "failed_transient"
	}
	p.recordHistory(ctx, status, ticketID, string(classified.Classification), msg, deliveryID, requestID)

	return cause
}

func safeAttachmentName(articleID, attachmentID int64, filename string) string {
	base := filename
	if base == "" {
		base = "bin"
	}
	safe := pathpolicy.SanitizeSegment(fmt.Sprintf("%d_%d_%s", articleID, attachmentID, base))
	if safe == "" {
		safe = fmt.Sprintf("article_%d_%d", articleID, attachmentID)
	}
	return safe
}
