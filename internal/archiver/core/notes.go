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
	"errors"
	"html"
	"strconv"
	"strings"

	"ticketarchiver/internal/archiver/classify"
	"ticketarchiver/internal/archiver/redact"
	"ticketarchiver/internal/archiver/ticketing"
)

// SuccessNoteInput carries the fields the success ticket note reports.
type SuccessNoteInput struct {
	StorageDir   string
	Filename     string
	SidecarPath  string
	SizeBytes    int64
	SHA256Hex    string
	RequestID    string
	DeliveryID   string
	TimestampUTC string
}

// SuccessNoteHTML renders the internal article body posted on a
// successful archival.
func SuccessNoteHTML(in SuccessNoteInput) string {
	var b strings.Builder
	b.WriteString("<p><strong>PDF archived (" + Version + ")</strong></p><ul>")
	b.WriteString("<li>path: <code>" + html.EscapeString(in.StorageDir) + "</code></li>")
	b.WriteString("<li>filename: <code>" + html.EscapeString(in.Filename) + "</code></li>")
	b.WriteString("<li>audit_sidecar: <code>" + html.EscapeString(in.SidecarPath) + "</code></li>")
	b.WriteString("<li>size_bytes: <code>" + strconv.FormatInt(in.SizeBytes, 10) + "</code></li>")
	b.WriteString("<li>sha256: <code>" + html.EscapeString(in.SHA256Hex) + "</code></li>")
	b.WriteString("<li>request_id: <code>" + html.EscapeString(orDefault(in.RequestID, "unknown")) + "</code></li>")
	b.WriteString("<li>delivery_id: <code>" + html.EscapeString(orDefault(in.DeliveryID, "none")) + "</code></li>")
	b.WriteString("<li>time_utc: <code>" + html.EscapeString(in.TimestampUTC) + "</code></li>")
	b.WriteString("</ul>")
	return b.String()
}

// ErrorNoteInput carries the fields the error ticket note reports.
type ErrorNoteInput struct {
	Classification classify.Classification
	Message        string
	Action         string
	RequestID      string
	DeliveryID     string
	TimestampUTC   string
	Code           string
	Hint           string
}

// ErrorNoteHTML renders the internal article body posted on a failed
// archival.
func ErrorNoteHTML(in ErrorNoteInput) string {
	var b strings.Builder
	b.WriteString("<p><strong>PDF archiver error (" + Version + ")</strong></p><ul>")
	b.WriteString("<li>classification: <code>" + html.EscapeString(string(in.Classification)) + "</code></li>")
	b.WriteString("<li>error: <code>" + html.EscapeString(in.Message) + "</code></li>")
	b.WriteString("<li>action: <code>" + html.EscapeString(in.Action) + "</code></li>")
	if in.Code != "" {
		b.WriteString("<li>code: <code>" + html.EscapeString(in.Code) + "</code></li>")
	}
	if in.Hint != "" {
		b.WriteString("<li>hint: <code>" + html.EscapeString(in.Hint) + "</code></li>")
	}
	b.WriteString("<li>request_id: <code>" + html.EscapeString(orDefault(in.RequestID, "unknown")) + "</code></li>")
	b.WriteString("<li>delivery_id: <code>" + html.EscapeString(orDefault(in.DeliveryID, "none")) + "</code></li>")
	b.WriteString("<li>time_utc: <code>" + html.EscapeString(in.TimestampUTC) + "</code></li>")
	b.WriteString("</ul>")
	return b.String()
}

// ConciseMessage formats err as "<Type>: <message>", scrubs any
// embedded secrets, and truncates to 500 characters so ticket notes
// stay readable and never carry credentials.
func ConciseMessage(err error) string {
	text := strings.TrimSpace(errorTypeName(err) + ": " + err.Error())
	text = redact.ScrubSecretsInText(text)
	if len(text) > 500 {
		return text[:500]
	}
	return text
}

func errorTypeName(err error) string {
	switch err.(type) {
	case *classify.Error:
		return "ClassifiedError"
	case *classify.ValidationError:
		return "ValidationError"
	case *ticketing.AuthError:
		return "AuthError"
	case *ticketing.NotFoundError:
		return "NotFoundError"
	case *ticketing.RateLimitError:
		return "RateLimitError"
	case *ticketing.ServerError:
		return "ServerError"
	case *ticketing.ClientError:
		return "ClientError"
	default:
		return "Error"
	}
}

// ActionHint returns an operator-facing next step for a classified
// error, tailored to the underlying cause where a concrete action
// exists.
func ActionHint(err error, classified *classify.Error) string {
	if classified != nil && classified.IsTransient() {
		return "Transient failure. Verify upstream reachability and storage availability; " +
			"the ticket keeps the trigger tag so a retry can be driven by saving the ticket " +
			"or reapplying the archive macro."
	}

	var authErr *ticketing.AuthError
	if errors.As(err, &authErr) {
		return "Fix upstream API token/permissions (HTTP 401/403), then reapply the archive macro."
	}
	var notFoundErr *ticketing.NotFoundError
	if errors.As(err, &notFoundErr) {
		return "Ticket/resource not found upstream. Verify the ticket still exists, then reapply the archive macro."
	}
	var serverErr *ticketing.ServerError
	if errors.As(err, &serverErr) {
		return "Upstream error was treated as permanent by policy. If the issue is resolved, reapply the archive macro to reprocess."
	}
	var rateLimitErr *ticketing.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return "Upstream error was treated as permanent by policy. If the issue is resolved, reapply the archive macro to reprocess."
	}
	var validationErr *classify.ValidationError
	if errors.As(err, &validationErr) {
		return "Fix ticket fields / path policy validation, then reapply the archive macro (and optionally remove the error tag for clarity)."
	}
	return "Non-retryable failure by policy. Fix the underlying issue and reapply the archive macro (and optionally remove the error tag)."
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
