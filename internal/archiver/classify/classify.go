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

// Package classify maps arbitrary errors onto exactly two outcomes,
// Transient or Permanent, so the pipeline and queue worker can decide
// whether to retry without ever inventing a third state.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"ticketarchiver/internal/archiver/ticketing"
)

// Classification is the closed set of outcomes a classified error can
// carry. There is no third value.
type Classification string

const (
	Transient Classification = "transient"
	Permanent Classification = "permanent"
)

// Error wraps an underlying failure with its classification, an
// operator-facing action hint, and (for permanent errors) a stable
// short code an operator can search runbooks for.
type Error struct {
	Classification Classification
	Message        string
	Hint           string
	Code           string        // permanent-only; empty for transient
	RetryAfter     time.Duration // optional, honored from HTTP 429 responses
	cause          error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Classification, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Classification, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) IsTransient() bool { return e.Classification == Transient }
func (e *Error) IsPermanent() bool { return e.Classification == Permanent }

func newTransient(message, hint string, cause error) *Error {
	return &Error{Classification: Transient, Message: message, Hint: hint, cause: cause}
}

func newPermanent(message, hint, code string, cause error) *Error {
	if code == "" {
		code = "permanent_error"
	}
	return &Error{Classification: Permanent, Message: message, Hint: hint, Code: code, cause: cause}
}

const (
	msgHTTPTimeout     = "HTTP timeout"
	msgHTTPRequest     = "HTTP connection/request error"
	msgZammadTransient = "upstream transient error"
	msgZammadPermanent = "upstream permanent error"
	msgZammadClient    = "upstream client error"
	msgFSGeneric       = "filesystem error"
)

func msgHTTPUpstream(status int) string { return fmt.Sprintf("HTTP %d from upstream", status) }
func msgHTTPAuth(status int) string {
	return fmt.Sprintf("HTTP %d (auth/permission) from upstream", status)
}
func msgFSTemporary(errno int) string { return fmt.Sprintf("temporary filesystem error (errno=%d)", errno) }
func msgFSPolicy(errno int) string {
	return fmt.Sprintf("filesystem policy/permission error (errno=%d)", errno)
}

// transientErrnos and permanentErrnos mirror the original policy table
// exactly: network/infra flakiness retries, permission/shape problems
// do not.
var transientErrnos = map[syscall.Errno]bool{
	syscall.EAGAIN:       true,
	syscall.ETIMEDOUT:    true,
	syscall.ECONNRESET:   true,
	syscall.EPIPE:        true,
	syscall.ENOTCONN:     true,
	syscall.ESTALE:       true,
	syscall.EIO:          true,
	syscall.ENETDOWN:     true,
	syscall.ENETUNREACH:  true,
	syscall.EHOSTUNREACH: true,
	syscall.ENOENT:       true,
	syscall.ENOSPC:       true,
	syscall.EDQUOT:       true,
	syscall.EROFS:        true,
}

var permanentErrnos = map[syscall.Errno]bool{
	syscall.EACCES:       true,
	syscall.EPERM:        true,
	syscall.EINVAL:       true,
	syscall.ENAMETOOLONG: true,
	syscall.ENOTDIR:      true,
	syscall.EISDIR:       true,
}

// HTTPStatus classifies an HTTP response status code. retryAfter, when
// non-zero, is honored as the next retry delay for 429/5xx responses.
func HTTPStatus(status int, retryAfter time.Duration) *Error {
	switch {
	case status == 429:
		e := newTransient(msgHTTPUpstream(status), "retry after backoff; upstream is rate limiting", nil)
		e.RetryAfter = retryAfter
		return e
	case status >= 500 && status <= 599:
		e := newTransient(msgHTTPUpstream(status), "retry; upstream reported a server error", nil)
		e.RetryAfter = retryAfter
		return e
	case status == 401 || status == 403:
		return newPermanent(msgHTTPAuth(status), "check webhook/API credentials", "auth_error", nil)
	case status > 0:
		return newPermanent(msgHTTPUpstream(status), "inspect request payload and upstream response", "http_client_error", nil)
	default:
		return newPermanent(msgHTTPRequest, "inspect network connectivity to upstream", "http_request_error", nil)
	}
}

func osError(err error) *Error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if transientErrnos[errno] {
			return newTransient(msgFSTemporary(int(errno)), "retry; transient filesystem condition", err)
		}
		if permanentErrnos[errno] {
			return newPermanent(msgFSPolicy(int(errno)), "check filesystem permissions and path policy", "fs_policy_error", err)
		}
	}
	// Unknown OS errors default to permanent to avoid endless reprocessing loops.
	return newPermanent(msgFSGeneric, "inspect storage backend", "fs_generic_error", err)
}

// deriveCode maps a permanent validation message onto one of the
// stable short codes an operator runbook can key on, falling back to
// "permanent_error" when the message doesn't match a known pattern.
// Ordering matters: more specific patterns are checked first.
func deriveCode(message string) string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "archive_path is missing"), strings.Contains(m, "archive_path") && strings.Contains(m, "missing"):
		return "missing_archive_path"
	case strings.Contains(m, "archive_path must not be empty"), strings.Contains(m, "all segments were empty"):
		return "empty_archive_path"
	case strings.Contains(m, "archive_path must be a string"), strings.Contains(m, "archive_path["):
		return "invalid_archive_path"
	case strings.Contains(m, "allow_prefixes") && strings.Contains(m, "not allowed"):
		return "path_not_allowed"
	case strings.Contains(m, "allow_prefixes is empty"):
		return "allow_prefixes_empty"
	case strings.Contains(m, "owner.login"), strings.Contains(m, "updated_by.login"):
		return "missing_user_login"
	case strings.Contains(m, "archive_user"):
		return "missing_archive_user"
	case strings.Contains(m, "filename") && (strings.Contains(m, "pattern") || strings.Contains(m, "segment") || strings.Contains(m, "must not")):
		return "invalid_filename"
	case strings.Contains(m, "path segment"), strings.Contains(m, "path separators"), strings.Contains(m, "dot segments"):
		return "path_validation"
	default:
		return "permanent_error"
	}
}

// Classify maps err onto exactly one Classification. Already-classified
// errors pass through unchanged. Unrecognized errors default to
// Permanent (fail-safe, to avoid retry storms on errors nobody
// anticipated).
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return already
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newTransient(msgHTTPTimeout, "retry; the operation timed out", err)
	}

	// A bare syscall.Errno also satisfies net.Error; leave those to the
	// errno policy table below.
	var netErr net.Error
	if errors.As(err, &netErr) {
		if _, isErrno := netErr.(syscall.Errno); !isErrno {
			if netErr.Timeout() {
				return newTransient(msgHTTPTimeout, "retry; network operation timed out", err)
			}
			return newTransient(msgHTTPRequest, "retry; network connectivity issue", err)
		}
	}

	var rateLimit *ticketing.RateLimitError
	if errors.As(err, &rateLimit) {
		e := newTransient(nonEmpty(rateLimit.Message, msgZammadTransient), "retry after backoff; upstream is rate limiting", err)
		e.RetryAfter = rateLimit.RetryAfter
		return e
	}
	var serverErr *ticketing.ServerError
	if errors.As(err, &serverErr) {
		return newTransient(nonEmpty(serverErr.Message, msgZammadTransient), "retry; upstream reported a server error", err)
	}
	var authErr *ticketing.AuthError
	if errors.As(err, &authErr) {
		return newPermanent(nonEmpty(authErr.Message, msgZammadPermanent), "check webhook/API credentials", "auth_error", err)
	}
	var notFoundErr *ticketing.NotFoundError
	if errors.As(err, &notFoundErr) {
		return newPermanent(nonEmpty(notFoundErr.Message, msgZammadPermanent), "verify the ticket still exists upstream", "not_found", err)
	}
	var clientErr *ticketing.ClientError
	if errors.As(err, &clientErr) {
		code := deriveCode(clientErr.Message)
		return newPermanent(nonEmpty(clientErr.Message, msgZammadClient), "inspect request payload and upstream response", code, err)
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return osError(err)
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return osError(err)
	}
	var syscallErr *os.SyscallError
	if errors.As(err, &syscallErr) {
		return osError(err)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return osError(err)
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return newPermanent(validationErr.Message, "fix the offending field and retry", deriveCode(validationErr.Message), err)
	}

	// Fail-safe default: stop automatic reprocessing unless explicitly
	// classified transient above.
	return newPermanent(err.Error(), "unclassified error; inspect logs", "permanent_error", err)
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// ValidationError represents a data-shape or path-policy violation —
// the Go analog of the original's bare ValueError/TypeError, which
// always classify as Permanent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
