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

package classify

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"ticketarchiver/internal/archiver/ticketing"
)

func TestHTTPStatus_Table(t *testing.T) {
	cases := []struct {
		status int
		want   Classification
	}{
		{500, Transient},
		{502, Transient},
		{599, Transient},
		{429, Transient},
		{401, Permanent},
		{403, Permanent},
		{404, Permanent},
		{400, Permanent},
		{0, Permanent},
	}
	for _, c := range cases {
		got := HTTPStatus(c.status, 0)
		if got.Classification != c.want {
			t.Errorf("status %d: got %v, want %v", c.status, got.Classification, c.want)
		}
	}
}

func TestHTTPStatus_RetryAfterHonored(t *testing.T) {
	got := HTTPStatus(429, 30*time.Second)
	if got.RetryAfter != 30*time.Second {
		t.Fatalf("expected RetryAfter to be honored, got %v", got.RetryAfter)
	}
}

func TestClassify_AlreadyClassifiedPassesThrough(t *testing.T) {
	original := newTransient("already classified", "retry", nil)
	got := Classify(original)
	if got != original {
		t.Fatalf("expected identical pointer to pass through unchanged")
	}
}

func TestClassify_ErrnoTable(t *testing.T) {
	transientErrs := []syscall.Errno{
		syscall.EAGAIN, syscall.ETIMEDOUT, syscall.ECONNRESET, syscall.EPIPE,
		syscall.ENOTCONN, syscall.ESTALE, syscall.EIO, syscall.ENETDOWN,
		syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.ENOENT,
		syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS,
	}
	for _, errno := range transientErrs {
		got := Classify(&os.PathError{Op: "open", Path: "/x", Err: errno})
		if got.Classification != Transient {
			t.Errorf("errno %v: got %v, want Transient", errno, got.Classification)
		}
	}

	permanentErrs := []syscall.Errno{
		syscall.EACCES, syscall.EPERM, syscall.EINVAL,
		syscall.ENAMETOOLONG, syscall.ENOTDIR, syscall.EISDIR,
	}
	for _, errno := range permanentErrs {
		got := Classify(&os.PathError{Op: "open", Path: "/x", Err: errno})
		if got.Classification != Permanent {
			t.Errorf("errno %v: got %v, want Permanent", errno, got.Classification)
		}
		if got.Code != "fs_policy_error" {
			t.Errorf("errno %v: expected fs_policy_error code, got %q", errno, got.Code)
		}
	}
}

func TestClassify_UnknownErrnoDefaultsToPermanent(t *testing.T) {
	got := Classify(&os.PathError{Op: "open", Path: "/x", Err: syscall.Errno(9999)})
	if got.Classification != Permanent {
		t.Fatalf("expected unknown errno to default to Permanent, got %v", got.Classification)
	}
}

func TestClassify_TicketingErrors(t *testing.T) {
	rateLimited := ticketing.NewRateLimitError("get_ticket", "rate limited", 5*time.Second, nil)
	got := Classify(rateLimited)
	if got.Classification != Transient || got.RetryAfter != 5*time.Second {
		t.Fatalf("rate limit should classify transient with retry-after, got %+v", got)
	}

	serverErr := ticketing.NewServerError("get_ticket", "boom", nil)
	if got := Classify(serverErr); got.Classification != Transient {
		t.Fatalf("server error should classify transient, got %v", got.Classification)
	}

	authErr := ticketing.NewAuthError("get_ticket", "denied", nil)
	if got := Classify(authErr); got.Classification != Permanent || got.Code != "auth_error" {
		t.Fatalf("auth error should classify permanent/auth_error, got %+v", got)
	}

	notFound := ticketing.NewNotFoundError("get_ticket", "gone", nil)
	if got := Classify(notFound); got.Classification != Permanent || got.Code != "not_found" {
		t.Fatalf("not found should classify permanent/not_found, got %+v", got)
	}

	clientErr := ticketing.NewClientError("get_ticket", "missing archive_path custom field", nil)
	got = Classify(clientErr)
	if got.Classification != Permanent || got.Code != "missing_archive_path" {
		t.Fatalf("client error should derive missing_archive_path code, got %+v", got)
	}
}

func TestClassify_ValidationErrorIsPermanent(t *testing.T) {
	err := NewValidationError("pathpolicy: archive path is not allowed by allow_prefixes policy")
	got := Classify(err)
	if got.Classification != Permanent || got.Code != "path_not_allowed" {
		t.Fatalf("expected path_not_allowed, got %+v", got)
	}
}

func TestClassify_UnrecognizedErrorDefaultsPermanent(t *testing.T) {
	got := Classify(errors.New("totally unknown failure"))
	if got.Classification != Permanent {
		t.Fatalf("fail-safe default must be Permanent, got %v", got.Classification)
	}
	if got.Code != "permanent_error" {
		t.Fatalf("fail-safe default code must be permanent_error, got %q", got.Code)
	}
}

func TestClassify_IsTotalNeverReturnsThirdValue(t *testing.T) {
	errs := []error{
		errors.New("x"),
		&os.PathError{Op: "open", Err: syscall.EACCES},
		ticketing.NewAuthError("op", "x", nil),
		NewValidationError("bad input"),
		nil,
	}
	for _, e := range errs {
		got := Classify(e)
		if e == nil {
			if got != nil {
				t.Fatalf("Classify(nil) must return nil")
			}
			continue
		}
		if got.Classification != Transient && got.Classification != Permanent {
			t.Fatalf("classification must be exactly one of Transient/Permanent, got %q", got.Classification)
		}
	}
}

func TestDeriveCode_FallsBackToPermanentError(t *testing.T) {
	if got := deriveCode("something completely unrelated"); got != "permanent_error" {
		t.Fatalf("expected fallback permanent_error, got %q", got)
	}
}
