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

// Package ticketing declares the capability contract the pipeline needs
// from an upstream ticketing system, plus the small error hierarchy a
// client implementation normalizes its failures into.
package ticketing

import (
	"context"
	"fmt"
	"time"
)

// ClientError is the base of every error a Client implementation
// returns. The concrete kinds below embed it; NewClientError returns it
// bare for failures that fit none of those kinds.
type ClientError struct {
	Op      string
	Message string
	cause   error
}

func (e *ClientError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("ticketing: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("ticketing: %s", e.Message)
}

func (e *ClientError) Unwrap() error { return e.cause }

// AuthError means the upstream rejected credentials or permissions
// (typically HTTP 401/403).
type AuthError struct{ ClientError }

// NotFoundError means the requested resource does not exist (HTTP 404).
type NotFoundError struct{ ClientError }

// RateLimitError means the upstream throttled the request (HTTP 429).
// RetryAfter is the upstream's advertised backoff, zero if absent.
type RateLimitError struct {
	ClientError
	RetryAfter time.Duration
}

// ServerError means the upstream failed or exhausted its own retries
// (typically HTTP 5xx).
type ServerError struct{ ClientError }

func NewAuthError(op, msg string, cause error) *AuthError {
	return &AuthError{ClientError{Op: op, Message: msg, cause: cause}}
}

func NewNotFoundError(op, msg string, cause error) *NotFoundError {
	return &NotFoundError{ClientError{Op: op, Message: msg, cause: cause}}
}

func NewRateLimitError(op, msg string, retryAfter time.Duration, cause error) *RateLimitError {
	return &RateLimitError{ClientError{Op: op, Message: msg, cause: cause}, retryAfter}
}

func NewServerError(op, msg string, cause error) *ServerError {
	return &ServerError{ClientError{Op: op, Message: msg, cause: cause}}
}

func NewClientError(op, msg string, cause error) *ClientError {
	return &ClientError{Op: op, Message: msg, cause: cause}
}

// Ticket is the minimal ticket representation the pipeline needs.
type Ticket struct {
	ID           int64
	Number       string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Customer     Person
	Owner        Person
	UpdatedBy    Person
	CustomFields map[string]any
}

type Person struct {
	Login string
}

// Article is one conversation entry on a ticket.
type Article struct {
	ID          int64
	CreatedAt   *time.Time
	From        string
	Subject     string
	Body        string
	ContentType string
	Internal    bool
	Attachments []AttachmentRef
}

// AttachmentRef describes an attachment without its content.
type AttachmentRef struct {
	ID       int64
	Filename string
	Size     int64
	MimeType string
}

// Client is the capability set the snapshot builder and pipeline
// consume from the upstream ticketing system. Its concrete
// implementation (an HTTP client against a specific ticketing API) is
// an external collaborator outside this module's scope; only this
// contract and the error-classification behavior around it are
// implemented here.
type Client interface {
	GetTicket(ctx context.Context, ticketID int64) (*Ticket, error)
	ListTags(ctx context.Context, ticketID int64) ([]string, error)
	ListArticles(ctx context.Context, ticketID int64) ([]Article, error)
	GetAttachmentContent(ctx context.Context, ticketID, articleID, attachmentID int64) ([]byte, error)
	AddTag(ctx context.Context, ticketID int64, tag string) error
	RemoveTag(ctx context.Context, ticketID int64, tag string) error
	CreateInternalArticle(ctx context.Context, ticketID int64, subject, bodyHTML string) error
}
