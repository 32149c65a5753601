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

// Package render declares the PDF rendering capability the pipeline
// depends on. The renderer itself (an HTML/template-to-PDF engine) is
// an external collaborator outside this module's scope; only the
// interface contract and its error shapes are implemented here.
package render

import (
	"context"
	"fmt"

	"ticketarchiver/internal/archiver/core/snapshot"
)

// Options controls layout concerns a template may honor.
type Options struct {
	MaxArticles   int
	OnArticleCap  CapPolicy
	IncludeHeader bool
}

// CapPolicy decides what happens when a snapshot exceeds MaxArticles.
type CapPolicy string

const (
	CapPolicyFail           CapPolicy = "fail"
	CapPolicyCapAndContinue CapPolicy = "cap_and_continue"
)

// Renderer turns a TicketSnapshot into print-ready PDF bytes.
type Renderer interface {
	Render(ctx context.Context, snap *snapshot.TicketSnapshot, template string, opts Options) ([]byte, error)
}

// Error is always permanent: rendering failures are not retried,
// since a second attempt with the same snapshot produces the same
// result.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string { return fmt.Sprintf("render: %s: %s", e.Code, e.Message) }
func (e *Error) Unwrap() error { return e.cause }

const (
	CodeTooManyArticles = "too_many_articles"
	CodeTemplateError   = "template_error"
	CodeRenderFailed    = "render_failed"
)

func NewTooManyArticlesError(count, max int) *Error {
	return &Error{Code: CodeTooManyArticles, Message: fmt.Sprintf("snapshot has %d articles, exceeding the %d-article cap", count, max)}
}

func NewTemplateError(template string, cause error) *Error {
	return &Error{Code: CodeTemplateError, Message: fmt.Sprintf("template %q failed to render", template), cause: cause}
}

func NewRenderFailedError(cause error) *Error {
	return &Error{Code: CodeRenderFailed, Message: "renderer returned an error", cause: cause}
}
