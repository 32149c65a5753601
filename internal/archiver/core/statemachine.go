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

// Package core orchestrates the end-to-end processing of one ticket
// archival job: tag-driven state transitions, snapshot/render/sign,
// the atomic storage commit, audit sidecar, and ticket notes.
package core

import "context"

const (
	TriggerTag    = "pdf:sign"
	ProcessingTag = "pdf:processing"
	DoneTag       = "pdf:signed"
	ErrorTag      = "pdf:error"
)

// TicketTagger is the tag-mutation capability the state machine needs
// from a ticketing client.
type TicketTagger interface {
	AddTag(ctx context.Context, ticketID int64, tag string) error
	RemoveTag(ctx context.Context, ticketID int64, tag string) error
}

// ShouldProcess reports whether a ticket carrying the given tags
// should be archived. A ticket already carrying DoneTag is never
// reprocessed; otherwise processing requires triggerTag unless the
// caller has disabled that requirement.
func ShouldProcess(tags []string, triggerTag string, requireTriggerTag bool) bool {
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	if tagSet[DoneTag] {
		return false
	}
	if requireTriggerTag {
		return tagSet[triggerTag]
	}
	return true
}

// ApplyProcessing performs the deterministic, idempotent transition
// into the processing state from any prior state.
func ApplyProcessing(ctx context.Context, client TicketTagger, ticketID int64, triggerTag string) error {
	if err := client.RemoveTag(ctx, ticketID, DoneTag); err != nil {
		return err
	}
	if err := client.RemoveTag(ctx, ticketID, ErrorTag); err != nil {
		return err
	}
	if err := client.RemoveTag(ctx, ticketID, triggerTag); err != nil {
		return err
	}
	return client.AddTag(ctx, ticketID, ProcessingTag)
}

// ApplyDone performs the deterministic, idempotent transition into the
// done state from any prior state.
func ApplyDone(ctx context.Context, client TicketTagger, ticketID int64, triggerTag string) error {
	if err := client.RemoveTag(ctx, ticketID, ProcessingTag); err != nil {
		return err
	}
	if err := client.RemoveTag(ctx, ticketID, ErrorTag); err != nil {
		return err
	}
	if err := client.RemoveTag(ctx, ticketID, triggerTag); err != nil {
		return err
	}
	return client.AddTag(ctx, ticketID, DoneTag)
}

// ApplyError performs the deterministic, idempotent transition into
// the error state. When keepTrigger is true the trigger tag is
// preserved (or re-added) so that a later retry can be driven by
// re-saving the ticket; otherwise it is removed.
func ApplyError(ctx context.Context, client TicketTagger, ticketID int64, triggerTag string, keepTrigger bool) error {
	if err := client.RemoveTag(ctx, ticketID, ProcessingTag); err != nil {
		return err
	}
	if err := client.RemoveTag(ctx, ticketID, DoneTag); err != nil {
		return err
	}
	if keepTrigger {
		if err := client.AddTag(ctx, ticketID, triggerTag); err != nil {
			return err
		}
	} else if err := client.RemoveTag(ctx, ticketID, triggerTag); err != nil {
		return err
	}
	return client.AddTag(ctx, ticketID, ErrorTag)
}
