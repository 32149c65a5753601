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
	"fmt"
	"strings"

	"ticketarchiver/internal/archiver/classify"
	"ticketarchiver/internal/archiver/ticketing"
)

// UsernameInput carries the fields DetermineUsername needs to resolve
// the archive owner without reaching into a ticketing client itself.
type UsernameInput struct {
	Ticket           *ticketing.Ticket
	PayloadUserLogin string
	CustomFields     map[string]any
	ModeFieldName    string
	ArchiveUserField string
}

// DetermineUsername resolves the username whose directory a ticket
// archives under, per the configured archive_user_mode:
//   - "owner" (default): the ticket owner's login
//   - "current_agent": the webhook payload's acting user, falling back
//     to the ticket's updated_by login
//   - "fixed": a fixed login from the named custom field
func DetermineUsername(in UsernameInput) (string, error) {
	mode := "owner"
	if raw, ok := in.CustomFields[in.ModeFieldName]; ok && raw != nil {
		mode = strings.TrimSpace(fmt.Sprintf("%v", raw))
	}

	switch mode {
	case "owner":
		return requireNonEmpty(in.Ticket.Owner.Login, "ticket.owner.login")

	case "current_agent":
		if login := strings.TrimSpace(in.PayloadUserLogin); login != "" {
			return login, nil
		}
		return requireNonEmpty(in.Ticket.UpdatedBy.Login, "ticket.updated_by.login")

	case "fixed":
		raw, ok := in.CustomFields[in.ArchiveUserField]
		if !ok || raw == nil {
			return "", classify.NewValidationError("custom_fields.%s is missing", in.ArchiveUserField)
		}
		return requireNonEmpty(fmt.Sprintf("%v", raw), fmt.Sprintf("custom_fields.%s", in.ArchiveUserField))

	default:
		return "", classify.NewValidationError("unsupported archive_user_mode: %q", mode)
	}
}

func requireNonEmpty(value, field string) (string, error) {
	out := strings.TrimSpace(value)
	if out == "" {
		return "", classify.NewValidationError("%s must be non-empty", field)
	}
	return out, nil
}

// ParseArchivePathSegments normalizes the archive_path custom field
// into an ordered list of non-empty path segments. The field may be a
// single ">"-delimited string or a list of strings.
func ParseArchivePathSegments(value any) ([]string, error) {
	if value == nil {
		return nil, classify.NewValidationError("custom_fields.archive_path is missing")
	}

	var parts []string
	switch v := value.(type) {
	case string:
		for _, p := range strings.Split(v, ">") {
			p = strings.TrimSpace(p)
			if p != "" {
				parts = append(parts, p)
			}
		}
	case []string:
		for _, item := range v {
			item = strings.TrimSpace(item)
			if item != "" {
				parts = append(parts, item)
			}
		}
	case []any:
		for idx, raw := range v {
			item, ok := raw.(string)
			if !ok {
				return nil, classify.NewValidationError("custom_fields.archive_path[%d] must be a string", idx)
			}
			item = strings.TrimSpace(item)
			if item != "" {
				parts = append(parts, item)
			}
		}
	default:
		return nil, classify.NewValidationError("custom_fields.archive_path must be a string or list of strings")
	}

	if len(parts) == 0 {
		return nil, classify.NewValidationError("custom_fields.archive_path must not be empty after sanitization (all segments were empty or whitespace-only)")
	}
	return parts, nil
}
