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

import "strings"

// CoerceTicketID normalizes a loosely-typed webhook field into a
// positive ticket ID, or 0 if it can't be read as one.
func CoerceTicketID(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case bool:
		return 0
	case int:
		return positiveOrZero(int64(v))
	case int32:
		return positiveOrZero(int64(v))
	case int64:
		return positiveOrZero(v)
	case float64:
		return positiveOrZero(int64(v))
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return 0
		}
		text = strings.TrimPrefix(text, "+")
		for _, r := range text {
			if r < '0' || r > '9' {
				return 0
			}
		}
		var n int64
		for _, r := range text {
			n = n*10 + int64(r-'0')
		}
		return positiveOrZero(n)
	default:
		return 0
	}
}

func positiveOrZero(n int64) int64 {
	if n > 0 {
		return n
	}
	return 0
}

// ExtractTicketID reads the ticket ID out of a webhook payload,
// preferring a top-level "ticket_id" field and falling back to a
// nested "ticket.id".
func ExtractTicketID(payload map[string]any) int64 {
	if id := CoerceTicketID(payload["ticket_id"]); id != 0 {
		return id
	}
	ticket, ok := payload["ticket"].(map[string]any)
	if ok {
		return CoerceTicketID(ticket["id"])
	}
	return CoerceTicketID(payload["ticket"])
}

// ExtractPayloadUserLogin reads payload.user.login for the
// current_agent archive_user_mode.
func ExtractPayloadUserLogin(payload map[string]any) string {
	user, ok := payload["user"].(map[string]any)
	if !ok {
		return ""
	}
	login, _ := user["login"].(string)
	return strings.TrimSpace(login)
}

// ExtractRequestID reads the request_id carried in a webhook payload,
// returning "" if absent or blank.
func ExtractRequestID(payload map[string]any) string {
	id, _ := payload["request_id"].(string)
	return strings.TrimSpace(id)
}
