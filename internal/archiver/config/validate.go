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

package config

import (
	"fmt"
	"strings"
)

// Validate checks the cross-field invariants settings.py's
// model_validators enforce: idempotency backend/redis_url pairing,
// signing material presence, and closed-enum fields.
func Validate(s Settings) error {
	if s.Storage.Root == "" {
		return fmt.Errorf("config: storage.root is required")
	}
	if s.Zammad.BaseURL == "" {
		return fmt.Errorf("config: zammad.base_url is required")
	}
	if s.Zammad.APIToken == "" {
		return fmt.Errorf("config: zammad.api_token is required")
	}

	if s.Workflow.IdempotencyBackend != "memory" && s.Workflow.IdempotencyBackend != "redis" {
		return fmt.Errorf("config: workflow.idempotency_backend must be 'memory' or 'redis', got %q", s.Workflow.IdempotencyBackend)
	}
	if s.Workflow.IdempotencyBackend == "redis" && strings.TrimSpace(s.Workflow.RedisURL) == "" {
		return fmt.Errorf("config: workflow.idempotency_backend is 'redis' but workflow.redis_url is not set")
	}

	if s.Signing.Enabled && strings.TrimSpace(s.Signing.PFXPath) == "" {
		return fmt.Errorf("config: signing is enabled but signing.pfx_path is missing")
	}
	if s.Signing.Timestamp.Enabled && strings.TrimSpace(s.Signing.Timestamp.RFC3161.TSAURL) == "" {
		return fmt.Errorf("config: timestamping is enabled but signing.timestamp.rfc3161.tsa_url is missing")
	}

	switch s.Observability.LogFormat {
	case "", "json", "human":
	default:
		return fmt.Errorf("config: observability.log_format must be 'json' or 'human', got %q", s.Observability.LogFormat)
	}

	switch s.PDF.ArticleLimitMode {
	case "fail", "cap_and_continue":
	default:
		return fmt.Errorf("config: pdf.article_limit_mode must be 'fail' or 'cap_and_continue', got %q", s.PDF.ArticleLimitMode)
	}

	switch s.Queue.Backend {
	case "inprocess", "redis_queue":
	default:
		return fmt.Errorf("config: queue.backend must be 'inprocess' or 'redis_queue', got %q", s.Queue.Backend)
	}
	if s.Queue.Backend == "redis_queue" && strings.TrimSpace(s.Workflow.RedisURL) == "" {
		return fmt.Errorf("config: queue.backend is 'redis_queue' but workflow.redis_url is not set")
	}

	return nil
}
