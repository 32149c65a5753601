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
	"strconv"
	"strings"
)

// envAlias binds one flat environment variable (plus an optional
// legacy alias, checked only when the canonical name is unset) to a
// setter against Settings.
type envAlias struct {
	name   string
	legacy string
	set    func(s *Settings, value string)
}

func boolVal(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func intVal(value string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(value))
	return n
}

func int64Val(value string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return n
}

func floatVal(value string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return f
}

// envAliases mirrors original_source/config/env_aliases.py's flat
// table, one entry per environment variable this service recognizes.
var envAliases = []envAlias{
	{name: "SERVER_HOST", set: func(s *Settings, v string) { s.Server.Host = v }},
	{name: "SERVER_PORT", set: func(s *Settings, v string) { s.Server.Port = intVal(v) }},
	{name: "WEBHOOK_SHARED_SECRET", set: func(s *Settings, v string) { s.Server.WebhookSharedSecret = v }},

	{name: "ZAMMAD_BASE_URL", legacy: "ZAMMAD_URL", set: func(s *Settings, v string) { s.Zammad.BaseURL = v }},
	{name: "ZAMMAD_API_TOKEN", set: func(s *Settings, v string) { s.Zammad.APIToken = v }},
	{name: "WEBHOOK_HMAC_SECRET", set: func(s *Settings, v string) { s.Zammad.WebhookHMACSecret = v }},
	{name: "ZAMMAD_TIMEOUT_SECONDS", set: func(s *Settings, v string) { s.Zammad.TimeoutSeconds = floatVal(v) }},
	{name: "ZAMMAD_VERIFY_TLS", set: func(s *Settings, v string) { s.Zammad.VerifyTLS = boolVal(v) }},

	{name: "WORKFLOW_TRIGGER_TAG", set: func(s *Settings, v string) { s.Workflow.TriggerTag = v }},
	{name: "WORKFLOW_REQUIRE_TAG", set: func(s *Settings, v string) { s.Workflow.RequireTag = boolVal(v) }},
	{name: "WORKFLOW_DELIVERY_ID_TTL_SECONDS", set: func(s *Settings, v string) { s.Workflow.DeliveryIDTTLSeconds = intVal(v) }},
	{name: "IDEMPOTENCY_BACKEND", set: func(s *Settings, v string) { s.Workflow.IdempotencyBackend = v }},
	{name: "REDIS_URL", set: func(s *Settings, v string) { s.Workflow.RedisURL = v }},
	{name: "FIELDS_ARCHIVE_PATH", set: func(s *Settings, v string) { s.Fields.ArchivePath = v }},
	{name: "FIELDS_ARCHIVE_USER_MODE", set: func(s *Settings, v string) { s.Fields.ArchiveUserMode = v }},
	{name: "FIELDS_ARCHIVE_USER", set: func(s *Settings, v string) { s.Fields.ArchiveUser = v }},

	{name: "STORAGE_ROOT", set: func(s *Settings, v string) { s.Storage.Root = v }},
	{name: "STORAGE_ATOMIC_WRITE", set: func(s *Settings, v string) { s.Storage.AtomicWrite = boolVal(v) }},
	{name: "STORAGE_FSYNC", set: func(s *Settings, v string) { s.Storage.Fsync = boolVal(v) }},

	{name: "PDF_TEMPLATE_VARIANT", legacy: "TEMPLATE_VARIANT", set: func(s *Settings, v string) { s.PDF.TemplateVariant = v }},
	{name: "PDF_LOCALE", legacy: "RENDER_LOCALE", set: func(s *Settings, v string) { s.PDF.Locale = v }},
	{name: "PDF_TIMEZONE", legacy: "RENDER_TIMEZONE", set: func(s *Settings, v string) { s.PDF.Timezone = v }},
	{name: "PDF_MAX_ARTICLES", set: func(s *Settings, v string) { s.PDF.MaxArticles = intVal(v) }},
	{name: "PDF_INCLUDE_ATTACHMENT_BINARY", set: func(s *Settings, v string) { s.PDF.IncludeAttachmentBinary = boolVal(v) }},
	{name: "PDF_MAX_ATTACHMENT_BYTES_PER_FILE", set: func(s *Settings, v string) { s.PDF.MaxAttachmentBytesPerFile = int64Val(v) }},
	{name: "PDF_MAX_TOTAL_ATTACHMENT_BYTES", set: func(s *Settings, v string) { s.PDF.MaxTotalAttachmentBytes = int64Val(v) }},
	{name: "PDF_ARTICLE_LIMIT_MODE", set: func(s *Settings, v string) { s.PDF.ArticleLimitMode = v }},

	{name: "SIGNING_ENABLED", set: func(s *Settings, v string) { s.Signing.Enabled = boolVal(v) }},
	{name: "SIGNING_PFX_PATH", set: func(s *Settings, v string) { s.Signing.PFXPath = v }},
	{name: "SIGNING_PFX_PASSWORD", set: func(s *Settings, v string) { s.Signing.PFXPassword = v }},
	{name: "SIGNING_CERT_PATH", set: func(s *Settings, v string) { s.Signing.Pades.CertPath = v }},
	{name: "SIGNING_KEY_PATH", set: func(s *Settings, v string) { s.Signing.Pades.KeyPath = v }},
	{name: "SIGNING_KEY_PASSWORD", set: func(s *Settings, v string) { s.Signing.Pades.KeyPassword = v }},
	{name: "SIGNING_REASON", set: func(s *Settings, v string) { s.Signing.Pades.Reason = v }},
	{name: "SIGNING_LOCATION", set: func(s *Settings, v string) { s.Signing.Pades.Location = v }},
	{name: "TSA_ENABLED", set: func(s *Settings, v string) { s.Signing.Timestamp.Enabled = boolVal(v) }},
	{name: "TSA_URL", set: func(s *Settings, v string) { s.Signing.Timestamp.RFC3161.TSAURL = v }},
	{name: "TSA_TIMEOUT_SECONDS", set: func(s *Settings, v string) { s.Signing.Timestamp.RFC3161.TimeoutSeconds = floatVal(v) }},
	{name: "TSA_CA_BUNDLE_PATH", set: func(s *Settings, v string) { s.Signing.Timestamp.RFC3161.CABundlePath = v }},

	{name: "LOG_LEVEL", set: func(s *Settings, v string) { s.Observability.LogLevel = v }},
	{name: "LOG_FORMAT", set: func(s *Settings, v string) { s.Observability.LogFormat = strings.ToLower(v) }},
	{name: "LOG_JSON", set: func(s *Settings, v string) { s.Observability.JSONLogs = boolVal(v) }},
	{name: "METRICS_ENABLED", legacy: "OBSERVABILITY_METRICS_ENABLED", set: func(s *Settings, v string) { s.Observability.MetricsEnabled = boolVal(v) }},
	{name: "METRICS_BEARER_TOKEN", set: func(s *Settings, v string) { s.Observability.MetricsBearerToken = v }},
	{name: "HEALTHZ_OMIT_VERSION", set: func(s *Settings, v string) { s.Observability.HealthzOmitVersion = boolVal(v) }},

	{name: "RATE_LIMIT_ENABLED", set: func(s *Settings, v string) { s.Hardening.RateLimit.Enabled = boolVal(v) }},
	{name: "RATE_LIMIT_RPS", set: func(s *Settings, v string) { s.Hardening.RateLimit.RPS = floatVal(v) }},
	{name: "RATE_LIMIT_BURST", set: func(s *Settings, v string) { s.Hardening.RateLimit.Burst = intVal(v) }},
	{name: "RATE_LIMIT_INCLUDE_METRICS", set: func(s *Settings, v string) { s.Hardening.RateLimit.IncludeMetrics = boolVal(v) }},
	{name: "RATE_LIMIT_CLIENT_KEY_HEADER", set: func(s *Settings, v string) { s.Hardening.RateLimit.ClientKeyHeader = v }},
	{name: "MAX_BODY_BYTES", set: func(s *Settings, v string) { s.Hardening.BodySizeLimit.MaxBytes = int64Val(v) }},
	{name: "HARDENING_WEBHOOK_ALLOW_UNSIGNED", set: func(s *Settings, v string) { s.Hardening.Webhook.AllowUnsigned = boolVal(v) }},
	{name: "HARDENING_WEBHOOK_REQUIRE_DELIVERY_ID", set: func(s *Settings, v string) { s.Hardening.Webhook.RequireDeliveryID = boolVal(v) }},
	{name: "HARDENING_TRANSPORT_TRUST_ENV", set: func(s *Settings, v string) { s.Hardening.Transport.TrustEnv = boolVal(v) }},
	{name: "HARDENING_TRANSPORT_ALLOW_INSECURE_HTTP", set: func(s *Settings, v string) { s.Hardening.Transport.AllowInsecureHTTP = boolVal(v) }},
	{name: "HARDENING_TRANSPORT_ALLOW_INSECURE_TLS", set: func(s *Settings, v string) { s.Hardening.Transport.AllowInsecureTLS = boolVal(v) }},
	{name: "HARDENING_TRANSPORT_ALLOW_LOCAL_UPSTREAMS", set: func(s *Settings, v string) { s.Hardening.Transport.AllowLocalUpstreams = boolVal(v) }},

	{name: "ADMIN_ENABLED", set: func(s *Settings, v string) { s.Admin.Enabled = boolVal(v) }},
	{name: "ADMIN_BEARER_TOKEN", set: func(s *Settings, v string) { s.Admin.BearerToken = v }},
	{name: "ADMIN_OPS_TOKEN", set: func(s *Settings, v string) { s.Admin.OpsToken = v }},

	{name: "QUEUE_BACKEND", set: func(s *Settings, v string) { s.Queue.Backend = v }},
	{name: "QUEUE_WORK_STREAM", set: func(s *Settings, v string) { s.Queue.WorkStream = v }},
	{name: "QUEUE_DLQ_STREAM", set: func(s *Settings, v string) { s.Queue.DLQStream = v }},
	{name: "QUEUE_GROUP", set: func(s *Settings, v string) { s.Queue.Group = v }},
	{name: "QUEUE_CONSUMER", set: func(s *Settings, v string) { s.Queue.Consumer = v }},
	{name: "QUEUE_RETRY_MAX_ATTEMPTS", set: func(s *Settings, v string) { s.Queue.RetryMaxAttempts = intVal(v) }},
	{name: "QUEUE_BACKOFF_BASE_MS", set: func(s *Settings, v string) { s.Queue.BackoffBaseMs = intVal(v) }},
	{name: "QUEUE_STALE_IDLE_SECONDS", set: func(s *Settings, v string) { s.Queue.StaleIdleSeconds = intVal(v) }},
	{name: "QUEUE_READ_COUNT", set: func(s *Settings, v string) { s.Queue.ReadCount = int64Val(v) }},
	{name: "QUEUE_BLOCK_TIMEOUT_MS", set: func(s *Settings, v string) { s.Queue.BlockTimeoutMs = intVal(v) }},

	{name: "HISTORY_REDIS_URL", set: func(s *Settings, v string) { s.History.RedisURL = v }},
	{name: "HISTORY_STREAM", set: func(s *Settings, v string) { s.History.Stream = v }},
	{name: "HISTORY_MAX_LEN", set: func(s *Settings, v string) { s.History.MaxLen = int64Val(v) }},
}

// ApplyEnv overlays settings with every recognized variable present in
// env (the "KEY=VALUE" form os.Environ() returns). A canonical name
// takes precedence over its legacy alias when both are set.
func ApplyEnv(settings *Settings, env []string) {
	lookup := make(map[string]string, len(env))
	for _, kv := range env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			lookup[kv[:idx]] = kv[idx+1:]
		}
	}

	for _, alias := range envAliases {
		if value, ok := lookup[alias.name]; ok && value != "" {
			alias.set(settings, value)
			continue
		}
		if alias.legacy != "" {
			if value, ok := lookup[alias.legacy]; ok && value != "" {
				alias.set(settings, value)
			}
		}
	}
}

// DeprecatedAliasesInUse reports which legacy environment variable
// names are set in env, for the show-deprecated CLI subcommand.
func DeprecatedAliasesInUse(env []string) []string {
	lookup := make(map[string]string, len(env))
	for _, kv := range env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			lookup[kv[:idx]] = kv[idx+1:]
		}
	}

	var found []string
	for _, alias := range envAliases {
		if alias.legacy == "" {
			continue
		}
		if value, ok := lookup[alias.legacy]; ok && value != "" {
			found = append(found, alias.legacy)
		}
	}
	return found
}
