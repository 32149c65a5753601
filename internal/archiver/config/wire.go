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
	"time"

	"ticketarchiver/internal/archiver/api"
	"ticketarchiver/internal/archiver/core"
	"ticketarchiver/internal/archiver/queue"
	"ticketarchiver/internal/archiver/render"
	"ticketarchiver/internal/archiver/signing"
)

// ToPipelineConfig builds the core.Config the processing pipeline
// needs out of the loaded settings.
func ToPipelineConfig(s Settings) core.Config {
	articleLimitMode := render.CapPolicyFail
	if s.PDF.ArticleLimitMode == "cap_and_continue" {
		articleLimitMode = render.CapPolicyCapAndContinue
	}

	return core.Config{
		Fields: core.FieldsConfig{
			ArchiveUserMode: s.Fields.ArchiveUserMode,
			ArchiveUser:     s.Fields.ArchiveUser,
			ArchivePath:     s.Fields.ArchivePath,
		},
		Storage: core.StorageConfig{
			Root:            s.Storage.Root,
			Fsync:           s.Storage.Fsync,
			AllowPrefixes:   s.Storage.PathPolicy.AllowPrefixes,
			FilenamePattern: s.Storage.PathPolicy.FilenamePattern,
		},
		PDF: core.PDFConfig{
			Template:                s.PDF.TemplateVariant,
			MaxArticles:             s.PDF.MaxArticles,
			ArticleLimitMode:        articleLimitMode,
			IncludeAttachmentBinary: s.PDF.IncludeAttachmentBinary,
			MaxAttachmentBytes:      s.PDF.MaxAttachmentBytesPerFile,
			MaxTotalAttachmentBytes: s.PDF.MaxTotalAttachmentBytes,
			AttachmentConcurrency:   4,
		},
		Signing: core.SigningConfig{
			Enabled: s.Signing.Enabled,
			Options: signing.Options{
				Reason:            s.Signing.Pades.Reason,
				Location:          s.Signing.Pades.Location,
				TimestampEnabled:  s.Signing.Timestamp.Enabled,
				TimestampEndpoint: s.Signing.Timestamp.RFC3161.TSAURL,
			},
		},
		Workflow: core.WorkflowConfig{
			TriggerTag:           s.Workflow.TriggerTag,
			RequireTag:           s.Workflow.RequireTag,
			AcknowledgeOnSuccess: s.Workflow.AcknowledgeOnSuccess,
		},
	}
}

// ToAPIConfig builds the HTTP surface's own Config.
func ToAPIConfig(s Settings, serviceVersion string) api.Config {
	return api.Config{
		WebhookHMACSecret:         s.Zammad.WebhookHMACSecret,
		LegacyWebhookSecret:       s.Server.WebhookSharedSecret,
		AllowUnsigned:             s.Hardening.Webhook.AllowUnsigned,
		AllowUnsignedWhenNoSecret: s.Hardening.Webhook.AllowUnsigned,
		RequireDeliveryID:         s.Hardening.Webhook.RequireDeliveryID,

		RateLimitEnabled:        s.Hardening.RateLimit.Enabled,
		RateLimitRPS:            s.Hardening.RateLimit.RPS,
		RateLimitBurst:          s.Hardening.RateLimit.Burst,
		RateLimitIncludeMetrics: s.Hardening.RateLimit.IncludeMetrics,
		ClientKeyHeader:         s.Hardening.RateLimit.ClientKeyHeader,

		BodySizeLimitBytes: s.Hardening.BodySizeLimit.MaxBytes,

		ExecutionBackend: s.Queue.Backend,

		AdminEnabled:     s.Admin.Enabled,
		AdminBearerToken: s.Admin.BearerToken,
		OpsBearerToken:   s.Admin.OpsToken,

		MetricsBearerToken: s.Observability.MetricsBearerToken,
		HealthzOmitVersion: s.Observability.HealthzOmitVersion,

		ServiceName:    "ticket-archiver",
		ServiceVersion: serviceVersion,
	}
}

// ToQueueStreams builds the queue.Streams (work and dead-letter stream
// names, consumer group and consumer) the durable queue reads from.
func ToQueueStreams(s Settings) queue.Streams {
	return queue.Streams{
		Work:     s.Queue.WorkStream,
		DLQ:      s.Queue.DLQStream,
		Group:    s.Queue.Group,
		Consumer: s.Queue.Consumer,
	}
}

// ToWorkerConfig builds the queue worker's retry/backoff/batch knobs.
func ToWorkerConfig(s Settings) queue.WorkerConfig {
	return queue.WorkerConfig{
		RetryMaxAttempts: s.Queue.RetryMaxAttempts,
		BackoffBase:      time.Duration(s.Queue.BackoffBaseMs) * time.Millisecond,
		StaleIdle:        time.Duration(s.Queue.StaleIdleSeconds) * time.Second,
		ReadCount:        s.Queue.ReadCount,
		BlockTimeout:     time.Duration(s.Queue.BlockTimeoutMs) * time.Millisecond,
	}
}
