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

// Package config loads and validates the archiver's settings: a YAML
// file overlaying struct defaults, then a flat table of environment
// variables overlaying the YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	WebhookSharedSecret string `yaml:"webhook_shared_secret"`
}

type Zammad struct {
	BaseURL         string  `yaml:"base_url"`
	APIToken        string  `yaml:"api_token"`
	WebhookHMACSecret string `yaml:"webhook_hmac_secret"`
	TimeoutSeconds  float64 `yaml:"timeout_seconds"`
	VerifyTLS       bool    `yaml:"verify_tls"`
}

type Workflow struct {
	TriggerTag           string `yaml:"trigger_tag"`
	RequireTag           bool   `yaml:"require_tag"`
	AcknowledgeOnSuccess bool   `yaml:"acknowledge_on_success"`
	DeliveryIDTTLSeconds int    `yaml:"delivery_id_ttl_seconds"`
	IdempotencyBackend   string `yaml:"idempotency_backend"` // "memory" or "redis"
	RedisURL             string `yaml:"redis_url"`
}

type Fields struct {
	ArchivePath     string `yaml:"archive_path"`
	ArchiveUserMode string `yaml:"archive_user_mode"`
	ArchiveUser     string `yaml:"archive_user"`
}

type StoragePathPolicySanitize struct {
	ReplaceWhitespace string `yaml:"replace_whitespace"`
	StripControlChars bool   `yaml:"strip_control_chars"`
}

type StoragePathPolicy struct {
	AllowPrefixes   []string                  `yaml:"allow_prefixes"`
	Sanitize        StoragePathPolicySanitize `yaml:"sanitize"`
	FilenamePattern string                    `yaml:"filename_pattern"`
}

type Storage struct {
	Root        string            `yaml:"root"`
	AtomicWrite bool              `yaml:"atomic_write"`
	Fsync       bool              `yaml:"fsync"`
	PathPolicy  StoragePathPolicy `yaml:"path_policy"`
}

type PDF struct {
	TemplateVariant             string `yaml:"template_variant"`
	Locale                      string `yaml:"locale"`
	Timezone                    string `yaml:"timezone"`
	MaxArticles                 int    `yaml:"max_articles"`
	IncludeAttachmentBinary     bool   `yaml:"include_attachment_binary"`
	MaxAttachmentBytesPerFile   int64  `yaml:"max_attachment_bytes_per_file"`
	MaxTotalAttachmentBytes     int64  `yaml:"max_total_attachment_bytes"`
	ArticleLimitMode            string `yaml:"article_limit_mode"` // "fail" or "cap_and_continue"
}

type SigningPades struct {
	CertPath    string `yaml:"cert_path"`
	KeyPath     string `yaml:"key_path"`
	KeyPassword string `yaml:"key_password"`
	Reason      string `yaml:"reason"`
	Location    string `yaml:"location"`
}

type SigningTimestampRFC3161 struct {
	TSAURL         string `yaml:"tsa_url"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	CABundlePath   string `yaml:"ca_bundle_path"`
}

type SigningTimestamp struct {
	Enabled bool                    `yaml:"enabled"`
	RFC3161 SigningTimestampRFC3161 `yaml:"rfc3161"`
}

type Signing struct {
	Enabled     bool             `yaml:"enabled"`
	PFXPath     string           `yaml:"pfx_path"`
	PFXPassword string           `yaml:"pfx_password"`
	Pades       SigningPades     `yaml:"pades"`
	Timestamp   SigningTimestamp `yaml:"timestamp"`
}

type Observability struct {
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"` // "" | "json" | "human"
	JSONLogs           bool   `yaml:"json_logs"`
	MetricsEnabled     bool   `yaml:"metrics_enabled"`
	MetricsBearerToken string `yaml:"metrics_bearer_token"`
	HealthzOmitVersion bool   `yaml:"healthz_omit_version"`
}

type RateLimit struct {
	Enabled         bool    `yaml:"enabled"`
	RPS             float64 `yaml:"rps"`
	Burst           int     `yaml:"burst"`
	IncludeMetrics  bool    `yaml:"include_metrics"`
	ClientKeyHeader string  `yaml:"client_key_header"`
}

type BodySizeLimit struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

type WebhookHardening struct {
	AllowUnsigned     bool `yaml:"allow_unsigned"`
	RequireDeliveryID bool `yaml:"require_delivery_id"`
}

type TransportHardening struct {
	TrustEnv            bool `yaml:"trust_env"`
	AllowInsecureHTTP   bool `yaml:"allow_insecure_http"`
	AllowInsecureTLS    bool `yaml:"allow_insecure_tls"`
	AllowLocalUpstreams bool `yaml:"allow_local_upstreams"`
}

type Hardening struct {
	RateLimit     RateLimit          `yaml:"rate_limit"`
	BodySizeLimit BodySizeLimit      `yaml:"body_size_limit"`
	Webhook       WebhookHardening   `yaml:"webhook"`
	Transport     TransportHardening `yaml:"transport"`
}

type Admin struct {
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearer_token"`
	OpsToken    string `yaml:"ops_token"`
}

type Queue struct {
	Backend          string `yaml:"backend"` // "redis_queue" or "inprocess"
	WorkStream       string `yaml:"work_stream"`
	DLQStream        string `yaml:"dlq_stream"`
	Group            string `yaml:"group"`
	Consumer         string `yaml:"consumer"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`
	BackoffBaseMs    int    `yaml:"backoff_base_ms"`
	StaleIdleSeconds int    `yaml:"stale_idle_seconds"`
	ReadCount        int64  `yaml:"read_count"`
	BlockTimeoutMs   int    `yaml:"block_timeout_ms"`
}

type History struct {
	RedisURL string `yaml:"redis_url"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// Settings is the full, nested configuration object. Every section has
// struct-zero-value defaults that Defaults() fills in before a YAML
// file or environment overlay is applied.
type Settings struct {
	Server        Server        `yaml:"server"`
	Zammad        Zammad        `yaml:"zammad"`
	Workflow      Workflow      `yaml:"workflow"`
	Fields        Fields        `yaml:"fields"`
	Storage       Storage       `yaml:"storage"`
	PDF           PDF           `yaml:"pdf"`
	Signing       Signing       `yaml:"signing"`
	Observability Observability `yaml:"observability"`
	Hardening     Hardening     `yaml:"hardening"`
	Admin         Admin         `yaml:"admin"`
	Queue         Queue         `yaml:"queue"`
	History       History       `yaml:"history"`
}

// Defaults returns a Settings populated with the same defaults as
// original_source/config/settings.py.
func Defaults() Settings {
	return Settings{
		Server: Server{Host: "0.0.0.0", Port: 8080},
		Zammad: Zammad{TimeoutSeconds: 10, VerifyTLS: true},
		Workflow: Workflow{
			TriggerTag:           "pdf:sign",
			RequireTag:           true,
			AcknowledgeOnSuccess: true,
			DeliveryIDTTLSeconds: 3600,
			IdempotencyBackend:   "memory",
		},
		Fields: Fields{ArchivePath: "archive_path", ArchiveUserMode: "archive_user_mode", ArchiveUser: "archive_user"},
		Storage: Storage{
			AtomicWrite: true,
			Fsync:       true,
			PathPolicy: StoragePathPolicy{
				Sanitize:        StoragePathPolicySanitize{ReplaceWhitespace: "_", StripControlChars: true},
				FilenamePattern: "Ticket-{ticket_number}_{timestamp_utc}.pdf",
			},
		},
		PDF: PDF{
			TemplateVariant:           "default",
			Locale:                    "de_DE",
			Timezone:                  "Europe/Berlin",
			MaxArticles:               250,
			MaxAttachmentBytesPerFile: 10 * 1024 * 1024,
			MaxTotalAttachmentBytes:   50 * 1024 * 1024,
			ArticleLimitMode:          "fail",
		},
		Signing: Signing{
			Pades: SigningPades{Reason: "Ticket Archivierung", Location: "Datacenter"},
			Timestamp: SigningTimestamp{
				RFC3161: SigningTimestampRFC3161{TimeoutSeconds: 10},
			},
		},
		Observability: Observability{LogLevel: "INFO"},
		Hardening: Hardening{
			RateLimit:     RateLimit{Enabled: true, RPS: 5, Burst: 10},
			BodySizeLimit: BodySizeLimit{MaxBytes: 1024 * 1024},
		},
		Admin: Admin{Enabled: true},
		Queue: Queue{
			Backend:          "inprocess",
			WorkStream:       "archiver:work",
			DLQStream:        "archiver:dlq",
			Group:            "archiver",
			Consumer:         "archiver-1",
			RetryMaxAttempts: 5,
			BackoffBaseMs:    500,
			StaleIdleSeconds: 30,
			ReadCount:        10,
			BlockTimeoutMs:   5000,
		},
		History: History{Stream: "archiver:history", MaxLen: 10000},
	}
}

// Load reads path as YAML over Defaults(), then overlays the flat
// environment variable table via ApplyEnv(os.Environ-backed lookup),
// and finally validates the result.
func Load(path string) (Settings, error) {
	settings := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	ApplyEnv(&settings, os.Environ())

	if err := Validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
