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

// Package redact scrubs secrets out of free-form text (log lines,
// error messages) and out of config dumps, so neither ever leaks a
// token, password, or HMAC secret.
package redact

import (
	"regexp"
	"strings"
)

const Redacted = "[redacted]"

var explicitSensitiveKeys = map[string]bool{
	"zammad_api_token":      true,
	"webhook_hmac_secret":   true,
	"pfx_password":          true,
	"tsa_pass":              true,
	"api_token":             true,
	"webhook_shared_secret": true,
	"key_password":          true,
}

var sensitiveKeyFragments = []string{"password", "token", "secret", "authorization", "api_key", "apikey"}

var (
	authzSchemeRE       = regexp.MustCompile(`(?i)\b(authorization)\s*[:=]\s*(bearer|token|basic)\s+([^\s,;]+)`)
	zammadTokenTokenRE  = regexp.MustCompile(`(?i)\bToken\s+token=([^\s,;]+)`)
	commonKVSecretRE    = regexp.MustCompile(`(?i)\b(token|api[_-]?token|access[_-]?token|refresh[_-]?token|webhook[_-]?hmac[_-]?secret|secret|password|passwd|tsa[_-]?pass|pfx[_-]?password|key[_-]?password)\s*[:=]\s*([^\s,;]+)`)
	commonQuerySecretRE = regexp.MustCompile(`(?i)([?&](?:api[_-]?token|access[_-]?token|refresh[_-]?token|token|secret)=)([^&\s]+)`)
)

// ScrubSecretsInText is a best-effort redaction for secrets embedded in
// free-form text such as exception messages and warnings. It is
// intentionally conservative: it targets common credential formats
// while trying to preserve readability.
func ScrubSecretsInText(text string) string {
	if text == "" {
		return text
	}
	out := authzSchemeRE.ReplaceAllString(text, "$1: $2 "+Redacted)
	out = zammadTokenTokenRE.ReplaceAllString(out, "Token token="+Redacted)
	out = commonKVSecretRE.ReplaceAllStringFunc(out, func(m string) string {
		idx := strings.IndexAny(m, ":=")
		if idx < 0 {
			return m
		}
		return m[:idx+1] + Redacted
	})
	out = commonQuerySecretRE.ReplaceAllStringFunc(out, func(m string) string {
		idx := strings.LastIndexByte(m, '=')
		if idx < 0 {
			return m
		}
		return m[:idx+1] + Redacted
	})
	return out
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if explicitSensitiveKeys[normalized] {
		return true
	}
	if strings.HasSuffix(normalized, "_pass") {
		return true
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// Map returns a deep-redacted copy of data; any value under a
// sensitive-looking key is replaced with Redacted, and string values
// under non-sensitive keys are still scrubbed for embedded secrets.
func Map(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if isSensitiveKey(key) {
			out[key] = Redacted
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case string:
		return ScrubSecretsInText(v)
	case map[string]any:
		return Map(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = redactValue(item)
		}
		return items
	default:
		return value
	}
}
