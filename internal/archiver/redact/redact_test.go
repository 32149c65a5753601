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

package redact

import (
	"strings"
	"testing"
)

func TestScrubSecretsInText_AuthorizationHeader(t *testing.T) {
	got := ScrubSecretsInText("Authorization: Bearer abc123xyz")
	if strings.Contains(got, "abc123xyz") {
		t.Fatalf("expected bearer token scrubbed, got %q", got)
	}
}

func TestScrubSecretsInText_ZammadTokenScheme(t *testing.T) {
	got := ScrubSecretsInText("Token token=supersecretvalue")
	if strings.Contains(got, "supersecretvalue") {
		t.Fatalf("expected zammad token scrubbed, got %q", got)
	}
}

func TestScrubSecretsInText_KeyValueSecret(t *testing.T) {
	got := ScrubSecretsInText("password=hunter2 other=stuff")
	if strings.Contains(got, "hunter2") {
		t.Fatalf("expected password value scrubbed, got %q", got)
	}
	if !strings.Contains(got, "other=stuff") {
		t.Fatalf("expected non-secret key=value preserved, got %q", got)
	}
}

func TestScrubSecretsInText_QueryParam(t *testing.T) {
	got := ScrubSecretsInText("https://example.com/x?api_token=deadbeef&ok=1")
	if strings.Contains(got, "deadbeef") {
		t.Fatalf("expected query token scrubbed, got %q", got)
	}
}

func TestScrubSecretsInText_EmptyIsEmpty(t *testing.T) {
	if got := ScrubSecretsInText(""); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}

func TestMap_RedactsSensitiveKeys(t *testing.T) {
	in := map[string]any{
		"api_token": "supersecret",
		"name":      "normal value",
	}
	out := Map(in)
	if out["api_token"] != Redacted {
		t.Fatalf("expected api_token redacted, got %v", out["api_token"])
	}
	if out["name"] != "normal value" {
		t.Fatalf("expected non-sensitive key preserved, got %v", out["name"])
	}
}

func TestMap_RecursesNestedMaps(t *testing.T) {
	in := map[string]any{
		"signing": map[string]any{
			"pfx_password": "hunter2",
		},
	}
	out := Map(in)
	nested := out["signing"].(map[string]any)
	if nested["pfx_password"] != Redacted {
		t.Fatalf("expected nested sensitive key redacted, got %v", nested["pfx_password"])
	}
}

func TestMap_ScrubsStringValuesUnderNonSensitiveKeys(t *testing.T) {
	in := map[string]any{
		"last_error": "Authorization: Bearer xyz123",
	}
	out := Map(in)
	if strings.Contains(out["last_error"].(string), "xyz123") {
		t.Fatalf("expected embedded secret scrubbed even under a non-sensitive key, got %v", out["last_error"])
	}
}
