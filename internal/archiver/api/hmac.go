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

package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"net/http"
	"strings"
)

const signatureHeader = "X-Hub-Signature"
const deliveryIDHeader = "X-Zammad-Delivery"
const ingestPath = "/ingest"

var errUnrecognizedSignature = errors.New("api: unrecognized signature format")

func digestSize(algorithm string) (func() hash.Hash, int, bool) {
	switch strings.ToLower(algorithm) {
	case "sha1":
		return sha1.New, sha1.Size, true
	case "sha256":
		return sha256.New, sha256.Size, true
	default:
		return nil, 0, false
	}
}

func parseSignature(value string) (digest []byte, newHash func() hash.Hash, err error) {
	algorithm, hexDigest, ok := strings.Cut(value, "=")
	if !ok {
		return nil, nil, errUnrecognizedSignature
	}
	ctor, size, known := digestSize(strings.TrimSpace(algorithm))
	if !known {
		return nil, nil, errUnrecognizedSignature
	}
	raw, err := hex.DecodeString(strings.TrimSpace(hexDigest))
	if err != nil {
		return nil, nil, errUnrecognizedSignature
	}
	if len(raw) != size {
		return nil, nil, errUnrecognizedSignature
	}
	return raw, ctor, nil
}

// hmacSecrets resolves the accepted HMAC secrets: the canonical
// webhook secret and, for backwards compatibility, a legacy shared
// secret. Either satisfies verification.
type hmacSecrets struct {
	Primary string
	Legacy  string
}

func (s hmacSecrets) any() bool {
	return strings.TrimSpace(s.Primary) != "" || strings.TrimSpace(s.Legacy) != ""
}

// hmacVerifyMiddleware authenticates POST /ingest using an
// X-Hub-Signature header (sha1= or sha256=) over the raw request body,
// accepting either the primary or legacy secret. When no secret is
// configured the request is rejected with 503 unless both
// AllowUnsigned and AllowUnsignedWhenNoSecret are set.
func hmacVerifyMiddleware(cfg Config, next http.Handler) http.Handler {
	secrets := hmacSecrets{Primary: cfg.WebhookHMACSecret, Legacy: cfg.LegacyWebhookSecret}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ingestPath {
			next.ServeHTTP(w, r)
			return
		}

		if cfg.RequireDeliveryID && strings.TrimSpace(r.Header.Get(deliveryIDHeader)) == "" {
			drain(r)
			apiError(w, ingestPath, http.StatusBadRequest, "missing_delivery_id", "missing_delivery_id", "")
			return
		}

		if !secrets.any() {
			if cfg.AllowUnsigned && cfg.AllowUnsignedWhenNoSecret {
				next.ServeHTTP(w, r)
				return
			}
			drain(r)
			apiError(w, ingestPath, http.StatusServiceUnavailable, "webhook_auth_not_configured", "webhook_auth_not_configured", "")
			return
		}

		raw := r.Header.Get(signatureHeader)
		if raw == "" {
			drain(r)
			apiError(w, ingestPath, http.StatusForbidden, "forbidden", "forbidden", "")
			return
		}

		signature, newHash, err := parseSignature(raw)
		if err != nil {
			drain(r)
			apiError(w, ingestPath, http.StatusForbidden, "forbidden", "forbidden", "")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil && err != errBodyTooLarge {
			apiError(w, ingestPath, http.StatusForbidden, "forbidden", "forbidden", "")
			return
		}
		if err == errBodyTooLarge {
			apiError(w, ingestPath, http.StatusRequestEntityTooLarge, "request_too_large", "request_too_large", "")
			return
		}

		if !verifiesAny(signature, newHash, body, secrets) {
			apiError(w, ingestPath, http.StatusForbidden, "forbidden", "forbidden", "")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func verifiesAny(signature []byte, newHash func() hash.Hash, body []byte, secrets hmacSecrets) bool {
	for _, secret := range []string{secrets.Primary, secrets.Legacy} {
		if strings.TrimSpace(secret) == "" {
			continue
		}
		mac := hmac.New(newHash, []byte(secret))
		mac.Write(body)
		if hmac.Equal(signature, mac.Sum(nil)) {
			return true
		}
	}
	return false
}

func drain(r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	_ = r.Body.Close()
}
