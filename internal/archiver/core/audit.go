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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"runtime"
	"strings"
	"time"
)

// Version identifies this build in audit records and ticket notes.
const Version = "0.1.0"

// ComputeSHA256 returns the lowercase hex SHA-256 digest of data.
func ComputeSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SigningInfo records whether a PAdES signature (and RFC3161
// timestamp) was applied to the archived PDF.
type SigningInfo struct {
	Enabled         bool   `json:"enabled"`
	TSAUsed         bool   `json:"tsa_used"`
	CertFingerprint string `json:"cert_fingerprint,omitempty"`
}

// ServiceInfo identifies the software that produced an audit record.
type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Go      string `json:"go"`
}

// AttachmentEntry describes one attachment archived alongside the PDF.
type AttachmentEntry struct {
	StoragePath  string `json:"storage_path"`
	ArticleID    int64  `json:"article_id"`
	AttachmentID int64  `json:"attachment_id"`
	Filename     string `json:"filename"`
	SHA256       string `json:"sha256"`
}

// Record is the JSON sidecar written alongside every archived PDF.
type Record struct {
	TicketID     int64             `json:"ticket_id"`
	TicketNumber string            `json:"ticket_number"`
	Title        string            `json:"title"`
	CreatedAt    string            `json:"created_at"`
	StoragePath  string            `json:"storage_path"`
	SHA256       string            `json:"sha256"`
	Signing      SigningInfo       `json:"signing"`
	Service      ServiceInfo       `json:"service"`
	Attachments  []AttachmentEntry `json:"attachments,omitempty"`
}

// BuildRecordInput carries everything BuildRecord needs to assemble an
// audit record without the function itself reaching into settings or
// ticket objects.
type BuildRecordInput struct {
	TicketID     int64
	TicketNumber string
	Title        string
	CreatedAt    time.Time
	StoragePath  string
	SHA256       string
	Signing      SigningInfo
	Attachments  []AttachmentEntry
}

// BuildRecord assembles the audit sidecar record for one archived PDF.
func BuildRecord(in BuildRecordInput) Record {
	return Record{
		TicketID:     in.TicketID,
		TicketNumber: in.TicketNumber,
		Title:        strings.TrimSpace(in.Title),
		CreatedAt:    formatTimestampUTC(in.CreatedAt),
		StoragePath:  in.StoragePath,
		SHA256:       in.SHA256,
		Signing:      in.Signing,
		Service: ServiceInfo{
			Name:    "ticketarchiver",
			Version: Version,
			Go:      runtime.Version(),
		},
		Attachments: in.Attachments,
	}
}

// MarshalIndent serializes a Record as pretty-printed JSON with a
// trailing newline, matching the on-disk sidecar format.
func (r Record) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func formatTimestampUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
