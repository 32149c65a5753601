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

// Package pathpolicy accepts potentially hostile user-controlled path
// segments and produces deterministic, safe filesystem paths.
//
// It is a direct generalization of the teacher's path-sanitization
// mindset (validate raw input, sanitize, validate again, then check
// containment) applied to the storage layout described by the ticket
// archiver's storage root / username / archive-path-segments / filename
// pattern.
package pathpolicy

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRE      = regexp.MustCompile(`\s+`)
	multiUnderscoreRE = regexp.MustCompile(`_+`)
	allowedRuneRE     = regexp.MustCompile(`[A-Za-z0-9._-]`)
	prefixSplitRE     = regexp.MustCompile(`[>/]`)
)

// SanitizeSegment normalizes s into a filesystem-safe path segment.
//
// Policy: normalize to NFKD, drop combining marks, replace remaining
// non-ASCII runes with "_", collapse whitespace to "_", keep only
// [A-Za-z0-9._-], replace everything else with "_", and collapse runs
// of "_". A non-empty input never produces an empty output.
func SanitizeSegment(s string) string {
	normalized := norm.NFKD.String(s)

	var b strings.Builder
	for _, r := range normalized {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r < 128 {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := whitespaceRE.ReplaceAllString(b.String(), "_")

	var b2 strings.Builder
	for _, r := range out {
		if allowedRuneRE.MatchString(string(r)) {
			b2.WriteRune(r)
		} else {
			b2.WriteByte('_')
		}
	}
	out = multiUnderscoreRE.ReplaceAllString(b2.String(), "_")

	if s != "" && out == "" {
		out = "_"
	}
	return out
}

// ValidateSegments rejects empty segments, "." or "..", NUL bytes, path
// separators, segments exceeding maxLength, and lists exceeding maxDepth.
func ValidateSegments(segments []string, maxDepth, maxLength int) error {
	if maxDepth <= 0 {
		return fmt.Errorf("pathpolicy: max_depth must be > 0")
	}
	if maxLength <= 0 {
		return fmt.Errorf("pathpolicy: max_length must be > 0")
	}
	if len(segments) > maxDepth {
		return fmt.Errorf("pathpolicy: too many path segments (max_depth=%d)", maxDepth)
	}
	for _, seg := range segments {
		if err := validateSegment(seg, maxLength); err != nil {
			return err
		}
	}
	return nil
}

func validateSegment(seg string, maxLength int) error {
	if seg == "" {
		return fmt.Errorf("pathpolicy: empty path segment is not allowed")
	}
	if seg == "." || seg == ".." {
		return fmt.Errorf("pathpolicy: dot segments are not allowed")
	}
	if strings.ContainsRune(seg, 0) {
		return fmt.Errorf("pathpolicy: null bytes are not allowed")
	}
	if strings.ContainsAny(seg, "/\\") {
		return fmt.Errorf("pathpolicy: path separators are not allowed in segments")
	}
	if len(seg) > maxLength {
		return fmt.Errorf("pathpolicy: path segment too long (max_length=%d)", maxLength)
	}
	return nil
}

// EnsureWithinRoot reports an error unless target is root itself or a
// descendant of root, resolved via lexical cleaning (no symlink
// resolution here; symlink rejection is the storage writer's job).
func EnsureWithinRoot(root, target string) error {
	rootClean := filepath.Clean(root)
	targetClean := filepath.Clean(target)

	rel, err := filepath.Rel(rootClean, targetClean)
	if err != nil {
		return fmt.Errorf("pathpolicy: target path escapes root: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("pathpolicy: target path escapes root")
	}
	return nil
}

// BuildTargetDir builds ROOT / sanitize(username) / sanitize(segments...),
// validating the raw inputs, sanitizing, validating the sanitized form,
// optionally enforcing an allow-prefix policy, and finally checking
// containment under root.
func BuildTargetDir(root, username string, segments []string, allowPrefixes []string) (string, error) {
	if err := ValidateSegments([]string{username}, 1, 64); err != nil {
		return "", err
	}
	if err := ValidateSegments(segments, 10, 64); err != nil {
		return "", err
	}

	userSafe := SanitizeSegment(username)
	segsSafe := make([]string, len(segments))
	for i, s := range segments {
		segsSafe[i] = SanitizeSegment(s)
	}

	if err := ValidateSegments([]string{userSafe}, 1, 64); err != nil {
		return "", err
	}
	if err := ValidateSegments(segsSafe, 10, 64); err != nil {
		return "", err
	}

	if len(allowPrefixes) > 0 {
		allowed := make([][]string, 0, len(allowPrefixes))
		for _, prefix := range allowPrefixes {
			parts, err := parsePrefixSegments(prefix)
			if err != nil {
				return "", err
			}
			if err := ValidateSegments(parts, 10, 64); err != nil {
				return "", err
			}
			safe := make([]string, len(parts))
			for i, p := range parts {
				safe[i] = SanitizeSegment(p)
			}
			if err := ValidateSegments(safe, 10, 64); err != nil {
				return "", err
			}
			allowed = append(allowed, safe)
		}

		matched := false
		for _, prefix := range allowed {
			if len(segsSafe) >= len(prefix) && equalPrefix(segsSafe, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return "", fmt.Errorf("pathpolicy: archive path is not allowed by allow_prefixes policy")
		}
	}

	target := filepath.Join(root, userSafe)
	for _, seg := range segsSafe {
		target = filepath.Join(target, seg)
	}

	if err := EnsureWithinRoot(root, target); err != nil {
		return "", err
	}
	return target, nil
}

func equalPrefix(segs, prefix []string) bool {
	for i, p := range prefix {
		if segs[i] != p {
			return false
		}
	}
	return true
}

func parsePrefixSegments(prefix string) ([]string, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, fmt.Errorf("pathpolicy: allow_prefixes entries must be non-empty strings")
	}
	raw := prefixSplitRE.Split(prefix, -1)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("pathpolicy: allow_prefixes entry produced no segments")
	}
	return parts, nil
}

// BuildFilenameFromPattern renders {ticket_number}, {timestamp_utc} and
// {date_utc} placeholders in pattern and validates the result is a
// single safe path segment.
func BuildFilenameFromPattern(pattern, ticketNumber, timestampUTC string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("pathpolicy: pattern must be a non-empty string")
	}

	ticketSafe := SanitizeSegment(ticketNumber)
	tsSafe := SanitizeSegment(timestampUTC)

	replacer := strings.NewReplacer(
		"{ticket_number}", ticketSafe,
		"{timestamp_utc}", tsSafe,
		"{date_utc}", tsSafe,
	)
	rendered := strings.TrimSpace(replacer.Replace(pattern))
	if rendered == "" {
		return "", fmt.Errorf("pathpolicy: filename_pattern produced an empty filename")
	}
	if strings.ContainsAny(rendered, "/\\") || strings.ContainsRune(rendered, 0) {
		return "", fmt.Errorf("pathpolicy: filename_pattern must not include path separators or null bytes")
	}
	if err := ValidateSegments([]string{rendered}, 1, 255); err != nil {
		return "", err
	}
	return rendered, nil
}
