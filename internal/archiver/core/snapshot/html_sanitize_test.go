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

package snapshot

import (
	"strings"
	"testing"
)

func TestSanitizeHTMLFragment_DropsScriptAndContent(t *testing.T) {
	got := SanitizeHTMLFragment(`<p>hi</p><script>alert(1)</script><p>bye</p>`)
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Fatalf("script content leaked into output: %q", got)
	}
	if !strings.Contains(got, "<p>hi</p>") || !strings.Contains(got, "<p>bye</p>") {
		t.Fatalf("expected surrounding paragraphs preserved, got %q", got)
	}
}

func TestSanitizeHTMLFragment_DropsEventHandlerAttrs(t *testing.T) {
	got := SanitizeHTMLFragment(`<p onclick="evil()">hi</p>`)
	if strings.Contains(got, "onclick") {
		t.Fatalf("event handler attribute leaked: %q", got)
	}
}

func TestSanitizeHTMLFragment_DropsStyleAttr(t *testing.T) {
	got := SanitizeHTMLFragment(`<p style="display:none">hi</p>`)
	if strings.Contains(got, "style") {
		t.Fatalf("style attribute leaked: %q", got)
	}
}

func TestSanitizeHTMLFragment_AllowsSafeHref(t *testing.T) {
	got := SanitizeHTMLFragment(`<a href="https://example.com">link</a>`)
	if !strings.Contains(got, `href="https://example.com"`) {
		t.Fatalf("expected safe href preserved, got %q", got)
	}
}

func TestSanitizeHTMLFragment_RejectsJavascriptHref(t *testing.T) {
	got := SanitizeHTMLFragment(`<a href="javascript:alert(1)">link</a>`)
	if strings.Contains(got, "javascript:") {
		t.Fatalf("javascript: href leaked: %q", got)
	}
}

func TestSanitizeHTMLFragment_RejectsSchemeRelativeHref(t *testing.T) {
	got := SanitizeHTMLFragment(`<a href="//evil.example.com/x">link</a>`)
	if strings.Contains(got, "evil.example.com") {
		t.Fatalf("scheme-relative href leaked: %q", got)
	}
}

func TestSanitizeHTMLFragment_DropsDisallowedTags(t *testing.T) {
	got := SanitizeHTMLFragment(`<iframe src="x"></iframe><p>kept</p>`)
	if strings.Contains(got, "iframe") {
		t.Fatalf("iframe leaked: %q", got)
	}
	if !strings.Contains(got, "kept") {
		t.Fatalf("expected surrounding content preserved, got %q", got)
	}
}

func TestSanitizeHTMLFragment_ClosesUnclosedTags(t *testing.T) {
	got := SanitizeHTMLFragment(`<p>unclosed`)
	if !strings.HasSuffix(got, "</p>") {
		t.Fatalf("expected unclosed tag to be auto-closed, got %q", got)
	}
}

func TestSanitizeHTMLFragment_CapsNestingDepth(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("<div>")
	}
	b.WriteString("deep")
	for i := 0; i < 100; i++ {
		b.WriteString("</div>")
	}
	got := SanitizeHTMLFragment(b.String())
	if strings.Count(got, "<div>") >= 100 {
		t.Fatalf("expected nesting depth to be capped, got %d div opens", strings.Count(got, "<div>"))
	}
}

func TestSanitizeHTMLFragment_EmptyInputIsEmpty(t *testing.T) {
	if got := SanitizeHTMLFragment(""); got != "" {
		t.Fatalf("expected empty output for empty input, got %q", got)
	}
}

func TestSanitizeHTMLFragment_EscapesTextContent(t *testing.T) {
	got := SanitizeHTMLFragment(`<p>a < b & c</p>`)
	if strings.Contains(got, "a < b") {
		t.Fatalf("raw angle bracket leaked into output: %q", got)
	}
}

func TestHasHTMLHint(t *testing.T) {
	cases := []struct {
		contentType, body string
		want              bool
	}{
		{"text/html", "plain", true},
		{"text/plain", "<p>hi</p>", true},
		{"text/plain", "just plain text", false},
		{"", "no tags here", false},
	}
	for _, c := range cases {
		if got := hasHTMLHint(c.contentType, c.body); got != c.want {
			t.Errorf("hasHTMLHint(%q, %q) = %v, want %v", c.contentType, c.body, got, c.want)
		}
	}
}

func TestSanitizeBody_FallsBackToTextWhenSanitizationEmpty(t *testing.T) {
	bodyHTML, bodyText := sanitizeBody(`<script>only script</script><form>typed note</form>`, "text/html")
	if bodyHTML != "" {
		t.Fatalf("expected empty body_html when sanitization yields nothing, got %q", bodyHTML)
	}
	if bodyText == "" {
		t.Fatalf("expected body_text derived from raw input when sanitization is empty")
	}
}

func TestSanitizeBody_PlainTextPassesThrough(t *testing.T) {
	bodyHTML, bodyText := sanitizeBody("just plain text", "text/plain")
	if bodyHTML != "" {
		t.Fatalf("expected no body_html for plain text, got %q", bodyHTML)
	}
	if bodyText != "just plain text" {
		t.Fatalf("expected body_text to equal raw plain text, got %q", bodyText)
	}
}
