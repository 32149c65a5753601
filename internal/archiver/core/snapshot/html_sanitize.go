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
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedTags = map[string]bool{
	"a": true, "b": true, "blockquote": true, "br": true, "code": true,
	"div": true, "em": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "hr": true, "i": true, "li": true, "ol": true,
	"p": true, "pre": true, "span": true, "strong": true, "table": true,
	"tbody": true, "td": true, "th": true, "thead": true, "tr": true,
	"u": true, "ul": true,
}

var dropWithContent = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true,
	"embed": true, "link": true, "meta": true, "base": true, "form": true,
	"input": true, "button": true, "textarea": true, "select": true, "option": true,
}

var voidTags = map[string]bool{"br": true, "hr": true}

var allowedAttrs = map[string]map[string]bool{
	"a":  {"href": true, "title": true},
	"td": {"colspan": true, "rowspan": true},
	"th": {"colspan": true, "rowspan": true},
}

var allowedHrefSchemes = map[string]bool{"": true, "http": true, "https": true, "mailto": true}

const maxNestingDepth = 50

var htmlTagHintRE = regexp.MustCompile(`(?i)<\s*(?:p|div|br|span|a|ul|ol|li|pre|code|blockquote|table|tr|td|th|strong|em|b|i|u)\b`)

func hasHTMLHint(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return htmlTagHintRE.MatchString(body)
}

func sanitizeHref(raw string) (string, bool) {
	href := strings.TrimSpace(raw)
	if href == "" || strings.ContainsRune(href, 0) {
		return "", false
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" && parsed.Host != "" {
		// scheme-relative URL like //example.com
		return "", false
	}
	if !allowedHrefSchemes[scheme] {
		return "", false
	}
	return href, true
}

// SanitizeHTMLFragment sanitizes an HTML fragment through a strict
// allow-list: drops active content (script/style/iframe/forms and
// friends) along with their content, strips event-handler and style
// attributes, neutralizes unsafe href schemes, and caps nesting depth
// to bound resource usage. Returns "" on any parse failure (fail
// closed) so callers fall back to plain text.
func SanitizeHTMLFragment(fragment string) string {
	if fragment == "" {
		return ""
	}
	var out strings.Builder
	var open []string
	skipDepth := 0

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tag := strings.ToLower(tok.Data)

			if dropWithContent[tag] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if !allowedTags[tag] || len(open) >= maxNestingDepth {
				continue
			}

			attrText := cleanAttrs(tag, tok.Attr)
			if voidTags[tag] || tt == html.SelfClosingTagToken {
				out.WriteString("<" + tag + attrText + " />")
				continue
			}
			out.WriteString("<" + tag + attrText + ">")
			open = append(open, tag)

		case html.EndTagToken:
			tag := strings.ToLower(z.Token().Data)
			if dropWithContent[tag] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if voidTags[tag] {
				continue
			}
			if len(open) == 0 || open[len(open)-1] != tag {
				continue
			}
			open = open[:len(open)-1]
			out.WriteString("</" + tag + ">")

		case html.TextToken:
			if skipDepth == 0 {
				out.WriteString(html.EscapeString(string(z.Text())))
			}
		}
	}

	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return strings.TrimSpace(out.String())
}

func cleanAttrs(tag string, attrs []html.Attribute) string {
	allowed := allowedAttrs[tag]
	var b strings.Builder
	for _, a := range attrs {
		key := strings.ToLower(strings.TrimSpace(a.Key))
		if key == "" || strings.HasPrefix(key, "on") || key == "style" {
			continue
		}
		if !allowed[key] {
			continue
		}
		value := a.Val
		if tag == "a" && key == "href" {
			sanitized, ok := sanitizeHref(value)
			if !ok {
				continue
			}
			value = sanitized
		}
		b.WriteString(" " + key + `="` + html.EscapeString(value) + `"`)
	}
	return b.String()
}

// htmlToText strips tags from already-sanitized HTML to derive a plain
// text rendering, inserting newlines at block boundaries.
func htmlToText(fragment string) string {
	var parts []string
	skipDepth := 0

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Script || tok.DataAtom == atom.Style {
				skipDepth++
				continue
			}
			if skipDepth == 0 && isBlockBoundary(tok.Data) {
				parts = append(parts, "\n")
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Script || tok.DataAtom == atom.Style {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth == 0 && isBlockBoundary(tok.Data) {
				parts = append(parts, "\n")
			}
		case html.TextToken:
			if skipDepth == 0 {
				parts = append(parts, string(z.Text()))
			}
		}
	}

	text := strings.Join(parts, "")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isBlockBoundary(tag string) bool {
	switch strings.ToLower(tag) {
	case "p", "div", "br", "li", "tr":
		return true
	default:
		return false
	}
}
