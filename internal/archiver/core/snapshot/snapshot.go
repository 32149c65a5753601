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

// Package snapshot builds an immutable TicketSnapshot from a
// ticketing.Client, sanitizing article bodies and optionally enriching
// attachments with bounded content.
package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"ticketarchiver/internal/archiver/ticketing"
)

// Party identifies a ticket participant.
type Party struct {
	ID    int64
	Login string
	Email string
	Name  string
}

// Attachment is one attachment's metadata, with Content populated only
// when enrichment is enabled and within the configured caps.
type Attachment struct {
	ArticleID    int64
	AttachmentID int64
	Filename     string
	Size         int64
	ContentType  string
	Content      []byte
}

// Article is one ordered entry of a TicketSnapshot.
type Article struct {
	ID          int64
	CreatedAt   *time.Time
	Internal    bool
	Sender      string
	Subject     string
	BodyHTML    string
	BodyText    string
	Attachments []Attachment
}

// Ticket is the header metadata of a TicketSnapshot.
type Ticket struct {
	ID           int64
	Number       string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Customer     *Party
	Owner        *Party
	Tags         []string
	CustomFields map[string]any
}

// TicketSnapshot is an immutable value computed once per processing
// run. Callers must not mutate its slices or maps; Enrich returns a new
// value rather than mutating in place.
type TicketSnapshot struct {
	Ticket   Ticket
	Articles []Article
}

// Client is the subset of ticketing.Client the snapshot builder needs.
type Client interface {
	GetTicket(ctx context.Context, ticketID int64) (*ticketing.Ticket, error)
	ListTags(ctx context.Context, ticketID int64) ([]string, error)
	ListArticles(ctx context.Context, ticketID int64) ([]ticketing.Article, error)
}

// Build fetches ticket, tags, and articles (unless already supplied)
// and assembles a sorted, sanitized TicketSnapshot.
func Build(ctx context.Context, client Client, ticketID int64, ticket *ticketing.Ticket, tags []string) (*TicketSnapshot, error) {
	var err error
	if ticket == nil {
		ticket, err = client.GetTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
	}
	if tags == nil {
		tags, err = client.ListTags(ctx, ticketID)
		if err != nil {
			return nil, err
		}
	}
	articles, err := client.ListArticles(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	snapArticles := make([]Article, len(articles))
	for i, a := range articles {
		snapArticles[i] = articleFromUpstream(a)
	}
	sortArticles(snapArticles)

	customer := partyFromPerson(ticket.Customer)
	owner := partyFromPerson(ticket.Owner)

	return &TicketSnapshot{
		Ticket: Ticket{
			ID:           ticket.ID,
			Number:       ticket.Number,
			Title:        ticket.Title,
			CreatedAt:    ticket.CreatedAt,
			UpdatedAt:    ticket.UpdatedAt,
			Customer:     customer,
			Owner:        owner,
			Tags:         append([]string{}, tags...),
			CustomFields: ticket.CustomFields,
		},
		Articles: snapArticles,
	}, nil
}

func partyFromPerson(p ticketing.Person) *Party {
	if p.Login == "" {
		return nil
	}
	return &Party{Login: p.Login}
}

func articleFromUpstream(a ticketing.Article) Article {
	bodyHTML, bodyText := sanitizeBody(a.Body, a.ContentType)

	atts := make([]Attachment, len(a.Attachments))
	for i, ref := range a.Attachments {
		atts[i] = Attachment{
			ArticleID:    a.ID,
			AttachmentID: ref.ID,
			Filename:     ref.Filename,
			Size:         ref.Size,
			ContentType:  ref.MimeType,
		}
	}

	return Article{
		ID:          a.ID,
		CreatedAt:   a.CreatedAt,
		Internal:    a.Internal,
		Sender:      a.From,
		Subject:     a.Subject,
		BodyHTML:    bodyHTML,
		BodyText:    bodyText,
		Attachments: atts,
	}
}

// sanitizeBody implements spec.md §4.6's body-handling policy: sanitize
// HTML-hinted bodies through an allow-list and derive text from the
// sanitized result; when sanitization yields nothing, derive text from
// the raw body with script/style content stripped. Bodies without an
// HTML hint pass through as plain text.
func sanitizeBody(raw, contentType string) (bodyHTML, bodyText string) {
	if raw == "" {
		return "", ""
	}
	if hasHTMLHint(contentType, raw) {
		bodyHTML = SanitizeHTMLFragment(raw)
		if bodyHTML != "" {
			bodyText = htmlToText(bodyHTML)
		} else {
			bodyText = htmlToText(raw)
		}
	} else {
		bodyText = raw
	}
	return bodyHTML, bodyText
}

func sortArticles(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		aMissing, bMissing := a.CreatedAt == nil, b.CreatedAt == nil
		if aMissing != bMissing {
			return bMissing // missing created_at sorts last
		}
		if !aMissing && !a.CreatedAt.Equal(*b.CreatedAt) {
			return a.CreatedAt.Before(*b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// AttachmentClient is the capability needed to download attachment
// binaries for enrichment.
type AttachmentClient interface {
	GetAttachmentContent(ctx context.Context, ticketID, articleID, attachmentID int64) ([]byte, error)
}

// EnrichOptions controls optional attachment content inclusion.
type EnrichOptions struct {
	Enabled                 bool
	Concurrency             int
	MaxAttachmentBytes      int64
	MaxTotalAttachmentBytes int64
}

// Enrich downloads attachment binaries concurrently (bounded by
// opts.Concurrency), skipping files that exceed the per-file cap and
// stopping once the running total would exceed the total cap. Download
// errors for an individual attachment are swallowed; enrichment never
// fails the run.
func Enrich(ctx context.Context, snap *TicketSnapshot, client AttachmentClient, opts EnrichOptions) *TicketSnapshot {
	if !opts.Enabled || opts.MaxTotalAttachmentBytes <= 0 {
		return snap
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	type fetched struct {
		articleIdx, attIdx int
		content            []byte
	}

	var targets []struct{ articleIdx, attIdx int }
	for ai, a := range snap.Articles {
		for ti, att := range a.Attachments {
			if att.AttachmentID != 0 {
				targets = append(targets, struct{ articleIdx, attIdx int }{ai, ti})
			}
		}
	}
	if len(targets) == 0 {
		return snap
	}

	sem := make(chan struct{}, concurrency)
	results := make(chan fetched, len(targets))
	var wg sync.WaitGroup

	for _, tgt := range targets {
		att := snap.Articles[tgt.articleIdx].Attachments[tgt.attIdx]
		if att.Size > 0 && att.Size > opts.MaxAttachmentBytes {
			continue
		}
		wg.Add(1)
		go func(tgt struct{ articleIdx, attIdx int }, att Attachment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			content, err := client.GetAttachmentContent(ctx, snap.Ticket.ID, att.ArticleID, att.AttachmentID)
			if err != nil {
				return
			}
			if int64(len(content)) > opts.MaxAttachmentBytes {
				return
			}
			results <- fetched{tgt.articleIdx, tgt.attIdx, content}
		}(tgt, att)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	contentByTarget := make(map[[2]int][]byte)
	for r := range results {
		contentByTarget[[2]int{r.articleIdx, r.attIdx}] = r.content
	}

	out := &TicketSnapshot{Ticket: snap.Ticket, Articles: make([]Article, len(snap.Articles))}
	var totalSoFar int64
	capReached := false
	for ai, a := range snap.Articles {
		newArticle := a
		newArticle.Attachments = make([]Attachment, len(a.Attachments))
		for ti, att := range a.Attachments {
			newAtt := att
			if content, ok := contentByTarget[[2]int{ai, ti}]; ok && !capReached {
				if totalSoFar+int64(len(content)) <= opts.MaxTotalAttachmentBytes {
					newAtt.Content = content
					totalSoFar += int64(len(content))
				} else {
					capReached = true
				}
			}
			newArticle.Attachments[ti] = newAtt
		}
		out.Articles[ai] = newArticle
	}
	return out
}
