// Package extract asks a language model to pull structured fields out of an
// inbound email and validates the answer before it reaches a pipeline.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/mail-relay/internal/model"
)

var ErrMalformedOutput = errors.New("malformed extraction output")

// MessageCreator is the part of Client the extractor needs.
type MessageCreator interface {
	CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error)
}

type Options struct {
	Model     string
	MaxTokens int
	// MaxBodyChars caps how much of the email body is sent.
	MaxBodyChars int
	Now          func() time.Time
}

type Extractor struct {
	llm     MessageCreator
	schemas schemaSet
	opts    Options
}

func NewExtractor(llm MessageCreator, opts Options) (*Extractor, error) {
	if opts.Model == "" {
		opts.Model = "claude-3-5-haiku-latest"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.MaxBodyChars <= 0 {
		opts.MaxBodyChars = 12000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Extractor{llm: llm, schemas: schemas, opts: opts}, nil
}

var instructions = map[model.PipelineKind]string{
	model.PipelineEvent: `Extract the event announced in this email. Respond with one JSON object:
{"name": string, "date": "YYYY-MM-DD", "time": "HH:MM" or null, "endDate": "YYYY-MM-DD" or null,
 "endTime": "HH:MM" or null, "location": string or null, "description": string or null,
 "organizer": string or null, "url": string or null}
Use null for anything the email does not state. Times are local wall-clock times.`,
	model.PipelineNewsletterItem: `Turn this email into a newsletter item. Respond with one JSON object:
{"title": string, "summary": string (two or three sentences), "category": string or null, "link": string or null}`,
	model.PipelineInbox: `Summarize this email for a personal inbox. Respond with one JSON object:
{"title": string, "summary": string, "priority": "high" | "medium" | "low", "actionItems": [string]}`,
}

func (e *Extractor) ExtractEvent(ctx context.Context, subject, body string) (model.EventFields, error) {
	var f model.EventFields
	err := e.extract(ctx, model.PipelineEvent, subject, body, &f)
	return f, err
}

func (e *Extractor) ExtractNewsletterItem(ctx context.Context, subject, body string) (model.NewsletterFields, error) {
	var f model.NewsletterFields
	err := e.extract(ctx, model.PipelineNewsletterItem, subject, body, &f)
	return f, err
}

func (e *Extractor) ExtractInbox(ctx context.Context, subject, body string) (model.InboxFields, error) {
	var f model.InboxFields
	err := e.extract(ctx, model.PipelineInbox, subject, body, &f)
	return f, err
}

func (e *Extractor) extract(ctx context.Context, kind model.PipelineKind, subject, body string, out any) error {
	body = truncateRunes(body, e.opts.MaxBodyChars)

	today := e.opts.Now().Format("Monday 2006-01-02")
	req := &MessagesRequest{
		Model:     e.opts.Model,
		MaxTokens: e.opts.MaxTokens,
		System:    "You extract structured data from emails. Today is " + today + ". Reply with JSON only, no prose.",
		Messages: []Message{{
			Role:    "user",
			Content: instructions[kind] + "\n\nSubject: " + subject + "\n\n" + body,
		}},
	}

	resp, err := e.llm.CreateMessage(ctx, req)
	if err != nil {
		return err
	}

	raw, err := jsonObject(resp.Text())
	if err != nil {
		return err
	}
	if err := e.schemas.validate(kind, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// truncateRunes keeps the first n characters of s.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// jsonObject cuts the outermost {...} out of a model reply, which may be wrapped
// in a code fence or surrounded by prose.
func jsonObject(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedOutput)
	}
	return []byte(text[start : end+1]), nil
}
