package notion

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jmehdipour/mail-relay/internal/model"
)

// maxTextLen is Notion's limit for a single rich-text object.
const maxTextLen = 2000

// Properties maps a database property name to its Notion property value.
type Properties map[string]any

type PageRequest struct {
	DatabaseID string
	Properties Properties
	// Body is rendered as paragraph blocks.
	Body string
}

type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePage adds a page to a database.
func (c *Client) CreatePage(ctx context.Context, req PageRequest) (Page, error) {
	if strings.TrimSpace(req.DatabaseID) == "" {
		return Page{}, fmt.Errorf("notion create page: database id is empty")
	}
	payload := map[string]any{
		"parent":     map[string]any{"database_id": req.DatabaseID},
		"properties": req.Properties,
	}
	if blocks := Paragraphs(req.Body); len(blocks) > 0 {
		payload["children"] = blocks
	}

	var page Page
	if err := c.do(ctx, "POST", "/v1/pages", payload, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// UpdateProperties patches properties of an existing page.
func (c *Client) UpdateProperties(ctx context.Context, pageID string, props Properties) error {
	payload := map[string]any{"properties": props}
	return c.do(ctx, "PATCH", "/v1/pages/"+url.PathEscape(pageID), payload, nil)
}

// AddComment attaches a top-level comment to a page.
func (c *Client) AddComment(ctx context.Context, pageID, text string) error {
	payload := map[string]any{
		"parent":    map[string]any{"page_id": pageID},
		"rich_text": richText(text),
	}
	return c.do(ctx, "POST", "/v1/comments", payload, nil)
}

// FindPageByTitle returns the id of the first page in databaseID whose title
// property equals title, or "" when there is none.
func (c *Client) FindPageByTitle(ctx context.Context, databaseID, property, title string) (string, error) {
	payload := map[string]any{
		"filter": map[string]any{
			"property": property,
			"title":    map[string]any{"equals": title},
		},
		"page_size": 1,
	}
	var result struct {
		Results []Page `json:"results"`
	}
	path := "/v1/databases/" + url.PathEscape(databaseID) + "/query"
	if err := c.do(ctx, "POST", path, payload, &result); err != nil {
		return "", err
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

// WeekContainers finds weekly container pages by title in one database.
type WeekContainers struct {
	Client        *Client
	DatabaseID    string
	TitleProperty string
}

func (w WeekContainers) FindContainer(ctx context.Context, title string) (string, error) {
	prop := w.TitleProperty
	if prop == "" {
		prop = "Name"
	}
	return w.Client.FindPageByTitle(ctx, w.DatabaseID, prop, title)
}

// ---- property values ----

func Title(s string) map[string]any {
	return map[string]any{"title": richText(s)}
}

func RichText(s string) map[string]any {
	return map[string]any{"rich_text": richText(s)}
}

// Date renders a DateRange; the zero range clears the property.
func Date(r model.DateRange) map[string]any {
	if r.IsZero() {
		return map[string]any{"date": nil}
	}
	d := map[string]any{"start": r.Start}
	if r.End != "" {
		d["end"] = r.End
	}
	return map[string]any{"date": d}
}

func URL(s string) map[string]any {
	return map[string]any{"url": s}
}

func Email(s string) map[string]any {
	return map[string]any{"email": s}
}

func Select(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

func Relation(ids ...string) map[string]any {
	rel := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rel = append(rel, map[string]any{"id": id})
	}
	return map[string]any{"relation": rel}
}

// SetIf adds a property only when value is non-blank. Notion rejects empty
// URL, email and select values.
func (p Properties) SetIf(name, value string, build func(string) map[string]any) {
	if strings.TrimSpace(value) != "" {
		p[name] = build(value)
	}
}

// Paragraphs splits text on blank lines into paragraph blocks.
func Paragraphs(text string) []map[string]any {
	var blocks []map[string]any
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		blocks = append(blocks, map[string]any{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]any{"rich_text": richText(para)},
		})
	}
	return blocks
}

// richText splits s into text objects of at most maxTextLen characters.
func richText(s string) []map[string]any {
	chunks := splitRunes(s, maxTextLen)
	out := make([]map[string]any, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, map[string]any{
			"type": "text",
			"text": map[string]any{"content": chunk},
		})
	}
	return out
}

func splitRunes(s string, n int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	for utf8.RuneCountInString(s) > n {
		i, count := 0, 0
		for i < len(s) && count < n {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			count++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return append(out, s)
}
