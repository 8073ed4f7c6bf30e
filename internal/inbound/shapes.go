package inbound

import (
	"encoding/json"
	"strings"

	"github.com/jmehdipour/mail-relay/internal/model"
)

// shape is a Matcher built from two functions.
type shape struct {
	provider string
	matches  func(Payload) bool
	extract  func(Payload) model.Envelope
}

func (s shape) Provider() string                 { return s.provider }
func (s shape) Matches(p Payload) bool           { return s.matches(p) }
func (s shape) Extract(p Payload) model.Envelope { return s.extract(p) }

// NewMatcher wraps a predicate and an extractor as a Matcher.
func NewMatcher(provider string, matches func(Payload) bool, extract func(Payload) model.Envelope) Matcher {
	return shape{provider: provider, matches: matches, extract: extract}
}

// DefaultMatchers returns the built-in provider shapes in priority order. The
// predicates overlap (a Postmark payload also has a From field), so the order
// is part of the contract.
func DefaultMatchers() []Matcher {
	return []Matcher{
		Postmark(),
		SendGrid(),
		Mailgun(),
		Graph(),
		Generic(),
	}
}

// Postmark recognizes structured parses carrying a MessageID, or a FromFull
// object next to raw HtmlBody.
func Postmark() Matcher {
	return NewMatcher("postmark",
		func(p Payload) bool {
			if _, ok := stringField(p, "MessageID"); ok {
				return true
			}
			_, full := objectField(p, "FromFull")
			return full && isString(p, "HtmlBody")
		},
		func(p Payload) model.Envelope {
			env := model.Envelope{Subject: orEmpty(stringField(p, "Subject"))}

			if full, ok := objectField(p, "FromFull"); ok {
				env.From = ExtractEmail(orEmpty(stringField(full, "Email")))
			}
			if env.From == "" {
				env.From = ExtractEmail(orEmpty(stringField(p, "From")))
			}

			if first, ok := firstObject(p, "ToFull"); ok {
				env.To = ExtractEmail(orEmpty(stringField(first, "Email")))
			}
			if env.To == "" {
				env.To = BareAddress(orEmpty(stringField(p, "To")))
			}

			env.Body = textOrHTML(p, []string{"TextBody", "StrippedTextReply"}, []string{"HtmlBody"})
			return env
		},
	)
}

// SendGrid recognizes inbound-parse style payloads: a from string with text or
// html.
func SendGrid() Matcher {
	return NewMatcher("sendgrid",
		func(p Payload) bool {
			_, ok := p["from"].(string)
			return ok && anyString(p, "text", "html")
		},
		func(p Payload) model.Envelope {
			return model.Envelope{
				From:    ExtractEmail(orEmpty(stringField(p, "from"))),
				To:      BareAddress(orEmpty(stringField(p, "to"))),
				Subject: orEmpty(stringField(p, "subject")),
				Body:    textOrHTML(p, []string{"text"}, []string{"html"}),
			}
		},
	)
}

// Mailgun recognizes route forwards: sender plus body-plain / body-html.
func Mailgun() Matcher {
	return NewMatcher("mailgun",
		func(p Payload) bool {
			return isString(p, "sender") && anyString(p, "body-plain", "stripped-text", "body-html")
		},
		func(p Payload) model.Envelope {
			from := orEmpty(firstString(p, "sender", "from", "From"))
			return model.Envelope{
				From:    ExtractEmail(from),
				To:      BareAddress(orEmpty(firstString(p, "recipient", "To", "to"))),
				Subject: orEmpty(firstString(p, "subject", "Subject")),
				Body:    textOrHTML(p, []string{"body-plain", "stripped-text"}, []string{"body-html"}),
			}
		},
	)
}

// Graph recognizes payloads with a from object (Microsoft Graph style
// emailAddress, or a bare address/email object) or a capitalized From field.
func Graph() Matcher {
	return NewMatcher("graph",
		func(p Payload) bool {
			_, obj := objectField(p, "from")
			return obj || isString(p, "From")
		},
		func(p Payload) model.Envelope {
			env := model.Envelope{Subject: orEmpty(firstString(p, "subject", "Subject"))}

			if from, ok := objectField(p, "from"); ok {
				env.From = addressOf(from)
			}
			if env.From == "" {
				env.From = ExtractEmail(orEmpty(stringField(p, "From")))
			}

			if first, ok := firstObject(p, "toRecipients"); ok {
				env.To = addressOf(first)
			}
			if env.To == "" {
				env.To = BareAddress(orEmpty(firstString(p, "To", "to")))
			}

			if body, ok := objectField(p, "body"); ok {
				content := orEmpty(stringField(body, "content"))
				if strings.EqualFold(orEmpty(stringField(body, "contentType")), "html") {
					content = HTMLToText(content)
				}
				env.Body = content
			}
			if env.Body == "" {
				env.Body = textOrHTML(p, []string{"Body", "TextBody", "body"}, []string{"HtmlBody", "html"})
			}
			return env
		},
	)
}

// addressOf reads {emailAddress:{address}}, {address} or {email}.
func addressOf(obj Payload) string {
	if inner, ok := objectField(obj, "emailAddress"); ok {
		obj = inner
	}
	return ExtractEmail(orEmpty(firstString(obj, "address", "email", "Email")))
}

// Generic recognizes hand-rolled JSON: from/sender plus any body-like field.
func Generic() Matcher {
	return NewMatcher("generic",
		func(p Payload) bool {
			return anyString(p, "from", "sender") && anyString(p, "body", "text", "content", "html")
		},
		func(p Payload) model.Envelope {
			return model.Envelope{
				From:    ExtractEmail(orEmpty(firstString(p, "from", "sender"))),
				To:      BareAddress(orEmpty(firstString(p, "to", "recipient"))),
				Subject: orEmpty(firstString(p, "subject", "title")),
				Body:    textOrHTML(p, []string{"body", "text", "content"}, []string{"html"}),
			}
		},
	)
}

// Fallback always matches. It takes whatever address and subject fields exist
// and, when no textual field is present, uses the whole payload as JSON. Only
// an empty payload yields no body.
func Fallback() Matcher {
	return NewMatcher("fallback",
		func(Payload) bool { return true },
		func(p Payload) model.Envelope {
			env := model.Envelope{
				From:    ExtractEmail(orEmpty(firstString(p, "from", "sender", "From", "email"))),
				To:      BareAddress(orEmpty(firstString(p, "to", "recipient", "To"))),
				Subject: orEmpty(firstString(p, "subject", "Subject", "title")),
			}
			if env.From == "" {
				if from, ok := objectField(p, "from"); ok {
					env.From = addressOf(from)
				}
			}

			env.Body = textOrHTML(p,
				[]string{"body", "text", "content", "plain", "message", "TextBody", "Body"},
				[]string{"html", "HtmlBody"},
			)
			if env.Body == "" && len(p) > 0 {
				if raw, err := json.Marshal(p); err == nil {
					env.Body = string(raw)
				}
			}
			return env
		},
	)
}
