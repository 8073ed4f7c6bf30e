// Package inbound converts email-parsing provider webhooks into a canonical
// model.Envelope.
//
// Provider payloads are never decoded into provider structs. Each supported
// shape is a Matcher: a predicate over the payload keys plus an extractor. The
// Normalizer walks its matchers in order and the first predicate that passes
// wins; a catch-all fallback is always last.
package inbound

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jmehdipour/mail-relay/internal/model"
)

var ErrNoBodyFound = errors.New("no email body found")

// Payload is a decoded webhook body.
type Payload = map[string]any

// Matcher recognizes and extracts one provider payload shape.
type Matcher interface {
	Provider() string
	Matches(p Payload) bool
	Extract(p Payload) model.Envelope
}

// recipientHeaders are consulted, in order, when the payload has no recipient.
var recipientHeaders = []string{"X-Original-To", "Delivered-To", "X-Forwarded-To"}

type Normalizer struct {
	matchers []Matcher
}

// NewNormalizer builds a normalizer over matchers, or over DefaultMatchers when
// none are given. The fallback matcher is always appended.
func NewNormalizer(matchers ...Matcher) *Normalizer {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	list := make([]Matcher, 0, len(matchers)+1)
	list = append(list, matchers...)
	list = append(list, Fallback())
	return &Normalizer{matchers: list}
}

// Providers lists matcher names in evaluation order.
func (n *Normalizer) Providers() []string {
	out := make([]string, 0, len(n.matchers))
	for _, m := range n.matchers {
		out = append(out, m.Provider())
	}
	return out
}

// Normalize returns the envelope produced by the first matching shape. It fails
// with ErrNoBodyFound when the matched shape carries no body text.
func (n *Normalizer) Normalize(p Payload, headers http.Header) (model.Envelope, error) {
	for _, m := range n.matchers {
		if !m.Matches(p) {
			continue
		}

		env := m.Extract(p)
		env.Provider = m.Provider()
		env.Body = strings.TrimSpace(env.Body)
		if env.Body == "" {
			return model.Envelope{}, fmt.Errorf("%s payload: %w", m.Provider(), ErrNoBodyFound)
		}
		if env.To == "" {
			env.To = recipientFromHeaders(headers)
		}
		return env, nil
	}
	// unreachable: the fallback always matches
	return model.Envelope{}, ErrNoBodyFound
}

func recipientFromHeaders(h http.Header) string {
	for _, name := range recipientHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return BareAddress(v)
		}
	}
	return ""
}
