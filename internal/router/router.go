// Package router picks the processing pipeline for an envelope from its
// recipient address.
package router

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/mail-relay/internal/model"
)

// Rule sends envelopes whose recipient contains Marker to Kind.
type Rule struct {
	Marker string
	Kind   model.PipelineKind
}

// DefaultRules is the built-in priority list. An address containing both
// markers goes to the event pipeline.
var DefaultRules = []Rule{
	{Marker: "event", Kind: model.PipelineEvent},
	{Marker: "newsletter", Kind: model.PipelineNewsletterItem},
}

// Router evaluates its rules in declared order; the first marker contained in
// the lower-cased recipient wins, otherwise the catch-all kind is returned.
type Router struct {
	rules    []Rule
	catchAll model.PipelineKind
}

// New validates rules and builds a router. Nil rules mean DefaultRules.
func New(rules []Rule) (*Router, error) {
	if rules == nil {
		rules = DefaultRules
	}
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		marker := strings.ToLower(strings.TrimSpace(r.Marker))
		if marker == "" {
			return nil, fmt.Errorf("routing rule %d: empty marker", i)
		}
		if !r.Kind.Valid() {
			return nil, fmt.Errorf("routing rule %d (%s): unknown pipeline %q", i, marker, r.Kind)
		}
		out = append(out, Rule{Marker: marker, Kind: r.Kind})
	}
	return &Router{rules: out, catchAll: model.PipelineInbox}, nil
}

// MustNew is New for static rule sets.
func MustNew(rules []Rule) *Router {
	r, err := New(rules)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Router) Route(env model.Envelope) model.PipelineKind {
	to := strings.ToLower(env.To)
	for _, rule := range r.rules {
		if strings.Contains(to, rule.Marker) {
			return rule.Kind
		}
	}
	return r.catchAll
}

// Rules returns a copy of the priority list.
func (r *Router) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}
