package model

import "strings"

type PipelineKind string

// Declaration order is stable; routing priority lives in the router.
const (
	PipelineEvent          PipelineKind = "event"
	PipelineNewsletterItem PipelineKind = "newsletter_item"
	PipelineInbox          PipelineKind = "inbox"
)

func (k PipelineKind) String() string { return string(k) }

func (k PipelineKind) Valid() bool {
	return k == PipelineEvent || k == PipelineNewsletterItem || k == PipelineInbox
}

// ParsePipelineKind accepts the canonical names plus a few short aliases.
func ParsePipelineKind(s string) (PipelineKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "event", "events":
		return PipelineEvent, true
	case "newsletter_item", "newsletter", "newsletteritem":
		return PipelineNewsletterItem, true
	case "inbox":
		return PipelineInbox, true
	default:
		return "", false
	}
}
