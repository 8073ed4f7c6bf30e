package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schemas check the shape of the model output only. Required business fields
// (an event's name and date) are enforced by the pipeline, so every property
// may be null or empty here.
var schemaSources = map[model.PipelineKind]string{
	model.PipelineEvent: `{
		"type": "object",
		"properties": {
			"name":        {"type": ["string", "null"]},
			"date":        {"type": ["string", "null"], "pattern": "^(\\d{4}-\\d{2}-\\d{2})?$"},
			"time":        {"type": ["string", "null"], "pattern": "^(\\d{1,2}:\\d{2}(:\\d{2})?)?$"},
			"endDate":     {"type": ["string", "null"], "pattern": "^(\\d{4}-\\d{2}-\\d{2})?$"},
			"endTime":     {"type": ["string", "null"], "pattern": "^(\\d{1,2}:\\d{2}(:\\d{2})?)?$"},
			"location":    {"type": ["string", "null"]},
			"description": {"type": ["string", "null"]},
			"organizer":   {"type": ["string", "null"]},
			"url":         {"type": ["string", "null"]}
		}
	}`,
	model.PipelineNewsletterItem: `{
		"type": "object",
		"properties": {
			"title":    {"type": ["string", "null"]},
			"summary":  {"type": ["string", "null"]},
			"category": {"type": ["string", "null"]},
			"link":     {"type": ["string", "null"]}
		}
	}`,
	model.PipelineInbox: `{
		"type": "object",
		"properties": {
			"title":       {"type": ["string", "null"]},
			"summary":     {"type": ["string", "null"]},
			"priority":    {"enum": ["high", "medium", "low", null]},
			"actionItems": {"type": ["array", "null"], "items": {"type": "string"}}
		}
	}`,
}

type schemaSet map[model.PipelineKind]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	c := jsonschema.NewCompiler()
	set := make(schemaSet, len(schemaSources))
	for kind, src := range schemaSources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse %s schema: %w", kind, err)
		}
		url := "https://mail-relay.local/schemas/" + kind.String() + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", kind, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		set[kind] = sch
	}
	return set, nil
}

func (s schemaSet) validate(kind model.PipelineKind, raw []byte) error {
	sch, ok := s[kind]
	if !ok {
		return fmt.Errorf("no schema for pipeline %q", kind)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
