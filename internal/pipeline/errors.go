package pipeline

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/mail-relay/internal/model"
)

// ValidationError reports required fields the extractor did not return.
type ValidationError struct {
	Kind    model.PipelineKind
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s extraction missing required fields: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// ExternalServiceError wraps a failing collaborator on the primary path.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

const (
	ServiceExtraction  = "extraction"
	ServiceRecordStore = "record_store"
)
