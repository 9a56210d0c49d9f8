package audit

import (
	"fmt"
	"strings"
)

// DefaultScenario is the scenario label used when none is configured.
const DefaultScenario = "Universal Audit"

// DocumentType distinguishes the documents an audit checks against from the
// documents being audited.
type DocumentType string

const (
	DocumentReference DocumentType = "reference"
	DocumentTarget    DocumentType = "target"
)

// Document describes a file already uploaded to document storage. The
// pipeline treats it as an opaque handle.
type Document struct {
	Name   string       `yaml:"name"`
	URI    string       `yaml:"uri"`
	Type   DocumentType `yaml:"type"`
	Status string       `yaml:"status,omitempty"`
}

// HistoryEntry is one prior turn as sent to the pipeline.
type HistoryEntry struct {
	Role    Role
	Content string
}

// Request is the body of one pipeline call.
type Request struct {
	Message    string
	Scenario   string
	SessionID  string
	References []Document
	Targets    []Document
	History    []HistoryEntry
}

// Validate checks the constraints every pipeline implementation relies on.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message must not be empty: %w", ErrValidation)
	}
	if r.SessionID == "" {
		return fmt.Errorf("session id is required: %w", ErrValidation)
	}
	for _, h := range r.History {
		if h.Role != RoleUser && h.Role != RoleAssistant {
			return fmt.Errorf("unknown history role %q: %w", h.Role, ErrValidation)
		}
	}
	return nil
}
