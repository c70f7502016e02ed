// Package schema validates JSON request bodies against compiled JSON schemas
// before they are decoded into typed inputs.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"
)

// Names of the bundled schemas.
const (
	JobPatch             = "job.patch"
	ApplicationReview    = "application.review"
	VerificationDecision = "verification.decision"
)

var bundled = map[string]string{
	JobPatch: `{
		"type": "object",
		"properties": {
			"isActive": {"type": "boolean"},
			"status": {"type": "string", "enum": ["pending", "approved", "rejected"]}
		}
	}`,
	ApplicationReview: `{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["Pending", "Interview", "Shortlisted", "Rejected", "Accepted"]},
			"shortlisted": {"type": "boolean"}
		}
	}`,
	VerificationDecision: `{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status": {"type": "string", "enum": ["approved", "rejected"]}
		}
	}`,
}

// Violation is one failed keyword, addressed by top-level field name.
type Violation struct {
	Field   string
	Message string
}

// Registry caches compiled schemas by name.
type Registry struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewRegistry compiles the bundled schemas.
func NewRegistry() (*Registry, error) {
	r := &Registry{cache: make(map[string]*jsonschema.Schema)}
	for name, raw := range bundled {
		if err := r.Register(name, raw); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles raw and stores it under name, replacing any previous schema.
func (r *Registry) Register(name, raw string) error {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(raw), rs); err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = rs
	r.mu.Unlock()

	return nil
}

// Validate checks data against the named schema. A malformed document is
// reported as an error; schema failures come back as violations sorted by field.
func (r *Registry) Validate(ctx context.Context, name string, data []byte) ([]Violation, error) {
	r.mu.RLock()
	rs, ok := r.cache[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}

	keyErrs, err := rs.ValidateBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}

	out := make([]Violation, 0, len(keyErrs))
	for _, ke := range keyErrs {
		out = append(out, Violation{Field: fieldOf(ke.PropertyPath), Message: ke.Message})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })

	return out, nil
}

// fieldOf turns a JSON pointer such as "/isActive" into "isActive".
func fieldOf(pointer string) string {
	p := strings.Trim(pointer, "/")
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "body"
	}
	return p
}
