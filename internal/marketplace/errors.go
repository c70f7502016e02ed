package marketplace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/google/uuid"
)

var (
	// ErrUnauthorized and ErrForbidden are the authorization failures. They
	// never say which check failed.
	ErrUnauthorized = auth.ErrUnauthorized
	ErrForbidden    = auth.ErrForbidden

	// ErrNotFound is returned when a referenced job, application or
	// verification does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyApplied is the conflict raised by a second application to the same job.
	ErrAlreadyApplied = errors.New("you have already applied to this job")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failed field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns e when at least one field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, format string, args ...any) error {
	v := &ValidationError{}
	v.Add(field, format, args...)
	return v
}

// UnexpectedError wraps a storage or transport failure. Its message is for
// logs only; callers show a generic failure.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }

func unexpected(op string, err error) error {
	return &UnexpectedError{Op: op, Err: err}
}

// parseID checks that id is a well-formed identifier before any lookup.
func parseID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalid(field, "is required")
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", invalid(field, "is not a valid id")
	}
	return u.String(), nil
}

func newID() string { return uuid.NewString() }
