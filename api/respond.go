package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/schema"
)

const maxJSONBody = 1 << 20

// errorBody is every failure response. Success is always false.
type errorBody struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Errors  []marketplace.FieldError `json:"errors,omitempty"`
}

// envelope is a successful response; keys are merged next to "success".
type envelope map[string]any

func ok(kv envelope) envelope {
	kv["success"] = true
	return kv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeError maps a service error to its status code. Unexpected errors are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *marketplace.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "validation failed", Errors: verr.Fields})
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
	case errors.Is(err, auth.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Message: "forbidden"})
	case errors.Is(err, marketplace.ErrNotFound), errors.Is(err, files.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: "not found"})
	case errors.Is(err, marketplace.ErrAlreadyApplied):
		writeJSON(w, http.StatusConflict, errorBody{Message: err.Error()})
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorBody{Message: err.Error()})
	case errors.Is(err, auth.ErrInvalidAccount):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
	}
}

func badRequest(field, message string) error {
	return &marketplace.ValidationError{Fields: []marketplace.FieldError{{Field: field, Message: message}}}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return nil, badRequest("body", "request body is too large or unreadable")
	}
	if !json.Valid(raw) {
		return nil, badRequest("body", "invalid JSON")
	}
	return raw, nil
}

// readJSON reads at most maxJSONBody bytes and decodes them into v.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("body", "invalid JSON")
	}
	return nil
}

// readChecked is readJSON with the named schema applied before decoding, so
// type mismatches are reported per field.
func readChecked(w http.ResponseWriter, r *http.Request, reg *schema.Registry, name string, v any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	violations, err := reg.Validate(r.Context(), name, raw)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		verr := &marketplace.ValidationError{}
		for _, vi := range violations {
			verr.Add(vi.Field, "%s", vi.Message)
		}
		return verr
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("body", "invalid JSON")
	}
	return nil
}

// fileError turns an upload rejection into a field error.
func fileError(field string, err error) error {
	switch {
	case errors.Is(err, files.ErrTooLarge):
		return badRequest(field, "file is too large")
	case errors.Is(err, files.ErrUnsupportedType):
		return badRequest(field, "file type is not allowed")
	case errors.Is(err, files.ErrEmpty):
		return badRequest(field, "file is empty")
	}
	return err
}
