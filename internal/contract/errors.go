package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable is returned by Predict when no model was bound at startup.
	ErrModelUnavailable = errors.New("model not loaded")

	// ErrInternalInconsistency is returned when the scorer output disagrees with
	// the bound label list.
	ErrInternalInconsistency = errors.New("scorer output inconsistent with label set")
)

// Reasons attached to a FieldError.
const (
	ReasonMissing    = "missing"
	ReasonNotNumber  = "type_error"
	ReasonOutOfRange = "out_of_range"
	ReasonNotObject  = "not_object"
	ReasonMalformed  = "malformed"
)

// FieldError describes one offending field of a request.
type FieldError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ValidationError aggregates every field-level violation of a request.
type ValidationError struct {
	Fields []FieldError `json:"detail"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, reason, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason, Message: message})
}

func inconsistency(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternalInconsistency, fmt.Sprintf(format, args...))
}
