package model

import "fmt"

// ParseError represents a structural parsing failure with field context.
// It surfaces on the result, never as a panic, so batch ingestion of
// many documents keeps going when one of them is broken.
type ParseError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error.
func NewParseError(field, message string, cause error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}
