package pastes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned for absent pastes and for every access denial, so callers cannot tell them apart.
var ErrNotFound = errors.New("pastes: not found")

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingHighlighter = errors.New("highlighter is required")
	errMissingBlobStore   = errors.New("blob store is required")
	errMissingDirectory   = errors.New("user directory is required")
	errImageModeMissing   = errors.New("image rendering not implemented")
)

// ServiceError annotates infrastructure failures with an operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ValidationError carries field-level and form-level messages for rejected input.
type ValidationError struct {
	Fields   map[string]string
	Messages []string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields)+len(e.Messages))
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	for _, field := range keys {
		parts = append(parts, field+": "+e.Fields[field])
	}
	parts = append(parts, e.Messages...)
	return "pastes: validation failed: " + strings.Join(parts, "; ")
}

// Field returns the message recorded for field, if any.
func (e *ValidationError) Field(field string) string {
	if e == nil {
		return ""
	}
	return e.Fields[field]
}

func (e *ValidationError) addField(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) addMessage(message string) {
	e.Messages = append(e.Messages, message)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0 && len(e.Messages) == 0
}

func fieldError(field, message string) *ValidationError {
	verr := &ValidationError{}
	verr.addField(field, message)
	return verr
}

func formError(message string) *ValidationError {
	verr := &ValidationError{}
	verr.addMessage(message)
	return verr
}
