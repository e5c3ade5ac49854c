package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("caller is not the owner")
	ErrNotFound     = errors.New("not found")
	ErrConsistency  = errors.New("denormalized index out of sync")
)

// ValidationError carries per-field messages keyed by JSON field path.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// orNil returns e only when a field was recorded.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ConsistencyError reports that the owner's class index could not be updated
// after the class itself was written. It is logged, never returned from the
// primary operation.
type ConsistencyError struct {
	Op      string
	OwnerID string
	ClassID string
	Err     error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("owner index %s for owner %s class %s: %v", e.Op, e.OwnerID, e.ClassID, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}
