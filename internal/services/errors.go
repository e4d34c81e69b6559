package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor may not modify the entity
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned when an email/password pair does not match
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateRelation is returned when an identical relationship already exists
	ErrDuplicateRelation = errors.New("relationship already exists")
	// ErrRelationNotFound is returned when deleting a relationship that does not exist
	ErrRelationNotFound = errors.New("relationship does not exist")
	// ErrSelfRelation is returned when an actor targets themselves and the kind forbids it
	ErrSelfRelation = errors.New("relationship with self is not allowed")
	// ErrAmountOverflow is returned when a shopping list total does not fit in int64
	ErrAmountOverflow = errors.New("ingredient total overflows")
)

// ValidationError collects field-keyed messages for a rejected submission
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates a validation error with a single message
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add records a message for the given field
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// Has reports whether any message was recorded for the field
func (v *ValidationError) Has(field string) bool {
	return len(v.Fields[field]) > 0
}

// OrNil returns nil when no messages were recorded
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(v.Fields[field], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// RelationError is a relationship guard failure with a user facing message
type RelationError struct {
	Kind    RelationKind
	Field   string
	Message string
	Err     error
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RelationError) Unwrap() error {
	return e.Err
}
