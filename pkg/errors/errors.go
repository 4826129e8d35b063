// Package errors provides custom error types for the medmatch system.
// These errors enable programmatic error checking across the matching
// pipeline, the review queue, and the audit store, and carry enough
// context to build the per-batch error report.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's tree matches target.
var Is = errors.Is

// As finds the first error in err's tree that matches target.
var As = errors.As

// Common sentinel errors for the medmatch system
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingField indicates a required field was absent from a staging row
	ErrMissingField = errors.New("missing field")

	// ErrInvalidFormat indicates a staging row field failed type coercion
	ErrInvalidFormat = errors.New("invalid format")

	// ErrNoMatch indicates no master entity cleared the unmatched threshold
	ErrNoMatch = errors.New("no match")

	// ErrAmbiguousMatch indicates the top candidates tied within the tie-break band
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrDuplicateDetected indicates a probable duplicate of an existing entity
	ErrDuplicateDetected = errors.New("duplicate detected")

	// ErrLowConfidence indicates the best match fell inside the review band
	ErrLowConfidence = errors.New("low confidence match")

	// ErrRegistryLoad indicates the master registry failed to load (fatal to a batch)
	ErrRegistryLoad = errors.New("registry load failed")

	// ErrBatchHalted indicates a batch stopped at the completeness gate
	ErrBatchHalted = errors.New("batch halted for review")

	// ErrBatchFailed indicates a batch was aborted or failed on infrastructure
	ErrBatchFailed = errors.New("batch failed")

	// ErrReviewResolved indicates a terminal review item was acted on again
	ErrReviewResolved = errors.New("review already resolved")

	// ErrSearchUnavailable indicates the optional search backend is not wired in
	ErrSearchUnavailable = errors.New("search index unavailable")

	// ErrReadOnly indicates an attempt to modify the registry mid-batch
	ErrReadOnly = errors.New("read only")

	// ErrCanceled indicates an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	EntityType string
	ID         string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.EntityType, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, id string) *NotFoundError {
	return &NotFoundError{EntityType: entityType, ID: id}
}

// ValidationError represents a staging-row validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// RowError attaches a row index and dimension to a row-level failure.
// Row errors never abort a batch; they are accumulated into the batch
// error report.
type RowError struct {
	Row       int
	Dimension string
	Err       error
}

// Error implements the error interface
func (e *RowError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("row %d (%s): %v", e.Row, e.Dimension, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RowError) Unwrap() error {
	return e.Err
}

// NewRowError creates a new RowError
func NewRowError(row int, dimension string, err error) *RowError {
	return &RowError{Row: row, Dimension: dimension, Err: err}
}

// RegistryError represents a failure while loading or indexing master data
type RegistryError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("registry error loading %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("registry error: %v", e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RegistryError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RegistryError) Is(target error) bool {
	return target == ErrRegistryLoad
}

// ResourceError represents a failed operation on a named resource
type ResourceError struct {
	Operation string
	Resource  string
	ID        string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %v", e.Operation, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Resource, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Err: err}
}

// ParseError represents a failure to parse a master-data or config file
type ParseError struct {
	Format string
	File   string
	Err    error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s file %s: %v", e.Format, e.File, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Wrap helper functions

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Err: err}
}

// WrapRegistry wraps an error as a RegistryError
func WrapRegistry(source string, err error) error {
	if err == nil {
		return nil
	}
	return &RegistryError{Source: source, Err: err}
}
