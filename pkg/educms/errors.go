package educms

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound indicates a record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference indicates a referenced record does not exist or has the wrong kind
	ErrInvalidReference = errors.New("invalid reference")

	// ErrInvalidCategory indicates the category id does not resolve
	ErrInvalidCategory = errors.New("invalid category")

	// ErrMissingField indicates a required field is empty
	ErrMissingField = errors.New("missing field")

	// ErrInvalidField indicates a field holds a value outside its domain
	ErrInvalidField = errors.New("invalid field")

	// ErrAlreadyJoined indicates the user is already enrolled in the course
	ErrAlreadyJoined = errors.New("already joined")

	// ErrNotJoined indicates the user is not enrolled in the course
	ErrNotJoined = errors.New("not joined")

	// ErrMediaCleanupFailed indicates a media file could not be deleted
	ErrMediaCleanupFailed = errors.New("media cleanup failed")

	// ErrPartialDeletion indicates a deletion stopped after some references were pruned
	ErrPartialDeletion = errors.New("partial deletion")

	// ErrUserExists indicates the username or phone is taken
	ErrUserExists = errors.New("user already exists")

	// ErrCategoryExists indicates the category name or slug is taken
	ErrCategoryExists = errors.New("category already exists")

	// ErrInvalidCredentials indicates the username or password did not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidMediaPath indicates a media path escapes its store
	ErrInvalidMediaPath = errors.New("invalid media path")
)

// ValidationError reports the field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ReferenceError reports a reference that could not be accepted.
type ReferenceError struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference to %s %s rejected: %v", e.Kind, e.ID, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// RecordError wraps a failed operation on a single record.
type RecordError struct {
	Kind Kind
	ID   uuid.UUID
	Op   string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation %s failed for %s: %v", e.Kind, e.Op, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// DeletionError reports the stage at which a deletion failed. It matches
// both ErrPartialDeletion and the underlying cause.
type DeletionError struct {
	Kind  Kind
	ID    uuid.UUID
	Stage DeletionStage
	Err   error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("deletion of %s %s failed at %s: %v", e.Kind, e.ID, e.Stage, e.Err)
}

func (e *DeletionError) Unwrap() []error {
	return []error{ErrPartialDeletion, e.Err}
}

// MediaError represents an error related to media store operations
type MediaError struct {
	Backend string
	Path    string
	Op      string
	Err     error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media operation %s failed for %s on backend %s: %v", e.Op, e.Path, e.Backend, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

func missing(field string) error {
	return &ValidationError{Field: field, Err: ErrMissingField}
}

func invalid(field string) error {
	return &ValidationError{Field: field, Err: ErrInvalidField}
}
