package cascade

import (
	"fmt"
	"strings"

	"github.com/jakechorley/community-events/pkg/core/validation"
)

// ValidationError reports that an update was rejected before any write. It
// always carries the full list of individual field failures.
type ValidationError struct {
	Entity string
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(msgs, "; "))
}

// NotFoundError reports that the primary entity targeted by an update does
// not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// UnsupportedOperationError reports a structurally valid request that is
// intentionally rejected, such as changing a volunteer's email identifier.
type UnsupportedOperationError struct {
	Code    string
	Message string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// PermissionError reports that the caller is not authorized for the
// requested mutation. It originates in collaborators (ownership and role
// checks); the cascade manager propagates it unchanged.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// DependencyError reports that the entity store rejected a read or write on
// the primary record. Failed dependent reads and per-item cascade writes are
// logged instead, so the overall operation can still complete.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
