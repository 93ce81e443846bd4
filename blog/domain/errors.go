package domain

import (
	"errors"
	"fmt"
)

// ConflictError means the lock guarding an operation is already held.
// It is never cleared automatically.
type ConflictError struct {
	Op       string
	Artifact string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s (%s exists)", e.Op, e.Reason, e.Artifact)
}

// NotFoundError means a precursor artifact is missing, usually because
// operations were invoked out of order.
type NotFoundError struct {
	Op       string
	Artifact string
	Reason   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s (%s missing)", e.Op, e.Reason, e.Artifact)
}

// IOError wraps a filesystem failure on a named artifact.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TemplateError means the page template could not be read.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsTemplate(err error) bool {
	var target *TemplateError
	return errors.As(err, &target)
}

func IsIO(err error) bool {
	var target *IOError
	return errors.As(err, &target)
}
