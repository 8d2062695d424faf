// Package kerrors implements the error taxonomy of the kernel and
// controller: a low-level OperationError for wrapped causes, and a closed
// Kind enum for the kernel's own failure modes (spec §7).
package kerrors

import "fmt"

// OperationError wraps a low-level failure with the operation, component
// and resource it happened against. Mirrors the teacher's
// pkg/shared/errors.OperationError.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	s := fmt.Sprintf("failed to %s", e.Operation)
	if e.Component != "" {
		s += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		s += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(", cause: %s", e.Cause.Error())
	}
	return s
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo wraps cause golang-style as "failed to <action>: <cause>", or
// returns just "failed to <action>" when cause is nil.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds a fully-populated OperationError.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{Operation: operation, Component: component, Resource: resource, Cause: cause}
}

// Wrapf formats a message and wraps err with it, golang-style (":" joined).
// Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
