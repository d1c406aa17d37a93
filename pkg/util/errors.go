// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for pipeline failures
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUnsafe           = errors.New("not safe to configure")
	ErrUnreachable      = errors.New("device unreachable")
	ErrTimeout          = errors.New("device timed out")
	ErrRejected         = errors.New("device rejected commands")
	ErrStoreCorruption  = errors.New("audit store unreadable")
	ErrNotFound         = errors.New("resource not found")
)

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// UnsafeError reports a pre-check veto. Recommendations explain the verdict
// but never influence it.
type UnsafeError struct {
	Device          string
	Interface       string
	Recommendations []string
}

func (e *UnsafeError) Error() string {
	msg := fmt.Sprintf("%s %s is not safe to configure", e.Device, e.Interface)
	if len(e.Recommendations) > 0 {
		msg += ": " + strings.Join(e.Recommendations, "; ")
	}
	return msg
}

func (e *UnsafeError) Unwrap() error {
	return ErrUnsafe
}

// NewUnsafeError creates an unsafe-to-configure error
func NewUnsafeError(device, iface string, recommendations []string) *UnsafeError {
	return &UnsafeError{Device: device, Interface: iface, Recommendations: recommendations}
}

// RejectedError reports commands a device refused to accept
type RejectedError struct {
	Device string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected commands: %s", e.Device, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

// NewRejectedError creates a rejection error
func NewRejectedError(device, reason string) *RejectedError {
	return &RejectedError{Device: device, Reason: reason}
}

// StageError names the pipeline stage that failed so callers can tell a
// pre-check failure apart from a commit or apply failure.
type StageError struct {
	Stage  string // "precheck", "render", "commit", "apply"
	Device string
	Err    error
}

func (e *StageError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Device, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the failing stage and device
func NewStageError(stage, device string, err error) *StageError {
	return &StageError{Stage: stage, Device: device, Err: err}
}
