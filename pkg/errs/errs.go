// Package errs defines the engine's error kinds. Every error a core
// operation raises (as opposed to recording as a per-coil risk flag)
// wraps one of these kinds so callers can branch on Kind(err) instead
// of matching strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable error classification, not a Go type.
type Kind string

const (
	FileFormat              Kind = "file_format"
	MappingMissing           Kind = "mapping_missing"
	DataConversion           Kind = "data_conversion"
	PlanNotFound             Kind = "plan_not_found"
	MaterialNotTempered      Kind = "material_not_tempered"
	ConstraintViolation      Kind = "constraint_violation"
	TemplateDuplicate        Kind = "template_duplicate"
	SystemTemplateProtected  Kind = "system_template_protected"
	Storage                  Kind = "storage"
	FileIO                   Kind = "file_io"
	NothingToUndo            Kind = "nothing_to_undo"
	NothingToRedo            Kind = "nothing_to_redo"
	InvalidInput             Kind = "invalid_input"
	Internal                 Kind = "internal"
)

// EngineError is the concrete error type returned by core operations.
type EngineError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// New builds an EngineError with no wrapped cause.
func New(kind Kind, message string) error {
	return &EngineError{Kind: kind, Message: message}
}

// Wrap builds an EngineError wrapping cause.
func Wrap(kind Kind, message string, cause error) error {
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an EngineError of the given kind.
func Is(err error, kind Kind) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Internal when err
// is not an EngineError.
func KindOf(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return Internal
}
