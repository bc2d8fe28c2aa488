package allocation

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports input that makes a computation meaningless.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// WarningKind classifies degenerate but computable input.
type WarningKind string

const (
	WarnUnassignedItem      WarningKind = "unassigned_item"
	WarnZeroCustomShares    WarningKind = "zero_custom_shares"
	WarnZeroBasis           WarningKind = "zero_basis"
	WarnPayerNotParticipant WarningKind = "payer_not_participant"
)

// Warning is returned alongside a result; the caller decides how loudly to
// surface it.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s(%s): %s", w.Kind, w.Subject, w.Message)
}
