package aggregation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned for an unknown stage kind or
	// expression operator, and for exclusions other than the identity field.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrTypeMismatch is returned when a value has a type the expression
	// consuming it cannot handle, e.g. $avg over a string.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidStage is returned for malformed stage descriptors.
	ErrInvalidStage = errors.New("invalid stage")
)

// NewStageError wraps an error raised while evaluating the stage at index.
func NewStageError(index int, kind StageKind, err error) error {
	return fmt.Errorf("failed to evaluate stage %d (%s): %w", index, kind, err)
}

// NewExpressionError wraps an error raised while evaluating an expression.
func NewExpressionError(expr Expression, err error) error {
	return fmt.Errorf("failed to evaluate expression %s: %w", expr, err)
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, fmt.Sprintf(format, args...))
}

func invalidStagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStage, fmt.Sprintf(format, args...))
}

func typeMismatchf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...))
}
