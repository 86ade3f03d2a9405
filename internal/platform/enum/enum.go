// Package enum holds the shared error for parsing string-backed enumerations.
package enum

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedVariant matches every *UnrecognizedVariantError via errors.Is.
var ErrUnrecognizedVariant = errors.New("unrecognized variant")

// UnrecognizedVariantError reports a value that does not name any variant of Type.
type UnrecognizedVariantError struct {
	Type  string
	Value string
}

func (e *UnrecognizedVariantError) Error() string {
	return fmt.Sprintf("unrecognized %s %q", e.Type, e.Value)
}

func (e *UnrecognizedVariantError) Is(target error) bool {
	return target == ErrUnrecognizedVariant
}

// Unrecognized returns an *UnrecognizedVariantError for typ and value.
func Unrecognized(typ, value string) error {
	return &UnrecognizedVariantError{Type: typ, Value: value}
}
