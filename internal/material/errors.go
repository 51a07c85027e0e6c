package material

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a parameter name or index does not exist.
	ErrNotFound = errors.New("material: not found")
	// ErrOutOfRange is returned when an index exceeds its sequence.
	ErrOutOfRange = errors.New("material: index out of range")
	// ErrTypeMismatch is returned when an argument cannot be bound to the
	// type of its parameter.
	ErrTypeMismatch = errors.New("material: type mismatch")
	// ErrForbiddenArgumentKind is returned for parameter or temporary
	// references passed as arguments where they are not permitted.
	ErrForbiddenArgumentKind = errors.New("material: forbidden argument kind")
	// ErrStaleDefinition is returned when a definition was superseded by a
	// module reload.
	ErrStaleDefinition = errors.New("material: stale definition")
	// ErrConstructionFailure is returned when a definition cannot be built
	// from its compiled module.
	ErrConstructionFailure = errors.New("material: construction failure")
	// ErrMissingArgument is returned when a parameter without a default
	// receives no argument.
	ErrMissingArgument = errors.New("material: missing argument")
	// ErrNotExported is returned when a definition that is private to its
	// module is instantiated through the public entry point.
	ErrNotExported = errors.New("material: definition not exported")
	// ErrImmutable is returned when an argument of an immutable instance is
	// changed.
	ErrImmutable = errors.New("material: instance is immutable")
)

// ErrorCode discriminates instantiation failures.
type ErrorCode int

const (
	CodeUnknownParameter ErrorCode = iota + 1
	CodeTypeMismatch
	CodeForbiddenArgumentKind
	CodeStaleDefinition
	CodeMissingArgument
	CodeNotExported
	CodeImmutable
)

func (c ErrorCode) String() string {
	switch c {
	case CodeUnknownParameter:
		return "unknown parameter"
	case CodeTypeMismatch:
		return "type mismatch"
	case CodeForbiddenArgumentKind:
		return "forbidden argument kind"
	case CodeStaleDefinition:
		return "stale definition"
	case CodeMissingArgument:
		return "missing argument"
	case CodeNotExported:
		return "not exported"
	case CodeImmutable:
		return "immutable"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

func (c ErrorCode) sentinel() error {
	switch c {
	case CodeUnknownParameter:
		return ErrNotFound
	case CodeTypeMismatch:
		return ErrTypeMismatch
	case CodeForbiddenArgumentKind:
		return ErrForbiddenArgumentKind
	case CodeStaleDefinition:
		return ErrStaleDefinition
	case CodeMissingArgument:
		return ErrMissingArgument
	case CodeNotExported:
		return ErrNotExported
	case CodeImmutable:
		return ErrImmutable
	default:
		return nil
	}
}

// InstantiationError reports why an instance could not be created or
// changed. Param and Index are empty and -1 for failures that concern the
// definition as a whole.
type InstantiationError struct {
	Code       ErrorCode
	Definition string
	Param      string
	Index      int
	Detail     string
}

func (e *InstantiationError) Error() string {
	msg := fmt.Sprintf("instantiate %s", e.Definition)
	if e.Param != "" {
		if e.Index >= 0 {
			msg += fmt.Sprintf(", parameter %q (#%d)", e.Param, e.Index)
		} else {
			msg += fmt.Sprintf(", parameter %q", e.Param)
		}
	}
	msg += ": " + e.Code.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the sentinel matching Code.
func (e *InstantiationError) Unwrap() error { return e.Code.sentinel() }
