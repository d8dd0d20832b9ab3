package store

import (
	"errors"
	"fmt"
)

// Class buckets remote failures by how the core must react to them.
type Class int

const (
	// Other is any genuine failure: network, permissions, validation.
	Other Class = iota
	// SchemaMissing means the table is not deployed.
	SchemaMissing
	// RoutineMissing means the RPC routine is not deployed.
	RoutineMissing
)

func (c Class) String() string {
	switch c {
	case SchemaMissing:
		return "schema_missing"
	case RoutineMissing:
		return "routine_missing"
	default:
		return "other"
	}
}

// Error is a classified remote failure. Adapters produce it from their backend's
// structured error codes so the core never looks at message text.
type Error struct {
	Class    Class
	Code     string
	Resource string
	Err      error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Resource, e.Class, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Resource, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ClassOf returns the class of err. Unclassified errors are Other.
func ClassOf(err error) Class {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	return Other
}

// IsMissing reports whether err means the backend object is not deployed.
func IsMissing(err error) bool {
	c := ClassOf(err)
	return c == SchemaMissing || c == RoutineMissing
}
