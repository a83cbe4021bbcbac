package proxy

import (
	"errors"
	"fmt"
)

// ErrRevoked is returned (or panicked with) when a view of a revoked layer is
// accessed, e.g. after its consumer was destroyed.
var ErrRevoked = errors.New("proxy: access through revoked view")

// ErrBuiltin matches every *StrictError with errors.Is.
var ErrBuiltin = errors.New("proxy: built-in object in strict state")

// ErrNotCallable is returned by View.Call when the key does not hold a Method.
var ErrNotCallable = errors.New("proxy: value is not a method")

// ErrNotArray is panicked with when an array operation targets an object.
var ErrNotArray = errors.New("proxy: not an array")

// StrictError reports a built-in object read through a strict layer.
type StrictError struct {
	// Type is the Go type name of the offending value, e.g. "time.Time".
	Type string

	// Key is the property that held it.
	Key string
}

// Error implements the error interface.
func (e *StrictError) Error() string {
	return fmt.Sprintf("proxy: built-in object %q detected at key %q; built-ins cannot be tracked in strict mode", e.Type, e.Key)
}

// Is makes errors.Is(err, ErrBuiltin) true.
func (e *StrictError) Is(target error) bool {
	return target == ErrBuiltin
}

// KeyError reports a key that is not valid for the node kind, such as a
// non-numeric key written to an array.
type KeyError struct {
	Key  string
	Kind Kind
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("proxy: invalid %s key %q", e.Kind, e.Key)
}
