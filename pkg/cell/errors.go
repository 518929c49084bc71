package cell

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrUnknownCell is raised when a closed object is asked for a cell it does
// not declare.
var ErrUnknownCell = errors.New("cell: unknown cell")

// ErrTypeMismatch is raised when a typed accessor finds a value of another
// type in the store.
var ErrTypeMismatch = errors.New("cell: type mismatch")

// ErrIndexOutOfRange is raised by Slice operations addressing elements
// outside the sequence.
var ErrIndexOutOfRange = errors.New("cell: index out of range")

// ErrDepthExceeded is raised when a cascade nests deeper than the limit set
// with WithMaxDepth.
var ErrDepthExceeded = errors.New("cell: propagation depth exceeded")

// Error describes a failed cell operation. It is the panic value for misuse
// of the API and wraps one of the sentinel errors above.
type Error struct {
	Op    string // "get", "set", "calculate", ...
	Owner string // owner label
	Cell  string // cell name or element description
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("%s %s.%s: %v", e.Op, e.Owner, e.Cell, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Owner, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is support.
func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError wraps a non-error panic raised by a formula or an observer.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("cell: panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Catch runs fn and converts a panic raised anywhere in the cascade into an
// error. *Error values are returned unchanged; anything else is wrapped in a
// *PanicError carrying the stack.
//
// Example:
//
//	if err := cell.Catch(func() { obj.Set("x", 1) }); err != nil {
//	    return err
//	}
func Catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ce, ok := r.(*Error); ok {
			err = ce
			return
		}
		err = &PanicError{Value: r, Stack: debug.Stack()}
	}()
	fn()
	return nil
}
