// Package serrors is a unified errors package for signature parsing and server
// infrastructure so that they can be formatted in a unified way and handled in a
// unified way.
package serrors

import "fmt"

type (
	// ErrorKind is an enum to describe where the error originates from.
	ErrorKind int
	// Error captures infrastructure errors in steep. It distinguishes between
	// protocol, worker, signature, and internal errors and will format them
	// accordingly. Type checking problems are never represented with this type,
	// they are reported as diagnostics.
	Error struct {
		Line   int
		Column int
		Kind   ErrorKind
		Err    error
		Path   string
	}
)

const (
	// ProtocolErr is an error that originates from the LSP transport.
	ProtocolErr ErrorKind = iota
	// WorkerErr is an error that originates from a worker process.
	WorkerErr
	// SignatureErr is an error that originates from reading a signature file.
	SignatureErr
	// InternalErr is a programmer bug, for instance a broken constraint store
	// invariant.
	InternalErr
)

func (err *Error) Error() string {
	switch err.Kind {
	case ProtocolErr:
		return fmt.Sprintf("Protocol Error: %v", err.Err)
	case WorkerErr:
		return fmt.Sprintf("Worker Error: %v", err.Err)
	case SignatureErr:
		return fmt.Sprintf("Signature Error: %s:%v:%v %v", err.Path, err.Line, err.Column, err.Err)
	default:
		return fmt.Sprintf("Internal Error: %v", err.Err)
	}
}

// Unwrap exposes the wrapped error for errors.Is and errors.As.
func (err *Error) Unwrap() error { return err.Err }
